// Package billing contains the customer billing domain: orders as read-only
// input, customer-service links with their rule configuration, tiered pricing,
// the service cost calculator, and the billing report aggregate.
//
// Configuration (rule groups, calculations, tier configs) is validated at
// edit/load time and treated as an immutable snapshot during a billing run.
// Reports are created fresh per generation request and never mutated after
// they are returned.
package billing
