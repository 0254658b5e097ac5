// Package rules implements condition evaluation for billing rules.
//
// A rule is a single (field, operator, value) condition evaluated against an
// order record. Rules are combined into groups under a logical operator
// (AND/OR/NOT/XOR/NAND/NOR). Evaluation never returns an error to the caller:
// any internal failure (unknown operator, missing field, numeric coercion
// failure) degrades to a non-match carrying a diagnostic reason, so a billing
// run over many orders can never be aborted by one bad rule.
package rules
