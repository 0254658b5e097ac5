package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput  = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState  = NewDomainError("INVALID_STATE", "Operation not allowed in current state")

	// ErrConfiguration covers malformed rule or tier configuration. It is fatal
	// to the owning rule, never to a billing run.
	ErrConfiguration = NewDomainError("CONFIGURATION_ERROR", "Invalid billing configuration")
	// ErrEvaluation covers per-condition failures (unknown operator, coercion
	// failure). Converted to a non-match, never propagated out of a run.
	ErrEvaluation = NewDomainError("EVALUATION_ERROR", "Rule evaluation failed")
	// ErrData covers missing or malformed order data, treated as zero/absent.
	ErrData = NewDomainError("DATA_ERROR", "Order data missing or malformed")
)
