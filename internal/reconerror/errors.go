// Package reconerror defines the error taxonomy of the reconciliation core.
package reconerror

import "fmt"

// ParseError represents a structural failure while parsing a statement file.
// A ParseError always rejects the whole import; there are no partial
// statements.
type ParseError struct {
	Format string
	Line   int
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: failed to parse %s=%q: %v",
			e.Format, e.Line, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: failed to parse %s=%q: %v",
		e.Format, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ConflictError represents a lost optimistic-concurrency race on a target's
// remaining amount. It is retryable against refreshed target data.
type ConflictError struct {
	TargetID        string
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("target %s: version conflict: expected %d, found %d",
		e.TargetID, e.ExpectedVersion, e.ActualVersion)
}

// LockedError represents a mutation attempted on a POSTED statement.
type LockedError struct {
	StatementID string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("statement %s is posted and immutable", e.StatementID)
}

// ValidationError represents a request that is well-formed but violates a
// matching precondition, such as a currency mismatch. It is not retryable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError represents an unknown transaction, statement or target.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Warning codes for soft validation findings. Warnings never abort an
// import.
const (
	WarnBalanceMismatch  = "balance_mismatch"
	WarnDuplicateSuspect = "duplicate_suspect"
	WarnReimport         = "reimport"
)

// Warning is a soft validation finding attached to an import. It is a
// value, not an error: the import proceeds.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}
