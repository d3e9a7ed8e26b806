// Package apperrors defines the tagged error kinds the pipeline reports.
package apperrors

// Kind classifies an error by who is at fault and how the API layer
// should surface it.
type Kind string

const (
	// KindInvalidInput marks caller errors: empty text, oversized
	// documents, whitespace-only questions.
	KindInvalidInput Kind = "INVALID_INPUT"
	// KindInvalidRange marks an out-of-range result count.
	KindInvalidRange Kind = "INVALID_RANGE"
	// KindProviderUnavailable marks embedding backend failures. Fatal to
	// the request: no answer can be produced without a query vector.
	KindProviderUnavailable Kind = "PROVIDER_UNAVAILABLE"
	// KindStoreUnavailable marks storage backend failures.
	KindStoreUnavailable Kind = "STORE_UNAVAILABLE"
	// KindDimensionMismatch marks a query or document vector whose
	// dimension differs from the store's. A configuration fault.
	KindDimensionMismatch Kind = "DIMENSION_MISMATCH"
)

// Error is a tagged application error carrying its underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by kind, so sentinel values below work with errors.Is
// regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// WithCause returns a copy of the error with the given cause attached.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Cause: cause}
}

// WithMessage returns a copy of the error with a more specific message.
func (e *Error) WithMessage(message string) *Error {
	return &Error{Kind: e.Kind, Message: message, Cause: e.Cause}
}

// Sentinel errors for each kind. Match with errors.Is.
var (
	ErrInvalidInput        = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrInvalidRange        = &Error{Kind: KindInvalidRange, Message: "result count out of range"}
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable, Message: "embedding provider unavailable"}
	ErrStoreUnavailable    = &Error{Kind: KindStoreUnavailable, Message: "document store unavailable"}
	ErrDimensionMismatch   = &Error{Kind: KindDimensionMismatch, Message: "embedding dimension mismatch"}
)
