package errors

// Error codes shared by every transport.
const (
	ErrInternal        = "INTERNAL"
	ErrNotFound        = "NOT_FOUND"
	ErrInvalidArgument = "INVALID_ARGUMENT"
	ErrUnauthenticated = "UNAUTHENTICATED"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrConflict        = "CONFLICT"
	ErrTimeout         = "TIMEOUT"
	ErrNotImplemented  = "NOT_IMPLEMENTED"

	// ErrInvalidData marks stored data that cannot be interpreted.
	ErrInvalidData = "INVALID_DATA"
	// ErrConfiguration marks an operator-actionable upstream misconfiguration.
	ErrConfiguration = "CONFIGURATION"
	// ErrUpstream marks a failure reported by a third-party provider.
	ErrUpstream = "UPSTREAM"
)
