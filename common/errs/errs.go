package errs

// ErrorKind identifies a kind of internal error.
// fully support for errors.Is and errors.As.
type ErrorKind string

const (
	// NotFound is returned when a requested item is not found.
	NotFound           = ErrorKind("Not Found")
	InternalError      = ErrorKind("Internal Error")
	Timeout            = ErrorKind("Timeout")
	ConflictSetting    = ErrorKind("Conflict Setting")
	SomethingWentWrong = ErrorKind("Something Went Wrong")
	Closed             = ErrorKind("Closed")
	Unsupported        = ErrorKind("Unsupported")
	InvalidArgument    = ErrorKind("Invalid Argument")
	OverflowUint128    = ErrorKind("overflow uint128")

	// InvariantViolation is returned when derived secrets and feed data
	// disagree (negative note balance, change index gap). Retrying
	// reproduces it, so callers must not treat it as a transient I/O
	// failure.
	InvariantViolation = ErrorKind("Invariant Violation")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}
