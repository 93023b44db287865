// Package mpierr defines the MPI error-class constants and the small
// error type that carries one of them across the runtime's internal
// call boundaries before the public façade translates it through an
// errhandler.
package mpierr

import "fmt"

// Code is an MPI error class.
type Code int

const (
	Success                 Code = 0
	ErrBuffer               Code = 1
	ErrCount                Code = 2
	ErrType                 Code = 3
	ErrTag                  Code = 4
	ErrComm                 Code = 5
	ErrRank                 Code = 6
	ErrGroup                Code = 9
	ErrArg                  Code = 13
	ErrTruncate             Code = 15
	ErrOther                Code = 16
	ErrIntern               Code = 17
	ErrPending              Code = 18
	ErrNoMem                Code = 39
	ErrUnsupportedOperation Code = 56
	ErrLastcode             Code = 92
)

func (c Code) String() string {
	switch c {
	case Success:
		return "MPI_SUCCESS"
	case ErrBuffer:
		return "MPI_ERR_BUFFER"
	case ErrCount:
		return "MPI_ERR_COUNT"
	case ErrType:
		return "MPI_ERR_TYPE"
	case ErrTag:
		return "MPI_ERR_TAG"
	case ErrComm:
		return "MPI_ERR_COMM"
	case ErrRank:
		return "MPI_ERR_RANK"
	case ErrGroup:
		return "MPI_ERR_GROUP"
	case ErrArg:
		return "MPI_ERR_ARG"
	case ErrTruncate:
		return "MPI_ERR_TRUNCATE"
	case ErrOther:
		return "MPI_ERR_OTHER"
	case ErrIntern:
		return "MPI_ERR_INTERN"
	case ErrPending:
		return "MPI_ERR_PENDING"
	case ErrNoMem:
		return "MPI_ERR_NO_MEM"
	case ErrUnsupportedOperation:
		return "MPI_ERR_UNSUPPORTED_OPERATION"
	case ErrLastcode:
		return "MPI_ERR_LASTCODE"
	default:
		return fmt.Sprintf("MPI_ERR_UNKNOWN(%d)", int(c))
	}
}

// Error wraps a Code with a diagnostic message, the value that crosses
// internal call boundaries (the public façade unwraps it back to a bare
// Code after routing through the relevant errhandler).
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an *Error, or nil if code is Success (so it can be used
// directly as a Go error return).
func New(code Code, message string) error {
	if code == Success {
		return nil
	}
	return &Error{Code: code, Message: message}
}

// AsCode extracts the Code carried by err, or ErrOther if err is a
// plain, non-mpierr error, or Success if err is nil.
func AsCode(err error) Code {
	if err == nil {
		return Success
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ErrOther
}
