// Package errhandler implements polymorphic error-handler dispatch: a
// tagged union over {comm, win, file} object kinds — only comm is
// exercised — with the three predefined MPI behaviors.
package errhandler

import (
	"fmt"

	"github.com/nanvix/libmpi/internal/logging"
	"github.com/nanvix/libmpi/internal/mpierr"
	"github.com/nanvix/libmpi/internal/objutil"
)

// Kind tags which object class an errhandler was bound to, mirroring
// mpi_errhandler_type_t (only Comm is exercised by this module).
type Kind int

const (
	Comm Kind = iota
	Win
	File
)

// Variant names one of the three predefined behaviors, or the null
// sentinel.
type Variant int

const (
	Null Variant = iota
	AreFatal
	Abort
	Return
)

// AbortFunc is called by the fatal/abort variants to terminate the
// relevant scope. The runtime lifecycle supplies the concrete
// implementation; this package only decides when to call it.
type AbortFunc func(scope string, code mpierr.Code)

// Object is any MPI object that can receive an errhandler invocation; it
// need only name itself for the diagnostic message.
type Object interface {
	ErrhandlerScope() string
}

// Handler is a bound errhandler instance.
type Handler struct {
	objutil.Header

	kind    Kind
	variant Variant
	log     logging.Logger
	abort   AbortFunc
}

// New constructs a Handler for the given variant.
func New(kind Kind, variant Variant, log logging.Logger, abort AbortFunc) *Handler {
	return &Handler{
		Header:  objutil.NewHeader(true),
		kind:    kind,
		variant: variant,
		log:     log,
		abort:   abort,
	}
}

// Destruct is a no-op: Handler owns no inner references to release.
func (h *Handler) Destruct() {}

// IsValid reports whether h is a usable (non-nil, non-ERRHANDLER_NULL)
// handler.
func IsValid(h *Handler) bool {
	return h != nil && h.variant != Null
}

// Invoke dispatches h against obj:
//   - AreFatal: print diagnostic, abort the object's own scope (or
//     COMM_SELF if obj is nil); the scope does not depend on the
//     runtime's lifecycle state.
//   - Abort: print diagnostic, abort the object's own scope (or
//     COMM_SELF if obj is nil).
//   - Return: no side effect, the code is returned unchanged.
//
// Invoke always returns code unchanged, so callers can write
// `return errhandler.Invoke(...)`.
func (h *Handler) Invoke(obj Object, code mpierr.Code, message string) mpierr.Code {
	if h == nil || h.variant == Null {
		return code
	}

	scope := "MPI_COMM_SELF"
	if obj != nil {
		scope = obj.ErrhandlerScope()
	}

	switch h.variant {
	case AreFatal:
		h.log.Errorf("MPI fatal error in %s: %s (%s)", scope, message, code)
		h.abort(scope, code)
	case Abort:
		h.log.Errorf("MPI abort in %s: %s (%s)", scope, message, code)
		h.abort(scope, code)
	case Return:
		h.log.Debugf("MPI error returned from %s: %s (%s)", scope, message, code)
	}
	return code
}

func (h *Handler) String() string {
	switch h.variant {
	case AreFatal:
		return "MPI_ERRORS_ARE_FATAL"
	case Abort:
		return "MPI_ERRORS_ABORT"
	case Return:
		return "MPI_ERRORS_RETURN"
	default:
		return fmt.Sprintf("MPI_ERRHANDLER_NULL(kind=%d)", h.kind)
	}
}
