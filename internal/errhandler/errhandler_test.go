package errhandler

import (
	"testing"

	"github.com/nanvix/libmpi/internal/logging"
	"github.com/nanvix/libmpi/internal/mpierr"
)

type silentLogger struct{ logging.Logger }

func (silentLogger) Error(v ...interface{})            {}
func (silentLogger) Errorf(f string, v ...interface{}) {}
func (silentLogger) Debugf(f string, v ...interface{}) {}

type scope string

func (s scope) ErrhandlerScope() string { return string(s) }

func TestReturnHasNoSideEffect(t *testing.T) {
	aborted := false
	h := New(Comm, Return, silentLogger{}, func(string, mpierr.Code) { aborted = true })

	code := h.Invoke(scope("MPI_COMM_WORLD"), mpierr.ErrTag, "bad tag")
	if code != mpierr.ErrTag {
		t.Fatalf("invoke returned %s, want the code unchanged", code)
	}
	if aborted {
		t.Fatal("ERRORS_RETURN triggered an abort")
	}
}

func TestFatalAborts(t *testing.T) {
	var gotScope string
	var gotCode mpierr.Code
	h := New(Comm, AreFatal, silentLogger{}, func(s string, c mpierr.Code) {
		gotScope, gotCode = s, c
	})

	h.Invoke(scope("MPI_COMM_WORLD"), mpierr.ErrComm, "boom")
	if gotScope != "MPI_COMM_WORLD" || gotCode != mpierr.ErrComm {
		t.Fatalf("abort saw (%s, %s)", gotScope, gotCode)
	}
}

// An abort with no object in hand scopes to COMM_SELF.
func TestAbortDefaultsToSelf(t *testing.T) {
	var gotScope string
	h := New(Comm, Abort, silentLogger{}, func(s string, c mpierr.Code) { gotScope = s })

	h.Invoke(nil, mpierr.ErrOther, "boom")
	if gotScope != "MPI_COMM_SELF" {
		t.Fatalf("abort scope = %q, want MPI_COMM_SELF", gotScope)
	}
}

func TestNullHandlerPassesThrough(t *testing.T) {
	var h *Handler
	if code := h.Invoke(nil, mpierr.ErrRank, "x"); code != mpierr.ErrRank {
		t.Fatalf("nil handler returned %s", code)
	}
	if IsValid(h) {
		t.Fatal("nil handler reports valid")
	}
	if IsValid(New(Comm, Null, silentLogger{}, nil)) {
		t.Fatal("ERRHANDLER_NULL reports valid")
	}
	if !IsValid(New(Comm, Return, silentLogger{}, nil)) {
		t.Fatal("real handler reports invalid")
	}
}
