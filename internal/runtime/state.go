// Package runtime implements the MPI lifecycle state machine, the
// two-level (node-local fence + inter-node) barrier, and the local
// multi-rank emulation harness. One lifecycle instance is shared by
// every rank co-located on a node; all transitions are serialized.
package runtime

import (
	"fmt"
	"sync"

	"github.com/nanvix/libmpi/internal/mpierr"
)

// State names one point in the init/finalize lifecycle.
type State int

const (
	NotInitialized State = iota
	InitStarted
	Initialized
	FinalizeStarted
	FinalizeDestructCommSelf
	Finalized
)

func (s State) String() string {
	switch s {
	case NotInitialized:
		return "NOT_INITIALIZED"
	case InitStarted:
		return "INIT_STARTED"
	case Initialized:
		return "INITIALIZED"
	case FinalizeStarted:
		return "FINALIZE_STARTED"
	case FinalizeDestructCommSelf:
		return "FINALIZE_DESTRUCT_COMM_SELF"
	case Finalized:
		return "FINALIZED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// transitions enumerates the only state changes this machine allows;
// anything not listed here is a programming error in the caller, not a
// recoverable MPI error.
var transitions = map[State]State{
	NotInitialized:           InitStarted,
	InitStarted:              Initialized,
	Initialized:              FinalizeStarted,
	FinalizeStarted:          FinalizeDestructCommSelf,
	FinalizeDestructCommSelf: Finalized,
}

// Lifecycle guards the single mutable lifecycle state shared by every
// local rank.
type Lifecycle struct {
	mu    sync.Mutex
	state State
}

// NewLifecycle returns a Lifecycle starting at NOT_INITIALIZED.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: NotInitialized}
}

// Current reports the current state.
func (l *Lifecycle) Current() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Advance moves the lifecycle to its one legal successor state,
// returning an error if called out of order.
func (l *Lifecycle) Advance() (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next, ok := transitions[l.state]
	if !ok {
		return l.state, mpierr.New(mpierr.ErrOther, fmt.Sprintf("runtime: no legal transition out of %s", l.state))
	}
	l.state = next
	return next, nil
}

// RequireInitialized guards every public entry point but
// Init/Initialized/Finalized: they must run between a completed Init
// and the start of Finalize.
func (l *Lifecycle) RequireInitialized() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Initialized {
		return mpierr.New(mpierr.ErrOther, fmt.Sprintf("runtime: operation requires INITIALIZED, current state is %s", l.state))
	}
	return nil
}

// Initialized reports whether Init has completed, regardless of
// whether Finalize has since started — MPI_Initialized semantics.
func (l *Lifecycle) Initialized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state != NotInitialized && l.state != InitStarted
}

// Finalized reports whether the runtime has passed the point of no
// return in Finalize: true once COMM_SELF has been destructed, even
// while the rest of the teardown is still running.
func (l *Lifecycle) Finalized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state >= FinalizeDestructCommSelf
}
