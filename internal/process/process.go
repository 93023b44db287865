// Package process implements the process registry: dense PID
// allocation, the "mpi-process-<pid>" symbolic name, and the mapping
// from a running goroutine back to its rank via CurrentFromContext.
package process

import (
	"context"
	"fmt"

	"github.com/nanvix/libmpi/internal/mailbox"
	"github.com/nanvix/libmpi/internal/objutil"
)

// Process is the per-rank entity: a stable PID, its symbolic name,
// and — for a local (co-located) rank only — the reply inbox it owns.
// Remote processes carry only name+pid; their Inbox field is nil and
// IsLocal reports false.
type Process struct {
	objutil.Header

	PID  int
	Name string

	// IsLocal is true for a rank cohabiting this OS process/node.
	IsLocal bool

	// Inbox is the rank's own reply inbox for confirm/ack frames (nil
	// for remote processes).
	Inbox *mailbox.Inbox
}

// NewLocal constructs a Process for a rank cohabiting this node.
func NewLocal(pid int, inbox *mailbox.Inbox) *Process {
	return &Process{
		Header:  objutil.NewHeader(true),
		PID:     pid,
		Name:    Name(pid),
		IsLocal: true,
		Inbox:   inbox,
	}
}

// NewRemote constructs a Process stub for a rank living on another node.
func NewRemote(pid int) *Process {
	return &Process{
		Header: objutil.NewHeader(true),
		PID:    pid,
		Name:   Name(pid),
	}
}

// Destruct releases the process's owned resources, part of the
// Header/Destructible contract (objutil.Header.Release calls this at
// refcount zero).
func (p *Process) Destruct() {
	if p.Inbox != nil {
		_ = p.Inbox.Close()
	}
}

// Name derives the symbolic name "mpi-process-<pid>" the name service
// keys on.
func Name(pid int) string {
	return fmt.Sprintf("mpi-process-%d", pid)
}

type ctxKey struct{}

// WithCurrent returns a context carrying proc as "the process running
// on this goroutine": rather than mapping a thread id back to a rank
// through a side table, the rank a goroutine is acting as travels
// explicitly on its context.
func WithCurrent(ctx context.Context, proc *Process) context.Context {
	return context.WithValue(ctx, ctxKey{}, proc)
}

// CurrentFromContext returns the process associated with ctx by a prior
// WithCurrent call, or nil if none.
func CurrentFromContext(ctx context.Context) *Process {
	p, _ := ctx.Value(ctxKey{}).(*Process)
	return p
}
