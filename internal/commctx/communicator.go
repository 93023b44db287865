// Package commctx implements the Communicator object: an owned group
// plus point-to-point/collective context ids and a bound errhandler,
// with the predefined instances COMM_WORLD, COMM_SELF, COMM_NULL.
package commctx

import (
	"fmt"
	"sync"

	"github.com/nanvix/libmpi/internal/errhandler"
	"github.com/nanvix/libmpi/internal/group"
	"github.com/nanvix/libmpi/internal/objutil"
	"github.com/nanvix/libmpi/internal/process"
)

// Communicator bundles {group, context ids, errhandler}.
type Communicator struct {
	objutil.Header

	name     string
	grp      *group.Group
	pt2ptCID int
	collCID  int
	parent   *Communicator

	ehMu sync.Mutex
	eh   *errhandler.Handler
}

// Null is the predefined sentinel communicator, group = GROUP_NULL.
var Null = &Communicator{
	Header: objutil.NewHeader(false),
	name:   "MPI_COMM_NULL",
	grp:    group.Null,
}

// New builds a communicator wrapping grp, retaining the group and the
// handler. Only the predefined instances are constructed today;
// general communicator construction is not supported.
func New(name string, grp *group.Group, pt2ptCID, collCID int, eh *errhandler.Handler) *Communicator {
	if eh != nil {
		eh.Retain()
	}
	grp.Retain()
	return &Communicator{
		Header:   objutil.NewHeader(true),
		name:     name,
		grp:      grp,
		pt2ptCID: pt2ptCID,
		collCID:  collCID,
		eh:       eh,
	}
}

// ErrhandlerScope implements errhandler.Object.
func (c *Communicator) ErrhandlerScope() string {
	return c.name
}

// Destruct releases the embedded group and errhandler references.
func (c *Communicator) Destruct() {
	if c.grp != nil {
		group.Free(c.grp)
	}
	if c.eh != nil {
		c.eh.Release(c.eh)
	}
}

// Group retains and returns the embedded group; the caller owns the
// returned reference.
func (c *Communicator) Group() *group.Group {
	c.grp.Retain()
	return c.grp
}

// GroupRef returns the embedded group without retaining it, for
// read-only inspection by callers that never outlive the communicator.
func (c *Communicator) GroupRef() *group.Group { return c.grp }

// Pt2PtContextID returns the point-to-point context id.
func (c *Communicator) Pt2PtContextID() int { return c.pt2ptCID }

// CollContextID returns the collective context id.
func (c *Communicator) CollContextID() int { return c.collCID }

// Size returns the embedded group's size.
func (c *Communicator) Size() int { return c.grp.Size() }

// Rank returns self's rank within c's group, or group.Undefined.
func (c *Communicator) Rank(self *process.Process) int {
	return c.grp.Rank(self)
}

// PeerRankIsValid reports 0 ≤ r < size(c.group).
func (c *Communicator) PeerRankIsValid(r int) bool {
	return r >= 0 && r < c.grp.Size()
}

// GetProc resolves rank within c's group.
func (c *Communicator) GetProc(rank int) (*process.Process, error) {
	return c.grp.GetProc(rank)
}

// Errhandler retains and returns the currently bound handler; the
// caller releases it after use, so a concurrent SetErrhandler can never
// destruct a handler out from under an in-flight invocation.
func (c *Communicator) Errhandler() *errhandler.Handler {
	c.ehMu.Lock()
	defer c.ehMu.Unlock()
	if c.eh != nil {
		c.eh.Retain()
	}
	return c.eh
}

// SetErrhandler atomically replaces the bound handler with correct
// retain/release pairing.
func (c *Communicator) SetErrhandler(eh *errhandler.Handler) {
	if eh != nil {
		eh.Retain()
	}
	c.ehMu.Lock()
	old := c.eh
	c.eh = eh
	c.ehMu.Unlock()
	if old != nil {
		old.Release(old)
	}
}

// Name returns the communicator's diagnostic name.
func (c *Communicator) Name() string { return c.name }

// Parent returns the communicator this one was derived from, or nil.
func (c *Communicator) Parent() *Communicator { return c.parent }

func (c *Communicator) String() string {
	return fmt.Sprintf("%s{pt2pt=%d,coll=%d,size=%d}", c.name, c.pt2ptCID, c.collCID, c.grp.Size())
}
