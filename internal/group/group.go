// Package group implements the ordered process set a communicator
// embeds: a fixed-size slice of process references plus an optional
// parent, with retain semantics on every contained process.
package group

import (
	"github.com/nanvix/libmpi/internal/mpierr"
	"github.com/nanvix/libmpi/internal/objutil"
	"github.com/nanvix/libmpi/internal/process"
)

// Undefined is returned by Rank when the local process is not a member
// of the group — MPI_UNDEFINED.
const Undefined = -32766

// Group is the ordered process set a Communicator embeds.
type Group struct {
	objutil.Header

	procs  []*process.Process
	parent *Group
}

// Empty is the predefined zero-size group, GROUP_EMPTY.
var Empty = &Group{Header: objutil.NewHeader(false), procs: nil}

// Null is the predefined sentinel group, GROUP_NULL.
var Null = &Group{Header: objutil.NewHeader(false), procs: nil}

// Allocate returns GROUP_EMPTY for size 0, otherwise a freshly allocated
// group with size null procs slots, ready for the caller to populate via
// SetProc.
func Allocate(size int) *Group {
	if size == 0 {
		return Empty
	}
	return &Group{
		Header: objutil.NewHeader(true),
		procs:  make([]*process.Process, size),
	}
}

// AllocateWithProcs builds a group from procs directly, retaining each
// one. The caller must already logically own a reference to each
// element.
func AllocateWithProcs(procs []*process.Process) *Group {
	if len(procs) == 0 {
		return Empty
	}
	g := &Group{
		Header: objutil.NewHeader(true),
		procs:  make([]*process.Process, len(procs)),
	}
	copy(g.procs, procs)
	for _, p := range g.procs {
		if p != nil {
			p.Retain()
		}
	}
	return g
}

// SetProc installs proc at rank i, retaining it. Used to populate a
// group returned by Allocate.
func (g *Group) SetProc(i int, proc *process.Process) error {
	if i < 0 || i >= len(g.procs) {
		return mpierr.New(mpierr.ErrRank, "group: rank out of range")
	}
	if proc != nil {
		proc.Retain()
	}
	g.procs[i] = proc
	return nil
}

// Size returns the group's stored size.
func (g *Group) Size() int {
	return len(g.procs)
}

// GetProc bounds-checks rank and returns the process reference without
// retaining it.
func (g *Group) GetProc(rank int) (*process.Process, error) {
	if rank < 0 || rank >= len(g.procs) {
		return nil, mpierr.New(mpierr.ErrRank, "group: rank out of range")
	}
	return g.procs[rank], nil
}

// Rank scans g for self, returning its index or Undefined.
func (g *Group) Rank(self *process.Process) int {
	for i, p := range g.procs {
		if p == self {
			return i
		}
	}
	return Undefined
}

// WithParent returns a shallow copy of g recording parent. The parent
// is a weak back-reference, not retained, so a derivation chain can
// never form a counting cycle.
func (g *Group) WithParent(parent *Group) *Group {
	clone := *g
	clone.parent = parent
	return &clone
}

// Parent returns the group this one was derived from, or nil.
func (g *Group) Parent() *Group {
	return g.parent
}

// Destruct releases every contained process reference exactly once.
func (g *Group) Destruct() {
	for _, p := range g.procs {
		if p != nil {
			p.Release(p)
		}
	}
}

// Free releases g itself, invoking Destruct when the last reference
// drops. The static groups (Empty, Null) have eternal lifetime; freeing
// them is a no-op.
func Free(g *Group) {
	if g == nil || g == Empty || g == Null {
		return
	}
	g.Release(g)
}
