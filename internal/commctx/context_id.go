package commctx

import "sync/atomic"

// Predefined context ids for COMM_WORLD and COMM_SELF.
const (
	WorldPt2Pt = 0
	WorldColl  = 1
	SelfPt2Pt  = 2
)

// firstDynamicID is the next allocatable id once the predefined three
// are taken.
const firstDynamicID = 3

// IDAllocator vends monotonically increasing context ids beyond the
// three predefined ones. There is exactly one allocator per runtime,
// so no two communicators can ever share a context id.
type IDAllocator struct {
	next int32
}

// NewIDAllocator returns an allocator primed to hand out firstDynamicID
// next.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: firstDynamicID}
}

// Next returns the next unused context id.
func (a *IDAllocator) Next() int {
	return int(atomic.AddInt32(&a.next, 1) - 1)
}
