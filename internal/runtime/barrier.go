package runtime

import (
	"sync"

	"github.com/nanvix/libmpi/internal/mailbox"
	"github.com/nanvix/libmpi/internal/mpierr"
	"github.com/nanvix/libmpi/internal/wire"
)

// Fence is a reusable sense-reversing barrier across the co-located
// (node-local) ranks — the first of the two barrier levels. Lifecycle
// transitions and the distributed barrier step run only between a full
// fence generation, so every local rank observes them atomically.
type Fence struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	count      int
	generation int
}

// NewFence returns a fence sized for n co-located participants.
func NewFence(n int) *Fence {
	f := &Fence{n: n}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Arrive blocks until all n participants have called Arrive, then
// returns true to exactly one caller — the last to arrive, the "leader"
// for this generation. The leader and the waiting participants are
// released together; callers that need the leader's work (such as the
// distributed barrier step) done before anyone proceeds have every
// participant call Arrive a second time after it.
func (f *Fence) Arrive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	gen := f.generation
	f.count++
	if f.count == f.n {
		f.count = 0
		f.generation++
		f.cond.Broadcast()
		return true
	}
	for gen == f.generation {
		f.cond.Wait()
	}
	return false
}

// NodeResolver turns a wire frame's one-byte source_node field back
// into a dialable mailbox root, implemented by
// internal/nameservice.Directory.ResolveNode.
type NodeResolver func(node uint8) (mailboxRoot string, err error)

// BarrierArrivePort and BarrierReleasePort are the well-known mailbox
// ports the distributed barrier's rank-0 coordinator and participants
// listen on, sitting just below the shared request-recv port and above
// the dynamically assigned per-rank reply ports.
const (
	BarrierArrivePort  uint8 = 252
	BarrierReleasePort uint8 = 253
)

// DistributedBarrier is the inter-node barrier level: rank 0's node
// acts as a star coordinator. Each
// non-root node's fence leader sends an arrival frame and then blocks
// on its own release inbox; rank 0 counts worldSize-1 arrivals and
// replies to each arrived node with a release frame. Only the node's
// Fence leader calls this, once per generation.
func DistributedBarrier(selfNode uint8, myMailboxRoot, rootMailboxRoot string, isRoot bool, worldSize int, resolve NodeResolver) error {
	if worldSize <= 1 {
		return nil
	}
	if isRoot {
		return runCoordinator(myMailboxRoot, worldSize-1, resolve)
	}
	return runParticipant(myMailboxRoot, rootMailboxRoot, selfNode)
}

func runCoordinator(myMailboxRoot string, expectedArrivals int, resolve NodeResolver) error {
	inbox, err := mailbox.Open(myMailboxRoot, BarrierArrivePort)
	if err != nil {
		return mpierr.New(mpierr.ErrIntern, "runtime: barrier: open coordinator inbox: "+err.Error())
	}
	defer inbox.Close()
	inbox.SetRemote(mailbox.Any)

	arrived := make(map[uint8]bool)
	for len(arrived) < expectedArrivals {
		f, err := inbox.Read()
		if err != nil {
			return mpierr.New(mpierr.ErrIntern, "runtime: barrier: await arrival: "+err.Error())
		}
		arrived[f.SourceNode] = true
	}
	for node := range arrived {
		root, err := resolve(node)
		if err != nil {
			return mpierr.New(mpierr.ErrIntern, "runtime: barrier: resolve participant: "+err.Error())
		}
		out, err := mailbox.Dial(root, BarrierReleasePort)
		if err != nil {
			return mpierr.New(mpierr.ErrIntern, "runtime: barrier: dial participant: "+err.Error())
		}
		werr := out.Write(wire.Frame{})
		out.Close()
		if werr != nil {
			return mpierr.New(mpierr.ErrIntern, "runtime: barrier: release participant: "+werr.Error())
		}
	}
	return nil
}

func runParticipant(myMailboxRoot, rootMailboxRoot string, selfNode uint8) error {
	releaseInbox, err := mailbox.Open(myMailboxRoot, BarrierReleasePort)
	if err != nil {
		return mpierr.New(mpierr.ErrIntern, "runtime: barrier: open release inbox: "+err.Error())
	}
	defer releaseInbox.Close()

	out, err := mailbox.Dial(rootMailboxRoot, BarrierArrivePort)
	if err != nil {
		return mpierr.New(mpierr.ErrIntern, "runtime: barrier: dial coordinator: "+err.Error())
	}
	werr := out.Write(wire.Frame{SourceNode: selfNode})
	out.Close()
	if werr != nil {
		return mpierr.New(mpierr.ErrIntern, "runtime: barrier: send arrival: "+werr.Error())
	}

	if _, err := releaseInbox.Read(); err != nil {
		return mpierr.New(mpierr.ErrIntern, "runtime: barrier: await release: "+err.Error())
	}
	return nil
}
