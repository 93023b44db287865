// Package rqueue implements the pending-request queue: a bounded FIFO
// of unmatched incoming request-to-send control messages, plus the
// wildcard-aware matching loop that preserves MPI's deterministic
// receive ordering. All local ranks on a node compete cooperatively
// for the one shared request inbox; losers wait, winners read, and
// whatever a winner reads that it cannot use is parked here for the
// rank that can.
package rqueue

// AnySource / AnyTag are the receive wildcards.
const (
	AnySource = -1
	AnyTag    = -1
)

// MaxSize bounds the queue; overflow is a fatal protocol error, not
// silent growth.
const MaxSize = 32

// Request is the canonical flat record exchanged over mailboxes,
// decoded from a wire.Frame into queue-native fields.
type Request struct {
	ContextID  int
	Source     int
	Target     int
	Tag        int
	DatatypeID int
	ByteCount  uint64
	PortalPort uint8
	InboxPort  uint8
	SourceNode uint8
	SlotID     int32 // -1 when this request carries no local-buffer slot
}

// Expectation is what a receiver is currently waiting for.
type Expectation struct {
	ContextID int
	Target    int
	Source    int // may be AnySource
	Tag       int // may be AnyTag
}

// Matches implements the matching predicate: two requests match iff
// (cid_a == cid_b) AND (target_a == target_b) AND
// (src_a == src_b OR either is ANY_SOURCE) AND (tag_a == tag_b OR
// either is ANY_TAG). Datatype compatibility is deliberately not part
// of this check — it is a post-match correctness check performed by the
// transport layer.
func (e Expectation) Matches(r Request) bool {
	if e.ContextID != r.ContextID {
		return false
	}
	if e.Target != r.Target {
		return false
	}
	if e.Source != AnySource && e.Source != r.Source {
		return false
	}
	if e.Tag != AnyTag && e.Tag != r.Tag {
		return false
	}
	return true
}
