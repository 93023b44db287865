package rqueue

import (
	"sync"

	"github.com/nanvix/libmpi/internal/mailbox"
	"github.com/nanvix/libmpi/internal/mpierr"
	"github.com/nanvix/libmpi/internal/wire"
)

// Queue is a FIFO of unmatched incoming requests, guarded by a mutex
// and bounded by MaxSize. A single Queue owns the shared well-known
// inbox (COMM_REQ_RECV_PORT) for all local ranks on a node;
// ReceiveRequest implements the full matching loop.
type Queue struct {
	mu       sync.Mutex
	entries  []Request // FIFO, head at index 0
	occupied bool
	cond     *sync.Cond

	inbox *mailbox.Inbox
}

// New wires a Queue to the node's shared request-recv inbox.
func New(inbox *mailbox.Inbox) *Queue {
	q := &Queue{inbox: inbox}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// enqueueLocked appends r to the tail, enforcing MaxSize. Caller holds
// q.mu.
func (q *Queue) enqueueLocked(r Request) error {
	if len(q.entries) >= MaxSize {
		return mpierr.New(mpierr.ErrIntern, "rqueue: queue overflow")
	}
	q.entries = append(q.entries, r)
	return nil
}

// scanLocked returns the first entry matching expected, unlinking it,
// or ok=false if none match. Caller holds q.mu.
func (q *Queue) scanLocked(expected Expectation) (Request, bool) {
	for i, r := range q.entries {
		if expected.Matches(r) {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return r, true
		}
	}
	return Request{}, false
}

// ReceiveRequest is the receive matching loop:
//  1. Scan the queue head→tail for a match; if found, return it.
//  2. Else, if another thread already owns the shared inbox, wait and
//     retry from (1).
//  3. Else become the inbox reader, block until a control message
//     arrives.
//  4. If the arrival matches, return it; otherwise enqueue and retry
//     from (1).
func (q *Queue) ReceiveRequest(expected Expectation) (Request, error) {
	for {
		q.mu.Lock()
		if r, ok := q.scanLocked(expected); ok {
			q.mu.Unlock()
			return r, nil
		}
		if q.occupied {
			q.cond.Wait()
			q.mu.Unlock()
			continue
		}
		q.occupied = true
		q.mu.Unlock()

		frame, err := q.inbox.Read()

		q.mu.Lock()
		q.occupied = false
		q.cond.Broadcast()
		if err != nil {
			q.mu.Unlock()
			return Request{}, mpierr.New(mpierr.ErrIntern, "rqueue: inbox read failed: "+err.Error())
		}
		r := fromFrame(frame)
		if expected.Matches(r) {
			q.mu.Unlock()
			return r, nil
		}
		enqErr := q.enqueueLocked(r)
		q.mu.Unlock()
		if enqErr != nil {
			return Request{}, enqErr
		}
	}
}

func fromFrame(f wire.Frame) Request {
	return Request{
		ContextID:  int(f.ContextID),
		Source:     int(f.SourceRank),
		Target:     int(f.TargetRank),
		Tag:        int(f.Tag),
		DatatypeID: int(f.DatatypeID),
		ByteCount:  f.ByteCount,
		PortalPort: f.PortalPort,
		InboxPort:  f.InboxPort,
		SourceNode: f.SourceNode,
		SlotID:     f.SlotIDOrErr,
	}
}

// Len reports the current queue depth, which the mpi façade publishes
// through the metrics queue-depth gauge.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close shuts down the underlying shared inbox, unblocking any
// in-progress ReceiveRequest.
func (q *Queue) Close() error {
	return q.inbox.Close()
}
