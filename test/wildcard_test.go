package test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nanvix/libmpi/pkg/mpi"
)

// Wildcard ordering: ranks 1 and 2 each send one message per tag; rank
// 0 drains tag T1 with ANY_SOURCE receives, then tag T2. Every status
// names the actual sender, and each sender's value arrives under the
// tag it was sent with.
func TestWildcardSourceOrdering(t *testing.T) {
	const (
		tagFirst  = 100
		tagSecond = 200
	)
	RunCluster(t, 3, 16, 30*time.Second, func(ctx context.Context, comm *mpi.Comm, rank int) error {
		if rank != 0 {
			if err := mpi.Send(ctx, comm, 0, encInt(int32(rank*10+1)), mpi.INT, tagFirst); err != nil {
				return err
			}
			return mpi.Send(ctx, comm, 0, encInt(int32(rank*10+2)), mpi.INT, tagSecond)
		}

		drain := func(tag, suffix int32) error {
			seen := map[int]bool{}
			for i := 0; i < 2; i++ {
				buf := make([]byte, 4)
				st, err := mpi.Recv(ctx, comm, mpi.ANY_SOURCE, int(tag), buf, mpi.INT)
				if err != nil {
					return err
				}
				if st.Source != 1 && st.Source != 2 {
					return fmt.Errorf("tag %d matched impossible source %d", tag, st.Source)
				}
				if seen[st.Source] {
					return fmt.Errorf("tag %d matched source %d twice", tag, st.Source)
				}
				seen[st.Source] = true
				if st.Tag != int(tag) {
					return fmt.Errorf("status tag %d under receive tag %d", st.Tag, tag)
				}
				if got := decInt(buf); got != int32(st.Source*10)+suffix {
					return fmt.Errorf("source %d tag %d delivered %d", st.Source, tag, got)
				}
			}
			return nil
		}
		if err := drain(tagFirst, 1); err != nil {
			return err
		}
		return drain(tagSecond, 2)
	})
}

// ANY_TAG: the status reports the actual tag of the matched message.
func TestAnyTagReportsActualTag(t *testing.T) {
	RunCluster(t, 2, 17, 30*time.Second, func(ctx context.Context, comm *mpi.Comm, rank int) error {
		if rank == 0 {
			return mpi.Send(ctx, comm, 1, encInt(5), mpi.INT, 77)
		}
		buf := make([]byte, 4)
		st, err := mpi.Recv(ctx, comm, 0, mpi.ANY_TAG, buf, mpi.INT)
		if err != nil {
			return err
		}
		if st.Tag != 77 || st.Source != 0 {
			return fmt.Errorf("status = %+v", st)
		}
		return nil
	})
}

// A message under another tag does not satisfy a tagged receive; it
// waits in the queue for its own receive. Two independent senders keep
// the synchronous sends from serializing against each other.
func TestTaggedReceiveSkipsOtherTags(t *testing.T) {
	RunCluster(t, 3, 18, 30*time.Second, func(ctx context.Context, comm *mpi.Comm, rank int) error {
		switch rank {
		case 1:
			return mpi.Send(ctx, comm, 0, encInt(1), mpi.INT, 10)
		case 2:
			return mpi.Send(ctx, comm, 0, encInt(2), mpi.INT, 20)
		}
		// Drain tag 20 first, regardless of which send arrives first.
		buf := make([]byte, 4)
		st, err := mpi.Recv(ctx, comm, mpi.ANY_SOURCE, 20, buf, mpi.INT)
		if err != nil {
			return err
		}
		if st.Tag != 20 || st.Source != 2 || decInt(buf) != 2 {
			return fmt.Errorf("tag-20 receive got tag %d source %d value %d", st.Tag, st.Source, decInt(buf))
		}
		st, err = mpi.Recv(ctx, comm, mpi.ANY_SOURCE, 10, buf, mpi.INT)
		if err != nil {
			return err
		}
		if st.Tag != 10 || st.Source != 1 || decInt(buf) != 1 {
			return fmt.Errorf("tag-10 receive got tag %d source %d value %d", st.Tag, st.Source, decInt(buf))
		}
		return nil
	})
}
