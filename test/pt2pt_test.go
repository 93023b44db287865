package test

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nanvix/libmpi/pkg/mpi"
)

func encInt(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func decInt(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

// returnErrors rebinds comm's errhandler so protocol failures come back
// as codes instead of aborting the test binary.
func returnErrors(comm *mpi.Comm) error {
	eh, err := mpi.NewErrhandler(mpi.ERRORS_RETURN)
	if err != nil {
		return err
	}
	if err := mpi.Comm_set_errhandler(comm, eh); err != nil {
		return err
	}
	return mpi.Errhandler_free(eh)
}

// Pair exchange: each even rank sends its rank to the next odd rank and
// receives the odd rank's value back.
func TestPairExchange(t *testing.T) {
	defer goleak.VerifyNone(t)

	const n = 4
	RunCluster(t, n, 7, 30*time.Second, func(ctx context.Context, comm *mpi.Comm, rank int) error {
		buf := make([]byte, 4)
		if rank%2 == 0 {
			if err := mpi.Send(ctx, comm, rank+1, encInt(int32(rank)), mpi.INT, 0); err != nil {
				return err
			}
			if _, err := mpi.Recv(ctx, comm, rank+1, 0, buf, mpi.INT); err != nil {
				return err
			}
			if got := decInt(buf); got != int32(rank+1) {
				return fmt.Errorf("even rank %d received %d, want %d", rank, got, rank+1)
			}
			return nil
		}
		if _, err := mpi.Recv(ctx, comm, rank-1, 0, buf, mpi.INT); err != nil {
			return err
		}
		if got := decInt(buf); got != int32(rank-1) {
			return fmt.Errorf("odd rank %d received %d, want %d", rank, got, rank-1)
		}
		return mpi.Send(ctx, comm, rank-1, encInt(int32(rank)), mpi.INT, 0)
	})
}

// Gather at root: rank 0 receives every other rank's value, draining
// odd senders first and even senders second; out-of-order arrivals park
// in the request queue until their turn.
func TestGatherAtRoot(t *testing.T) {
	const n = 4
	RunCluster(t, n, 8, 30*time.Second, func(ctx context.Context, comm *mpi.Comm, rank int) error {
		if rank != 0 {
			return mpi.Send(ctx, comm, 0, encInt(int32(rank)), mpi.INT, 0)
		}
		order := make([]int, 0, n-1)
		for src := 1; src < n; src += 2 {
			order = append(order, src)
		}
		for src := 2; src < n; src += 2 {
			order = append(order, src)
		}
		for _, src := range order {
			buf := make([]byte, 4)
			st, err := mpi.Recv(ctx, comm, src, 0, buf, mpi.INT)
			if err != nil {
				return fmt.Errorf("recv from %d: %w", src, err)
			}
			if st.Source != src || decInt(buf) != int32(src) {
				return fmt.Errorf("recv from %d delivered source %d value %d", src, st.Source, decInt(buf))
			}
		}
		return nil
	})
}

// Broadcast from root: rank 0 sends i to each rank i.
func TestBroadcastFromRoot(t *testing.T) {
	const n = 4
	RunCluster(t, n, 9, 30*time.Second, func(ctx context.Context, comm *mpi.Comm, rank int) error {
		if rank == 0 {
			for dest := 1; dest < n; dest++ {
				if err := mpi.Send(ctx, comm, dest, encInt(int32(dest)), mpi.INT, 0); err != nil {
					return err
				}
			}
			return nil
		}
		buf := make([]byte, 4)
		st, err := mpi.Recv(ctx, comm, 0, 0, buf, mpi.INT)
		if err != nil {
			return err
		}
		if got := decInt(buf); got != int32(rank) {
			return fmt.Errorf("rank %d received %d (status %+v)", rank, got, st)
		}
		return nil
	})
}

// Round trip: received bytes equal sent bytes and received_size is
// exact.
func TestRoundTrip(t *testing.T) {
	RunCluster(t, 2, 10, 30*time.Second, func(ctx context.Context, comm *mpi.Comm, rank int) error {
		payload := bytes.Repeat([]byte{0xC3}, 1024)
		if rank == 0 {
			return mpi.Send(ctx, comm, 1, payload, mpi.BYTE, 4)
		}
		buf := make([]byte, len(payload))
		st, err := mpi.Recv(ctx, comm, 0, 4, buf, mpi.BYTE)
		if err != nil {
			return err
		}
		if st.Count != len(payload) || !bytes.Equal(buf, payload) {
			return fmt.Errorf("round trip corrupted: count %d", st.Count)
		}
		return nil
	})
}

// Truncation: an 8-byte message into a 4-byte buffer copies the prefix,
// reports received_size 4, and fails both sides with ERR_OTHER.
func TestTruncation(t *testing.T) {
	RunCluster(t, 2, 11, 30*time.Second, func(ctx context.Context, comm *mpi.Comm, rank int) error {
		if err := returnErrors(comm); err != nil {
			return err
		}
		if rank == 0 {
			err := mpi.Send(ctx, comm, 1, []byte{1, 2, 3, 4, 5, 6, 7, 8}, mpi.BYTE, 0)
			if mpi.ErrorCode(err) != mpi.ERR_OTHER {
				return fmt.Errorf("send returned %v, want MPI_ERR_OTHER", err)
			}
			return nil
		}
		buf := make([]byte, 4)
		st, err := mpi.Recv(ctx, comm, 0, 0, buf, mpi.BYTE)
		if mpi.ErrorCode(err) != mpi.ERR_OTHER {
			return fmt.Errorf("recv returned %v, want MPI_ERR_OTHER", err)
		}
		if st.Count != 4 || st.Error != mpi.ERR_OTHER {
			return fmt.Errorf("status = %+v", st)
		}
		if !bytes.Equal(buf, []byte{1, 2, 3, 4}) {
			return fmt.Errorf("prefix corrupted: %v", buf)
		}
		return nil
	})
}

// Datatype mismatch: INT sent, FLOAT expected; the receive fails with
// ERR_TYPE and the buffer is untouched.
func TestDatatypeMismatch(t *testing.T) {
	RunCluster(t, 2, 12, 30*time.Second, func(ctx context.Context, comm *mpi.Comm, rank int) error {
		if err := returnErrors(comm); err != nil {
			return err
		}
		if rank == 0 {
			err := mpi.Send(ctx, comm, 1, encInt(7), mpi.INT, 0)
			if mpi.ErrorCode(err) != mpi.ERR_TYPE {
				return fmt.Errorf("send returned %v, want MPI_ERR_TYPE", err)
			}
			return nil
		}
		buf := []byte{9, 9, 9, 9}
		_, err := mpi.Recv(ctx, comm, 0, 0, buf, mpi.FLOAT)
		if mpi.ErrorCode(err) != mpi.ERR_TYPE {
			return fmt.Errorf("recv returned %v, want MPI_ERR_TYPE", err)
		}
		if !bytes.Equal(buf, []byte{9, 9, 9, 9}) {
			return fmt.Errorf("buffer touched on mismatch: %v", buf)
		}
		return nil
	})
}

// BYTE matches any datatype on either side.
func TestByteMatchesAnything(t *testing.T) {
	RunCluster(t, 2, 13, 30*time.Second, func(ctx context.Context, comm *mpi.Comm, rank int) error {
		if rank == 0 {
			return mpi.Send(ctx, comm, 1, encInt(42), mpi.INT, 0)
		}
		buf := make([]byte, 4)
		_, err := mpi.Recv(ctx, comm, 0, 0, buf, mpi.BYTE)
		if err != nil {
			return err
		}
		if decInt(buf) != 42 {
			return fmt.Errorf("received %d", decInt(buf))
		}
		return nil
	})
}

// PROC_NULL: both operations complete immediately with an empty status.
func TestProcNullNoop(t *testing.T) {
	RunCluster(t, 2, 14, 30*time.Second, func(ctx context.Context, comm *mpi.Comm, rank int) error {
		if err := mpi.Send(ctx, comm, mpi.PROC_NULL, []byte{1}, mpi.BYTE, 0); err != nil {
			return err
		}
		st, err := mpi.Recv(ctx, comm, mpi.PROC_NULL, 0, make([]byte, 4), mpi.BYTE)
		if err != nil {
			return err
		}
		if st.Source != mpi.PROC_NULL || st.Count != 0 {
			return fmt.Errorf("status = %+v", st)
		}
		return nil
	})
}

// Same (sender, receiver, tag) messages are delivered in emission
// order.
func TestFIFOOrderPerSender(t *testing.T) {
	const rounds = 8
	RunCluster(t, 2, 15, 30*time.Second, func(ctx context.Context, comm *mpi.Comm, rank int) error {
		if rank == 0 {
			for i := 0; i < rounds; i++ {
				if err := mpi.Send(ctx, comm, 1, encInt(int32(i)), mpi.INT, 3); err != nil {
					return err
				}
			}
			return nil
		}
		for i := 0; i < rounds; i++ {
			buf := make([]byte, 4)
			if _, err := mpi.Recv(ctx, comm, 0, 3, buf, mpi.INT); err != nil {
				return err
			}
			if got := decInt(buf); got != int32(i) {
				return fmt.Errorf("message %d arrived as %d", i, got)
			}
		}
		return nil
	})
}
