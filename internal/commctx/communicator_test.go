package commctx

import (
	"testing"

	"github.com/nanvix/libmpi/internal/errhandler"
	"github.com/nanvix/libmpi/internal/group"
	"github.com/nanvix/libmpi/internal/logging"
	"github.com/nanvix/libmpi/internal/mpierr"
	"github.com/nanvix/libmpi/internal/process"
)

type nopLogger struct{ logging.Logger }

func (nopLogger) Errorf(f string, v ...interface{}) {}
func (nopLogger) Debugf(f string, v ...interface{}) {}

func newHandler(v errhandler.Variant) *errhandler.Handler {
	return errhandler.New(errhandler.Comm, v, nopLogger{}, func(string, mpierr.Code) {})
}

func worldFixture(n int) (*Communicator, []*process.Process) {
	procs := make([]*process.Process, n)
	for i := range procs {
		procs[i] = process.NewRemote(i)
	}
	g := group.AllocateWithProcs(procs)
	c := New("MPI_COMM_WORLD", g, WorldPt2Pt, WorldColl, newHandler(errhandler.Return))
	group.Free(g) // the communicator holds its own reference now
	return c, procs
}

func TestPredefinedContextIDs(t *testing.T) {
	if WorldPt2Pt != 0 || WorldColl != 1 || SelfPt2Pt != 2 {
		t.Fatalf("predefined cids drifted: %d %d %d", WorldPt2Pt, WorldColl, SelfPt2Pt)
	}
	a := NewIDAllocator()
	if got := a.Next(); got != 3 {
		t.Fatalf("first dynamic cid = %d, want 3", got)
	}
	if got := a.Next(); got != 4 {
		t.Fatalf("second dynamic cid = %d, want 4", got)
	}
}

func TestRankAndSize(t *testing.T) {
	c, procs := worldFixture(4)
	defer c.Release(c)

	if c.Size() != 4 {
		t.Fatalf("size = %d", c.Size())
	}
	if got := c.Rank(procs[2]); got != 2 {
		t.Fatalf("rank = %d", got)
	}
	if got := c.Rank(process.NewRemote(50)); got != group.Undefined {
		t.Fatalf("non-member rank = %d", got)
	}
}

func TestPeerRankIsValid(t *testing.T) {
	c, _ := worldFixture(3)
	defer c.Release(c)

	for r, want := range map[int]bool{-1: false, 0: true, 2: true, 3: false} {
		if got := c.PeerRankIsValid(r); got != want {
			t.Errorf("peer_rank_is_valid(%d) = %v", r, got)
		}
	}
}

// Comm.group retains: the group must survive the communicator when the
// caller still holds the reference Group() handed out.
func TestGroupRetains(t *testing.T) {
	c, procs := worldFixture(2)

	g := c.Group()
	c.Release(c)

	if got := g.Rank(procs[1]); got != 1 {
		t.Fatalf("group unusable after communicator release: rank = %d", got)
	}
	group.Free(g)
}

func TestSetErrhandlerSwapsReferences(t *testing.T) {
	c, _ := worldFixture(2)
	defer c.Release(c)

	old := c.Errhandler()
	replacement := newHandler(errhandler.AreFatal)
	c.SetErrhandler(replacement)

	// The previous handler is still alive through our retained read.
	if old.String() != "MPI_ERRORS_RETURN" {
		t.Fatalf("old handler = %s", old)
	}
	old.Release(old)

	got := c.Errhandler()
	if got != replacement {
		t.Fatalf("bound handler = %v, want replacement", got)
	}
	got.Release(got)
	replacement.Release(replacement) // constructing reference
}

func TestNullSentinel(t *testing.T) {
	if Null.Name() != "MPI_COMM_NULL" {
		t.Fatalf("null comm name = %q", Null.Name())
	}
	if Null.GroupRef() != group.Null {
		t.Fatal("null comm must wrap GROUP_NULL")
	}
}
