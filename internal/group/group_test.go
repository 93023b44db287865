package group

import (
	"testing"

	"github.com/nanvix/libmpi/internal/process"
)

func makeProcs(n int) []*process.Process {
	procs := make([]*process.Process, n)
	for i := range procs {
		procs[i] = process.NewRemote(i)
	}
	return procs
}

func TestAllocateZeroIsEmpty(t *testing.T) {
	if g := Allocate(0); g != Empty {
		t.Fatal("size-0 allocation must return GROUP_EMPTY")
	}
	if Empty.Size() != 0 {
		t.Fatalf("GROUP_EMPTY size = %d", Empty.Size())
	}
}

func TestRank(t *testing.T) {
	procs := makeProcs(4)
	g := AllocateWithProcs(procs)
	defer Free(g)

	for i, p := range procs {
		if got := g.Rank(p); got != i {
			t.Fatalf("rank of procs[%d] = %d", i, got)
		}
	}
	outsider := process.NewRemote(99)
	if got := g.Rank(outsider); got != Undefined {
		t.Fatalf("rank of non-member = %d, want UNDEFINED", got)
	}
}

func TestGetProcBounds(t *testing.T) {
	g := AllocateWithProcs(makeProcs(2))
	defer Free(g)

	if _, err := g.GetProc(-1); err == nil {
		t.Fatal("negative rank accepted")
	}
	if _, err := g.GetProc(2); err == nil {
		t.Fatal("out-of-range rank accepted")
	}
	if p, err := g.GetProc(1); err != nil || p == nil {
		t.Fatalf("get_proc(1) = %v, %v", p, err)
	}
}

// Each process is retained once per containing group and released
// exactly once when the group destructs.
func TestRefcountLaw(t *testing.T) {
	procs := makeProcs(3)
	g := AllocateWithProcs(procs)

	for i, p := range procs {
		if rc := p.RefCount(); rc != 2 {
			t.Fatalf("procs[%d] refcount = %d after group retain, want 2", i, rc)
		}
	}

	Free(g)
	for i, p := range procs {
		if rc := p.RefCount(); rc != 1 {
			t.Fatalf("procs[%d] refcount = %d after group free, want 1", i, rc)
		}
	}
}

func TestSetProcRetains(t *testing.T) {
	g := Allocate(2)
	p := process.NewRemote(0)
	if err := g.SetProc(0, p); err != nil {
		t.Fatalf("set_proc: %v", err)
	}
	if err := g.SetProc(5, p); err == nil {
		t.Fatal("out-of-range set_proc accepted")
	}
	if rc := p.RefCount(); rc != 2 {
		t.Fatalf("refcount after set_proc = %d, want 2", rc)
	}
	Free(g)
	if rc := p.RefCount(); rc != 1 {
		t.Fatalf("refcount after free = %d, want 1", rc)
	}
}

// Freeing the static groups is a tolerated no-op.
func TestFreeStatics(t *testing.T) {
	Free(Empty)
	Free(Null)
	Free(nil)
	if Empty.Size() != 0 || Null.Size() != 0 {
		t.Fatal("static groups mutated by free")
	}
}

func TestWithParent(t *testing.T) {
	parent := AllocateWithProcs(makeProcs(2))
	defer Free(parent)

	child := parent.WithParent(parent)
	if child.Parent() != parent {
		t.Fatal("parent back-reference lost")
	}
}
