package process

import (
	"context"
	"testing"
)

func TestName(t *testing.T) {
	if got := Name(7); got != "mpi-process-7" {
		t.Fatalf("name = %q", got)
	}
}

func TestContextCarriesCurrent(t *testing.T) {
	p := NewRemote(3)
	ctx := WithCurrent(context.Background(), p)
	if got := CurrentFromContext(ctx); got != p {
		t.Fatalf("current = %v, want %v", got, p)
	}
	if got := CurrentFromContext(context.Background()); got != nil {
		t.Fatalf("fresh context carries %v", got)
	}
}

func TestRemoteProcessShape(t *testing.T) {
	p := NewRemote(9)
	if p.IsLocal {
		t.Fatal("remote stub reports local")
	}
	if p.Inbox != nil {
		t.Fatal("remote stub owns an inbox")
	}
	if p.PID != 9 || p.Name != "mpi-process-9" {
		t.Fatalf("identity drifted: %+v", p)
	}
}

func TestRegistryDensePIDs(t *testing.T) {
	r := NewRegistry(4)
	for want := 0; want < 4; want++ {
		p := r.Allocate(NewRemote)
		if p.PID != want {
			t.Fatalf("allocation %d got pid %d", want, p.PID)
		}
	}
	for pid := 0; pid < 4; pid++ {
		if got := r.Get(pid); got == nil || got.PID != pid {
			t.Fatalf("get(%d) = %v", pid, got)
		}
	}
	if got := r.Get(99); got != nil {
		t.Fatalf("get(99) = %v", got)
	}
}

func TestRegistryEachAndRemove(t *testing.T) {
	r := NewRegistry(2)
	r.Allocate(NewRemote)
	r.Allocate(NewRemote)

	visited := 0
	r.Each(func(pid int, p *Process) {
		if p.PID != pid {
			t.Errorf("pid %d holds process %d", pid, p.PID)
		}
		visited++
	})
	if visited != 2 {
		t.Fatalf("each visited %d processes", visited)
	}

	r.Remove(0)
	if r.Get(0) != nil {
		t.Fatal("pid 0 survives remove")
	}
}
