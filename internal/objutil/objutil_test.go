package objutil

import (
	"sync"
	"testing"
)

type probe struct {
	Header
	destructed int
}

func (p *probe) Destruct() { p.destructed++ }

func TestHeader_RetainReleasePairing(t *testing.T) {
	p := &probe{Header: NewHeader(true)}
	p.Retain()
	p.Retain()

	if p.Release(p) {
		t.Fatal("destructed with outstanding references")
	}
	if p.Release(p) {
		t.Fatal("destructed with outstanding references")
	}
	if !p.Release(p) {
		t.Fatal("last release did not report zero")
	}
	if p.destructed != 1 {
		t.Fatalf("destructor ran %d times, want exactly once", p.destructed)
	}
}

func TestHeader_ConcurrentRetainRelease(t *testing.T) {
	p := &probe{Header: NewHeader(true)}
	const workers = 16

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		p.Retain()
		go func() {
			defer wg.Done()
			p.Release(p)
		}()
	}
	wg.Wait()

	if p.destructed != 0 {
		t.Fatal("destructor ran while the constructing reference was still held")
	}
	if !p.Release(p) {
		t.Fatal("final release did not destruct")
	}
}

func TestHeader_StaticFlag(t *testing.T) {
	static := NewHeader(false)
	if static.IsDynamic() {
		t.Fatal("static header reports dynamic")
	}
	dynamic := NewHeader(true)
	if !dynamic.IsDynamic() {
		t.Fatal("dynamic header reports static")
	}
}

func TestTable_InsertGetRemove(t *testing.T) {
	tab := NewTable(4)

	a := tab.Insert("a")
	b := tab.Insert("b")
	if a == b {
		t.Fatalf("distinct inserts share index %d", a)
	}
	if v, ok := tab.Get(a); !ok || v != "a" {
		t.Fatalf("get(%d) = %v, %v", a, v, ok)
	}

	tab.Remove(a)
	if _, ok := tab.Get(a); ok {
		t.Fatalf("index %d still occupied after remove", a)
	}
	// b's index is stable across the unrelated remove.
	if v, ok := tab.Get(b); !ok || v != "b" {
		t.Fatalf("get(%d) after unrelated remove = %v, %v", b, v, ok)
	}
}

func TestTable_LowestFreeReuse(t *testing.T) {
	tab := NewTable(0)
	indices := make([]int, 8)
	for i := range indices {
		indices[i] = tab.Insert(i)
	}
	tab.Remove(indices[2])

	if got := tab.Insert("reused"); got != indices[2] {
		t.Fatalf("insert after remove picked %d, want freed index %d", got, indices[2])
	}
}

func TestTable_GrowsByBlock(t *testing.T) {
	tab := NewTable(1)
	for i := 0; i < blockSize*2+5; i++ {
		tab.Insert(i)
	}
	if tab.MaxSize() < blockSize*2+5 {
		t.Fatalf("table failed to grow: max size %d", tab.MaxSize())
	}
}

func TestTable_Each(t *testing.T) {
	tab := NewTable(0)
	tab.Insert("x")
	idx := tab.Insert("y")
	tab.Remove(idx)

	seen := map[interface{}]bool{}
	tab.Each(func(_ int, v interface{}) { seen[v] = true })
	if !seen["x"] || seen["y"] {
		t.Fatalf("each visited %v", seen)
	}
}
