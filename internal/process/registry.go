package process

import "github.com/nanvix/libmpi/internal/objutil"

// Registry is the dense PID table holding one process object per world
// rank, a thin specialization of objutil.Table: PIDs are simply the
// indices Insert hands back when processes are installed in order, 0
// first.
type Registry struct {
	table *objutil.Table
}

// NewRegistry allocates an empty registry sized for worldSize ranks.
func NewRegistry(worldSize int) *Registry {
	return &Registry{table: objutil.NewTable(worldSize)}
}

// Allocate installs a new process via makeProc(pid), where pid is the
// dense index objutil.Table assigns it, and returns the constructed
// Process. Calling this worldSize times in a row during Init yields
// PIDs 0…worldSize−1.
func (r *Registry) Allocate(makeProc func(pid int) *Process) *Process {
	pid := r.table.Insert(nil)
	proc := makeProc(pid)
	r.table.Set(pid, proc)
	return proc
}

// Get returns the process at pid, or nil if none is registered there.
func (r *Registry) Get(pid int) *Process {
	v, ok := r.table.Get(pid)
	if !ok {
		return nil
	}
	proc, _ := v.(*Process)
	return proc
}

// Remove releases the slot at pid; it does not itself release the
// Process's refcount — the caller retains that responsibility.
func (r *Registry) Remove(pid int) {
	r.table.Remove(pid)
}

// Size returns the registry's current backing capacity.
func (r *Registry) Size() int {
	return r.table.MaxSize()
}

// Each calls fn for every currently registered process.
func (r *Registry) Each(fn func(pid int, proc *Process)) {
	r.table.Each(func(index int, value interface{}) {
		if proc, ok := value.(*Process); ok {
			fn(index, proc)
		}
	})
}
