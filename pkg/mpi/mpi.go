// Package mpi is the public façade over the internal runtime: the
// subset of the MPI 3.x point-to-point and lifecycle API this module
// implements (Init, Comm_rank, Send, Recv, Barrier, Finalize, and the
// query/errhandler surface around them). The communicator-taking
// operations (Comm_rank, Comm_size, Comm_group, Send and its mode
// variants, Recv, Barrier) validate their arguments first and route
// failures through the target communicator's bound errhandler before
// returning; the lifecycle guard, the compare, group and errhandler
// accessors return their errors directly.
package mpi

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nanvix/libmpi/internal/commctx"
	"github.com/nanvix/libmpi/internal/config"
	"github.com/nanvix/libmpi/internal/datatype"
	"github.com/nanvix/libmpi/internal/errhandler"
	"github.com/nanvix/libmpi/internal/group"
	"github.com/nanvix/libmpi/internal/idgen"
	"github.com/nanvix/libmpi/internal/logging"
	"github.com/nanvix/libmpi/internal/mailbox"
	"github.com/nanvix/libmpi/internal/metrics"
	"github.com/nanvix/libmpi/internal/mpierr"
	"github.com/nanvix/libmpi/internal/nameservice"
	"github.com/nanvix/libmpi/internal/process"
	"github.com/nanvix/libmpi/internal/runtime"
	"github.com/nanvix/libmpi/internal/transport"
	"github.com/nanvix/libmpi/internal/wire"
)

// Datatype is a predefined MPI datatype handle.
type Datatype = datatype.ID

// Predefined datatypes.
const (
	CHAR          = datatype.Char
	BYTE          = datatype.Byte
	PACKED        = datatype.Packed
	INT           = datatype.Int
	UNSIGNED      = datatype.Unsigned
	LONG          = datatype.Long
	UNSIGNED_LONG = datatype.UnsignedLong
	FLOAT         = datatype.Float
	DOUBLE        = datatype.Double
	LONG_LONG     = datatype.LongLong
	AINT          = datatype.Aint
	OFFSET        = datatype.Offset
	COUNT         = datatype.Count
	DATATYPE_NULL = datatype.Null
)

// ErrhandlerBehavior names one of the three predefined errhandler
// behaviors.
type ErrhandlerBehavior = errhandler.Variant

const (
	ERRORS_ARE_FATAL = errhandler.AreFatal
	ERRORS_ABORT     = errhandler.Abort
	ERRORS_RETURN    = errhandler.Return
)

// Code is an MPI error class.
type Code = mpierr.Code

// Error classes, re-exported so callers need not import the internal
// package to interpret a returned code.
const (
	SUCCESS                   = mpierr.Success
	ERR_BUFFER                = mpierr.ErrBuffer
	ERR_COUNT                 = mpierr.ErrCount
	ERR_TYPE                  = mpierr.ErrType
	ERR_TAG                   = mpierr.ErrTag
	ERR_COMM                  = mpierr.ErrComm
	ERR_RANK                  = mpierr.ErrRank
	ERR_GROUP                 = mpierr.ErrGroup
	ERR_ARG                   = mpierr.ErrArg
	ERR_TRUNCATE              = mpierr.ErrTruncate
	ERR_OTHER                 = mpierr.ErrOther
	ERR_INTERN                = mpierr.ErrIntern
	ERR_PENDING               = mpierr.ErrPending
	ERR_NO_MEM                = mpierr.ErrNoMem
	ERR_UNSUPPORTED_OPERATION = mpierr.ErrUnsupportedOperation
	ERR_LASTCODE              = mpierr.ErrLastcode
)

// Special rank/tag values and comparison results.
const (
	ANY_SOURCE = -1
	ANY_TAG    = -1
	PROC_NULL  = transport.ProcNull
	UNDEFINED  = group.Undefined
	ROOT       = -4

	// TAG_UB is the exclusive upper bound on user tags.
	TAG_UB = 32768

	IDENT     = 0
	CONGRUENT = 1
	SIMILAR   = 2
	UNEQUAL   = 3
)

// ErrorCode extracts the MPI error class carried by an error returned
// from this package, SUCCESS for nil.
func ErrorCode(err error) Code {
	return mpierr.AsCode(err)
}

// Status mirrors MPI_Status's source/tag/error triple plus the internal
// received byte count.
type Status = transport.Status

// Comm is an opaque MPI_Comm handle.
type Comm struct{ inner *commctx.Communicator }

// Group is an opaque MPI_Group handle.
type Group struct{ inner *group.Group }

// Errhandler is an opaque MPI_Errhandler handle.
type Errhandler struct{ inner *errhandler.Handler }

type world struct {
	instanceID string
	lifecycle  *runtime.Lifecycle
	fence      *runtime.Fence
	registry   *process.Registry
	node       *transport.Node
	nsService  *nameservice.Service
	directory  *nameservice.Directory
	metrics    *metrics.Metrics
	logger     logging.Logger
	cfg        config.RuntimeConfig
	idAlloc    *commctx.IDAllocator

	rankBase   int
	localRanks int

	commWorld *commctx.Communicator
	commSelf  map[int]*commctx.Communicator

	// initErr/finalizeErr carry a fence leader's failure to the other
	// co-located ranks, which are already past their own error checks by
	// the time the leader runs the shared transition.
	errMu       sync.Mutex
	initErr     error
	finalizeErr error
}

var (
	globalMu      sync.Mutex
	rt            *world
	pendingLogger logging.Logger
)

func defaultLogger() logging.Logger {
	return logging.NewDefaultLogger()
}

// SetLogger replaces the runtime's logger (added entry point beyond
// strict MPI scope). Must be called before Init.
func SetLogger(l logging.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if rt != nil {
		rt.logger = l
		return
	}
	pendingLogger = l
}

// Metrics returns the runtime's metrics snapshot (added entry point
// beyond strict MPI scope), or a zero Snapshot before Init.
func Metrics() metrics.Snapshot {
	globalMu.Lock()
	defer globalMu.Unlock()
	if rt == nil {
		return metrics.Snapshot{}
	}
	return rt.metrics.Snapshot()
}

func bootstrap(cfg config.RuntimeConfig) (*world, error) {
	if err := cfg.Validate(); err != nil {
		return nil, mpierr.New(mpierr.ErrArg, err.Error())
	}
	local, rankBase, err := cfg.Local()
	if err != nil {
		return nil, mpierr.New(mpierr.ErrArg, err.Error())
	}

	logger := pendingLogger
	if logger == nil {
		logger = defaultLogger()
	}

	svc, err := nameservice.NewService()
	if err != nil {
		return nil, mpierr.New(mpierr.ErrIntern, err.Error())
	}
	dir := svc.Directory()

	node, err := transport.OpenNode(local.ID, local.MailboxRoot, local.PortalRoot, dir)
	if err != nil {
		_ = svc.Close()
		return nil, mpierr.New(mpierr.ErrIntern, err.Error())
	}

	w := &world{
		instanceID: idgen.New(),
		lifecycle:  runtime.NewLifecycle(),
		fence:      runtime.NewFence(local.LocalRanks),
		registry:   process.NewRegistry(cfg.WorldSize()),
		node:       node,
		nsService:  svc,
		directory:  dir,
		metrics:    metrics.New(),
		logger:     logger,
		cfg:        cfg,
		idAlloc:    commctx.NewIDAllocator(),
		rankBase:   rankBase,
		localRanks: local.LocalRanks,
		commSelf:   make(map[int]*commctx.Communicator),
	}

	if _, err := w.lifecycle.Advance(); err != nil { // NOT_INITIALIZED -> INIT_STARTED
		return nil, err
	}
	logger.Debugf("mpi: runtime %s entering %s on node %d (world size %d)",
		w.instanceID, w.lifecycle.Current(), local.ID, cfg.WorldSize())

	// One process object per world rank: local ranks own a reply inbox
	// and register in the name service; remote ranks are name-only stubs
	// whose addresses their own node publishes.
	procs := make([]*process.Process, 0, cfg.WorldSize())
	for _, nd := range cfg.Nodes {
		for i := 0; i < nd.LocalRanks; i++ {
			var proc *process.Process
			if nd.ID == local.ID {
				inbox, err := mailbox.Open(local.MailboxRoot, transport.ReplyPort(len(procs)))
				if err != nil {
					return nil, mpierr.New(mpierr.ErrIntern, fmt.Sprintf("mpi: open reply inbox for rank %d: %s", len(procs), err))
				}
				proc = w.registry.Allocate(func(pid int) *process.Process {
					return process.NewLocal(pid, inbox)
				})
				addr := nameservice.Address{
					Node:        int(nd.ID),
					MailboxRoot: nd.MailboxRoot,
					PortalRoot:  nd.PortalRoot,
					Protocol:    wire.ProtocolVersion,
				}
				if err := dir.Register(proc.Name, addr); err != nil {
					return nil, mpierr.New(mpierr.ErrIntern, err.Error())
				}
			} else {
				proc = w.registry.Allocate(process.NewRemote)
			}
			if proc.PID != len(procs) {
				return nil, mpierr.New(mpierr.ErrIntern, "mpi: rank/pid allocation order drifted")
			}
			procs = append(procs, proc)
		}
	}

	worldGroup := group.Allocate(len(procs))
	for i, p := range procs {
		if err := worldGroup.SetProc(i, p); err != nil {
			return nil, err
		}
	}

	defaultEH := errhandler.New(errhandler.Comm, errhandler.AreFatal, logger, w.abortScope)
	w.commWorld = commctx.New("MPI_COMM_WORLD", worldGroup, commctx.WorldPt2Pt, commctx.WorldColl, defaultEH)
	group.Free(worldGroup) // the communicator holds its own reference now

	// All COMM_SELF instances share one collective context id, the first
	// one the allocator vends past the predefined three.
	selfColl := w.idAlloc.Next()
	for _, p := range procs {
		if !p.IsLocal {
			continue
		}
		selfGroup := group.AllocateWithProcs([]*process.Process{p})
		w.commSelf[p.PID] = commctx.New("MPI_COMM_SELF", selfGroup, commctx.SelfPt2Pt, selfColl, defaultEH)
		group.Free(selfGroup)
	}

	return w, nil
}

func (w *world) abortScope(scope string, code mpierr.Code) {
	w.logger.Fatalf("MPI_Abort(%s, %s)", scope, code)
	os.Exit(1)
}

func (w *world) distributedBarrier() error {
	if len(w.cfg.Nodes) <= 1 {
		return nil
	}
	root := w.cfg.Nodes[0]
	resolve := func(node uint8) (string, error) {
		addr, err := w.directory.ResolveNode(node)
		return addr.MailboxRoot, err
	}
	return runtime.DistributedBarrier(
		w.node.ID, w.node.MailboxRoot, root.MailboxRoot,
		w.node.ID == root.ID, len(w.cfg.Nodes), resolve)
}

// Init bootstraps the runtime the first time any local rank calls it,
// then fences every local rank's arrival before completing the
// INIT_STARTED -> INITIALIZED transition and the inter-node barrier. It
// returns a context carrying rank's Process, for use by every
// subsequent call. rank is the world rank, which must be hosted on the
// configured local node.
func Init(ctx context.Context, cfg config.RuntimeConfig, rank int) (context.Context, error) {
	globalMu.Lock()
	if rt != nil && rt.lifecycle.Finalized() {
		globalMu.Unlock()
		return ctx, mpierr.New(mpierr.ErrOther, "mpi: runtime already finalized; a process initializes at most once")
	}
	if rt == nil {
		w, err := bootstrap(cfg)
		if err != nil {
			globalMu.Unlock()
			return ctx, err
		}
		rt = w
	}
	w := rt
	globalMu.Unlock()

	if w.fence.Arrive() {
		_, err := w.lifecycle.Advance() // INIT_STARTED -> INITIALIZED
		if err == nil {
			err = w.distributedBarrier()
		}
		w.errMu.Lock()
		w.initErr = err
		w.errMu.Unlock()
	}
	w.fence.Arrive() // release only once the state transition is visible

	w.errMu.Lock()
	initErr := w.initErr
	w.errMu.Unlock()
	if initErr != nil {
		return ctx, initErr
	}

	proc := w.registry.Get(rank)
	if proc == nil || !proc.IsLocal {
		return ctx, mpierr.New(mpierr.ErrRank, fmt.Sprintf("mpi: init: rank %d is not hosted on node %d (local ranks %d..%d)",
			rank, cfg.LocalNode, w.rankBase, w.rankBase+w.localRanks-1))
	}
	return process.WithCurrent(ctx, proc), nil
}

// Initialized reports whether Init has completed on this runtime.
func Initialized() bool {
	globalMu.Lock()
	w := rt
	globalMu.Unlock()
	return w != nil && w.lifecycle.Initialized()
}

// Finalized reports whether Finalize has completed.
func Finalized() bool {
	globalMu.Lock()
	w := rt
	globalMu.Unlock()
	return w != nil && w.lifecycle.Finalized()
}

func currentWorld() (*world, error) {
	globalMu.Lock()
	w := rt
	globalMu.Unlock()
	if w == nil {
		return nil, mpierr.New(mpierr.ErrOther, "mpi: runtime not initialized")
	}
	return w, nil
}

// running returns the world only while the lifecycle sits between a
// completed Init and the start of Finalize — the CHECK_INIT_FINALIZE
// guard every public entry point but Init/Initialized/Finalized opens
// with.
func running() (*world, error) {
	w, err := currentWorld()
	if err != nil {
		return nil, err
	}
	if err := w.lifecycle.RequireInitialized(); err != nil {
		return nil, err
	}
	return w, nil
}

func currentProcess(ctx context.Context) (*process.Process, error) {
	p := process.CurrentFromContext(ctx)
	if p == nil {
		return nil, mpierr.New(mpierr.ErrOther, "mpi: context carries no current process; call Init first")
	}
	return p, nil
}

// Finalize runs the FINALIZE_STARTED -> FINALIZE_DESTRUCT_COMM_SELF ->
// FINALIZED transitions once every local rank has called it. The fence
// leader destructs COMM_SELF first, drives the inter-node barrier, then
// tears down communicators, processes, and node resources in reverse
// init order; the others block until the whole sequence is done.
// Requests still sitting unmatched in the queue surface as ERR_PENDING.
func Finalize(ctx context.Context) error {
	w, err := currentWorld()
	if err != nil {
		return err
	}
	if err := w.lifecycle.RequireInitialized(); err != nil {
		return err
	}
	if _, err := currentProcess(ctx); err != nil {
		return err
	}

	if w.fence.Arrive() {
		w.finalize()
	}
	w.fence.Arrive()

	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.finalizeErr
}

// finalize is the fence leader's teardown sequence.
func (w *world) finalize() {
	var pendingErr error
	if n := w.node.Queue.Len(); n > 0 {
		pendingErr = mpierr.New(mpierr.ErrPending, fmt.Sprintf("mpi: finalize: %d unmatched requests still pending", n))
	}

	if _, err := w.lifecycle.Advance(); err != nil { // INITIALIZED -> FINALIZE_STARTED
		w.setFinalizeErr(err)
		return
	}
	for _, c := range w.commSelf { // COMM_SELF must go first
		c.Release(c)
	}
	if _, err := w.lifecycle.Advance(); err != nil { // -> FINALIZE_DESTRUCT_COMM_SELF
		w.setFinalizeErr(err)
		return
	}
	if err := w.distributedBarrier(); err != nil {
		w.setFinalizeErr(err)
		return
	}

	w.commWorld.Release(w.commWorld)
	w.registry.Each(func(pid int, proc *process.Process) {
		if proc.IsLocal {
			_ = w.directory.Unregister(proc.Name)
		}
		w.registry.Remove(pid)
		proc.Release(proc)
	})
	_ = w.node.Close()
	_ = w.nsService.Close()

	if _, err := w.lifecycle.Advance(); err != nil { // -> FINALIZED
		w.setFinalizeErr(err)
		return
	}
	w.logger.Debugf("mpi: runtime %s reached %s", w.instanceID, w.lifecycle.Current())
	w.setFinalizeErr(pendingErr)
}

func (w *world) setFinalizeErr(err error) {
	w.errMu.Lock()
	w.finalizeErr = err
	w.errMu.Unlock()
}

// Reset discards a finalized runtime so a fresh Init can run in the
// same OS process. The lifecycle state machine itself never runs
// backwards; this exists for test binaries that cycle Init/Finalize,
// which would otherwise need one OS process per cycle.
func Reset() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if rt == nil {
		return nil
	}
	if !rt.lifecycle.Finalized() {
		return mpierr.New(mpierr.ErrOther, "mpi: reset: runtime has not been finalized")
	}
	rt = nil
	pendingLogger = nil
	return nil
}

// Abort logs and terminates the local process.
func Abort(comm *Comm, code Code) error {
	w, err := currentWorld()
	if err != nil {
		return err
	}
	scope := "MPI_COMM_WORLD"
	if comm != nil && comm.inner != nil {
		scope = comm.inner.Name()
	}
	w.abortScope(scope, code)
	return nil
}

// CommWorld returns the predefined world communicator, the Go-idiomatic
// stand-in for MPI_COMM_WORLD's constant handle (it only exists once
// Init has run).
func CommWorld() (*Comm, error) {
	w, err := currentWorld()
	if err != nil {
		return nil, err
	}
	return &Comm{inner: w.commWorld}, nil
}

// CommSelf returns the calling rank's MPI_COMM_SELF handle.
func CommSelf(ctx context.Context) (*Comm, error) {
	w, err := currentWorld()
	if err != nil {
		return nil, err
	}
	self, err := currentProcess(ctx)
	if err != nil {
		return nil, err
	}
	c, ok := w.commSelf[self.PID]
	if !ok {
		return nil, mpierr.New(mpierr.ErrComm, "mpi: comm_self: no such rank")
	}
	return &Comm{inner: c}, nil
}

func commIsValid(c *Comm) bool {
	return c != nil && c.inner != nil
}

// Comm_rank returns the calling process's rank within comm.
func Comm_rank(ctx context.Context, comm *Comm) (int, error) {
	w, err := running()
	if err != nil {
		return 0, err
	}
	if !commIsValid(comm) {
		return 0, dispatchError(w.commWorld, mpierr.New(mpierr.ErrComm, "null communicator"), "MPI_Comm_rank")
	}
	self, err := currentProcess(ctx)
	if err != nil {
		return 0, err
	}
	r := comm.inner.Rank(self)
	if r == group.Undefined {
		return 0, dispatchError(comm.inner, mpierr.New(mpierr.ErrComm, "local process is not a member of comm"), "MPI_Comm_rank")
	}
	return r, nil
}

// Comm_size returns the size of comm's group.
func Comm_size(comm *Comm) (int, error) {
	w, err := running()
	if err != nil {
		return 0, err
	}
	if !commIsValid(comm) {
		return 0, dispatchError(w.commWorld, mpierr.New(mpierr.ErrComm, "null communicator"), "MPI_Comm_size")
	}
	return comm.inner.Size(), nil
}

// Comm_group returns a handle onto comm's underlying group. The caller
// owns the returned reference and releases it with Group_free.
func Comm_group(comm *Comm) (*Group, error) {
	w, err := running()
	if err != nil {
		return nil, err
	}
	if !commIsValid(comm) {
		return nil, dispatchError(w.commWorld, mpierr.New(mpierr.ErrComm, "null communicator"), "MPI_Comm_group")
	}
	return &Group{inner: comm.inner.Group()}, nil
}

// Comm_compare relates two communicators: IDENT for the same object,
// CONGRUENT for distinct communicators over identical groups, SIMILAR
// when the groups hold the same members in a different order, UNEQUAL
// otherwise.
func Comm_compare(a, b *Comm) (int, error) {
	if _, err := running(); err != nil {
		return UNEQUAL, err
	}
	if !commIsValid(a) || !commIsValid(b) {
		return UNEQUAL, mpierr.New(mpierr.ErrComm, "mpi: comm_compare: null communicator")
	}
	if a.inner == b.inner {
		return IDENT, nil
	}
	switch groupRelation(a.inner.GroupRef(), b.inner.GroupRef()) {
	case IDENT:
		return CONGRUENT, nil
	case SIMILAR:
		return SIMILAR, nil
	default:
		return UNEQUAL, nil
	}
}

// Group_compare relates two groups: IDENT when both hold the same
// members in the same order, SIMILAR for the same members reordered,
// UNEQUAL otherwise.
func Group_compare(a, b *Group) (int, error) {
	if _, err := running(); err != nil {
		return UNEQUAL, err
	}
	if a == nil || a.inner == nil || b == nil || b.inner == nil {
		return UNEQUAL, mpierr.New(mpierr.ErrGroup, "mpi: group_compare: null group")
	}
	return groupRelation(a.inner, b.inner), nil
}

func groupRelation(a, b *group.Group) int {
	if a.Size() != b.Size() {
		return UNEQUAL
	}
	ident := true
	for i := 0; i < a.Size(); i++ {
		pa, _ := a.GetProc(i)
		pb, _ := b.GetProc(i)
		if pa != pb {
			ident = false
			break
		}
	}
	if ident {
		return IDENT
	}
	for i := 0; i < a.Size(); i++ {
		pa, _ := a.GetProc(i)
		if b.Rank(pa) == group.Undefined {
			return UNEQUAL
		}
	}
	return SIMILAR
}

// Comm_get_errhandler returns a retained handle on comm's currently
// bound errhandler; the caller releases it with Errhandler_free.
func Comm_get_errhandler(comm *Comm) (*Errhandler, error) {
	if _, err := running(); err != nil {
		return nil, err
	}
	if !commIsValid(comm) {
		return nil, mpierr.New(mpierr.ErrComm, "mpi: comm_get_errhandler: null communicator")
	}
	return &Errhandler{inner: comm.inner.Errhandler()}, nil
}

// Comm_set_errhandler rebinds comm's errhandler.
func Comm_set_errhandler(comm *Comm, eh *Errhandler) error {
	if _, err := running(); err != nil {
		return err
	}
	if !commIsValid(comm) {
		return mpierr.New(mpierr.ErrComm, "mpi: comm_set_errhandler: null communicator")
	}
	if eh == nil || eh.inner == nil {
		return mpierr.New(mpierr.ErrArg, "mpi: comm_set_errhandler: null errhandler")
	}
	comm.inner.SetErrhandler(eh.inner)
	return nil
}

// Errhandler_free releases an errhandler handle obtained from
// NewErrhandler / Comm_get_errhandler.
func Errhandler_free(eh *Errhandler) error {
	if eh == nil || eh.inner == nil {
		return nil
	}
	eh.inner.Release(eh.inner)
	eh.inner = nil
	return nil
}

// NewErrhandler constructs a fresh errhandler of the given behavior —
// only the three predefined behaviors exist, so this is the one
// constructor exposed rather than a registration callback API.
func NewErrhandler(behavior ErrhandlerBehavior) (*Errhandler, error) {
	w, err := currentWorld()
	if err != nil {
		return nil, err
	}
	return &Errhandler{inner: errhandler.New(errhandler.Comm, behavior, w.logger, w.abortScope)}, nil
}

// Group_rank returns self's rank within g, or UNDEFINED.
func Group_rank(ctx context.Context, g *Group) (int, error) {
	if _, err := running(); err != nil {
		return 0, err
	}
	if g == nil || g.inner == nil {
		return 0, mpierr.New(mpierr.ErrGroup, "mpi: group_rank: null group")
	}
	self, err := currentProcess(ctx)
	if err != nil {
		return 0, err
	}
	return g.inner.Rank(self), nil
}

// Group_size returns g's size.
func Group_size(g *Group) (int, error) {
	if _, err := running(); err != nil {
		return 0, err
	}
	if g == nil || g.inner == nil {
		return 0, mpierr.New(mpierr.ErrGroup, "mpi: group_size: null group")
	}
	return g.inner.Size(), nil
}

// Group_free releases a group handle.
func Group_free(g *Group) error {
	if g == nil || g.inner == nil {
		return nil
	}
	group.Free(g.inner)
	g.inner = nil
	return nil
}

// Get_count derives the received element count from a Status:
// st.Count must be evenly divisible by dtype's byte size.
func Get_count(st Status, dtype Datatype) (int, error) {
	size := datatype.Size(dtype)
	if size == 0 {
		return 0, mpierr.New(mpierr.ErrType, "mpi: get_count: unknown datatype")
	}
	if st.Count%size != 0 {
		return 0, mpierr.New(mpierr.ErrTruncate, "mpi: get_count: received byte count not a multiple of datatype size")
	}
	return st.Count / size, nil
}

func validTag(tag int, allowAny bool) bool {
	if allowAny && tag == ANY_TAG {
		return true
	}
	return tag >= 0 && tag < TAG_UB
}

func checkSendArgs(comm *Comm, dest, tag int, dtype Datatype, callSite string) (*world, error) {
	w, err := running()
	if err != nil {
		return nil, err
	}
	if !commIsValid(comm) {
		return nil, dispatchError(w.commWorld, mpierr.New(mpierr.ErrComm, "null communicator"), callSite)
	}
	if !validTag(tag, false) {
		return nil, dispatchError(comm.inner, mpierr.New(mpierr.ErrTag, fmt.Sprintf("tag %d out of range", tag)), callSite)
	}
	if !datatype.Valid(dtype) || dtype == datatype.Null {
		return nil, dispatchError(comm.inner, mpierr.New(mpierr.ErrType, "invalid datatype"), callSite)
	}
	if dest != PROC_NULL && !comm.inner.PeerRankIsValid(dest) {
		return nil, dispatchError(comm.inner, mpierr.New(mpierr.ErrRank, fmt.Sprintf("destination rank %d out of range", dest)), callSite)
	}
	return w, nil
}

// Send implements synchronous MPI_Send over comm.
func Send(ctx context.Context, comm *Comm, dest int, buf []byte, dtype Datatype, tag int) error {
	w, err := checkSendArgs(comm, dest, tag, dtype, "MPI_Send")
	if err != nil {
		return err
	}
	self, err := currentProcess(ctx)
	if err != nil {
		return err
	}
	err = transport.Send(w.node, comm.inner, self, dest, buf, dtype, tag)
	if err == nil {
		w.metrics.MessagesSent.Inc()
		w.metrics.BytesSent.Add(float64(len(buf)))
	}
	return dispatchError(comm.inner, err, "MPI_Send")
}

// Ssend is the explicit-synchronous-mode spelling of Send; Send is
// already synchronous, so the two are one operation.
func Ssend(ctx context.Context, comm *Comm, dest int, buf []byte, dtype Datatype, tag int) error {
	return Send(ctx, comm, dest, buf, dtype, tag)
}

// Bsend is the buffered send mode. No attached-buffer allocator exists,
// so it reports ERR_UNSUPPORTED_OPERATION after validating arguments.
func Bsend(ctx context.Context, comm *Comm, dest int, buf []byte, dtype Datatype, tag int) error {
	_, err := checkSendArgs(comm, dest, tag, dtype, "MPI_Bsend")
	if err != nil {
		return err
	}
	return dispatchError(comm.inner, mpierr.New(mpierr.ErrUnsupportedOperation, "buffered send mode is not implemented"), "MPI_Bsend")
}

// Rsend is the ready send mode, likewise unimplemented.
func Rsend(ctx context.Context, comm *Comm, dest int, buf []byte, dtype Datatype, tag int) error {
	_, err := checkSendArgs(comm, dest, tag, dtype, "MPI_Rsend")
	if err != nil {
		return err
	}
	return dispatchError(comm.inner, mpierr.New(mpierr.ErrUnsupportedOperation, "ready send mode is not implemented"), "MPI_Rsend")
}

// Recv implements synchronous MPI_Recv over comm. The returned Status
// reflects the actual source and tag of the matched message when
// wildcards were used.
func Recv(ctx context.Context, comm *Comm, source, tag int, buf []byte, dtype Datatype) (Status, error) {
	w, err := running()
	if err != nil {
		return Status{}, err
	}
	if !commIsValid(comm) {
		return Status{}, dispatchError(w.commWorld, mpierr.New(mpierr.ErrComm, "null communicator"), "MPI_Recv")
	}
	if !validTag(tag, true) {
		return Status{}, dispatchError(comm.inner, mpierr.New(mpierr.ErrTag, fmt.Sprintf("tag %d out of range", tag)), "MPI_Recv")
	}
	if !datatype.Valid(dtype) || dtype == datatype.Null {
		return Status{}, dispatchError(comm.inner, mpierr.New(mpierr.ErrType, "invalid datatype"), "MPI_Recv")
	}
	if source != PROC_NULL && source != ANY_SOURCE && !comm.inner.PeerRankIsValid(source) {
		return Status{}, dispatchError(comm.inner, mpierr.New(mpierr.ErrRank, fmt.Sprintf("source rank %d out of range", source)), "MPI_Recv")
	}
	self, err := currentProcess(ctx)
	if err != nil {
		return Status{}, err
	}
	st, err := transport.Recv(w.node, comm.inner, self, source, tag, buf, dtype)
	if err == nil || st.Truncated {
		w.metrics.MessagesReceived.Inc()
		w.metrics.BytesReceived.Add(float64(st.Count))
		w.metrics.QueueDepth.Set(float64(w.node.Queue.Len()))
	}
	return st, dispatchError(comm.inner, err, "MPI_Recv")
}

// Barrier blocks until every rank of comm's world has entered it: all
// co-located ranks fence locally, the fence leader drives the
// inter-node barrier, and a closing fence holds everyone until the
// distributed step is done.
func Barrier(ctx context.Context, comm *Comm) error {
	w, err := running()
	if err != nil {
		return err
	}
	if !commIsValid(comm) {
		return dispatchError(w.commWorld, mpierr.New(mpierr.ErrComm, "null communicator"), "MPI_Barrier")
	}
	if _, err := currentProcess(ctx); err != nil {
		return err
	}

	start := time.Now()
	var derr error
	if w.fence.Arrive() {
		derr = w.distributedBarrier()
	}
	w.fence.Arrive()
	w.metrics.BarrierWait.Observe(time.Since(start).Seconds())
	return dispatchError(comm.inner, derr, "MPI_Barrier")
}

// dispatchError routes a non-nil internal error through comm's bound
// errhandler, then returns the resulting code as a plain error (nil for
// MPI_SUCCESS).
func dispatchError(comm *commctx.Communicator, err error, callSite string) error {
	if err == nil {
		return nil
	}
	code := mpierr.AsCode(err)
	eh := comm.Errhandler()
	result := eh.Invoke(comm, code, fmt.Sprintf("%s: %s", callSite, err))
	if eh != nil {
		eh.Release(eh)
	}
	return mpierr.New(result, err.Error())
}
