// Package test provides the in-process multi-rank harness used by this
// module's own test suite: one goroutine per rank, joined with a
// timeout, each running Init / body / Finalize against a loopback
// topology.
package test

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/nanvix/libmpi/internal/config"
	mpiruntime "github.com/nanvix/libmpi/internal/runtime"
	"github.com/nanvix/libmpi/pkg/mpi"
)

// Namespace spacing: a node's mailbox listeners occupy basePort+0
// through basePort+254, so mailbox namespaces are spaced 300 ports
// apart; portals take one port each from a disjoint range.
const (
	mailboxBase    = 20000
	mailboxSpacing = 300
	portalBase     = 45000
)

// MailboxRoot returns the loopback mailbox root for a namespace.
func MailboxRoot(namespace uint16) string {
	return fmt.Sprintf("127.0.0.1:%d", mailboxBase+int(namespace)*mailboxSpacing)
}

// PortalRoot returns the loopback portal root for a namespace.
func PortalRoot(namespace uint16) string {
	return fmt.Sprintf("127.0.0.1:%d", portalBase+int(namespace))
}

// NewTopology builds a single-node RuntimeConfig sized for n co-located
// ranks, binding its mailbox/portal roots to distinct loopback ports
// derived from namespace so concurrently running test binaries don't
// collide.
func NewTopology(n int, namespace uint16) config.RuntimeConfig {
	return config.SingleNode(n, MailboxRoot(namespace), PortalRoot(namespace))
}

// RankBody is one rank's test body, run after mpi.Init has bound ctx to
// that rank's process.
type RankBody func(ctx context.Context, comm *mpi.Comm, rank int) error

// RunCluster spawns n ranks, each calling mpi.Init, the supplied body,
// then mpi.Finalize, and fails t if anything returns an error or the
// whole run exceeds timeout. The finalized runtime is reset on test
// cleanup so the next test in the binary can Init afresh.
func RunCluster(t *testing.T, n int, namespace uint16, timeout time.Duration, body RankBody) {
	t.Helper()
	t.Cleanup(func() {
		if err := mpi.Reset(); err != nil {
			t.Errorf("reset runtime: %v", err)
		}
	})
	cfg := NewTopology(n, namespace)

	done := make(chan error, 1)
	go func() {
		done <- mpiruntime.Spawn(context.Background(), n, func(ctx context.Context, rank int) error {
			ctx, err := mpi.Init(ctx, cfg, rank)
			if err != nil {
				return fmt.Errorf("rank %d init: %w", rank, err)
			}
			comm, err := mpi.CommWorld()
			if err != nil {
				return fmt.Errorf("rank %d comm_world: %w", rank, err)
			}
			if err := body(ctx, comm, rank); err != nil {
				return fmt.Errorf("rank %d body: %w", rank, err)
			}
			return mpi.Finalize(ctx)
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cluster run failed: %v", err)
		}
	case <-time.After(timeout):
		PrintStackTrace(t)
		t.Fatalf("cluster run timed out after %s", timeout)
	}
}

// PrintStackTrace dumps every goroutine's stack into the test log, the
// diagnostic of choice for a hung cluster shutdown.
func PrintStackTrace(t *testing.T) {
	t.Helper()
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	t.Logf("%s", buf[:n])
}
