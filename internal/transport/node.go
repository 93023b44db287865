// Package transport implements the synchronous rendezvous send/recv
// protocol: a three-step exchange over the mailbox and portal
// primitives (request-to-send, confirm, data+ack), with the node-local
// slot-buffer shortcut substituted for the portal whenever sender and
// receiver are co-located.
package transport

import (
	"fmt"

	"github.com/nanvix/libmpi/internal/mailbox"
	"github.com/nanvix/libmpi/internal/nameservice"
	"github.com/nanvix/libmpi/internal/portal"
	"github.com/nanvix/libmpi/internal/rqueue"
	"github.com/nanvix/libmpi/internal/slotbuf"
	"github.com/nanvix/libmpi/internal/wire"
)

// ReqRecvPort is COMM_REQ_RECV_PORT, the well-known mailbox port every
// node's shared request queue listens on: the highest assignable port
// number minus one (mailbox.Any occupies the all-ones value).
const ReqRecvPort uint8 = 254

// ProcNull is MPI_PROC_NULL: a send/recv naming this rank is a
// permitted no-op.
const ProcNull = -2

// ReplyPort derives the per-rank mailbox port a process listens on for
// confirm/ack frames, distinct from the shared ReqRecvPort and from the
// barrier ports just below it. Capped to a single byte, matching the
// wire frame's inbox_port field width.
func ReplyPort(pid int) uint8 {
	return uint8(1 + (pid % 250))
}

// Node bundles the per-node shared transport resources: the one shared
// request-recv inbox, the one shared inportal, the local-buffer slot
// pool for co-located transfers, and the name-service handle used to
// resolve both process names and peer node addresses.
type Node struct {
	ID          uint8
	MailboxRoot string
	PortalRoot  string

	Queue     *rqueue.Queue
	Portal    *portal.Portal
	Slots     *slotbuf.Table
	Directory *nameservice.Directory
}

// OpenNode binds a node's shared inbox and inportal, and registers its
// own address (plus the wire-protocol version it speaks) under its node
// id so peers can resolve it back from a wire frame's source_node field.
func OpenNode(id uint8, mailboxRoot, portalRoot string, dir *nameservice.Directory) (*Node, error) {
	reqInbox, err := mailbox.Open(mailboxRoot, ReqRecvPort)
	if err != nil {
		return nil, fmt.Errorf("transport: open node %d request inbox: %w", id, err)
	}
	p, err := portal.Open(portalRoot)
	if err != nil {
		_ = reqInbox.Close()
		return nil, fmt.Errorf("transport: open node %d portal: %w", id, err)
	}
	n := &Node{
		ID:          id,
		MailboxRoot: mailboxRoot,
		PortalRoot:  portalRoot,
		Queue:       rqueue.New(reqInbox),
		Portal:      p,
		Slots:       slotbuf.New(),
		Directory:   dir,
	}
	addr := nameservice.Address{
		Node:        int(id),
		MailboxRoot: mailboxRoot,
		PortalRoot:  portalRoot,
		Protocol:    wire.ProtocolVersion,
	}
	if err := dir.RegisterNode(id, addr); err != nil {
		_ = n.Close()
		return nil, fmt.Errorf("transport: register node %d: %w", id, err)
	}
	return n, nil
}

// Close tears down the node's shared inbox and inportal.
func (n *Node) Close() error {
	qerr := n.Queue.Close()
	perr := n.Portal.Close()
	if qerr != nil {
		return qerr
	}
	return perr
}
