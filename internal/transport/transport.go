package transport

import (
	"fmt"

	"github.com/nanvix/libmpi/internal/commctx"
	"github.com/nanvix/libmpi/internal/datatype"
	"github.com/nanvix/libmpi/internal/group"
	"github.com/nanvix/libmpi/internal/mailbox"
	"github.com/nanvix/libmpi/internal/mpierr"
	"github.com/nanvix/libmpi/internal/nameservice"
	"github.com/nanvix/libmpi/internal/portal"
	"github.com/nanvix/libmpi/internal/process"
	"github.com/nanvix/libmpi/internal/rqueue"
	"github.com/nanvix/libmpi/internal/wire"
)

// Status reports what a Recv actually matched: MPI_Status's
// source/tag/error triple plus the internal received byte count.
type Status struct {
	Source    int
	Tag       int
	Count     int
	Error     mpierr.Code
	Truncated bool
}

// Send implements the sender side of the synchronous rendezvous:
// resolve the destination, pick the local-slot shortcut or the portal
// path, send the request-to-send frame, and (portal path only) block
// for the receiver's confirm before streaming the payload, then block
// for its ack.
func Send(n *Node, comm *commctx.Communicator, self *process.Process, destRank int, buf []byte, dtype datatype.ID, tag int) error {
	if destRank == ProcNull {
		return nil
	}
	selfRank := comm.Rank(self)
	if selfRank == group.Undefined {
		return mpierr.New(mpierr.ErrRank, "transport: send: local process is not a member of this communicator")
	}
	if !comm.PeerRankIsValid(destRank) {
		return mpierr.New(mpierr.ErrRank, "transport: send: destination rank out of range")
	}
	target, err := comm.GetProc(destRank)
	if err != nil {
		return err
	}
	if target == nil {
		return mpierr.New(mpierr.ErrRank, "transport: send: destination rank is a hole in the group")
	}

	destAddr, err := resolveProcess(n, target)
	if err != nil {
		return err
	}

	req := wire.Frame{
		ContextID:  uint16(comm.Pt2PtContextID()),
		SourceRank: int16(selfRank),
		TargetRank: int16(destRank),
		Tag:        int32(tag),
		DatatypeID: int16(dtype),
		ByteCount:  uint64(len(buf)),
		SourceNode: n.ID,
		InboxPort:  ReplyPort(self.PID),
	}

	if target.IsLocal {
		return sendLocal(n, req, destAddr.MailboxRoot, buf)
	}
	return sendRemote(n, self, req, destAddr, buf)
}

// sendLocal reserves a slot in the shared node-local pool, publishes
// the payload, dispatches the request-to-send frame (carrying the slot
// id in place of a portal advertisement) to the shared inbox, and
// blocks until the receiver has consumed the slot — the local-buffer
// shortcut, avoiding the portal round trip entirely. The receiver's
// result code (success, or truncation) comes back through the slot
// itself.
func sendLocal(n *Node, req wire.Frame, destMailboxRoot string, buf []byte) error {
	res, err := n.Slots.Reserve()
	if err != nil {
		return err
	}
	res.Publish(buf)
	req.SlotIDOrErr = int32(res.ID())

	if err := dispatchRequest(destMailboxRoot, req); err != nil {
		res.Cancel()
		return err
	}
	if code := res.Wait(); code != mpierr.Success {
		return mpierr.New(code, "transport: send: receiver reported error")
	}
	return nil
}

// sendRemote advertises no slot (SlotIDOrErr = -1), sends the
// request-to-send frame, waits on the sender's own reply inbox for the
// receiver's confirm, streams the payload over a fresh portal
// connection, and waits for the final ack. self.Inbox is the sender's
// persistent reply mailbox, opened once at process construction and
// reused across every send, rather than a fresh listener per call.
func sendRemote(n *Node, self *process.Process, req wire.Frame, destAddr nameservice.Address, buf []byte) error {
	req.SlotIDOrErr = -1
	if self.Inbox == nil {
		return mpierr.New(mpierr.ErrIntern, "transport: send: local process has no reply inbox")
	}

	// The portal is opened before the request goes out, so its local
	// port can ride along in the request-to-send frame.
	sender, err := portal.Dial(destAddr.PortalRoot, n.ID)
	if err != nil {
		return mpierr.New(mpierr.ErrIntern, "transport: send: dial portal: "+err.Error())
	}
	req.PortalPort = sender.LocalPort()

	if err := dispatchRequest(destAddr.MailboxRoot, req); err != nil {
		sender.Close()
		return err
	}

	replyInbox := self.Inbox
	replyInbox.SetRemote(mailbox.Any)

	if _, err := replyInbox.Read(); err != nil {
		sender.Close()
		return mpierr.New(mpierr.ErrIntern, "transport: send: await confirm: "+err.Error())
	}

	if werr := sender.Write(buf); werr != nil {
		sender.Close()
		return mpierr.New(mpierr.ErrIntern, "transport: send: write portal: "+werr.Error())
	}
	sender.Close()

	ack, err := replyInbox.Read()
	if err != nil {
		return mpierr.New(mpierr.ErrIntern, "transport: send: await ack: "+err.Error())
	}
	if code := mpierr.Code(ack.SlotIDOrErr); code != mpierr.Success {
		return mpierr.New(code, "transport: send: receiver reported error")
	}
	return nil
}

func dispatchRequest(destMailboxRoot string, req wire.Frame) error {
	out, err := mailbox.Dial(destMailboxRoot, ReqRecvPort)
	if err != nil {
		return mpierr.New(mpierr.ErrIntern, "transport: dial request inbox: "+err.Error())
	}
	defer out.Close()
	if err := out.Write(req); err != nil {
		return mpierr.New(mpierr.ErrIntern, "transport: write request: "+err.Error())
	}
	return nil
}

// Recv implements the receiver side of the rendezvous: match a pending
// request via the rqueue (honoring ANY_SOURCE/ANY_TAG), check datatype
// compatibility, then take either the local-slot shortcut or the
// confirm/portal/ack path depending on how the sender advertised the
// transfer. Truncation surfaces as ErrOther in both the returned error
// and the ack the sender sees.
func Recv(n *Node, comm *commctx.Communicator, self *process.Process, srcRank, tag int, buf []byte, dtype datatype.ID) (Status, error) {
	if srcRank == ProcNull {
		return Status{Source: ProcNull, Tag: tag, Count: 0}, nil
	}
	selfRank := comm.Rank(self)
	if selfRank == group.Undefined {
		return Status{}, mpierr.New(mpierr.ErrRank, "transport: recv: local process is not a member of this communicator")
	}

	expect := rqueue.Expectation{
		ContextID: comm.Pt2PtContextID(),
		Target:    selfRank,
		Source:    srcRank,
		Tag:       tag,
	}
	req, err := n.Queue.ReceiveRequest(expect)
	if err != nil {
		return Status{}, err
	}

	if !datatype.Compatible(dtype, datatype.ID(req.DatatypeID)) {
		failRequest(n, req, mpierr.ErrType)
		return Status{}, mpierr.New(mpierr.ErrType, fmt.Sprintf("transport: recv: expected %s but matched request advertises %s",
			datatype.Name(dtype), datatype.Name(datatype.ID(req.DatatypeID))))
	}

	advertised := int(req.ByteCount)
	received := len(buf)
	if advertised < received {
		received = advertised
	}
	truncated := advertised > len(buf)

	result := mpierr.Success
	if truncated {
		result = mpierr.ErrOther
	}

	if req.SlotID >= 0 {
		n.Slots.Await(int(req.SlotID), buf[:received])
		n.Slots.Finish(int(req.SlotID), result)
	} else {
		if err := recvViaPortal(n, req, buf[:received], result); err != nil {
			return Status{}, err
		}
	}

	status := Status{Source: req.Source, Tag: req.Tag, Count: received, Error: result, Truncated: truncated}
	if truncated {
		return status, mpierr.New(mpierr.ErrOther, "transport: recv: message longer than receive buffer")
	}
	return status, nil
}

func recvViaPortal(n *Node, req rqueue.Request, buf []byte, result mpierr.Code) error {
	srcAddr, err := resolveNode(n, req.SourceNode)
	if err != nil {
		return err
	}

	confirm := wire.Frame{
		ContextID:    uint16(req.ContextID),
		SourceRank:   int16(req.Target),
		TargetRank:   int16(req.Source),
		Tag:          int32(req.Tag),
		ReceivedSize: uint32(len(buf)),
		SourceNode:   n.ID,
		SlotIDOrErr:  -1,
	}
	if err := replyTo(srcAddr.MailboxRoot, req.InboxPort, confirm); err != nil {
		return err
	}

	session, err := n.Portal.Allow(req.SourceNode, req.PortalPort)
	if err != nil {
		return mpierr.New(mpierr.ErrIntern, "transport: recv: allow portal: "+err.Error())
	}
	_, rerr := session.Read(buf)
	session.Close()

	ackCode := result
	if rerr != nil {
		ackCode = mpierr.ErrIntern
	}
	ack := wire.Frame{
		ContextID:    uint16(req.ContextID),
		SourceRank:   int16(req.Target),
		TargetRank:   int16(req.Source),
		ReceivedSize: uint32(len(buf)),
		SourceNode:   n.ID,
		SlotIDOrErr:  int32(ackCode),
	}
	if err := replyTo(srcAddr.MailboxRoot, req.InboxPort, ack); err != nil {
		return err
	}
	if rerr != nil {
		return mpierr.New(mpierr.ErrIntern, "transport: recv: read portal: "+rerr.Error())
	}
	return nil
}

// failRequest completes the rendezvous protocol for a request the
// receiver cannot satisfy, so the sender unblocks with the failure code
// instead of hanging: the slot is finished unread on the shortcut path,
// and on the portal path the advertised payload is drained into a
// scratch buffer before the ack carries the code back.
func failRequest(n *Node, req rqueue.Request, code mpierr.Code) {
	if req.SlotID >= 0 {
		n.Slots.Finish(int(req.SlotID), code)
		return
	}
	discard := make([]byte, req.ByteCount)
	_ = recvViaPortal(n, req, discard, code)
}

func replyTo(mailboxRoot string, port uint8, f wire.Frame) error {
	out, err := mailbox.Dial(mailboxRoot, port)
	if err != nil {
		return mpierr.New(mpierr.ErrIntern, "transport: dial reply inbox: "+err.Error())
	}
	defer out.Close()
	if err := out.Write(f); err != nil {
		return mpierr.New(mpierr.ErrIntern, "transport: write reply: "+err.Error())
	}
	return nil
}

// resolveProcess maps a destination process to its node's physical
// address: the local node's own roots for a co-located rank, or a name
// lookup (with a protocol-version gate) for a remote one.
func resolveProcess(n *Node, p *process.Process) (nameservice.Address, error) {
	if p.IsLocal {
		return nameservice.Address{Node: int(n.ID), MailboxRoot: n.MailboxRoot, PortalRoot: n.PortalRoot}, nil
	}
	addr, err := n.Directory.Resolve(p.Name)
	if err != nil {
		return nameservice.Address{}, mpierr.New(mpierr.ErrIntern, fmt.Sprintf("transport: resolve %s: %s", p.Name, err))
	}
	if err := checkPeerProtocol(addr); err != nil {
		return nameservice.Address{}, err
	}
	return addr, nil
}

func resolveNode(n *Node, node uint8) (nameservice.Address, error) {
	addr, err := n.Directory.ResolveNode(node)
	if err != nil {
		return nameservice.Address{}, mpierr.New(mpierr.ErrIntern, fmt.Sprintf("transport: resolve node %d: %s", node, err))
	}
	if err := checkPeerProtocol(addr); err != nil {
		return nameservice.Address{}, err
	}
	return addr, nil
}

func checkPeerProtocol(addr nameservice.Address) error {
	if addr.Protocol == "" {
		return nil
	}
	if err := wire.CheckVersion(addr.Protocol); err != nil {
		return mpierr.New(mpierr.ErrIntern, fmt.Sprintf("transport: node %d speaks wire protocol %q: %s", addr.Node, addr.Protocol, err))
	}
	return nil
}
