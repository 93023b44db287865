// Package mailbox provides the small fixed-size control-message
// primitive the rendezvous protocol runs over: a TCP listener bound to
// a (root, port) pair that exchanges exactly wire.FrameSize bytes per
// message. Open/Dial/Read/Write/SetRemote/Close is the whole surface,
// so an alternative IPC substrate can stand in behind the same shape.
package mailbox

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/nanvix/libmpi/internal/wire"
)

// Any is the wildcard source-node filter accepted by Inbox.SetRemote.
const Any uint8 = 0xFF

type received struct {
	frame  wire.Frame
	source uint8
}

// Inbox is a local, receiving mailbox bound to a single (node, port).
type Inbox struct {
	listener net.Listener
	port     uint8

	mu     sync.Mutex
	filter uint8 // Any, or a specific source node
	queue  chan received
	closed chan struct{}
}

// Open binds an inbox at root (the node's "host:basePort") offset by
// port, and starts accepting connections in the background.
func Open(root string, port uint8) (*Inbox, error) {
	host, basePort, err := splitHostPort(root)
	if err != nil {
		return nil, err
	}
	addr := fmt.Sprintf("%s:%d", host, basePort+int(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("mailbox: open %s: %w", addr, err)
	}
	ib := &Inbox{
		listener: ln,
		port:     port,
		filter:   Any,
		queue:    make(chan received, 64),
		closed:   make(chan struct{}),
	}
	go ib.acceptLoop()
	return ib, nil
}

// LocalPort returns the mailbox's own port number, advertised to peers
// in request-to-send / confirm frames.
func (ib *Inbox) LocalPort() uint8 { return ib.port }

// LocalAddr returns the bound TCP address, useful for tests that need
// the ephemeral port actually picked by the OS.
func (ib *Inbox) LocalAddr() string { return ib.listener.Addr().String() }

func (ib *Inbox) acceptLoop() {
	for {
		conn, err := ib.listener.Accept()
		if err != nil {
			return
		}
		go ib.readLoop(conn)
	}
}

func (ib *Inbox) readLoop(conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, wire.FrameSize)
	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		f, err := wire.Decode(buf)
		if err != nil {
			continue
		}
		select {
		case ib.queue <- received{frame: f, source: f.SourceNode}:
		case <-ib.closed:
			return
		}
	}
}

// SetRemote re-aims the inbox to accept frames only from the given
// source node (mailbox.Any to accept from anyone).
func (ib *Inbox) SetRemote(sourceNode uint8) {
	ib.mu.Lock()
	ib.filter = sourceNode
	ib.mu.Unlock()
}

// Read blocks until a frame matching the current filter arrives. Frames
// from a non-matching source are dropped: at any given rendezvous step
// only the expected peer is writing to this inbox, so a mismatch here
// indicates a protocol violation rather than a message to requeue.
func (ib *Inbox) Read() (wire.Frame, error) {
	for {
		select {
		case r := <-ib.queue:
			ib.mu.Lock()
			want := ib.filter
			ib.mu.Unlock()
			if want == Any || want == r.source {
				return r.frame, nil
			}
		case <-ib.closed:
			return wire.Frame{}, io.ErrClosedPipe
		}
	}
}

// Close stops accepting new connections and unblocks any pending Read.
func (ib *Inbox) Close() error {
	select {
	case <-ib.closed:
	default:
		close(ib.closed)
	}
	return ib.listener.Close()
}

// Outbox is an outbound mailbox connection to a single remote (node, port).
type Outbox struct {
	conn net.Conn
}

// Dial opens an outbound mailbox to root (the remote node's
// "host:basePort") offset by port.
func Dial(root string, port uint8) (*Outbox, error) {
	host, basePort, err := splitHostPort(root)
	if err != nil {
		return nil, err
	}
	addr := fmt.Sprintf("%s:%d", host, basePort+int(port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("mailbox: dial %s: %w", addr, err)
	}
	return &Outbox{conn: conn}, nil
}

// Write sends f as exactly wire.FrameSize bytes.
func (o *Outbox) Write(f wire.Frame) error {
	buf := wire.Encode(f)
	_, err := o.conn.Write(buf[:])
	return err
}

// Close closes the outbound connection.
func (o *Outbox) Close() error {
	return o.conn.Close()
}

func splitHostPort(root string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(root)
	if err != nil {
		return "", 0, fmt.Errorf("mailbox: bad root address %q: %w", root, err)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return "", 0, fmt.Errorf("mailbox: bad root port %q: %w", portStr, err)
	}
	return host, port, nil
}
