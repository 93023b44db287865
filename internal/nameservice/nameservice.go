// Package nameservice implements the process-name directory:
// registration of the local processes at init, and resolution of a
// remote symbolic name to its physical (node, mailbox-root,
// portal-root) address on demand. The directory is backed by an
// embedded buntdb instance rather than a bare map, so registration and
// lookup go through a transactional key/value API and the store can be
// swapped for a persistent one without touching callers.
package nameservice

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tidwall/buntdb"
)

// Address is the physical location a symbolic process name resolves to.
// Protocol carries the wire-protocol version the registrant speaks, so
// resolvers can reject a peer from an incompatible build before any
// rendezvous traffic flows.
type Address struct {
	Node        int    `json:"node"`
	MailboxRoot string `json:"mailbox_root"`
	PortalRoot  string `json:"portal_root"`
	Protocol    string `json:"protocol,omitempty"`
}

// Directory is a node-local handle onto the distributed name service.
// In this realization every node's Directory shares the same backing
// store when constructed from the same *Service (see Service below);
// a real distributed deployment would instead have each Directory talk
// to a remote registry over the network.
type Directory struct {
	db *buntdb.DB
	mu *sync.RWMutex
}

// Service is the process-wide name registry. All cooperating nodes in
// one OS process share a Service instance; a real multi-host
// deployment would put a networked registry behind the same Directory
// surface.
type Service struct {
	db *buntdb.DB
	mu sync.RWMutex
}

// NewService opens a fresh, in-memory name-service backing store.
func NewService() (*Service, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("nameservice: open: %w", err)
	}
	return &Service{db: db}, nil
}

// Directory returns a handle for use by a single node; all handles
// share this Service's backing store.
func (s *Service) Directory() *Directory {
	return &Directory{db: s.db, mu: &s.mu}
}

// Close releases the backing store. Safe to call once all Directory
// handles are done.
func (s *Service) Close() error {
	return s.db.Close()
}

// Register publishes name's physical address.
func (d *Directory) Register(name string, addr Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	blob, err := json.Marshal(addr)
	if err != nil {
		return fmt.Errorf("nameservice: marshal %s: %w", name, err)
	}
	return d.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(name, string(blob), nil)
		return err
	})
}

// Resolve looks up name's physical address.
func (d *Directory) Resolve(name string) (Address, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var addr Address
	err := d.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(name)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(val), &addr)
	})
	if err != nil {
		return Address{}, fmt.Errorf("nameservice: resolve %s: %w", name, err)
	}
	return addr, nil
}

// Unregister removes name from the directory, used during finalize
// teardown of the local processes.
func (d *Directory) Unregister(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(name)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

func nodeKey(id uint8) string {
	return fmt.Sprintf("node:%d", id)
}

// RegisterNode publishes a node's own (mailbox, portal) root addresses,
// keyed by node id rather than process name. The transport layer uses
// this, separately from Register/Resolve, to turn the one-byte
// source_node field carried on a wire frame back into a dialable
// address once a request arrives.
func (d *Directory) RegisterNode(id uint8, addr Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	blob, err := json.Marshal(addr)
	if err != nil {
		return fmt.Errorf("nameservice: marshal node %d: %w", id, err)
	}
	return d.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(nodeKey(id), string(blob), nil)
		return err
	})
}

// ResolveNode looks up the (mailbox, portal) root addresses registered
// for a node id.
func (d *Directory) ResolveNode(id uint8) (Address, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var addr Address
	err := d.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(nodeKey(id))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(val), &addr)
	})
	if err != nil {
		return Address{}, fmt.Errorf("nameservice: resolve node %d: %w", id, err)
	}
	return addr, nil
}
