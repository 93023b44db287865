// Package config implements the static runtime topology loaded at
// Init: how many nodes participate, how many ranks are co-located per
// node, and each node's mailbox/portal root addresses. Parsed with
// json-iterator/go, a drop-in replacement for encoding/json.
package config

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NodeAddr is one node's entry in the static topology.
type NodeAddr struct {
	ID          uint8  `json:"id"`
	MailboxRoot string `json:"mailbox_root"`
	PortalRoot  string `json:"portal_root"`
	LocalRanks  int    `json:"local_ranks"`
}

// RuntimeConfig is the full static topology an MPI runtime is started
// with, the added Go-native stand-in for the command-line / environment
// bootstrap a real MPI launcher (mpirun) would supply. LocalNode names
// which entry of Nodes this OS process is; Nodes[0] is the barrier
// coordinator.
type RuntimeConfig struct {
	LocalNode uint8      `json:"local_node"`
	Nodes     []NodeAddr `json:"nodes"`
}

// Local returns this process's own node entry and the world rank of its
// first co-located rank (ranks are assigned node by node, in Nodes
// order).
func (c RuntimeConfig) Local() (NodeAddr, int, error) {
	base := 0
	for _, node := range c.Nodes {
		if node.ID == c.LocalNode {
			return node, base, nil
		}
		base += node.LocalRanks
	}
	return NodeAddr{}, 0, fmt.Errorf("config: local node %d not present in topology", c.LocalNode)
}

// WorldSize sums every node's local rank count.
func (c RuntimeConfig) WorldSize() int {
	n := 0
	for _, node := range c.Nodes {
		n += node.LocalRanks
	}
	return n
}

// Load reads and validates a RuntimeConfig from path.
func Load(path string) (RuntimeConfig, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg RuntimeConfig
	if err := json.Unmarshal(blob, &cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}

// Validate rejects a topology with no nodes, no ranks, or duplicate
// node ids.
func (c RuntimeConfig) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("config: topology has no nodes")
	}
	seen := make(map[uint8]bool, len(c.Nodes))
	for _, node := range c.Nodes {
		if seen[node.ID] {
			return fmt.Errorf("config: duplicate node id %d", node.ID)
		}
		seen[node.ID] = true
		if node.LocalRanks <= 0 {
			return fmt.Errorf("config: node %d has no local ranks", node.ID)
		}
		if node.MailboxRoot == "" || node.PortalRoot == "" {
			return fmt.Errorf("config: node %d is missing a mailbox or portal root", node.ID)
		}
	}
	if !seen[c.LocalNode] {
		return fmt.Errorf("config: local node %d not present in topology", c.LocalNode)
	}
	return nil
}

// SingleNode builds an in-process, single-node topology where every
// rank cohabits one node — the common case exercised by this module's
// own test suite.
func SingleNode(localRanks int, mailboxRoot, portalRoot string) RuntimeConfig {
	return RuntimeConfig{Nodes: []NodeAddr{{ID: 0, MailboxRoot: mailboxRoot, PortalRoot: portalRoot, LocalRanks: localRanks}}}
}
