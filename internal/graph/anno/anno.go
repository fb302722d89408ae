// Package anno is the annotation store of spec §4.1: a polymorphic
// key-value index from item identifiers (node-id or edge-id) to
// (namespace, name) -> value maps, with inverse indexes for node-name
// lookup and regex/range scans the planner uses for selectivity
// estimates.
package anno

import (
	"iter"

	"github.com/graphannis-go/graphannis-core/internal/graph"
)

// ItemID addresses either a node or an edge inside the annotation store's
// shared key space.
type ItemID struct {
	Kind graph.ItemKind
	Node graph.NodeID  // valid when Kind == ItemNode
	Edge graph.EdgeID  // valid when Kind == ItemEdge
}

func NodeItem(n graph.NodeID) ItemID { return ItemID{Kind: graph.ItemNode, Node: n} }
func EdgeItem(e graph.EdgeID) ItemID { return ItemID{Kind: graph.ItemEdge, Edge: e} }

// Store is the read/write contract both the in-memory and disk-resident
// variants implement.
type Store interface {
	// Get returns the value for (item,key), and whether it was present.
	Get(item ItemID, key graph.AnnoKey) (string, bool, error)
	// Set stores value for (item,key). Setting an equal existing value is
	// a no-op per spec §3 invariants ("adding an equal key is a no-op").
	Set(item ItemID, key graph.AnnoKey, value string) error
	// Remove deletes one annotation; absent is a no-op.
	Remove(item ItemID, key graph.AnnoKey) error
	// RemoveItem deletes every annotation of item in one pass.
	RemoveItem(item ItemID) error

	// HasNodeName is an exact existence test on annis::node_name.
	HasNodeName(name string) (bool, error)
	// GetNodeIDFromName bypasses a value scan via the inverse index.
	GetNodeIDFromName(name string) (graph.NodeID, bool, error)

	// AnnoByKey returns a finite lazy sequence of items carrying key.
	AnnoByKey(key graph.AnnoKey) iter.Seq[ItemID]
	// RegexScan returns a finite lazy sequence of items whose value under
	// key matches pattern.
	RegexScan(key graph.AnnoKey, pattern string) (iter.Seq[ItemID], error)

	// GuessMaxCount estimates the number of items whose value under key
	// falls in [lower,upper], used by the planner for base-set sizing.
	GuessMaxCount(key graph.AnnoKey, lower, upper string) (uint64, error)
	// GuessMaxCountRegex is the regex analogue: exact when pattern has an
	// extractable literal prefix, pessimistic otherwise (spec §4.1).
	GuessMaxCountRegex(key graph.AnnoKey, pattern string) (uint64, error)

	Close() error
}
