// Package exec is the pull-based execution engine of spec §4.6: base-set
// and join iterators producing match tuples, a stable-sorted find, a
// count, and subgraph extraction.
//
// Grounded on application/loaders/batcher.go (teacher): a small explicit
// state machine pulled by its caller rather than a goroutine-per-query
// pushing down a channel. Iterators here are plain Go values implementing
// Matches, not goroutines — an AQL query tree can be arbitrarily deep and
// one goroutine per plan node would be wasteful where a direct call
// suffices.
package exec

import (
	"github.com/graphannis-go/graphannis-core/internal/graph"
)

// Match is one bound node slot inside a result tuple: which node matched,
// and under what annotation key (nil for a token/any-node match with no
// specific key, e.g. a bare node reference).
type Match struct {
	Node graph.NodeID
	Anno *graph.AnnoKey
}

// Tuple is one full match: one Match per plan node, in plan node-index
// order. Typical AQL queries bind a handful of nodes, so a plain slice —
// not a hand-rolled small-size-optimized vector — is the right
// representation; Go's allocator already keeps small slices cheap, and
// no pack example hand-rolls a SmallVec equivalent (see DESIGN.md).
type Tuple []Match

// emptyMatch is the stable placeholder an optional node slot (spec §4.6:
// "optional-node slots may be empty and are mapped to stable 'empty'
// placeholders") is filled with when it did not participate in a match.
var emptyMatch = Match{Node: graph.InvalidNodeID}

func isEmpty(m Match) bool { return m.Node == graph.InvalidNodeID }
