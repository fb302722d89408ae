package exec

import (
	"context"
	"iter"

	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
)

// Matches is the pull-based iterator contract every plan-node and join
// evaluator implements (spec §4.6). Next returns the next tuple, false
// once exhausted, or an error — including AqlTimeout once ctx's deadline
// passes. Callers must check ctx on every call, not every Nth (spec
// §4.6/§5).
type Matches interface {
	Next(ctx context.Context) (Tuple, bool, error)
}

func checkDeadline(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return goerrors.NewTimeout("query deadline exceeded")
	default:
		return nil
	}
}

// baseSetIter produces one-node tuples from a lazy anno.ItemID sequence,
// filling plan-node slot nodeIndex and leaving every other slot empty.
// Grounded on application/loaders/batcher.go's pull-on-demand shape,
// adapted from a keyed batch loader to a single-key annotation scan.
type baseSetIter struct {
	arity     int
	nodeIndex int
	key       graph.AnnoKey
	store     anno.Store // nil when the underlying sequence is already exact (RegexScan, existence, tok)
	value     string     // only consulted when store != nil
	next      func() (anno.ItemID, bool)
	stop      func()
}

func newBaseSetIter(arity, nodeIndex int, key graph.AnnoKey, seq iter.Seq[anno.ItemID]) *baseSetIter {
	next, stop := iter.Pull(seq)
	return &baseSetIter{arity: arity, nodeIndex: nodeIndex, key: key, next: next, stop: stop}
}

func (b *baseSetIter) Next(ctx context.Context) (Tuple, bool, error) {
	if err := checkDeadline(ctx); err != nil {
		return nil, false, err
	}
	item, ok := b.next()
	if !ok {
		return nil, false, nil
	}
	if item.Kind != graph.ItemNode {
		return b.Next(ctx) // skip edge-id hits; base sets only bind nodes
	}
	if b.store != nil {
		v, found, err := b.store.Get(item, b.key)
		if err != nil {
			return nil, false, err
		}
		if !found || v != b.value {
			return b.Next(ctx)
		}
	}
	t := make(Tuple, b.arity)
	for i := range t {
		t[i] = emptyMatch
	}
	k := b.key
	t[b.nodeIndex] = Match{Node: item.Node, Anno: &k}
	return t, true, nil
}

func (b *baseSetIter) Close() { b.stop() }

// AnnoEquality builds a base-set iterator over nodes whose key equals
// value exactly. AnnoByKey's inverse index is keyed on presence alone, so
// the exact-match filter runs as each candidate is pulled rather than on
// the index itself.
func AnnoEquality(store anno.Store, arity, nodeIndex int, key graph.AnnoKey, value string) (*baseSetIter, error) {
	it := newBaseSetIter(arity, nodeIndex, key, store.AnnoByKey(key))
	it.store = store
	it.value = value
	return it, nil
}

// AnnoRegex builds a base-set iterator over nodes whose key's value
// matches pattern.
func AnnoRegex(store anno.Store, arity, nodeIndex int, key graph.AnnoKey, pattern string) (*baseSetIter, error) {
	seq, err := store.RegexScan(key, pattern)
	if err != nil {
		return nil, err
	}
	return newBaseSetIter(arity, nodeIndex, key, seq), nil
}

// AnnoExistence builds a base-set iterator over every node carrying key,
// regardless of value.
func AnnoExistence(store anno.Store, arity, nodeIndex int, key graph.AnnoKey) (*baseSetIter, error) {
	return newBaseSetIter(arity, nodeIndex, key, store.AnnoByKey(key)), nil
}

// TokenScan specializes a `tok` base set to a direct scan of the nodes
// carrying annis::tok, the concrete form spec §4.5's "direct scan of the
// default Ordering component's source nodes" takes here: the annotation
// store's inverse index on TokKey already enumerates exactly that set
// without walking the Ordering component's edges at all.
func TokenScan(store anno.Store, arity, nodeIndex int) (*baseSetIter, error) {
	return newBaseSetIter(arity, nodeIndex, graph.TokKey, store.AnnoByKey(graph.TokKey)), nil
}
