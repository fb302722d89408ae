package graph

import (
	"context"
	"sort"

	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/graph/gs"
)

// recomputeDerived's Coverage/PartOf branch: rebuild LeftToken, RightToken
// and InvertedCoverage from every loaded Coverage component, non-
// recursively via an explicit worklist over known nodes (spec §3
// Lifecycle, §4.2 "Write-path for updates"). Coverage edges are already
// flattened to point directly at the tokens a node covers (spec §3: "When
// updating many nodes, indirect Coverage edges ... are materialized"), so
// one pass over each node's direct Coverage targets is enough; no
// recursive descent through intermediate spans is needed.
func (g *Graph) rebuildCoverageDerivedLocked(ctx context.Context) error {
	var coverageComponents []Component
	for c := range g.components {
		if c.Type == Coverage {
			coverageComponents = append(coverageComponents, c)
		}
	}
	if len(coverageComponents) == 0 {
		return nil
	}

	order, err := g.tokenOrderLocked()
	if err != nil {
		return err
	}

	ltStorage, err := g.getOrCreateComponent(derivedLeftToken, gs.Hint{})
	if err != nil {
		return err
	}
	rtStorage, err := g.getOrCreateComponent(derivedRightToken, gs.Hint{})
	if err != nil {
		return err
	}
	icStorage, err := g.getOrCreateComponent(derivedInvertedCoverage, gs.Hint{})
	if err != nil {
		return err
	}
	if err := ltStorage.Clear(); err != nil {
		return err
	}
	if err := rtStorage.Clear(); err != nil {
		return err
	}
	if err := icStorage.Clear(); err != nil {
		return err
	}

	worklist := make([]NodeID, 0, len(g.nodeNames))
	for n := range g.nodeNames {
		worklist = append(worklist, n)
	}
	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := worklist[0]
		worklist = worklist[1:]

		var minPos, maxPos int
		var minTok, maxTok NodeID
		found := false
		for _, cc := range coverageComponents {
			storage := g.components[cc]
			for _, tok := range storage.OutgoingEdges(n) {
				if err := icStorage.AddEdge(gs.Edge{Source: tok, Target: n}); err != nil {
					return err
				}
				pos, ok := order[tok]
				if !ok {
					continue
				}
				if !found || pos < minPos {
					minPos, minTok = pos, tok
				}
				if !found || pos > maxPos {
					maxPos, maxTok = pos, tok
				}
				found = true
			}
		}
		if found {
			if err := ltStorage.AddEdge(gs.Edge{Source: n, Target: minTok}); err != nil {
				return err
			}
			if err := rtStorage.AddEdge(gs.Edge{Source: n, Target: maxTok}); err != nil {
				return err
			}
		}
	}
	return nil
}

// tokenOrderLocked assigns every token node a position in the default
// Ordering component's total order, by walking each chain forward from
// its root (a token with no incoming Ordering edge) with a plain loop —
// never recursion, so a long sentence cannot overflow the stack. Multiple
// independent data sources simply produce multiple chains; their relative
// numbering against each other does not matter since alignment/inclusion
// operators only ever compare tokens already known to share a covering
// node.
func (g *Graph) tokenOrderLocked() (map[NodeID]int, error) {
	order := make(map[NodeID]int)
	storage, ok := g.components[DefaultOrdering]
	if !ok {
		return order, nil
	}

	var tokens []NodeID
	for n := range g.nodeNames {
		_, isToken, err := g.Anno.Get(anno.NodeItem(n), TokKey)
		if err != nil {
			return nil, err
		}
		if isToken {
			tokens = append(tokens, n)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })

	hasIncoming := make(map[NodeID]bool, len(tokens))
	for _, t := range tokens {
		for _, next := range storage.OutgoingEdges(t) {
			hasIncoming[next] = true
		}
	}

	visited := make(map[NodeID]bool, len(tokens))
	pos := 0
	for _, root := range tokens {
		if hasIncoming[root] || visited[root] {
			continue
		}
		for cur := root; !visited[cur]; {
			visited[cur] = true
			order[cur] = pos
			pos++
			next := storage.OutgoingEdges(cur)
			if len(next) == 0 {
				break
			}
			cur = next[0]
		}
	}
	// Tokens unreachable from any discovered root (an isolated token, or a
	// cycle a malformed update introduced) still need a position so range
	// comparisons never silently skip them.
	for _, t := range tokens {
		if !visited[t] {
			order[t] = pos
			pos++
			visited[t] = true
		}
	}
	return order, nil
}

// TokenRange returns n's leftmost and rightmost covered token: n itself
// when n is a token (spec invariant: "token nodes have no outgoing
// Coverage edges"), otherwise the targets of its LeftToken/RightToken
// derived edges. ok is false when n covers no token yet (e.g. a span
// created but not yet given Coverage edges).
func (g *Graph) TokenRange(n NodeID) (left, right NodeID, ok bool, err error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, isToken, err := g.Anno.Get(anno.NodeItem(n), TokKey)
	if err != nil {
		return InvalidNodeID, InvalidNodeID, false, err
	}
	if isToken {
		return n, n, true, nil
	}

	ltStorage, ltOK := g.components[derivedLeftToken]
	rtStorage, rtOK := g.components[derivedRightToken]
	if !ltOK || !rtOK {
		return InvalidNodeID, InvalidNodeID, false, nil
	}
	lt := ltStorage.OutgoingEdges(n)
	rt := rtStorage.OutgoingEdges(n)
	if len(lt) == 0 || len(rt) == 0 {
		return InvalidNodeID, InvalidNodeID, false, nil
	}
	return lt[0], rt[0], true, nil
}

// TokenPrecedesOrEqual reports whether a is the same token as b or
// precedes it in the default Ordering component, the primitive the
// inclusion/overlap/alignment operators (internal/exec) compare ranges
// with.
func (g *Graph) TokenPrecedesOrEqual(ctx context.Context, a, b NodeID) (bool, error) {
	if a == b {
		return true, nil
	}
	storage, ok := g.Storage(DefaultOrdering)
	if !ok {
		return false, nil
	}
	return storage.IsConnected(ctx, a, b, 1, -1)
}
