package planner

import (
	"context"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/gs"
	"github.com/graphannis-go/graphannis-core/internal/plan"
)

// Search finds a low-cost join order via random-restart local search
// (spec §4.5: "escape local minima... scored by cumulative expected
// intermediate size"), using an errgroup/semaphore-bounded work-stealing
// pool for the restarts (spec §5's parallel join-planning pool).
type Search struct {
	Model       *CostModel
	Restarts    int
	MaxParallel int
}

// NewSearch returns a Search with graphANNIS's conventional defaults.
func NewSearch(model *CostModel) *Search {
	return &Search{Model: model, Restarts: 16, MaxParallel: 4}
}

type candidate struct {
	order []int
	cost  float64
}

// placeholderStats stands in for a component's statistics while the
// search orders edges before any component is necessarily loaded; only
// assignAlgorithms (run once, after the winning order is chosen) consults
// a component's real ComponentStats.
var placeholderStats = gs.ComponentStats{Nodes: 1000, FanOut: gs.FanOutStats{Avg: 2}}

// Plan assigns base-set estimates to every node, then explores Restarts
// random join orders (each locally hill-climbed by adjacent swaps) in
// parallel, keeping the lowest-cost result.
func (s *Search) Plan(ctx context.Context, g *graph.Graph, p *plan.Plan) error {
	baseCard := make([]uint64, len(p.Nodes))
	for i, n := range p.Nodes {
		card, err := s.Model.BaseSetEstimate(n)
		if err != nil {
			return err
		}
		baseCard[i] = card
	}

	if len(p.Edges) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(int64(max1(s.MaxParallel)))
	eg, egctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	best := candidate{order: append([]int(nil), p.JoinOrder...), cost: evaluateOrder(p, p.JoinOrder, baseCard)}

	restarts := s.Restarts
	if restarts < 1 {
		restarts = 1
	}
	for r := 0; r < restarts; r++ {
		seed := int64(r) + 1
		eg.Go(func() error {
			if err := sem.Acquire(egctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			order := randomOrder(len(p.Edges), seed)
			cost := hillClimb(p, order, baseCard)

			mu.Lock()
			if cost < best.cost {
				best = candidate{order: order, cost: cost}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	p.JoinOrder = best.order
	assignAlgorithms(g, p, baseCard)
	return nil
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func randomOrder(n int, seed int64) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rnd := rand.New(rand.NewSource(seed))
	rnd.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

// evaluateOrder sums the expected intermediate size of evaluating edges in
// the given order — the cumulative-cost metric spec §4.5 scores join
// trees by, using placeholderStats since the real component may not be
// loaded until assignAlgorithms runs on the winning order.
func evaluateOrder(p *plan.Plan, order []int, baseCard []uint64) float64 {
	var running, total float64
	for _, edgeIdx := range order {
		edge := p.Edges[edgeIdx]
		lhsCard := float64(baseCard[edge.Op.LHS-1])
		sel := Selectivity(edge.Op, placeholderStats)
		if running == 0 {
			running = lhsCard
		}
		running *= sel
		if running < 1 {
			running = 1
		}
		total += running
	}
	return total
}

// hillClimb locally improves order by adjacent-pair swaps until no swap
// reduces cost, a cheap local search around each random restart.
func hillClimb(p *plan.Plan, order []int, baseCard []uint64) float64 {
	cost := evaluateOrder(p, order, baseCard)
	improved := true
	for improved {
		improved = false
		for i := 0; i < len(order)-1; i++ {
			order[i], order[i+1] = order[i+1], order[i]
			newCost := evaluateOrder(p, order, baseCard)
			if newCost < cost {
				cost = newCost
				improved = true
			} else {
				order[i], order[i+1] = order[i+1], order[i]
			}
		}
	}
	return cost
}

// assignAlgorithms resolves each edge's component against real graph
// storage statistics, choosing index-nested-loop vs. nested-loop and
// parallel evaluation (spec §4.5).
func assignAlgorithms(g *graph.Graph, p *plan.Plan, baseCard []uint64) {
	for i := range p.Edges {
		edge := &p.Edges[i]
		c := plan.Component(edge.Op)
		storage, loaded := g.Storage(c)
		outer := baseCard[edge.Op.LHS-1]
		alg, parallel := ChooseAlgorithm(loaded, outer)
		edge.Algorithm = alg
		edge.Parallel = parallel
		if loaded {
			edge.ExpectedIntermediateSize = float64(outer) * Selectivity(edge.Op, storage.Stats())
		} else {
			edge.ExpectedIntermediateSize = float64(outer)
		}
	}
}
