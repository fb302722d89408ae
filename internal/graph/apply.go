package graph

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
	"github.com/graphannis-go/graphannis-core/internal/graph/gs"
	"github.com/graphannis-go/graphannis-core/internal/update"
	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

var tracer = otel.Tracer("github.com/graphannis-go/graphannis-core/internal/graph")

// ApplyUpdate is the single mutation entrypoint of spec §4.3: write the
// batch to the WAL, apply it to the annotation store and graph storages,
// recompute derived indexes and statistics unless keepStatistics is set,
// then fsync and truncate the WAL. A failure partway through leaves the
// WAL intact for the next Open's replay.
func (g *Graph) ApplyUpdate(ctx context.Context, wal *update.WAL, batch update.Batch, keepStatistics bool) error {
	ctx, span := tracer.Start(ctx, "graph.ApplyUpdate",
		trace.WithAttributes(attribute.Int("graph.event_count", len(batch.Events))))
	defer span.End()

	if err := wal.Write(batch); err != nil {
		span.RecordError(err)
		return err
	}

	g.mu.Lock()
	touched := make(map[Component]bool)
	for _, ev := range batch.Events {
		if err := g.applyOne(ev, touched); err != nil {
			g.mu.Unlock()
			span.RecordError(err)
			return err // WAL left intact; next Open replays from here
		}
	}
	g.mu.Unlock()

	if !keepStatistics {
		if err := g.recomputeDerived(ctx, touched); err != nil {
			span.RecordError(err)
			return err
		}
	}

	return wal.Commit()
}

// Replay re-applies every event left in wal (non-empty only after a crash
// mid-ApplyUpdate) without re-writing it, then commits.
func (g *Graph) Replay(ctx context.Context, wal *update.WAL) error {
	events, err := wal.Replay()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	g.mu.Lock()
	touched := make(map[Component]bool)
	for _, ev := range events {
		if err := g.applyOne(ev, touched); err != nil {
			g.mu.Unlock()
			return err
		}
	}
	g.mu.Unlock()
	if err := g.recomputeDerived(ctx, touched); err != nil {
		return err
	}
	return wal.Commit()
}

func (g *Graph) applyOne(ev update.Event, touched map[Component]bool) error {
	switch e := ev.(type) {
	case update.AddNode:
		if _, ok, err := g.resolveNode(e.Name); err != nil {
			return err
		} else if ok {
			return nil // duplicate add is a no-op
		}
		id := g.nextNode
		g.nextNode++
		if err := g.Anno.Set(anno.NodeItem(id), NodeNameKey, e.Name); err != nil {
			return err
		}
		if e.Type != "" {
			if err := g.Anno.Set(anno.NodeItem(id), NodeTypeKey, e.Type); err != nil {
				return err
			}
		}
		g.nodeNames[id] = e.Name
		return nil

	case update.DeleteNode:
		id, ok, err := g.resolveNode(e.Name)
		if err != nil {
			return err
		}
		if !ok {
			return nil // absent is a no-op
		}
		if err := g.deleteNodeAndIncidentEdges(id, touched); err != nil {
			return err
		}
		return g.Anno.RemoveItem(anno.NodeItem(id))

	case update.AddNodeLabel:
		id, err := g.ensureNode(e.Name)
		if err != nil {
			return err
		}
		return g.Anno.Set(anno.NodeItem(id), AnnoKey{NS: e.NS, Name: e.Key}, e.Value)

	case update.DeleteNodeLabel:
		id, ok, err := g.resolveNode(e.Name)
		if err != nil || !ok {
			return err
		}
		return g.Anno.Remove(anno.NodeItem(id), AnnoKey{NS: e.NS, Name: e.Key})

	case update.AddEdge:
		src, err := g.ensureNode(e.Source)
		if err != nil {
			return err
		}
		tgt, err := g.ensureNode(e.Target)
		if err != nil {
			return err
		}
		c := Component{Type: ComponentType(e.CType), Layer: e.Layer, Name: e.CName}
		storage, err := g.getOrCreateComponent(c, gs.Hint{})
		if err != nil {
			return err
		}
		if err := storage.AddEdge(gs.Edge{Source: src, Target: tgt}); err != nil {
			return err
		}
		eid := EdgeID{Component: c, Source: src, Target: tgt}
		for key, value := range e.Labels {
			ns, name := splitAnnoKey(key)
			if err := g.Anno.Set(anno.EdgeItem(eid), AnnoKey{NS: ns, Name: name}, value); err != nil {
				return err
			}
			if err := storage.AddEdgeAnnotation(gs.Edge{Source: src, Target: tgt}, AnnoKey{NS: ns, Name: name}, value); err != nil {
				return err
			}
		}
		touched[c] = true
		return nil

	case update.DeleteEdge:
		src, ok1, err := g.resolveNode(e.Source)
		if err != nil {
			return err
		}
		tgt, ok2, err := g.resolveNode(e.Target)
		if err != nil {
			return err
		}
		if !ok1 || !ok2 {
			return nil
		}
		c := Component{Type: ComponentType(e.CType), Layer: e.Layer, Name: e.CName}
		storage, ok := g.Storage(c)
		if !ok {
			return nil
		}
		eid := EdgeID{Component: c, Source: src, Target: tgt}
		if err := g.Anno.RemoveItem(anno.EdgeItem(eid)); err != nil {
			return err
		}
		touched[c] = true
		return storage.DeleteEdge(gs.Edge{Source: src, Target: tgt})

	case update.AddEdgeLabel:
		src, err := g.ensureNode(e.Source)
		if err != nil {
			return err
		}
		tgt, err := g.ensureNode(e.Target)
		if err != nil {
			return err
		}
		c := Component{Type: ComponentType(e.CType), Layer: e.Layer, Name: e.CName}
		storage, err := g.getOrCreateComponent(c, gs.Hint{})
		if err != nil {
			return err
		}
		eid := EdgeID{Component: c, Source: src, Target: tgt}
		key := AnnoKey{NS: e.NS, Name: e.Key}
		if err := g.Anno.Set(anno.EdgeItem(eid), key, e.Value); err != nil {
			return err
		}
		return storage.AddEdgeAnnotation(gs.Edge{Source: src, Target: tgt}, key, e.Value)

	case update.DeleteEdgeLabel:
		src, ok1, err := g.resolveNode(e.Source)
		if err != nil {
			return err
		}
		tgt, ok2, err := g.resolveNode(e.Target)
		if err != nil {
			return err
		}
		if !ok1 || !ok2 {
			return nil
		}
		c := Component{Type: ComponentType(e.CType), Layer: e.Layer, Name: e.CName}
		storage, ok := g.Storage(c)
		if !ok {
			return nil
		}
		eid := EdgeID{Component: c, Source: src, Target: tgt}
		key := AnnoKey{NS: e.NS, Name: e.Key}
		if err := g.Anno.Remove(anno.EdgeItem(eid), key); err != nil {
			return err
		}
		return storage.DeleteEdgeAnnotation(gs.Edge{Source: src, Target: tgt}, key)

	default:
		return goerrors.NewInvalidUpdate("unknown update event type")
	}
}

// deleteNodeAndIncidentEdges removes every edge touching id across every
// loaded component. Graph storages only expose outgoing adjacency, so
// incoming edges are found by scanning every other known node's outgoing
// set; acceptable because DeleteNode is rare relative to read traffic.
func (g *Graph) deleteNodeAndIncidentEdges(id NodeID, touched map[Component]bool) error {
	for c, storage := range g.components {
		for _, t := range storage.OutgoingEdges(id) {
			eid := EdgeID{Component: c, Source: id, Target: t}
			if err := g.Anno.RemoveItem(anno.EdgeItem(eid)); err != nil {
				return err
			}
			if err := storage.DeleteEdge(gs.Edge{Source: id, Target: t}); err != nil {
				return err
			}
			touched[c] = true
		}
		for other := range g.nodeNames {
			if other == id {
				continue
			}
			for _, t := range storage.OutgoingEdges(other) {
				if t != id {
					continue
				}
				eid := EdgeID{Component: c, Source: other, Target: id}
				if err := g.Anno.RemoveItem(anno.EdgeItem(eid)); err != nil {
					return err
				}
				if err := storage.DeleteEdge(gs.Edge{Source: other, Target: id}); err != nil {
					return err
				}
				touched[c] = true
			}
		}
	}
	delete(g.nodeNames, id)
	return nil
}

// recomputeDerived re-establishes every derived index touched by this
// batch and recalculates per-component statistics (spec §4.3 step 3:
// "recompute derived indexes... and per-component statistics unless
// keep_statistics is set"). LeftToken, RightToken and InvertedCoverage are
// rebuilt from the current Coverage edges whenever a Coverage or PartOf
// component changed (spec §3 Lifecycle, §4.2 "Write-path for updates");
// CalculateStatistics is what the planner's cost model (internal/planner)
// reads.
func (g *Graph) recomputeDerived(ctx context.Context, touched map[Component]bool) error {
	g.mu.Lock()
	coverageTouched := false
	for c := range touched {
		if c.Type == Coverage || c.Type == PartOf {
			coverageTouched = true
			break
		}
	}
	if coverageTouched {
		if err := g.rebuildCoverageDerivedLocked(ctx); err != nil {
			g.mu.Unlock()
			return err
		}
		touched[derivedLeftToken] = true
		touched[derivedRightToken] = true
		touched[derivedInvertedCoverage] = true
	}
	cs := make([]gs.WriteableGraphStorage, 0, len(touched))
	for c := range touched {
		if s, ok := g.components[c]; ok {
			cs = append(cs, s)
		}
	}
	g.mu.Unlock()

	for _, s := range cs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.CalculateStatistics(); err != nil {
			return err
		}
	}
	return nil
}

func splitAnnoKey(flat string) (ns, name string) {
	for i := 0; i < len(flat)-1; i++ {
		if flat[i] == ':' && flat[i+1] == ':' {
			return flat[:i], flat[i+2:]
		}
	}
	return "", flat
}
