package exec

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/graphannis-go/graphannis-core/internal/graph"
	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
)

// CountResult is spec §4.6's `count`: the total match count plus the
// number of distinct document containers the matches fall in.
type CountResult struct {
	MatchCount    int
	DocumentCount int
}

// Count drains m fully. Testable property 6 (spec §8) requires
// Count(C,Q).MatchCount == len(Find(C,Q,0,unbounded)); both walk the same
// iterator contract so this holds by construction.
func Count(ctx context.Context, store anno.Store, m Matches) (CountResult, error) {
	ctx, span := tracer.Start(ctx, "exec.Count")
	defer span.End()

	docs := make(map[string]struct{})
	var res CountResult
	for {
		t, ok, err := m.Next(ctx)
		if err != nil {
			span.RecordError(err)
			return res, err
		}
		if !ok {
			break
		}
		res.MatchCount++
		if doc, ok, err := representativeDocument(store, t); err != nil {
			return res, err
		} else if ok {
			docs[doc] = struct{}{}
		}
	}
	res.DocumentCount = len(docs)
	span.SetAttributes(
		attribute.Int("exec.match_count", res.MatchCount),
		attribute.Int("exec.document_count", res.DocumentCount),
	)
	return res, nil
}

func representativeDocument(store anno.Store, t Tuple) (string, bool, error) {
	for _, m := range t {
		if isEmpty(m) {
			continue
		}
		name, ok, err := store.Get(anno.NodeItem(m.Node), graph.NodeNameKey)
		if err != nil {
			return "", false, err
		}
		if ok {
			return documentPath(name), true, nil
		}
	}
	return "", false, nil
}
