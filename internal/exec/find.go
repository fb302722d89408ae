package exec

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/graphannis-go/graphannis-core/internal/graph/anno"
)

var tracer = otel.Tracer("github.com/graphannis-go/graphannis-core/internal/exec")

// FindOptions bounds and orders a Find call (spec §4.6).
type FindOptions struct {
	Offset int
	Limit  int // 0 means unlimited
	Sort   SortOptions
}

// Find drains m to completion, sorts the result by spec §4.6's stable
// ordering, and returns the [Offset, Offset+Limit) page. Pagination law
// (spec §8 property 7): concatenating successive pages of size Limit
// reproduces the unpaginated order, since the full set is sorted once
// before slicing.
func Find(ctx context.Context, store anno.Store, m Matches, opts FindOptions) ([]Tuple, error) {
	ctx, span := tracer.Start(ctx, "exec.Find")
	defer span.End()

	var all []Tuple
	for {
		t, ok, err := m.Next(ctx)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if !ok {
			break
		}
		all = append(all, t)
	}
	span.SetAttributes(attribute.Int("exec.match_count", len(all)))

	sortOpts := opts.Sort
	if sortOpts.MemoryReservation == 0 {
		defaults := DefaultSortOptions()
		sortOpts.MemoryReservation = defaults.MemoryReservation
		if sortOpts.Locale == (SortOptions{}).Locale {
			sortOpts.Locale = defaults.Locale
		}
	}
	sorted, err := SortTuples(ctx, store, all, sortOpts)
	if err != nil {
		return nil, err
	}

	start := opts.Offset
	if start > len(sorted) {
		start = len(sorted)
	}
	end := len(sorted)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return sorted[start:end], nil
}
