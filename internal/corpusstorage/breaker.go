package corpusstorage

import (
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

// newOpenBreaker wraps repeated failed corpus opens with a circuit
// breaker, so a corrupted or otherwise unopenable corpus directory does
// not get retried by every caller in a hot loop (spec
// §4.7, DESIGN.md).
//
// Grounded on internal/middleware/circuit_breaker.go (teacher), moved
// from an HTTP-handler middleware to wrapping openCorpusDir; the
// failure-ratio ReadyToTrip function is carried over unchanged in shape.
// AlreadyLocked is deliberately not counted as a breaker failure (spec
// §7: it is a lifecycle signal, not a transient fault) — every other open
// error (StorageIO, Corrupted, or LoadingFailed from WAL replay) counts
// toward tripping.
func newOpenBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker[*corpusEntry] {
	return gobreaker.NewCircuitBreaker[*corpusEntry](gobreaker.Settings{
		Name:        "corpus-open:" + name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		// AlreadyLocked is a lifecycle signal (another process holds the
		// corpus), not a transient disk fault, so it must not count
		// toward tripping the breaker (spec §7).
		IsSuccessful: func(err error) bool {
			return err == nil || goerrors.IsAlreadyLocked(err)
		},
		OnStateChange: func(n string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("corpus-open circuit breaker state change",
				zap.String("corpus", n), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

// breakerOpen runs open through cb, translating gobreaker.ErrOpenState
// into this module's LoadingFailed kind (spec §7) once repeated failed
// opens have tripped the breaker.
func breakerOpen(cb *gobreaker.CircuitBreaker[*corpusEntry], open func() (*corpusEntry, error)) (*corpusEntry, error) {
	entry, err := cb.Execute(open)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, goerrors.NewLoadingFailed("corpus open circuit breaker is open: "+err.Error(), err)
	}
	return entry, err
}
