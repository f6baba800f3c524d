package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Phase names the orchestrator's progress through one comparison
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDispatching Phase = "dispatching"
	PhaseCollecting  Phase = "collecting"
	PhaseFiltering   Phase = "filtering"
	PhaseRanking     Phase = "ranking"
	PhaseDone        Phase = "done"
)

// Batch and timeout defaults per search breadth
const (
	DefaultBroadBatchSize    = 25
	DefaultTargetedBatchSize = 5
	DefaultBroadTimeout      = 45 * time.Second
	DefaultTargetedTimeout   = 15 * time.Second
)

// ComparisonConfig holds configuration for the comparison service
type ComparisonConfig struct {
	BroadBatchSize    int
	TargetedBatchSize int
	BroadTimeout      time.Duration
	TargetedTimeout   time.Duration
}

// ComparisonService fans a query out to retailer strategies and turns the
// raw results into one filtered, deduplicated and ranked list.
type ComparisonService struct {
	provider domain.StrategyProvider
	filter   *FilterService
	cfg      ComparisonConfig
}

// NewComparisonService creates a comparison service with dependencies
func NewComparisonService(provider domain.StrategyProvider, filter *FilterService, cfg ComparisonConfig) *ComparisonService {
	if cfg.BroadBatchSize <= 0 {
		cfg.BroadBatchSize = DefaultBroadBatchSize
	}
	if cfg.TargetedBatchSize <= 0 {
		cfg.TargetedBatchSize = DefaultTargetedBatchSize
	}
	if cfg.BroadTimeout <= 0 {
		cfg.BroadTimeout = DefaultBroadTimeout
	}
	if cfg.TargetedTimeout <= 0 {
		cfg.TargetedTimeout = DefaultTargetedTimeout
	}
	if filter == nil {
		filter = NewFilterService(FilterConfig{})
	}
	return &ComparisonService{provider: provider, filter: filter, cfg: cfg}
}

// Compare runs q against every selected retailer.
// Flow: validate -> dispatch batches -> collect -> filter -> dedupe -> rank
func (s *ComparisonService) Compare(ctx context.Context, q domain.Query) ([]domain.ProductRecord, error) {
	if q.Name == "" && q.Barcode == "" {
		return nil, fmt.Errorf("%w: product name or barcode is required", domain.ErrInvalidRequest)
	}
	started := time.Now()
	s.phase(PhaseIdle, q)

	ids := s.retailerIDs(q)
	batchSize, timeout := s.cfg.TargetedBatchSize, s.cfg.TargetedTimeout
	if q.Broad {
		batchSize, timeout = s.cfg.BroadBatchSize, s.cfg.BroadTimeout
	}
	if q.Timeout > 0 && q.Timeout < timeout {
		timeout = q.Timeout
	}

	var raw []domain.ProductRecord
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		s.phase(PhaseDispatching, q)
		batch := s.runBatch(ctx, ids[start:end], q, timeout)
		s.phase(PhaseCollecting, q)
		for _, records := range batch {
			raw = append(raw, records...)
		}
	}

	s.phase(PhaseFiltering, q)
	filtered := Dedupe(s.filter.Filter(raw, q))

	s.phase(PhaseRanking, q)
	ranked := Rank(filtered, q)

	s.phase(PhaseDone, q)
	log.Info().
		Str("term", q.Term()).
		Int("retailers", len(ids)).
		Int("raw", len(raw)).
		Int("results", len(ranked)).
		Dur("elapsed", time.Since(started)).
		Msg("[COMPARE] comparison finished")
	return ranked, nil
}

// retailerIDs returns the query's stores without duplicates, or every
// default retailer when none were selected.
func (s *ComparisonService) retailerIDs(q domain.Query) []string {
	if len(q.StoreIDs) == 0 {
		return s.provider.DefaultIDs()
	}
	seen := make(map[string]bool, len(q.StoreIDs))
	ids := make([]string, 0, len(q.StoreIDs))
	for _, id := range q.StoreIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// runBatch launches one goroutine per retailer and waits for all of them.
// Members always return nil so one failing retailer never cancels the rest.
func (s *ComparisonService) runBatch(ctx context.Context, ids []string, q domain.Query, timeout time.Duration) [][]domain.ProductRecord {
	results := make([][]domain.ProductRecord, len(ids))
	var g errgroup.Group

	for i, id := range ids {
		g.Go(func() error {
			strat := s.provider.Build(id, q.Limit)
			if strat == nil {
				log.Warn().Err(domain.ErrUnknownRetailer).Str("retailer", id).Msg("[COMPARE] retailer skipped")
				return nil
			}
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			results[i] = search(callCtx, id, strat, q)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// search runs one strategy, resolving to nil when the context ends first
// or the strategy panics.
func search(ctx context.Context, id string, strat domain.Strategy, q domain.Query) []domain.ProductRecord {
	done := make(chan []domain.ProductRecord, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("retailer", id).Interface("panic", r).Msg("[COMPARE] strategy panicked")
				done <- nil
			}
		}()
		done <- strat.Search(ctx, q)
	}()

	select {
	case records := <-done:
		log.Debug().Str("retailer", id).Str("method", string(strat.Method())).Int("count", len(records)).Msg("[COMPARE] strategy finished")
		return records
	case <-ctx.Done():
		log.Warn().Str("retailer", id).Err(ctx.Err()).Msg("[COMPARE] strategy timed out")
		return nil
	}
}

func (s *ComparisonService) phase(p Phase, q domain.Query) {
	log.Debug().Str("phase", string(p)).Str("term", q.Term()).Msg("[COMPARE] phase")
}
