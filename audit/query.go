// api/audit/query.go
package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	audit_errors "github.com/veritas-grc/veritas/api/errors"
	logger "github.com/veritas-grc/veritas/api/logging"
	"github.com/veritas-grc/veritas/api/util"
)

const (
	defaultPerPage = 25
	maxPerPage     = 200
)

// QueryService serves filtered pages and windowed aggregates. Read-only;
// it never touches hashes or the chain.
type QueryService struct {
	store        Store
	cacheService *util.CacheService
	validation   *util.ValidationUtil
	clock        func() time.Time
}

func NewQueryService(store Store, cacheService *util.CacheService, validation *util.ValidationUtil, eventBus *util.EventBus) *QueryService {
	service := &QueryService{
		store:        store,
		cacheService: cacheService,
		validation:   validation,
		clock:        time.Now,
	}

	if eventBus != nil {
		eventBus.Subscribe(EventAppended, service.handleEntryAppended)
	}
	return service
}

// WithClock overrides the stats window clock for testing.
func (q *QueryService) WithClock(clock func() time.Time) *QueryService {
	q.clock = clock
	return q
}

// handleEntryAppended drops cached stats windows when the ledger grows.
func (q *QueryService) handleEntryAppended(ctx context.Context, event util.Event) error {
	if err := q.cacheService.InvalidateStats(ctx); err != nil {
		logger.Warn("Failed to invalidate cached stats", zap.Error(err))
		return err
	}
	return nil
}

// List returns one page of entries matching the filter, newest first.
func (q *QueryService) List(ctx context.Context, f Filter, page, perPage int) (*Page, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", audit_errors.ErrInvalidPagination)
	}
	if perPage < 1 || perPage > maxPerPage {
		return nil, fmt.Errorf("%w: per_page must be between 1 and %d", audit_errors.ErrInvalidPagination, maxPerPage)
	}
	if f.Action != "" && !f.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", audit_errors.ErrValidation, f.Action)
	}
	if err := q.validation.ValidateDateRange(f.DateFrom, f.DateTo); err != nil {
		return nil, fmt.Errorf("%w: %v", audit_errors.ErrValidation, err)
	}

	entries, total, err := q.store.List(ctx, f, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return &Page{Entries: entries, Total: total, Page: page, PerPage: perPage}, nil
}

// Get returns a single entry by sequence.
func (q *QueryService) Get(ctx context.Context, sequence uint64) (*Entry, error) {
	return q.store.Get(ctx, sequence)
}

// Stats aggregates the trailing windowDays of entries, serving from the
// cache when a fresh aggregate exists.
func (q *QueryService) Stats(ctx context.Context, windowDays int) (*Stats, error) {
	if windowDays < 1 {
		return nil, fmt.Errorf("%w: days must be >= 1", audit_errors.ErrValidation)
	}

	var cached Stats
	hit, err := q.cacheService.GetStats(ctx, windowDays, &cached)
	if err != nil {
		logger.Warn("Stats cache read failed, falling back to store", zap.Error(err))
	} else if hit {
		return &cached, nil
	}

	since := q.clock().UTC().AddDate(0, 0, -windowDays)
	stats, err := q.store.Stats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute audit stats: %w", err)
	}

	if err := q.cacheService.SetStats(ctx, windowDays, stats); err != nil {
		logger.Warn("Failed to cache audit stats", zap.Error(err))
	}
	return stats, nil
}
