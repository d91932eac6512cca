package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dfennessey/book-recommender-indexer/internal/telemetry"
)

// EnqueueService decides which books deserve a crawl and enqueues the tasks.
// A book qualifies when enough users reference it and nobody has indexed it
// yet; everything else would be a redundant crawl.
type EnqueueService struct {
	catalog   EnqueueCatalog
	ledger    Ledger
	queue     BookScrapeQueue
	threshold int64
	logger    *zap.Logger
}

// NewEnqueueService constructs an EnqueueService.
func NewEnqueueService(
	cat EnqueueCatalog,
	led Ledger,
	queue BookScrapeQueue,
	threshold int,
	logger *zap.Logger,
) *EnqueueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = 5
	}
	return &EnqueueService{
		catalog:   cat,
		ledger:    led,
		queue:     queue,
		threshold: int64(threshold),
		logger:    logger,
	}
}

// EnqueueIfNeeded filters bookIDs down to popular, unindexed books and
// enqueues a scrape task for each. Returns the created task names.
func (s *EnqueueService) EnqueueIfNeeded(ctx context.Context, bookIDs []int64) ([]string, error) {
	if len(bookIDs) == 0 {
		return nil, nil
	}

	popularity, err := s.catalog.BookPopularity(ctx, bookIDs)
	if err != nil {
		return nil, fmt.Errorf("book popularity: %w", err)
	}
	candidates := make([]int64, 0, len(bookIDs))
	for _, id := range bookIDs {
		if popularity[id] >= s.threshold {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	indexed, err := s.catalog.AlreadyIndexed(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("already indexed: %w", err)
	}
	skip := make(map[int64]bool, len(indexed))
	for _, id := range indexed {
		skip[id] = true
		telemetry.ObserveDedupSkip("catalog")
	}
	known, err := s.ledger.FilterKnownBooks(ctx, candidates)
	if err != nil {
		// The catalog exists-check already ran; the ledger is only a second
		// opinion here.
		s.logger.Error("ledger known-books lookup failed", zap.Error(err))
		known = map[int64]bool{}
	}

	var tasks []string
	for _, id := range candidates {
		if skip[id] {
			continue
		}
		if known[id] {
			telemetry.ObserveDedupSkip("ledger")
			continue
		}
		s.logger.Info("enqueueing book for crawl", zap.Int64("book_id", id))
		name, err := s.queue.EnqueueBookScrape(ctx, id)
		if err != nil {
			s.logger.Error("book scrape enqueue failed",
				zap.Int64("book_id", id), zap.Error(err))
			continue
		}
		telemetry.ObserveTaskEnqueued("book")
		tasks = append(tasks, name)
	}
	return tasks, nil
}
