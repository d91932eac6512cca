package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dfennessey/book-recommender-indexer/internal/audit"
	"github.com/dfennessey/book-recommender-indexer/internal/push"
	"github.com/dfennessey/book-recommender-indexer/internal/telemetry"
)

// ProfileService turns profile announcements into user-review crawl tasks.
// There is nothing to store for a bare profile; the value is the crawl it
// triggers, and Cloud Tasks task naming debounces repeats.
type ProfileService struct {
	queue   ProfileScrapeQueue
	auditor audit.Emitter
	logger  *zap.Logger
}

// NewProfileService constructs a ProfileService. auditor may be nil.
func NewProfileService(queue ProfileScrapeQueue, auditor audit.Emitter, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{queue: queue, auditor: auditor, logger: logger}
}

// Process enqueues a scrape of the user's reviews and returns the task name.
func (s *ProfileService) Process(ctx context.Context, profile push.ProfileV1) (string, error) {
	s.logger.Info("enqueueing profile scrape", zap.Int64("user_id", profile.UserID))
	name, err := s.queue.EnqueueProfileScrape(ctx, profile.UserID)
	if err != nil {
		return "", fmt.Errorf("enqueue profile %d: %w", profile.UserID, err)
	}
	telemetry.ObserveTaskEnqueued("user_reviews")
	if s.auditor != nil {
		s.auditor.Emit(audit.Event{
			Kind: audit.KindProfile,
			Item: profile,
			At:   time.Now().UTC(),
		})
	}
	return name, nil
}
