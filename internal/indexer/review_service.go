package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dfennessey/book-recommender-indexer/internal/audit"
	"github.com/dfennessey/book-recommender-indexer/internal/catalog"
	"github.com/dfennessey/book-recommender-indexer/internal/push"
	"github.com/dfennessey/book-recommender-indexer/internal/telemetry"
)

// BookEnqueuer kicks off crawls for books that look worth indexing. The
// review service feeds it every book it sees so popular books get crawled.
type BookEnqueuer interface {
	EnqueueIfNeeded(ctx context.Context, bookIDs []int64) ([]string, error)
}

// ReviewService indexes user reviews announced on scraper-user-review-v1,
// debouncing against the ledger and the user's cached read set.
type ReviewService struct {
	catalog  ReviewCatalog
	ledger   Ledger
	enqueuer BookEnqueuer
	auditor  audit.Emitter
	logger   *zap.Logger
}

// NewReviewService constructs a ReviewService. enqueuer and auditor may be nil.
func NewReviewService(
	cat ReviewCatalog,
	led Ledger,
	enqueuer BookEnqueuer,
	auditor audit.Emitter,
	logger *zap.Logger,
) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		catalog:  cat,
		ledger:   led,
		enqueuer: enqueuer,
		auditor:  auditor,
		logger:   logger,
	}
}

// Process indexes one review unless the user already has it. Debounce order:
// local ledger first, then the TTL-cached catalog read set. Catalog 5xx while
// reading or writing bubbles up so the bus redelivers; a 4xx on write means
// the review is unindexable and the message is acked.
func (s *ReviewService) Process(ctx context.Context, review push.UserReviewV1) (Outcome, error) {
	known, err := s.ledger.BooksReadByUser(ctx, review.UserID)
	if err != nil {
		// Ledger trouble must not block indexing; the catalog check below
		// still guards correctness.
		s.logger.Error("ledger read-set lookup failed",
			zap.Int64("user_id", review.UserID), zap.Error(err))
	} else if containsID(known, review.BookID) {
		telemetry.ObserveDedupSkip("ledger")
		return OutcomeDuplicate, nil
	}

	readSet, err := s.catalog.BooksReadByUser(ctx, review.UserID)
	if err != nil {
		return OutcomeError, fmt.Errorf("read set for user %d: %w", review.UserID, err)
	}
	if containsID(readSet, review.BookID) {
		telemetry.ObserveDedupSkip("catalog")
		return OutcomeDuplicate, nil
	}

	if _, err := s.catalog.CreateReviews(ctx, []push.UserReviewV1{review}); err != nil {
		if errors.Is(err, catalog.ErrClient) {
			s.logger.Error("catalog rejected review, dropping",
				zap.Int64("user_id", review.UserID),
				zap.Int64("book_id", review.BookID),
				zap.Error(err))
			return OutcomeDiscarded, nil
		}
		return OutcomeError, fmt.Errorf("index review user=%d book=%d: %w",
			review.UserID, review.BookID, err)
	}

	if err := s.ledger.MarkReviewsIndexed(ctx, []push.UserReviewV1{review}); err != nil {
		s.logger.Error("ledger write failed after catalog success",
			zap.Int64("user_id", review.UserID), zap.Error(err))
	}
	s.catalog.AddReadBook(review.UserID, review.BookID)

	if s.auditor != nil {
		s.auditor.Emit(audit.Event{
			Kind: audit.KindUserReview,
			Item: review,
			At:   time.Now().UTC(),
		})
	}

	// A review referencing an uncrawled popular book is our cue to crawl it.
	// Enqueue trouble never fails the message.
	if s.enqueuer != nil {
		if _, err := s.enqueuer.EnqueueIfNeeded(ctx, []int64{review.BookID}); err != nil {
			s.logger.Warn("book enqueue check failed",
				zap.Int64("book_id", review.BookID), zap.Error(err))
		}
	}
	return OutcomeIndexed, nil
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
