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

// BookService indexes books announced on scraper-book-v1.
type BookService struct {
	catalog BookWriter
	ledger  Ledger
	auditor audit.Emitter
	logger  *zap.Logger
}

// NewBookService constructs a BookService. auditor may be nil.
func NewBookService(cat BookWriter, led Ledger, auditor audit.Emitter, logger *zap.Logger) *BookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookService{catalog: cat, ledger: led, auditor: auditor, logger: logger}
}

// Process writes the book to the catalog, records it in the ledger, and
// emits an audit event. A 4xx from the catalog yields OutcomeDiscarded with a
// nil error: the payload will never succeed, so the message must be acked.
func (s *BookService) Process(ctx context.Context, book push.BookV1) (Outcome, error) {
	if err := s.catalog.CreateBook(ctx, book); err != nil {
		if errors.Is(err, catalog.ErrClient) {
			s.logger.Error("catalog rejected book, dropping",
				zap.Int64("book_id", book.BookID), zap.Error(err))
			return OutcomeDiscarded, nil
		}
		return OutcomeError, fmt.Errorf("index book %d: %w", book.BookID, err)
	}

	outcome := OutcomeIndexed
	isNew, err := s.ledger.MarkBookIndexed(ctx, book)
	if err != nil {
		// The catalog write succeeded and PUT is idempotent; a ledger miss
		// only costs one future debounce, so ack anyway.
		s.logger.Error("ledger write failed after catalog success",
			zap.Int64("book_id", book.BookID), zap.Error(err))
	} else if !isNew {
		outcome = OutcomeDuplicate
		telemetry.ObserveDedupSkip("ledger")
	}

	if s.auditor != nil {
		s.auditor.Emit(audit.Event{Kind: audit.KindBook, Item: book, At: time.Now().UTC()})
	}
	return outcome, nil
}
