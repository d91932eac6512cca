// Package indexer holds the per-topic services: what to do with a book, a
// user review, or a profile once it has been decoded off the bus.
package indexer

import (
	"context"

	"github.com/dfennessey/book-recommender-indexer/internal/push"
)

// Outcome classifies how a message was handled; values match the telemetry
// label set.
type Outcome string

// Outcomes.
const (
	OutcomeIndexed   Outcome = "indexed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeDiscarded Outcome = "discarded"
	OutcomeError     Outcome = "error"
)

// BookWriter is the slice of the catalog client the book service needs.
type BookWriter interface {
	CreateBook(ctx context.Context, book push.BookV1) error
}

// ReviewCatalog is the slice of the catalog client the review service needs.
type ReviewCatalog interface {
	BooksReadByUser(ctx context.Context, userID int64) ([]int64, error)
	AddReadBook(userID, bookID int64)
	CreateReviews(ctx context.Context, reviews []push.UserReviewV1) (int, error)
}

// EnqueueCatalog is the slice of the catalog client the enqueue service needs.
type EnqueueCatalog interface {
	BookPopularity(ctx context.Context, bookIDs []int64) (map[int64]int64, error)
	AlreadyIndexed(ctx context.Context, bookIDs []int64) ([]int64, error)
}

// Ledger is the debounce ledger surface the services share.
type Ledger interface {
	MarkBookIndexed(ctx context.Context, book push.BookV1) (bool, error)
	FilterKnownBooks(ctx context.Context, bookIDs []int64) (map[int64]bool, error)
	BooksReadByUser(ctx context.Context, userID int64) ([]int64, error)
	MarkReviewsIndexed(ctx context.Context, reviews []push.UserReviewV1) error
}

// BookScrapeQueue enqueues book crawls.
type BookScrapeQueue interface {
	EnqueueBookScrape(ctx context.Context, bookID int64) (string, error)
}

// ProfileScrapeQueue enqueues profile crawls.
type ProfileScrapeQueue interface {
	EnqueueProfileScrape(ctx context.Context, userID int64) (string, error)
}
