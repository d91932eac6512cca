package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dfennessey/book-recommender-indexer/internal/audit"
	"github.com/dfennessey/book-recommender-indexer/internal/push"
	"github.com/dfennessey/book-recommender-indexer/internal/telemetry"
)

func init() {
	telemetry.Init()
}

func sampleBook(id int64) push.BookV1 {
	return push.BookV1{
		BookID:     id,
		BookTitle:  "The Book",
		ScrapeTime: push.Timestamp{Time: time.Now().UTC()},
	}
}

func sampleReview(userID, bookID int64) push.UserReviewV1 {
	return push.UserReviewV1{
		UserID:     userID,
		BookID:     bookID,
		UserRating: 4,
		DateRead:   push.Timestamp{Time: time.Now().UTC()},
		ScrapeTime: push.Timestamp{Time: time.Now().UTC()},
	}
}

// fakeCatalog covers every catalog-facing interface the services consume.
type fakeCatalog struct {
	mu sync.Mutex

	createBookErr error
	createdBooks  []int64

	readSet    []int64
	readSetErr error
	addedReads [][2]int64

	createReviewsErr error
	createdReviews   []push.UserReviewV1

	popularity    map[int64]int64
	popularityErr error

	indexed    []int64
	indexedErr error
}

func (f *fakeCatalog) CreateBook(_ context.Context, book push.BookV1) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createBookErr != nil {
		return f.createBookErr
	}
	f.createdBooks = append(f.createdBooks, book.BookID)
	return nil
}

func (f *fakeCatalog) BooksReadByUser(context.Context, int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readSetErr != nil {
		return nil, f.readSetErr
	}
	return append([]int64(nil), f.readSet...), nil
}

func (f *fakeCatalog) AddReadBook(userID, bookID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addedReads = append(f.addedReads, [2]int64{userID, bookID})
}

func (f *fakeCatalog) CreateReviews(_ context.Context, reviews []push.UserReviewV1) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createReviewsErr != nil {
		return 0, f.createReviewsErr
	}
	f.createdReviews = append(f.createdReviews, reviews...)
	return len(reviews), nil
}

func (f *fakeCatalog) BookPopularity(_ context.Context, bookIDs []int64) (map[int64]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.popularityErr != nil {
		return nil, f.popularityErr
	}
	out := make(map[int64]int64, len(bookIDs))
	for _, id := range bookIDs {
		if count, ok := f.popularity[id]; ok {
			out[id] = count
		}
	}
	return out, nil
}

func (f *fakeCatalog) AlreadyIndexed(context.Context, []int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexedErr != nil {
		return nil, f.indexedErr
	}
	return append([]int64(nil), f.indexed...), nil
}

type fakeLedger struct {
	mu sync.Mutex

	bookIsNew    bool
	markBookErr  error
	markedBooks  []int64
	knownBooks   map[int64]bool
	knownErr     error
	userBooks    []int64
	userBooksErr error

	markReviewsErr error
	markedReviews  []push.UserReviewV1
}

func (f *fakeLedger) MarkBookIndexed(_ context.Context, book push.BookV1) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markBookErr != nil {
		return false, f.markBookErr
	}
	f.markedBooks = append(f.markedBooks, book.BookID)
	return f.bookIsNew, nil
}

func (f *fakeLedger) FilterKnownBooks(_ context.Context, bookIDs []int64) (map[int64]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.knownErr != nil {
		return nil, f.knownErr
	}
	out := make(map[int64]bool, len(bookIDs))
	for _, id := range bookIDs {
		if f.knownBooks[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeLedger) BooksReadByUser(context.Context, int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userBooksErr != nil {
		return nil, f.userBooksErr
	}
	return append([]int64(nil), f.userBooks...), nil
}

func (f *fakeLedger) MarkReviewsIndexed(_ context.Context, reviews []push.UserReviewV1) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markReviewsErr != nil {
		return f.markReviewsErr
	}
	f.markedReviews = append(f.markedReviews, reviews...)
	return nil
}

type fakeQueue struct {
	mu sync.Mutex

	bookErr      error
	bookScrapes  []int64
	profileErr   error
	userScrapes  []int64
	taskSequence int
}

func (f *fakeQueue) EnqueueBookScrape(_ context.Context, bookID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bookErr != nil {
		return "", f.bookErr
	}
	f.bookScrapes = append(f.bookScrapes, bookID)
	f.taskSequence++
	return fmt.Sprintf("tasks/book-%d", f.taskSequence), nil
}

func (f *fakeQueue) EnqueueProfileScrape(_ context.Context, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return "", f.profileErr
	}
	f.userScrapes = append(f.userScrapes, userID)
	f.taskSequence++
	return fmt.Sprintf("tasks/user-%d", f.taskSequence), nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (f *fakeEmitter) Emit(evt audit.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

func (f *fakeEmitter) Events() []audit.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audit.Event(nil), f.events...)
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	err   error
	calls [][]int64
}

func (f *fakeEnqueuer) EnqueueIfNeeded(_ context.Context, bookIDs []int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, append([]int64(nil), bookIDs...))
	return nil, nil
}
