package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dfennessey/book-recommender-indexer/internal/audit"
	"github.com/dfennessey/book-recommender-indexer/internal/catalog"
)

func TestReviewServiceIndexesNewReview(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{}
	led := &fakeLedger{}
	enqueuer := &fakeEnqueuer{}
	emitter := &fakeEmitter{}
	svc := NewReviewService(cat, led, enqueuer, emitter, nil)

	outcome, err := svc.Process(context.Background(), sampleReview(7, 42))
	require.NoError(t, err)
	require.Equal(t, OutcomeIndexed, outcome)
	require.Len(t, cat.createdReviews, 1)
	require.Len(t, led.markedReviews, 1)
	require.Equal(t, [][2]int64{{7, 42}}, cat.addedReads)

	events := emitter.Events()
	require.Len(t, events, 1)
	require.Equal(t, audit.KindUserReview, events[0].Kind)

	require.Equal(t, [][]int64{{42}}, enqueuer.calls,
		"every indexed review feeds the popularity check")
}

func TestReviewServiceLedgerDuplicate(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{}
	led := &fakeLedger{userBooks: []int64{42}}
	svc := NewReviewService(cat, led, nil, nil, nil)

	outcome, err := svc.Process(context.Background(), sampleReview(7, 42))
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, outcome)
	require.Empty(t, cat.createdReviews, "the ledger hit must short-circuit the catalog")
}

func TestReviewServiceCatalogDuplicate(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{readSet: []int64{42}}
	led := &fakeLedger{}
	svc := NewReviewService(cat, led, nil, nil, nil)

	outcome, err := svc.Process(context.Background(), sampleReview(7, 42))
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, outcome)
	require.Empty(t, cat.createdReviews)
}

func TestReviewServiceLedgerFailureDegradesToCatalog(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{}
	led := &fakeLedger{userBooksErr: fmt.Errorf("connection refused")}
	svc := NewReviewService(cat, led, nil, nil, nil)

	outcome, err := svc.Process(context.Background(), sampleReview(7, 42))
	require.NoError(t, err, "ledger trouble must not block indexing")
	require.Equal(t, OutcomeIndexed, outcome)
}

func TestReviewServiceReadSetErrorBubbles(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{readSetErr: fmt.Errorf("%w: boom", catalog.ErrServer)}
	svc := NewReviewService(cat, &fakeLedger{}, nil, nil, nil)

	outcome, err := svc.Process(context.Background(), sampleReview(7, 42))
	require.Error(t, err)
	require.Equal(t, OutcomeError, outcome)
}

func TestReviewServiceDiscardsRejectedReview(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{createReviewsErr: fmt.Errorf("%w: bad review", catalog.ErrClient)}
	svc := NewReviewService(cat, &fakeLedger{}, nil, nil, nil)

	outcome, err := svc.Process(context.Background(), sampleReview(7, 42))
	require.NoError(t, err)
	require.Equal(t, OutcomeDiscarded, outcome)
}

func TestReviewServiceCreateServerErrorBubbles(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{createReviewsErr: fmt.Errorf("%w: boom", catalog.ErrServer)}
	svc := NewReviewService(cat, &fakeLedger{}, nil, nil, nil)

	outcome, err := svc.Process(context.Background(), sampleReview(7, 42))
	require.Error(t, err)
	require.Equal(t, OutcomeError, outcome)
}

func TestReviewServiceEnqueueFailureDoesNotFailMessage(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{}
	enqueuer := &fakeEnqueuer{err: fmt.Errorf("queue down")}
	svc := NewReviewService(cat, &fakeLedger{}, enqueuer, nil, nil)

	outcome, err := svc.Process(context.Background(), sampleReview(7, 42))
	require.NoError(t, err)
	require.Equal(t, OutcomeIndexed, outcome)
}
