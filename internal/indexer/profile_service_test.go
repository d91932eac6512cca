package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dfennessey/book-recommender-indexer/internal/audit"
	"github.com/dfennessey/book-recommender-indexer/internal/push"
)

func TestProfileServiceEnqueuesScrape(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	emitter := &fakeEmitter{}
	svc := NewProfileService(queue, emitter, nil)

	name, err := svc.Process(context.Background(), push.ProfileV1{UserID: 7})
	require.NoError(t, err)
	require.Equal(t, "tasks/user-1", name)
	require.Equal(t, []int64{7}, queue.userScrapes)

	events := emitter.Events()
	require.Len(t, events, 1)
	require.Equal(t, audit.KindProfile, events[0].Kind)
}

func TestProfileServiceEnqueueErrorBubbles(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{profileErr: fmt.Errorf("queue down")}
	emitter := &fakeEmitter{}
	svc := NewProfileService(queue, emitter, nil)

	_, err := svc.Process(context.Background(), push.ProfileV1{UserID: 7})
	require.Error(t, err)
	require.Empty(t, emitter.Events(), "failed enqueues must not be audited")
}
