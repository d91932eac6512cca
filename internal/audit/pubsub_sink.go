package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/dfennessey/book-recommender-indexer/internal/telemetry"
)

// Topics maps each audit stream to its Pub/Sub topic name.
type Topics struct {
	Book       string
	UserReview string
	Profile    string
}

// PubSubSink publishes audit events to per-kind Pub/Sub topics. The client
// honors PUBSUB_EMULATOR_HOST, so local runs land on the emulator without any
// extra wiring.
type PubSubSink struct {
	client *pubsub.Client
	topics map[Kind]*pubsub.Topic
	names  map[Kind]string
	logger *zap.Logger
}

// NewPubSubSink creates the client and topic handles.
func NewPubSubSink(ctx context.Context, projectID string, topics Topics, logger *zap.Logger) (*PubSubSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	names := map[Kind]string{
		KindBook:       topics.Book,
		KindUserReview: topics.UserReview,
		KindProfile:    topics.Profile,
	}
	handles := make(map[Kind]*pubsub.Topic, len(names))
	for kind, name := range names {
		if name == "" {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("failed to close pubsub client", zap.Error(closeErr))
			}
			return nil, fmt.Errorf("audit topic for %q is not configured", kind)
		}
		handles[kind] = client.Topic(name)
	}
	return &PubSubSink{client: client, topics: handles, names: names, logger: logger}, nil
}

// Consume publishes the batch, waiting for every publish result so a broker
// outage surfaces as an error the hub can log.
func (s *PubSubSink) Consume(ctx context.Context, batch []Event) error {
	results := make([]*pubsub.PublishResult, 0, len(batch))
	kinds := make([]Kind, 0, len(batch))
	for _, evt := range batch {
		topic, ok := s.topics[evt.Kind]
		if !ok {
			s.logger.Warn("no audit topic for event", zap.String("kind", string(evt.Kind)))
			continue
		}
		data, err := json.Marshal(evt.Item)
		if err != nil {
			s.logger.Warn("failed to marshal audit item",
				zap.String("kind", string(evt.Kind)), zap.Error(err))
			continue
		}
		results = append(results, topic.Publish(ctx, &pubsub.Message{
			Data:       data,
			Attributes: map[string]string{"kind": string(evt.Kind)},
		}))
		kinds = append(kinds, evt.Kind)
	}
	var firstErr error
	for i, result := range results {
		if _, err := result.Get(ctx); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("publish audit event: %w", err)
			}
			continue
		}
		telemetry.ObserveAuditPublished(s.names[kinds[i]], 1)
	}
	return firstErr
}

// Close stops the topic publishers and closes the client.
func (s *PubSubSink) Close(_ context.Context) error {
	for _, topic := range s.topics {
		topic.Stop()
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
