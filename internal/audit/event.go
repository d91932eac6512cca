// Package audit mirrors every indexed item onto Pub/Sub audit topics. The
// hub buffers and batches events so request handlers never wait on the bus.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind identifies which audit stream an event belongs to.
type Kind string

// The three audit streams, one per inbound topic.
const (
	KindBook       Kind = "book"
	KindUserReview Kind = "user_review"
	KindProfile    Kind = "profile"
)

// Event is one indexed item headed for an audit topic. Item must marshal to
// JSON; it is published verbatim as the message payload.
type Event struct {
	Kind Kind
	Item any
	At   time.Time
}

// Validate rejects events the sinks could not place.
func (e Event) Validate() error {
	switch e.Kind {
	case KindBook, KindUserReview, KindProfile:
	default:
		return fmt.Errorf("unknown audit kind %q", e.Kind)
	}
	if e.Item == nil {
		return errors.New("audit event requires an item")
	}
	return nil
}

// Sink consumes batches of audit events. Implementations must be safe for
// repeated calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// indexing services stay agnostic about buffering and transport.
type Emitter interface {
	Emit(evt Event)
}
