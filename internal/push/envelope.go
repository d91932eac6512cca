// Package push models the HTTP bodies Pub/Sub delivers to push subscribers.
//
// The bus POSTs an envelope of roughly this shape, with the payload base64
// encoded inside it:
//
//	{
//	    "message": {
//	        "attributes": {"key": "value"},
//	        "data": "SGVsbG8gQ2xvdWQgUHViL1N1YiEgSGVyZSBpcyBteSBtZXNzYWdlIQ==",
//	        "message_id": "2070443601311540",
//	        "publish_time": "2021-02-26T19:13:55.749Z"
//	    },
//	    "subscription": "projects/myproject/subscriptions/mysubscription"
//	}
package push

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
)

// ErrBadEnvelope marks bodies that are not a valid push envelope. Handlers
// should answer these with a non-2xx so the bus knows delivery failed.
var ErrBadEnvelope = errors.New("push: bad envelope")

// ErrBadPayload marks envelopes whose inner data cannot become a valid item.
// Handlers should ack these; redelivery cannot fix a malformed payload.
var ErrBadPayload = errors.New("push: bad payload")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Message is the inner Pub/Sub message. Data stays base64 encoded until a
// typed decode is requested so envelope and payload failures stay distinct.
type Message struct {
	Attributes  map[string]string `json:"attributes"`
	Data        string            `json:"data"`
	MessageID   string            `json:"message_id"`
	PublishTime string            `json:"publish_time"`
}

// Envelope is the full push delivery body.
type Envelope struct {
	Message      Message `json:"message"`
	Subscription string  `json:"subscription"`
}

// ReadEnvelope decodes a push request body into an Envelope.
func ReadEnvelope(body io.Reader) (Envelope, error) {
	var env Envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("%w: decode body: %w", ErrBadEnvelope, err)
	}
	if env.Message.Data == "" {
		return Envelope{}, fmt.Errorf("%w: message.data is required", ErrBadEnvelope)
	}
	if env.Message.MessageID == "" {
		return Envelope{}, fmt.Errorf("%w: message.message_id is required", ErrBadEnvelope)
	}
	return env, nil
}

// DecodePayload unpacks the base64 data into v and validates it. Failures are
// wrapped in ErrBadPayload: the envelope was fine, the item inside was not.
func (e Envelope) DecodePayload(v any) error {
	raw, err := base64.StdEncoding.DecodeString(e.Message.Data)
	if err != nil {
		return fmt.Errorf("%w: base64: %w", ErrBadPayload, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: json: %w", ErrBadPayload, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: validate: %w", ErrBadPayload, err)
	}
	return nil
}
