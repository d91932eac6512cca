package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dfennessey/book-recommender-indexer/internal/indexer"
	"github.com/dfennessey/book-recommender-indexer/internal/push"
	"github.com/dfennessey/book-recommender-indexer/internal/telemetry"
)

// Push endpoint status contract:
//
//	malformed envelope        -> 422, the subscription is misconfigured
//	payload that can't decode -> 200, redelivery would never help
//	transient downstream fail -> 500, the bus redelivers
//	anything else             -> 200 ack
func (s *Server) handleBookPush(w http.ResponseWriter, r *http.Request) {
	env, ok := s.readEnvelope(w, r)
	if !ok {
		return
	}

	var book push.BookV1
	if !s.decodePayload(w, r, env, s.cfg.PubSub.BookTopic, &book) {
		return
	}

	outcome, err := s.deps.Books.Process(r.Context(), book)
	s.finishPush(w, r, s.cfg.PubSub.BookTopic, env.Message.MessageID, outcome, err)
}

func (s *Server) handleReviewPush(w http.ResponseWriter, r *http.Request) {
	env, ok := s.readEnvelope(w, r)
	if !ok {
		return
	}

	var review push.UserReviewV1
	if !s.decodePayload(w, r, env, s.cfg.PubSub.UserReviewTopic, &review) {
		return
	}

	outcome, err := s.deps.Reviews.Process(r.Context(), review)
	s.finishPush(w, r, s.cfg.PubSub.UserReviewTopic, env.Message.MessageID, outcome, err)
}

func (s *Server) handleProfilePush(w http.ResponseWriter, r *http.Request) {
	env, ok := s.readEnvelope(w, r)
	if !ok {
		return
	}

	var profile push.ProfileV1
	if !s.decodePayload(w, r, env, s.cfg.PubSub.ProfileTopic, &profile) {
		return
	}

	taskName, err := s.deps.Profiles.Process(r.Context(), profile)
	if err != nil {
		telemetry.ObserveMessage(s.cfg.PubSub.ProfileTopic, telemetry.OutcomeError)
		s.logger.Error("profile message failed",
			zap.String("message_id", env.Message.MessageID),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}
	telemetry.ObserveMessage(s.cfg.PubSub.ProfileTopic, telemetry.OutcomeIndexed)
	writeJSON(w, http.StatusOK, map[string]string{"task_name": taskName})
}

func (s *Server) readEnvelope(w http.ResponseWriter, r *http.Request) (push.Envelope, bool) {
	env, err := push.ReadEnvelope(r.Body)
	if err != nil {
		s.logger.Warn("bad push envelope",
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, "invalid push envelope")
		return push.Envelope{}, false
	}
	return env, true
}

// decodePayload decodes and validates the message body into v. On failure it
// acks with 200 and records a discard: the payload is broken, not the
// delivery.
func (s *Server) decodePayload(w http.ResponseWriter, r *http.Request, env push.Envelope, topic string, v any) bool {
	if err := env.DecodePayload(v); err != nil {
		if errors.Is(err, push.ErrBadPayload) {
			telemetry.ObserveMessage(topic, telemetry.OutcomeDiscarded)
			s.logger.Error("undecodable payload, dropping",
				zap.String("topic", topic),
				zap.String("message_id", env.Message.MessageID),
				zap.String("request_id", requestID(r.Context())),
				zap.Error(err))
			writeJSON(w, http.StatusOK, map[string]string{"status": "dropped"})
			return false
		}
		telemetry.ObserveMessage(topic, telemetry.OutcomeError)
		writeError(w, http.StatusInternalServerError, "decode failed")
		return false
	}
	return true
}

func (s *Server) finishPush(w http.ResponseWriter, r *http.Request, topic, messageID string, outcome indexer.Outcome, err error) {
	if err != nil {
		telemetry.ObserveMessage(topic, telemetry.OutcomeError)
		s.logger.Error("message processing failed",
			zap.String("topic", topic),
			zap.String("message_id", messageID),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}
	telemetry.ObserveMessage(topic, string(outcome))
	writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}
