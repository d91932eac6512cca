package catalog

import (
	"errors"
	"net/http"
)

// ErrClient marks 4xx answers from the recommender API. Retrying cannot fix
// these, so push handlers ack the message and drop the item.
var ErrClient = errors.New("catalog: client error")

// ErrServer marks 5xx answers and transport failures. Push handlers surface
// these as a non-2xx so the bus redelivers.
var ErrServer = errors.New("catalog: server error")

// retryable reports whether a status is worth another attempt.
func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
