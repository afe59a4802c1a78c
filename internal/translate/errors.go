package translate

import (
	"errors"
	"fmt"

	"github.com/audiolibrelab/speaktranslate/internal/metrics"
)

var (
	// ErrNetworkUnreachable means the request could not be sent or the reply not received.
	ErrNetworkUnreachable = errors.New("network unreachable")
	// ErrDecoding means the reply was not valid JSON or carried malformed base64 audio.
	ErrDecoding = errors.New("decoding failed")
)

// NetworkError wraps a transport failure; it matches ErrNetworkUnreachable.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("cannot reach %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	return []error{ErrNetworkUnreachable, e.Err}
}

// ServerError is a non-2xx reply.
type ServerError struct {
	StatusCode int
	Status     string // "<code> <reason>"
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("translation failed: %s", e.Status)
}

// DecodeError wraps a JSON or base64 failure; it matches ErrDecoding.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecoding, e.Err}
}

func outcomeOf(err error) string {
	var serverErr *ServerError
	switch {
	case errors.Is(err, ErrNetworkUnreachable):
		return metrics.OutcomeNetwork
	case errors.As(err, &serverErr):
		return metrics.OutcomeServer
	default:
		return metrics.OutcomeDecoding
	}
}
