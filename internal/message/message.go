// Package message defines the envelope loaders publish and the queue that
// carries envelopes from many loaders to the pipeline.
package message

import (
	"errors"
	"sync"

	"github.com/couchcryptid/sounding-graphs/internal/timeseries"
)

// ErrConsumed is returned when a message's payload has already been taken.
var ErrConsumed = errors.New("message payload already consumed")

// Payload is one of StringData or SourceError.
type Payload interface {
	isPayload()
}

// StringData is raw sounding text, one block per model run, keyed by init time.
type StringData timeseries.EnsembleList[string]

// SourceError is a loader failure reported in place of data.
type SourceError struct {
	Err error
}

func (StringData) isPayload()  {}
func (SourceError) isPayload() {}

// Message wraps a payload that can be taken exactly once.
type Message struct {
	mu      sync.Mutex
	payload Payload
}

// Data wraps loaded raw sounding text.
func Data(d StringData) *Message {
	return &Message{payload: d}
}

// Error wraps a loader failure.
func Error(err error) *Message {
	return &Message{payload: SourceError{Err: err}}
}

// Take moves the payload out of the message.
func (m *Message) Take() (Payload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.payload == nil {
		return nil, ErrConsumed
	}
	p := m.payload
	m.payload = nil
	return p, nil
}
