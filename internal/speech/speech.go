// Package speech defines the contract to the continuous speech-recognition
// service and its streaming provider implementation.
package speech

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldpunch/api/internal/model"
)

// ErrRecognizerUnavailable is returned by Start when no speech-recognition
// provider is configured. This is a permanent condition, not a session error.
var ErrRecognizerUnavailable = errors.New("speech recognition is not available")

// Event is one partial- or final-result event from the recognition service.
// Segments carries the best current interpretation of everything spoken
// since the session started; later events supersede earlier ones.
type Event struct {
	Segments []string
	IsFinal  bool
}

// SessionError wraps a session-scoped failure with its reason code.
type SessionError struct {
	Reason model.CaptureErrorReason
	Err    error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("speech session error (%s): %v", e.Reason, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// SessionConfig describes provider-agnostic streaming settings.
type SessionConfig struct {
	SampleRate int
	Channels   int
	Encoding   string
}

// Session is an active recognition session. Audio pushed via SendAudio is
// interpreted continuously; Events delivers results in arrival order. Wait
// blocks until the provider stream ends and reports the terminal error, if
// any, as a *SessionError.
type Session interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan Event
	Wait() error
	Close() error
}

// Recognizer starts recognition sessions.
type Recognizer interface {
	Start(ctx context.Context, cfg SessionConfig) (Session, error)
}
