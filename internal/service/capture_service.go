package service

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/fieldpunch/api/internal/model"
	"github.com/fieldpunch/api/internal/speech"
)

// DraftReconciler is the draft-side contract of the capture pipeline.
type DraftReconciler interface {
	BeginListening(userID string)
	SetLiveTranscript(userID, transcript string)
	FinalizeTranscript(ctx context.Context, userID, transcript string)
	CaptureFailed(userID string, reason model.CaptureErrorReason)
}

// CaptureService owns the live speech-recognition session lifecycle, one
// session per user. It accumulates the running transcript, republishes it
// after every recognition event, and on clean session end hands the trimmed
// final transcript to the draft reconciler.
type CaptureService struct {
	recognizer speech.Recognizer
	drafts     DraftReconciler
	events     CaptureEvents
	cfg        speech.SessionConfig

	mu       sync.Mutex
	sessions map[string]*captureSession
}

type captureSession struct {
	cancel    context.CancelFunc
	stream    speech.Session
	acc       *transcriptAccumulator
	done      chan struct{}
	discarded bool
	dmu       sync.Mutex
}

func (s *captureSession) discard() {
	s.dmu.Lock()
	s.discarded = true
	s.dmu.Unlock()
}

func (s *captureSession) isDiscarded() bool {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	return s.discarded
}

func NewCaptureService(recognizer speech.Recognizer, drafts DraftReconciler, events CaptureEvents, cfg speech.SessionConfig) *CaptureService {
	return &CaptureService{
		recognizer: recognizer,
		drafts:     drafts,
		events:     events,
		cfg:        cfg,
		sessions:   make(map[string]*captureSession),
	}
}

// Start begins a continuous recognition session for the user. Starting while
// a session is already active stops and discards the prior session's
// transcript before beginning a new one.
func (c *CaptureService) Start(ctx context.Context, userID string) error {
	c.mu.Lock()
	previous := c.sessions[userID]
	delete(c.sessions, userID)
	c.mu.Unlock()

	if previous != nil {
		c.stopSession(previous)
	}

	// The session outlives the request that started it.
	sessionCtx, cancel := context.WithCancel(context.Background())
	stream, err := c.recognizer.Start(sessionCtx, c.cfg)
	if err != nil {
		cancel()
		reason := model.CaptureErrorOther
		if errors.Is(err, speech.ErrRecognizerUnavailable) {
			// Permanent condition: retrying cannot help, so the message
			// must not suggest it.
			reason = model.CaptureErrorServiceUnavailable
		}
		c.drafts.CaptureFailed(userID, reason)
		c.events.CaptureError(userID, reason, model.CaptureErrorMessage(reason))
		return err
	}

	active := &captureSession{
		cancel: cancel,
		stream: stream,
		acc:    newTranscriptAccumulator(),
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	c.sessions[userID] = active
	c.mu.Unlock()

	c.drafts.BeginListening(userID)

	go c.consume(userID, active)
	return nil
}

// Stop ends the active session and triggers finalization. Stopping an
// already-stopped session is a no-op; no duplicate extraction is triggered.
func (c *CaptureService) Stop(userID string) {
	c.mu.Lock()
	active := c.sessions[userID]
	c.mu.Unlock()

	if active == nil {
		return
	}

	_ = active.stream.CloseSend()
}

// Discard cancels the active session without finalization; the accumulated
// transcript is thrown away.
func (c *CaptureService) Discard(userID string) {
	c.mu.Lock()
	active := c.sessions[userID]
	delete(c.sessions, userID)
	c.mu.Unlock()

	if active == nil {
		return
	}
	c.stopSession(active)
}

// PushAudio forwards one audio frame from the client to the recognizer.
func (c *CaptureService) PushAudio(userID string, chunk []byte) error {
	c.mu.Lock()
	active := c.sessions[userID]
	c.mu.Unlock()

	if active == nil {
		return ErrNoActiveSession
	}
	return active.stream.SendAudio(chunk)
}

// Active reports whether a capture session is running for the user.
func (c *CaptureService) Active(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[userID] != nil
}

// ReportClientError handles capture failures detected on the client device
// (microphone permission, audio hardware). The session is discarded and the
// reason surfaced like any other session error.
func (c *CaptureService) ReportClientError(userID string, reason model.CaptureErrorReason) {
	switch reason {
	case model.CaptureErrorNoSpeech, model.CaptureErrorAudioCapture,
		model.CaptureErrorNotAllowed, model.CaptureErrorNetwork,
		model.CaptureErrorServiceUnavailable:
	default:
		reason = model.CaptureErrorOther
	}

	c.Discard(userID)
	c.drafts.CaptureFailed(userID, reason)
	c.events.CaptureError(userID, reason, model.CaptureErrorMessage(reason))
}

// consume processes recognition events in arrival order and finalizes the
// session once the stream ends. The hand-off to extraction happens here,
// not in a caller-driven call.
func (c *CaptureService) consume(userID string, s *captureSession) {
	defer close(s.done)
	// The session context must not outlive the stream; the recognizer parks
	// a goroutine on it until it is cancelled.
	defer s.cancel()

	for event := range s.stream.Events() {
		transcript := s.acc.Apply(event.Segments)
		if transcript == "" {
			continue
		}
		c.drafts.SetLiveTranscript(userID, transcript)
		c.events.TranscriptUpdated(userID, transcript)
	}

	streamErr := s.stream.Wait()

	c.mu.Lock()
	current := c.sessions[userID] == s
	if current {
		delete(c.sessions, userID)
	}
	c.mu.Unlock()

	if !current || s.isDiscarded() {
		// Superseded by a restart or explicitly discarded; the transcript
		// is dropped.
		return
	}

	if streamErr != nil {
		reason := model.CaptureErrorOther
		var sessionErr *speech.SessionError
		if errors.As(streamErr, &sessionErr) {
			reason = sessionErr.Reason
		}
		log.Printf("Capture session for user %s failed: %v", userID, streamErr)
		c.drafts.CaptureFailed(userID, reason)
		c.events.CaptureError(userID, reason, model.CaptureErrorMessage(reason))
		return
	}

	final := s.acc.Final()
	if final == "" {
		c.drafts.CaptureFailed(userID, model.CaptureErrorNoSpeech)
		c.events.CaptureError(userID, model.CaptureErrorNoSpeech, model.CaptureErrorMessage(model.CaptureErrorNoSpeech))
		return
	}

	c.drafts.FinalizeTranscript(context.Background(), userID, final)
}

func (c *CaptureService) stopSession(s *captureSession) {
	s.discard()
	s.cancel()
	_ = s.stream.Close()
	<-s.done
}
