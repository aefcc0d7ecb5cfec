package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/fieldpunch/api/internal/config"
	"github.com/fieldpunch/api/internal/model"
)

// DeepgramRecognizer implements Recognizer against the Deepgram realtime API.
type DeepgramRecognizer struct {
	cfg config.DeepgramConfig
}

func NewDeepgramRecognizer(cfg config.DeepgramConfig) *DeepgramRecognizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &DeepgramRecognizer{cfg: cfg}
}

// IsConfigured returns true if an API key is present.
func (r *DeepgramRecognizer) IsConfigured() bool {
	return strings.TrimSpace(r.cfg.APIKey) != ""
}

func (r *DeepgramRecognizer) Start(ctx context.Context, cfg SessionConfig) (Session, error) {
	if !r.IsConfigured() {
		return nil, ErrRecognizerUnavailable
	}

	wsURL, err := buildListenURL(r.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, &SessionError{
			Reason: model.CaptureErrorNetwork,
			Err:    fmt.Errorf("failed to connect to speech service: %w", err),
		}
	}

	session := &deepgramSession{
		conn:   conn,
		events: make(chan Event, 64),
		audio:  make(chan []byte, 32),
		done:   make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = session.Close()
	}()

	return session, nil
}

type deepgramSession struct {
	conn *websocket.Conn

	events chan Event
	audio  chan []byte
	done   chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   *SessionError

	// segments accumulates finalized utterances; interim holds the current
	// best partial, so every emitted Event covers the whole session.
	segMu    sync.Mutex
	segments []string
	interim  string

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *deepgramSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	// The lock is held across the send: CloseSend closes the audio channel
	// under the write lock, so the channel cannot close between the flag
	// check and the send.
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

func (s *deepgramSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *deepgramSession) Events() <-chan Event {
	return s.events
}

func (s *deepgramSession) Wait() error {
	<-s.done
	if err := s.waitErr(); err != nil {
		return err
	}
	return nil
}

func (s *deepgramSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	if err := s.waitErr(); err != nil {
		return err
	}
	return nil
}

func (s *deepgramSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		return nil
	}
	return s.err
}

func (s *deepgramSession) setErr(reason model.CaptureErrorReason, err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = &SessionError{Reason: reason, Err: err}
	}
}

func (s *deepgramSession) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(model.CaptureErrorNetwork, fmt.Errorf("failed to send audio: %w", err))
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(model.CaptureErrorNetwork, fmt.Errorf("failed to close stream: %w", err))
	}
}

func (s *deepgramSession) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(model.CaptureErrorNetwork, fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "speech service returned an unknown error"
			}
			s.setErr(model.CaptureErrorOther, errors.New(message))
			return
		}

		transcript := extractTranscript(response)
		if transcript == "" {
			continue
		}

		final := response.IsFinal || response.SpeechFinal
		s.segMu.Lock()
		if final {
			s.segments = append(s.segments, transcript)
			s.interim = ""
		} else {
			s.interim = transcript
		}
		segments := append([]string(nil), s.segments...)
		if s.interim != "" {
			segments = append(segments, s.interim)
		}
		s.segMu.Unlock()

		s.emit(Event{Segments: segments, IsFinal: final})
	}
}

func (s *deepgramSession) emit(event Event) {
	select {
	case s.events <- event:
	case <-s.done:
	default:
	}
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		return strings.TrimSpace(response.Channel.Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(providerCfg config.DeepgramConfig, streamCfg SessionConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.BaseURL)
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	u, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid speech service base URL: %w", err)
	}

	q := u.Query()
	q.Set("model", providerCfg.Model)
	if providerCfg.Language != "" {
		q.Set("language", providerCfg.Language)
	}
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	if streamCfg.Encoding != "" {
		q.Set("encoding", streamCfg.Encoding)
	}
	if streamCfg.SampleRate > 0 {
		q.Set("sample_rate", fmt.Sprintf("%d", streamCfg.SampleRate))
	}
	if streamCfg.Channels > 0 {
		q.Set("channels", fmt.Sprintf("%d", streamCfg.Channels))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
