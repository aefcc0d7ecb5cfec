package speech

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/fieldpunch/api/internal/config"
)

func TestBuildListenURL(t *testing.T) {
	t.Parallel()

	got, err := buildListenURL(config.DeepgramConfig{
		BaseURL:  "https://api.deepgram.com/v1",
		Model:    "nova-2",
		Language: "en-US",
	}, SessionConfig{SampleRate: 16000, Channels: 1, Encoding: "linear16"})
	if err != nil {
		t.Fatalf("buildListenURL failed: %v", err)
	}

	if !strings.HasPrefix(got, "wss://api.deepgram.com/v1/listen?") {
		t.Fatalf("unexpected URL: %q", got)
	}
	for _, param := range []string{
		"model=nova-2",
		"language=en-US",
		"smart_format=true",
		"interim_results=true",
		"encoding=linear16",
		"sample_rate=16000",
		"channels=1",
	} {
		if !strings.Contains(got, param) {
			t.Errorf("URL missing %q: %s", param, got)
		}
	}
}

func TestBuildListenURLPlainHTTP(t *testing.T) {
	t.Parallel()

	got, err := buildListenURL(config.DeepgramConfig{
		BaseURL: "http://localhost:9999/v1/",
		Model:   "nova-2",
	}, SessionConfig{})
	if err != nil {
		t.Fatalf("buildListenURL failed: %v", err)
	}
	if !strings.HasPrefix(got, "ws://localhost:9999/v1/listen?") {
		t.Fatalf("unexpected URL: %q", got)
	}
	if strings.Contains(got, "sample_rate") || strings.Contains(got, "channels") {
		t.Fatalf("unset stream settings leaked into URL: %q", got)
	}
}

func TestExtractTranscript(t *testing.T) {
	t.Parallel()

	var response deepgramResponse
	payload := `{
		"type": "Results",
		"is_final": true,
		"channel": {"alternatives": [{"transcript": "  room 204 cracked window  "}]}
	}`
	if err := json.Unmarshal([]byte(payload), &response); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got := extractTranscript(response); got != "room 204 cracked window" {
		t.Fatalf("unexpected transcript: %q", got)
	}

	if got := extractTranscript(deepgramResponse{}); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

func TestSendAudioConcurrentWithCloseSend(t *testing.T) {
	t.Parallel()

	// SendAudio from one socket may interleave with CloseSend from another
	// handler for the same user. A send on the closed audio channel would
	// panic, so every iteration must end with an error or a buffered send,
	// never a crash.
	for i := 0; i < 500; i++ {
		s := &deepgramSession{
			events: make(chan Event, 1),
			audio:  make(chan []byte, 16),
			done:   make(chan struct{}),
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				if err := s.SendAudio([]byte{0x01}); err != nil {
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			_ = s.CloseSend()
		}()
		wg.Wait()
	}
}

func TestRecognizerUnavailableWithoutKey(t *testing.T) {
	t.Parallel()

	recognizer := NewDeepgramRecognizer(config.DeepgramConfig{})
	if recognizer.IsConfigured() {
		t.Fatalf("recognizer without key must not be configured")
	}

	_, err := recognizer.Start(context.Background(), SessionConfig{})
	if !errors.Is(err, ErrRecognizerUnavailable) {
		t.Fatalf("expected ErrRecognizerUnavailable, got %v", err)
	}
}
