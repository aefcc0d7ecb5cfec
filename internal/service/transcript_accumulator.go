package service

import (
	"strings"
	"sync"
)

// transcriptAccumulator owns the running transcript of one capture session.
// Every recognition event carries the best current interpretation of
// everything spoken since the session started, so a later event supersedes
// the accumulated string rather than appending to it.
type transcriptAccumulator struct {
	mu      sync.Mutex
	current string
}

func newTranscriptAccumulator() *transcriptAccumulator {
	return &transcriptAccumulator{}
}

// Apply replaces the running transcript with the event's segment transcripts
// concatenated in order, and returns the new running string.
func (a *transcriptAccumulator) Apply(segments []string) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		parts = append(parts, seg)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(parts) > 0 {
		a.current = strings.Join(parts, " ")
	}
	return a.current
}

// Current returns the running transcript.
func (a *transcriptAccumulator) Current() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Final returns the trimmed transcript for hand-off to extraction.
func (a *transcriptAccumulator) Final() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.TrimSpace(a.current)
}
