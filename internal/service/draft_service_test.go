package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fieldpunch/api/internal/model"
)

const testUser = "user-1"

func newDraftFixture(extractor *fakeExtractor) (*DraftService, *fakeItems, *draftEventRecorder) {
	items := &fakeItems{}
	events := &draftEventRecorder{}
	svc := NewDraftService(extractor, items, events, testCategories)
	return svc, items, events
}

func TestDraftBeginListeningClearsFields(t *testing.T) {
	t.Parallel()

	svc, _, events := newDraftFixture(&fakeExtractor{})

	room := "204"
	svc.Update(testUser, &model.DraftUpdateRequest{Room: &room})
	svc.BeginListening(testUser)

	d := svc.Draft(testUser)
	if d.State != model.DraftStateListening {
		t.Fatalf("unexpected state: %s", d.State)
	}
	if d.Room != "" || d.Description != "" || d.Category != "" {
		t.Fatalf("fields not cleared: %+v", d)
	}
	if _, ok := events.last(); !ok {
		t.Fatalf("expected draft snapshots to be published")
	}
}

func TestDraftLiveTranscriptOnlyWhileListening(t *testing.T) {
	t.Parallel()

	svc, _, _ := newDraftFixture(&fakeExtractor{})

	svc.SetLiveTranscript(testUser, "too early")
	if d := svc.Draft(testUser); d.LiveTranscript != "" {
		t.Fatalf("idle draft accepted transcript: %q", d.LiveTranscript)
	}

	svc.BeginListening(testUser)
	svc.SetLiveTranscript(testUser, "room 204")
	if d := svc.Draft(testUser); d.LiveTranscript != "room 204" {
		t.Fatalf("unexpected live transcript: %q", d.LiveTranscript)
	}
}

func TestDraftFinalizeAppliesExtractedFields(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{fields: &model.ExtractedFields{
		Room:        "204",
		Description: "cracked window",
		Category:    "Plumbing",
	}}
	svc, _, events := newDraftFixture(extractor)

	svc.BeginListening(testUser)
	svc.FinalizeTranscript(context.Background(), testUser, "room 204 cracked window")

	d := svc.Draft(testUser)
	if d.State != model.DraftStateReviewing {
		t.Fatalf("unexpected state: %s", d.State)
	}
	if d.Room != "204" || d.Description != "cracked window" || d.Category != "Plumbing" {
		t.Fatalf("unexpected fields: %+v", d)
	}
	if d.LastError != "" {
		t.Fatalf("unexpected error: %q", d.LastError)
	}

	states := events.states()
	sawExtracting := false
	for _, s := range states {
		if s == model.DraftStateExtracting {
			sawExtracting = true
		}
	}
	if !sawExtracting {
		t.Fatalf("expected an extracting snapshot, got %v", states)
	}
}

func TestDraftFinalizeFallbackSeedsDescription(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{err: errors.New("model unavailable")}
	svc, _, _ := newDraftFixture(extractor)

	svc.BeginListening(testUser)
	svc.FinalizeTranscript(context.Background(), testUser, "room 204 cracked window")

	d := svc.Draft(testUser)
	if d.State != model.DraftStateReviewing {
		t.Fatalf("unexpected state: %s", d.State)
	}
	if d.Description != "room 204 cracked window" {
		t.Fatalf("transcript not seeded into description: %+v", d)
	}
	if d.LastError == "" {
		t.Fatalf("expected a user-facing extraction error")
	}
}

func TestDraftFinalizeFallbackKeepsTypedDescription(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	extractor := &fakeExtractor{err: errors.New("model unavailable"), started: started, release: release}
	svc, _, _ := newDraftFixture(extractor)

	svc.BeginListening(testUser)

	done := make(chan struct{})
	go func() {
		svc.FinalizeTranscript(context.Background(), testUser, "room 204 cracked window")
		close(done)
	}()
	<-started

	// The user types while extraction is in flight.
	desc := "already typed"
	svc.Update(testUser, &model.DraftUpdateRequest{Description: &desc})

	close(release)
	<-done

	if d := svc.Draft(testUser); d.Description != "already typed" {
		t.Fatalf("typed description was overwritten: %q", d.Description)
	}
}

func TestDraftFinalizeIgnoredWhileExtracting(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	extractor := &fakeExtractor{
		fields:  &model.ExtractedFields{Room: "1", Description: "d", Category: "Plumbing"},
		started: started,
		release: release,
	}
	svc, _, _ := newDraftFixture(extractor)

	svc.BeginListening(testUser)

	done := make(chan struct{})
	go func() {
		svc.FinalizeTranscript(context.Background(), testUser, "first")
		close(done)
	}()
	<-started

	// Overlapping finalize signals must not trigger a second extraction.
	svc.FinalizeTranscript(context.Background(), testUser, "second")

	close(release)
	<-done

	if extractor.callCount() != 1 {
		t.Fatalf("expected exactly one extraction, got %d", extractor.callCount())
	}
}

func TestDraftDropsStaleExtractionAfterRestart(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	extractor := &fakeExtractor{
		fields:  &model.ExtractedFields{Room: "999", Description: "stale", Category: "Plumbing"},
		started: started,
		release: release,
	}
	svc, _, _ := newDraftFixture(extractor)

	svc.BeginListening(testUser)

	done := make(chan struct{})
	go func() {
		svc.FinalizeTranscript(context.Background(), testUser, "first capture")
		close(done)
	}()
	<-started

	// Capture restarts before the extraction returns.
	svc.BeginListening(testUser)

	close(release)
	<-done

	d := svc.Draft(testUser)
	if d.State != model.DraftStateListening {
		t.Fatalf("stale result moved state: %s", d.State)
	}
	if d.Room != "" || d.Description != "" {
		t.Fatalf("stale result applied: %+v", d)
	}
}

func TestDraftCaptureFailedStates(t *testing.T) {
	t.Parallel()

	svc, _, _ := newDraftFixture(&fakeExtractor{})

	// No fields entered: back to idle.
	svc.BeginListening(testUser)
	svc.CaptureFailed(testUser, model.CaptureErrorNoSpeech)
	if d := svc.Draft(testUser); d.State != model.DraftStateIdle {
		t.Fatalf("unexpected state: %s", d.State)
	}

	// With fields present the draft stays editable.
	room := "204"
	svc.Update(testUser, &model.DraftUpdateRequest{Room: &room})
	svc.CaptureFailed(testUser, model.CaptureErrorNetwork)
	d := svc.Draft(testUser)
	if d.State != model.DraftStateReviewing {
		t.Fatalf("unexpected state: %s", d.State)
	}
	if d.LastError == "" || !strings.Contains(d.LastError, "network") {
		t.Fatalf("unexpected error message: %q", d.LastError)
	}
}

func TestDraftSubmitRequiresPhotoRoomDescription(t *testing.T) {
	t.Parallel()

	svc, items, _ := newDraftFixture(&fakeExtractor{})

	room := "204"
	svc.Update(testUser, &model.DraftUpdateRequest{Room: &room})

	_, err := svc.Submit(context.Background(), testUser, "job-1", PhotoUpload{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, want := range []string{"photo", "description"} {
		found := false
		for _, f := range verr.Fields {
			if f == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing field %q not reported: %v", want, verr.Fields)
		}
	}
	if len(items.added) != 0 {
		t.Fatalf("invalid draft must not be persisted")
	}
	if d := svc.Draft(testUser); d.State != model.DraftStateReviewing {
		t.Fatalf("draft must stay editable, got %s", d.State)
	}
}

func TestDraftSubmitDefaultsCategoryAndResets(t *testing.T) {
	t.Parallel()

	svc, items, _ := newDraftFixture(&fakeExtractor{})

	room, desc := "204", "cracked window"
	svc.Update(testUser, &model.DraftUpdateRequest{Room: &room, Description: &desc})

	item, err := svc.Submit(context.Background(), testUser, "job-1", PhotoUpload{
		Reader:   strings.NewReader("jpeg-bytes"),
		Filename: "photo.jpg",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if item.Category != testCategories[0] {
		t.Fatalf("category not defaulted: %q", item.Category)
	}
	if len(items.added) != 1 {
		t.Fatalf("expected one persisted item")
	}

	d := svc.Draft(testUser)
	if d.State != model.DraftStateIdle || d.Room != "" || d.Description != "" {
		t.Fatalf("draft not reset after submit: %+v", d)
	}
}

func TestDraftSubmitStoreFailureKeepsDraft(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{}
	items := &fakeItems{addErr: &PersistenceError{Err: errors.New("redis down")}}
	events := &draftEventRecorder{}
	svc := NewDraftService(extractor, items, events, testCategories)

	room, desc := "204", "cracked window"
	svc.Update(testUser, &model.DraftUpdateRequest{Room: &room, Description: &desc})

	_, err := svc.Submit(context.Background(), testUser, "job-1", PhotoUpload{
		Reader:   strings.NewReader("jpeg-bytes"),
		Filename: "photo.jpg",
	})
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}

	d := svc.Draft(testUser)
	if d.State != model.DraftStateReviewing {
		t.Fatalf("draft lost after store failure: %s", d.State)
	}
	if d.Room != "204" || d.Description != "cracked window" {
		t.Fatalf("fields lost after store failure: %+v", d)
	}
}

func TestDraftCancelResets(t *testing.T) {
	t.Parallel()

	svc, _, _ := newDraftFixture(&fakeExtractor{})

	room := "204"
	svc.Update(testUser, &model.DraftUpdateRequest{Room: &room})
	svc.Cancel(testUser)

	d := svc.Draft(testUser)
	if d.State != model.DraftStateIdle || d.Room != "" {
		t.Fatalf("draft not reset: %+v", d)
	}
}

func TestDraftStateMachineEdges(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to model.DraftState
		ok       bool
	}{
		{model.DraftStateIdle, model.DraftStateListening, true},
		{model.DraftStateIdle, model.DraftStateExtracting, false},
		{model.DraftStateListening, model.DraftStateExtracting, true},
		{model.DraftStateListening, model.DraftStateIdle, true},
		{model.DraftStateExtracting, model.DraftStateReviewing, true},
		{model.DraftStateExtracting, model.DraftStateIdle, false},
		{model.DraftStateReviewing, model.DraftStateListening, true},
		{model.DraftStateReviewing, model.DraftStateIdle, true},
	}

	for _, tc := range cases {
		if got := isValidTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("transition %s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}
