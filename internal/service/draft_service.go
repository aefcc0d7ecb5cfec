package service

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/fieldpunch/api/internal/model"
)

// extractionFallbackMessage is surfaced when extraction fails and the user
// must correct the draft manually.
const extractionFallbackMessage = "Could not understand the command. Please try again or fill manually."

// Extractor is the field-extraction dependency of the reconciler.
type Extractor interface {
	Extract(ctx context.Context, transcript string) (*model.ExtractedFields, error)
}

// ItemCreator receives the persistence request emitted by a submitted draft.
type ItemCreator interface {
	Add(ctx context.Context, jobID string, fields model.ItemFields, photo PhotoUpload) (*model.PunchlistItem, error)
}

// DraftService reconciles extraction results, capture outcomes and manual
// edits into one in-progress draft per user, and enforces the submission
// preconditions. Drafts are transient; nothing here touches the store until
// a submit succeeds.
type DraftService struct {
	extractor  Extractor
	items      ItemCreator
	events     DraftEvents
	categories []model.Category

	mu     sync.Mutex
	drafts map[string]*model.DraftRecord
}

func NewDraftService(extractor Extractor, items ItemCreator, events DraftEvents, categories []model.Category) *DraftService {
	return &DraftService{
		extractor:  extractor,
		items:      items,
		events:     events,
		categories: categories,
		drafts:     make(map[string]*model.DraftRecord),
	}
}

// isValidTransition enforces the allowed draft state machine edges.
// Submitted and Cancelled are modeled as a reset to Idle.
func isValidTransition(from, to model.DraftState) bool {
	switch from {
	case model.DraftStateIdle:
		return to == model.DraftStateListening || to == model.DraftStateReviewing
	case model.DraftStateListening:
		return to == model.DraftStateExtracting || to == model.DraftStateReviewing || to == model.DraftStateIdle
	case model.DraftStateExtracting:
		return to == model.DraftStateReviewing || to == model.DraftStateListening
	case model.DraftStateReviewing:
		return to == model.DraftStateListening || to == model.DraftStateIdle || to == model.DraftStateReviewing
	default:
		return false
	}
}

// Draft returns a snapshot of the user's current draft, creating an empty
// one if the capture UI just opened.
func (s *DraftService) Draft(userID string) model.DraftRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.draftLocked(userID)
}

// BeginListening starts a capture cycle: all draft fields are cleared and
// the generation counter advances so results of any extraction still in
// flight for the previous cycle are recognized as stale and dropped.
func (s *DraftService) BeginListening(userID string) {
	s.mu.Lock()
	d := s.draftLocked(userID)
	gen := d.Generation + 1
	*d = model.DraftRecord{
		State:      model.DraftStateListening,
		Generation: gen,
	}
	snapshot := *d
	s.mu.Unlock()

	s.events.DraftChanged(userID, snapshot)
}

// SetLiveTranscript republishes the running transcript for on-screen
// feedback. It is not used for extraction.
func (s *DraftService) SetLiveTranscript(userID, transcript string) {
	s.mu.Lock()
	d := s.draftLocked(userID)
	if d.State == model.DraftStateListening {
		d.LiveTranscript = transcript
	}
	s.mu.Unlock()
}

// FinalizeTranscript hands the finished transcript to the extractor and
// reconciles the outcome into the draft. The transition guard ignores the
// call when an extraction is already in flight, so overlapping finalize
// signals never trigger duplicate extractions. In-flight extractions are
// never cancelled; their results are dropped if the capture was restarted
// in the meantime.
func (s *DraftService) FinalizeTranscript(ctx context.Context, userID, transcript string) {
	transcript = strings.TrimSpace(transcript)

	s.mu.Lock()
	d := s.draftLocked(userID)
	if d.State == model.DraftStateExtracting || !isValidTransition(d.State, model.DraftStateExtracting) {
		s.mu.Unlock()
		return
	}
	d.State = model.DraftStateExtracting
	d.LiveTranscript = transcript
	gen := d.Generation
	snapshot := *d
	s.mu.Unlock()

	s.events.DraftChanged(userID, snapshot)

	fields, err := s.extractor.Extract(ctx, transcript)

	s.mu.Lock()
	d = s.draftLocked(userID)
	if d.Generation != gen || d.State != model.DraftStateExtracting {
		s.mu.Unlock()
		log.Printf("Dropping stale extraction result for user %s", userID)
		return
	}

	if err != nil {
		// Fall back to manual entry: seed the description with the raw
		// transcript unless the user already typed something.
		if d.Description == "" {
			d.Description = transcript
		}
		d.LastError = extractionFallbackMessage
	} else {
		d.Room = fields.Room
		d.Description = fields.Description
		d.Category = fields.Category
		d.LastError = ""
	}
	d.State = model.DraftStateReviewing
	snapshot = *d
	s.mu.Unlock()

	s.events.DraftChanged(userID, snapshot)
}

// CaptureFailed resets the capture cycle after a session error. The partial
// transcript is discarded; previously entered fields survive for manual
// correction.
func (s *DraftService) CaptureFailed(userID string, reason model.CaptureErrorReason) {
	s.mu.Lock()
	d := s.draftLocked(userID)
	d.LiveTranscript = ""
	d.LastError = model.CaptureErrorMessage(reason)
	if d.Room == "" && d.Description == "" && d.Category == "" {
		d.State = model.DraftStateIdle
	} else {
		d.State = model.DraftStateReviewing
	}
	snapshot := *d
	s.mu.Unlock()

	s.events.DraftChanged(userID, snapshot)
}

// Update applies manual field edits.
func (s *DraftService) Update(userID string, req *model.DraftUpdateRequest) model.DraftRecord {
	s.mu.Lock()
	d := s.draftLocked(userID)
	if req.Room != nil {
		d.Room = strings.TrimSpace(*req.Room)
	}
	if req.Description != nil {
		d.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		d.Category = model.Category(strings.TrimSpace(*req.Category))
	}
	if d.State == model.DraftStateIdle {
		d.State = model.DraftStateReviewing
	}
	d.LastError = ""
	snapshot := *d
	s.mu.Unlock()

	s.events.DraftChanged(userID, snapshot)
	return snapshot
}

// Submit validates the draft, emits the persistence request to the item
// store and resets the draft. On validation or store failure the draft
// stays in Reviewing so nothing the user entered is lost.
func (s *DraftService) Submit(ctx context.Context, userID, jobID string, photo PhotoUpload) (*model.PunchlistItem, error) {
	s.mu.Lock()
	d := s.draftLocked(userID)

	var missing []string
	if photo.Reader == nil {
		missing = append(missing, "photo")
	}
	if d.Room == "" {
		missing = append(missing, "room")
	}
	if d.Description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		d.State = model.DraftStateReviewing
		d.LastError = (&ValidationError{Fields: missing}).Error()
		snapshot := *d
		s.mu.Unlock()
		s.events.DraftChanged(userID, snapshot)
		return nil, &ValidationError{Fields: missing}
	}

	fields := model.ItemFields{
		Room:        d.Room,
		Description: d.Description,
		Category:    d.Category,
	}
	if fields.Category == "" && len(s.categories) > 0 {
		fields.Category = s.categories[0]
	}
	gen := d.Generation
	s.mu.Unlock()

	item, err := s.items.Add(ctx, jobID, fields, photo)
	if err != nil {
		// The optimistic change is not assumed committed; the draft stays
		// editable and the failure surfaces to the caller.
		s.mu.Lock()
		d = s.draftLocked(userID)
		if d.Generation == gen {
			d.State = model.DraftStateReviewing
		}
		s.mu.Unlock()
		return nil, err
	}

	s.reset(userID)
	return item, nil
}

// Cancel discards the draft.
func (s *DraftService) Cancel(userID string) {
	s.reset(userID)
}

func (s *DraftService) reset(userID string) {
	s.mu.Lock()
	d := s.draftLocked(userID)
	gen := d.Generation + 1
	*d = model.DraftRecord{
		State:      model.DraftStateIdle,
		Generation: gen,
	}
	snapshot := *d
	s.mu.Unlock()

	s.events.DraftChanged(userID, snapshot)
}

func (s *DraftService) draftLocked(userID string) *model.DraftRecord {
	d, ok := s.drafts[userID]
	if !ok {
		d = &model.DraftRecord{State: model.DraftStateIdle}
		s.drafts[userID] = d
	}
	return d
}
