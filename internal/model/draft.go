package model

// DraftRecord is the transient in-progress item being composed via voice or
// manual entry. It is never persisted; ownership transfers to the item store
// on submit and the draft is discarded.
type DraftRecord struct {
	Room        string   `json:"room"`
	Description string   `json:"description"`
	Category    Category `json:"category"`

	State          DraftState `json:"state"`
	LiveTranscript string     `json:"liveTranscript"`
	LastError      string     `json:"lastError,omitempty"`

	// Generation increments every time capture restarts, so extraction
	// results from a superseded capture can be recognized and dropped.
	Generation uint64 `json:"-"`
}

// IsListening reports whether a capture session is feeding this draft.
func (d *DraftRecord) IsListening() bool {
	return d.State == DraftStateListening
}

// IsExtracting reports whether an extraction is in flight for this draft.
func (d *DraftRecord) IsExtracting() bool {
	return d.State == DraftStateExtracting
}

// ExtractedFields is a fully-populated extraction result. CategoryRecognized
// is false when the service returned a category outside the configured set;
// the value is still trusted as returned.
type ExtractedFields struct {
	Room               string   `json:"room"`
	Description        string   `json:"description"`
	Category           Category `json:"category"`
	CategoryRecognized bool     `json:"categoryRecognized"`
}

// DraftUpdateRequest carries manual field edits. Nil pointers leave the
// corresponding field untouched.
type DraftUpdateRequest struct {
	Room        *string `json:"room,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// DraftSubmitResponse returns the item created from a submitted draft.
type DraftSubmitResponse struct {
	JobID string        `json:"jobId"`
	Item  PunchlistItem `json:"item"`
}
