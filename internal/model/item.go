package model

import "time"

// PunchlistItem is a recorded construction defect. Photo holds either a
// remote-storage URL or an inline data URL, never both.
type PunchlistItem struct {
	ID          string    `json:"id"`
	Room        string    `json:"room"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Photo       string    `json:"photo"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Job is a named collection of punchlist items owned by one user.
// Items are ordered newest-first by insertion.
type Job struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UserID    string          `json:"userId"`
	CreatedAt time.Time       `json:"createdAt"`
	Items     []PunchlistItem `json:"items"`
}

// ItemFields are the structured fields of an item before it gets an
// identity and a stored photo.
type ItemFields struct {
	Room        string   `json:"room"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
}

// JobCreateRequest creates a new empty job.
type JobCreateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}
