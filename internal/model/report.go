package model

import "time"

// ReportJob represents a background report-generation job in the system
type ReportJob struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	JobID       string       `json:"jobId"`
	Filter      string       `json:"filter"` // category label or "All"
	Status      ReportStatus `json:"status"`
	Progress    int          `json:"progress"`
	CurrentStep string       `json:"currentStep,omitempty"`
	Error       *string      `json:"error,omitempty"`
	FileURL     string       `json:"fileUrl,omitempty"`
	FileName    string       `json:"fileName,omitempty"`
	RowCount    int          `json:"rowCount"`
	CreatedAt   time.Time    `json:"createdAt"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// ReportStartRequest queues report generation for one job's items.
type ReportStartRequest struct {
	JobID  string `json:"jobId" validate:"required"`
	Filter string `json:"filter,omitempty"`
}

// ReportStartResponse acknowledges a queued report.
type ReportStartResponse struct {
	ReportID  string       `json:"reportId"`
	Status    ReportStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
}

// ReportStatusResponse mirrors the job record for polling clients.
type ReportStatusResponse struct {
	ReportID    string       `json:"reportId"`
	Status      ReportStatus `json:"status"`
	Progress    int          `json:"progress"`
	CurrentStep string       `json:"currentStep,omitempty"`
	Error       *string      `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// ReportResultResponse is available once a report succeeded.
type ReportResultResponse struct {
	ReportID string `json:"reportId"`
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	RowCount int    `json:"rowCount"`
}

// ReportTaskPayload is the asynq payload for report generation.
type ReportTaskPayload struct {
	ReportID string `json:"reportId"`
}

// CleanupTaskPayload is the asynq payload for best-effort photo deletion.
type CleanupTaskPayload struct {
	UserID    string   `json:"userId"`
	JobID     string   `json:"jobId"`
	PhotoURLs []string `json:"photoUrls"`
}
