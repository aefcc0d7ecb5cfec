package service

import "github.com/fieldpunch/api/internal/model"

// CaptureEvents publishes live capture feedback to the owning user.
type CaptureEvents interface {
	TranscriptUpdated(userID, transcript string)
	CaptureError(userID string, reason model.CaptureErrorReason, message string)
}

// DraftEvents publishes a whole draft snapshot after every draft mutation.
type DraftEvents interface {
	DraftChanged(userID string, draft model.DraftRecord)
}

// ReportEvents publishes report-generation progress to the owning user.
type ReportEvents interface {
	ReportProgress(userID, reportID string, progress int, status model.ReportStatus, step string)
	ReportComplete(userID, reportID, fileURL, fileName string)
	ReportFailed(userID, reportID, message string)
}
