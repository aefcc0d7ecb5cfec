package model

// WebSocket message types
type WSMessageType string

const (
	WSMessageTypeTranscript     WSMessageType = "transcript"
	WSMessageTypeDraft          WSMessageType = "draft"
	WSMessageTypeCaptureError   WSMessageType = "capture_error"
	WSMessageTypeJobs           WSMessageType = "jobs"
	WSMessageTypeReportProgress WSMessageType = "report_progress"
	WSMessageTypeReportComplete WSMessageType = "report_complete"
	WSMessageTypeReportError    WSMessageType = "report_error"
	WSMessageTypePing           WSMessageType = "ping"
	WSMessageTypePong           WSMessageType = "pong"
)

// WSMessage is the base message envelope
type WSMessage struct {
	Type WSMessageType `json:"type"`
}

// WSTranscriptMessage publishes the live running transcript while listening.
type WSTranscriptMessage struct {
	Type       WSMessageType `json:"type"`
	Transcript string        `json:"transcript"`
}

// WSDraftMessage publishes a whole draft snapshot after every mutation.
type WSDraftMessage struct {
	Type  WSMessageType `json:"type"`
	Draft DraftRecord   `json:"draft"`
}

// WSCaptureErrorMessage surfaces a session-scoped capture failure.
type WSCaptureErrorMessage struct {
	Type    WSMessageType      `json:"type"`
	Reason  CaptureErrorReason `json:"reason"`
	Message string             `json:"message"`
}

// WSJobsMessage carries a full replace-on-change snapshot of the user's jobs.
type WSJobsMessage struct {
	Type WSMessageType `json:"type"`
	Jobs []Job         `json:"jobs"`
}

// WSReportProgressMessage reports generation progress.
type WSReportProgressMessage struct {
	Type        WSMessageType `json:"type"`
	ReportID    string        `json:"reportId"`
	Progress    int           `json:"progress"`
	Status      ReportStatus  `json:"status"`
	CurrentStep string        `json:"currentStep"`
}

// WSReportCompleteMessage announces a finished report.
type WSReportCompleteMessage struct {
	Type     WSMessageType `json:"type"`
	ReportID string        `json:"reportId"`
	FileURL  string        `json:"fileUrl"`
	FileName string        `json:"fileName"`
}

// WSReportErrorMessage announces a failed report.
type WSReportErrorMessage struct {
	Type     WSMessageType `json:"type"`
	ReportID string        `json:"reportId"`
	Error    string        `json:"error"`
}

// WSCaptureControl is the client-to-server control frame on the capture
// socket. Reason is set only for "error" frames, reporting a failure the
// client detected locally (microphone permission, audio hardware).
type WSCaptureControl struct {
	Type   string             `json:"type"` // "start", "stop", "cancel", "error", "ping"
	Reason CaptureErrorReason `json:"reason,omitempty"`
}
