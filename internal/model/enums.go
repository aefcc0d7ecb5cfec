package model

// Category is one label from the closed trade-classification set.
// The set itself is configurable; these are the CSI division defaults.
type Category string

var DefaultCategories = []Category{
	"Division 01 - General Requirements",
	"Division 02 - Existing Conditions",
	"Division 03 - Concrete",
	"Division 04 - Masonry",
	"Division 05 - Metals",
	"Division 06 - Wood, Plastics, and Composites",
	"Division 07 - Thermal and Moisture Protection",
	"Division 08 - Openings",
	"Division 09 - Finishes",
	"Division 10 - Specialties",
	"Division 11 - Equipment",
	"Division 12 - Furnishings",
	"Division 21 - Fire Suppression",
	"Division 22 - Plumbing",
	"Division 23 - HVAC",
	"Division 26 - Electrical",
	"Division 27 - Communications",
	"Division 28 - Electronic Safety and Security",
}

// DraftState models the capture-to-review lifecycle of a draft item.
type DraftState string

const (
	DraftStateIdle       DraftState = "idle"
	DraftStateListening  DraftState = "listening"
	DraftStateExtracting DraftState = "extracting"
	DraftStateReviewing  DraftState = "reviewing"
)

// CaptureErrorReason identifies why a speech session ended abnormally.
type CaptureErrorReason string

const (
	CaptureErrorNoSpeech           CaptureErrorReason = "no-speech"
	CaptureErrorAudioCapture       CaptureErrorReason = "audio-capture"
	CaptureErrorNotAllowed         CaptureErrorReason = "not-allowed"
	CaptureErrorNetwork            CaptureErrorReason = "network"
	CaptureErrorServiceUnavailable CaptureErrorReason = "service-not-allowed"
	CaptureErrorOther              CaptureErrorReason = "other"
)

// CaptureErrorMessage maps a session error reason to its user-facing message.
func CaptureErrorMessage(reason CaptureErrorReason) string {
	switch reason {
	case CaptureErrorNoSpeech:
		return "No speech was detected. Please make sure your microphone is working and you are speaking clearly."
	case CaptureErrorAudioCapture:
		return "Audio capture failed. Please check your microphone connection and permissions."
	case CaptureErrorNotAllowed:
		return "Microphone access was denied. Please allow microphone access to use this feature."
	case CaptureErrorNetwork:
		return "A network error occurred with the speech service. Please check your internet connection."
	case CaptureErrorServiceUnavailable:
		return "Speech recognition is not available. Please enter the item details manually."
	default:
		return "Speech recognition failed. Please try again."
	}
}

// ReportStatus tracks a report generation job.
type ReportStatus string

const (
	ReportStatusQueued    ReportStatus = "queued"
	ReportStatusRunning   ReportStatus = "running"
	ReportStatusSucceeded ReportStatus = "succeeded"
	ReportStatusFailed    ReportStatus = "failed"
)
