package portal

import "time"

// Screen is the orchestrator's current view.
type Screen int

const (
	ScreenListing Screen = iota
	ScreenDetail
)

func (s Screen) String() string {
	switch s {
	case ScreenListing:
		return "listing"
	case ScreenDetail:
		return "detail"
	default:
		return "unknown"
	}
}

func (s Screen) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Notification levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
)

// Notification is a transient message about a write; it stays until dismissed.
type Notification struct {
	ID      int       `json:"id"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

const (
	msgSolutionSubmitted = "Thank you! Your solution has been submitted and will be reviewed."
	msgSolutionFailed    = "Your solution could not be submitted. Please try again later."
	msgVoteFailed        = "Your vote could not be recorded. Please try again later."
)
