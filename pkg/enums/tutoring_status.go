package enums

import "fmt"

// TutoringStatus maps to the tutoring_status_enum enum in Postgres.
type TutoringStatus string

const (
	TutoringStatusOpen      TutoringStatus = "OPEN"
	TutoringStatusAccepted  TutoringStatus = "ACCEPTED"
	TutoringStatusCompleted TutoringStatus = "COMPLETED"
	TutoringStatusCancelled TutoringStatus = "CANCELLED"
)

var validTutoringStatuses = []TutoringStatus{
	TutoringStatusOpen,
	TutoringStatusAccepted,
	TutoringStatusCompleted,
	TutoringStatusCancelled,
}

// IsValid reports whether the value matches the canonical tutoring status enum.
func (s TutoringStatus) IsValid() bool {
	for _, candidate := range validTutoringStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTutoringStatus converts raw input into TutoringStatus.
func ParseTutoringStatus(value string) (TutoringStatus, error) {
	for _, candidate := range validTutoringStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tutoring status %q", value)
}
