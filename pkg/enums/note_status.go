package enums

import "fmt"

// NoteStatus maps to the note_status_enum enum in Postgres.
type NoteStatus string

const (
	NoteStatusDraft           NoteStatus = "DRAFT"
	NoteStatusActive          NoteStatus = "ACTIVE"
	NoteStatusPausedForReview NoteStatus = "PAUSED_FOR_REVIEW"
	NoteStatusRejected        NoteStatus = "REJECTED"
)

var validNoteStatuses = []NoteStatus{
	NoteStatusDraft,
	NoteStatusActive,
	NoteStatusPausedForReview,
	NoteStatusRejected,
}

// IsValid reports whether the value matches the canonical note status enum.
func (s NoteStatus) IsValid() bool {
	for _, candidate := range validNoteStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseNoteStatus converts raw input into NoteStatus.
func ParseNoteStatus(value string) (NoteStatus, error) {
	for _, candidate := range validNoteStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid note status %q", value)
}
