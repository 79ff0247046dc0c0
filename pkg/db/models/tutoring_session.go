package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/enums"
)

// TutoringSession tracks a paid tutoring request from open through settled.
// The offer amount is debited from the requester only when the session
// completes; no funds are reserved while the request is open.
type TutoringSession struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	RequesterID uuid.UUID            `gorm:"column:requester_id;type:uuid;not null;index"`
	TutorID     *uuid.UUID           `gorm:"column:tutor_id;type:uuid;index"`
	Subject     string               `gorm:"column:subject;not null"`
	Topic       string               `gorm:"column:topic;not null"`
	OfferCents  int64                `gorm:"column:offer_cents;not null"`
	Status      enums.TutoringStatus `gorm:"column:status;type:tutoring_status_enum;not null;default:'OPEN'"`
	ScheduledAt *time.Time           `gorm:"column:scheduled_at"`
	CompletedAt *time.Time           `gorm:"column:completed_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *TutoringSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
