package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is one purchaser's rating of a note; one review per (user, note).
type Review struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID  uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_reviews_user_note"`
	NoteID  uuid.UUID `gorm:"column:note_id;type:uuid;not null;uniqueIndex:ux_reviews_user_note"`
	Rating  int       `gorm:"column:rating;not null"`
	Comment string    `gorm:"column:comment"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
