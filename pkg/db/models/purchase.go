package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseAnnotation is a user-private note pinned to a page position.
type PurchaseAnnotation struct {
	PageNumber int       `json:"page_number"`
	Content    string    `json:"content"`
	PositionX  float64   `json:"position_x"`
	PositionY  float64   `json:"position_y"`
	CreatedAt  time.Time `json:"created_at"`
}

// PurchaseComment is a user-private comment on a page.
type PurchaseComment struct {
	PageNumber int       `json:"page_number"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Purchase is the durable entitlement record linking a buyer to a note. The
// (user_id, note_id) unique index is the storage-level guard against double
// purchase; price_cents captures the amount actually paid at settlement time.
type Purchase struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_purchases_user_note"`
	NoteID     uuid.UUID `gorm:"column:note_id;type:uuid;not null;uniqueIndex:ux_purchases_user_note"`
	PriceCents int64     `gorm:"column:price_cents;not null"`

	Annotations json.RawMessage `gorm:"column:annotations;type:jsonb"`
	Comments    json.RawMessage `gorm:"column:comments;type:jsonb"`

	LastAccessedAt *time.Time `gorm:"column:last_accessed_at"`
	AccessCount    int64      `gorm:"column:access_count;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
