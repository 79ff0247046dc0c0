package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/enums"
)

// NotePage is one page of a paginated study-note document, stored inside the
// note's JSONB pages column.
type NotePage struct {
	PageNumber int      `json:"page_number"`
	Content    string   `json:"content"`
	Images     []string `json:"images,omitempty"`
}

// Note is a priced content item owned by its creator. Whether a note is free
// is always derived from the price at read time, never stored.
type Note struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Title       string           `gorm:"column:title;not null"`
	Subject     string           `gorm:"column:subject;not null;index"`
	Description string           `gorm:"column:description;not null"`
	Pages       json.RawMessage  `gorm:"column:pages;type:jsonb;not null"`
	PriceCents  int64            `gorm:"column:price_cents;not null;default:0"`
	CreatorID   uuid.UUID        `gorm:"column:creator_id;type:uuid;not null;index"`
	Status      enums.NoteStatus `gorm:"column:status;type:note_status_enum;not null;default:'DRAFT'"`

	Views         int64   `gorm:"column:views;not null;default:0"`
	Purchases     int64   `gorm:"column:purchases;not null;default:0"`
	RatingAverage float64 `gorm:"column:rating_average;not null;default:0"`
	RatingCount   int64   `gorm:"column:rating_count;not null;default:0"`

	PreviewPages int            `gorm:"column:preview_pages;not null;default:3"`
	Tags         pq.StringArray `gorm:"column:tags;type:text[]"`
	IsDeleted    bool           `gorm:"column:is_deleted;not null;default:false"`

	// Set by moderation when the note is rejected; cleared on approval.
	ReviewReason string `gorm:"column:review_reason;not null;default:''"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (n *Note) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// IsFree reports whether the note costs nothing. Computed, never persisted.
func (n *Note) IsFree() bool {
	return n != nil && n.PriceCents == 0
}

// IsPurchasable reports whether the note can be settled right now.
func (n *Note) IsPurchasable() bool {
	return n != nil && !n.IsDeleted && n.Status == enums.NoteStatusActive
}

// DecodePages unmarshals the JSONB pages column.
func (n *Note) DecodePages() ([]NotePage, error) {
	if len(n.Pages) == 0 {
		return nil, nil
	}
	var pages []NotePage
	if err := json.Unmarshal(n.Pages, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}
