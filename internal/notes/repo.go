package notes

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
)

// Repository manages persistence for notes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, note *models.Note) error
	GetByID(ctx context.Context, noteID uuid.UUID) (*models.Note, error)
	Update(ctx context.Context, noteID uuid.UUID, updates map[string]any) error
	ListMarketplace(ctx context.Context, filter MarketplaceFilter) ([]models.Note, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID, includeDeleted bool) ([]models.Note, error)
	IncrementViews(ctx context.Context, noteID uuid.UUID) error
	IncrementPurchases(ctx context.Context, noteID uuid.UUID) error
	SetRating(ctx context.Context, noteID uuid.UUID, average float64, count int64) error
}

// MarketplaceFilter narrows the public catalog listing. Zero values mean no
// constraint. Before/BeforeID implement the keyset cursor and only apply to
// the newest-first sort.
type MarketplaceFilter struct {
	Subject       string
	Query         string
	FreeOnly      bool
	MinPriceCents *int64
	MaxPriceCents *int64
	Sort          Sort
	Limit         int
	Before        time.Time
	BeforeID      uuid.UUID
}

// Sort orders marketplace results.
type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortRating    Sort = "rating"
	SortPopular   Sort = "popular"
)

// IsValid reports whether the sort option is recognised.
func (s Sort) IsValid() bool {
	switch s {
	case SortNewest, SortPriceAsc, SortPriceDesc, SortRating, SortPopular:
		return true
	}
	return false
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a notes repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, note *models.Note) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *repository) GetByID(ctx context.Context, noteID uuid.UUID) (*models.Note, error) {
	var note models.Note
	if err := r.db.WithContext(ctx).First(&note, "id = ?", noteID).Error; err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *repository) Update(ctx context.Context, noteID uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Note{}).
		Where("id = ?", noteID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListMarketplace(ctx context.Context, filter MarketplaceFilter) ([]models.Note, error) {
	query := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Where("status = ?", enums.NoteStatusActive)

	if filter.Subject != "" {
		query = query.Where("subject = ?", filter.Subject)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if filter.FreeOnly {
		query = query.Where("price_cents = 0")
	}
	if filter.MinPriceCents != nil {
		query = query.Where("price_cents >= ?", *filter.MinPriceCents)
	}
	if filter.MaxPriceCents != nil {
		query = query.Where("price_cents <= ?", *filter.MaxPriceCents)
	}

	switch filter.Sort {
	case SortPriceAsc:
		query = query.Order("price_cents ASC").Order("id ASC")
	case SortPriceDesc:
		query = query.Order("price_cents DESC").Order("id ASC")
	case SortRating:
		query = query.Order("rating_average DESC").Order("rating_count DESC").Order("id ASC")
	case SortPopular:
		query = query.Order("purchases DESC").Order("views DESC").Order("id ASC")
	default:
		query = query.Order("created_at DESC").Order("id DESC")
		if !filter.Before.IsZero() {
			query = query.Where(
				"(created_at < ?) OR (created_at = ? AND id < ?)",
				filter.Before, filter.Before, filter.BeforeID,
			)
		}
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var notes []models.Note
	if err := query.Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *repository) ListByCreator(ctx context.Context, creatorID uuid.UUID, includeDeleted bool) ([]models.Note, error) {
	query := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC")
	if !includeDeleted {
		query = query.Where("is_deleted = ?", false)
	}

	var notes []models.Note
	if err := query.Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *repository) IncrementViews(ctx context.Context, noteID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Note{}).
		Where("id = ?", noteID).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

func (r *repository) IncrementPurchases(ctx context.Context, noteID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Note{}).
		Where("id = ?", noteID).
		UpdateColumn("purchases", gorm.Expr("purchases + 1")).Error
}

func (r *repository) SetRating(ctx context.Context, noteID uuid.UUID, average float64, count int64) error {
	return r.db.WithContext(ctx).Model(&models.Note{}).
		Where("id = ?", noteID).
		Updates(map[string]any{
			"rating_average": average,
			"rating_count":   count,
		}).Error
}
