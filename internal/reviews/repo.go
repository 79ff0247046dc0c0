package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/db/models"
)

// Repository persists reviews and computes per-note rating aggregates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, review *models.Review) error
	GetByUserAndNote(ctx context.Context, userID, noteID uuid.UUID) (*models.Review, error)
	Update(ctx context.Context, reviewID uuid.UUID, updates map[string]any) error
	ListByNote(ctx context.Context, noteID uuid.UUID, limit int) ([]models.Review, error)
	Aggregate(ctx context.Context, noteID uuid.UUID) (average float64, count int64, err error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *repository) GetByUserAndNote(ctx context.Context, userID, noteID uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND note_id = ?", userID, noteID).
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *repository) Update(ctx context.Context, reviewID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("id = ?", reviewID).
		Updates(updates).Error
}

func (r *repository) ListByNote(ctx context.Context, noteID uuid.UUID, limit int) ([]models.Review, error) {
	var rows []models.Review
	query := r.db.WithContext(ctx).
		Where("note_id = ?", noteID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Aggregate recomputes the rating average and count from the review rows, so
// the denormalized columns on notes can never drift past one recompute.
func (r *repository) Aggregate(ctx context.Context, noteID uuid.UUID) (float64, int64, error) {
	var result struct {
		Average float64
		Count   int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("note_id = ?", noteID).
		Scan(&result).Error
	if err != nil {
		return 0, 0, err
	}
	return result.Average, result.Count, nil
}
