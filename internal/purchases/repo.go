package purchases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/db/models"
)

// Repository manages persistence for purchases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, purchase *models.Purchase) error
	GetByID(ctx context.Context, purchaseID uuid.UUID) (*models.Purchase, error)
	GetByUserAndNote(ctx context.Context, userID, noteID uuid.UUID) (*models.Purchase, error)
	ExistsByUserAndNote(ctx context.Context, userID, noteID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error)
	Update(ctx context.Context, purchaseID uuid.UUID, updates map[string]any) error
	TouchAccess(ctx context.Context, purchaseID uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a purchases repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) GetByID(ctx context.Context, purchaseID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).First(&purchase, "id = ?", purchaseID).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) GetByUserAndNote(ctx context.Context, userID, noteID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).
		First(&purchase, "user_id = ? AND note_id = ?", userID, noteID).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) ExistsByUserAndNote(ctx context.Context, userID, noteID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("user_id = ? AND note_id = ?", userID, noteID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error) {
	var purchases []models.Purchase
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&purchases).Error; err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *repository) Update(ctx context.Context, purchaseID uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("id = ?", purchaseID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) TouchAccess(ctx context.Context, purchaseID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("id = ?", purchaseID).
		Updates(map[string]any{
			"last_accessed_at": at,
			"access_count":     gorm.Expr("access_count + 1"),
		}).Error
}
