package admin

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
)

// Repository serves the moderation queue and platform-wide counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListNotesByStatus(ctx context.Context, status enums.NoteStatus) ([]models.Note, error)
	GetNote(ctx context.Context, noteID uuid.UUID) (*models.Note, error)
	TransitionNoteStatus(ctx context.Context, noteID uuid.UUID, from []enums.NoteStatus, to enums.NoteStatus, reason string) (bool, error)
	CountUsers(ctx context.Context, roles ...enums.UserRole) (int64, error)
	CountNotes(ctx context.Context, statuses ...enums.NoteStatus) (int64, error)
	CountPurchases(ctx context.Context) (int64, error)
	SumPurchaseRevenue(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an admin repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListNotesByStatus(ctx context.Context, status enums.NoteStatus) ([]models.Note, error) {
	var notes []models.Note
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_deleted = ?", status, false).
		Order("created_at DESC").
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *repository) GetNote(ctx context.Context, noteID uuid.UUID) (*models.Note, error) {
	var note models.Note
	if err := r.db.WithContext(ctx).First(&note, "id = ?", noteID).Error; err != nil {
		return nil, err
	}
	return &note, nil
}

// TransitionNoteStatus moves a note between moderation states with the guard
// in the WHERE clause, so two moderators acting at once cannot both win. The
// bool result reports whether the transition was applied.
func (r *repository) TransitionNoteStatus(ctx context.Context, noteID uuid.UUID, from []enums.NoteStatus, to enums.NoteStatus, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Note{}).
		Where("id = ? AND is_deleted = ? AND status IN ?", noteID, false, from).
		Updates(map[string]any{
			"status":        to,
			"review_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CountUsers(ctx context.Context, roles ...enums.UserRole) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})
	if len(roles) > 0 {
		query = query.Where("role IN ?", roles)
	}
	var n int64
	err := query.Count(&n).Error
	return n, err
}

func (r *repository) CountNotes(ctx context.Context, statuses ...enums.NoteStatus) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Note{}).Where("is_deleted = ?", false)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var n int64
	err := query.Count(&n).Error
	return n, err
}

func (r *repository) CountPurchases(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Purchase{}).Count(&n).Error
	return n, err
}

// SumPurchaseRevenue totals the buyer side of every note settlement.
func (r *repository) SumPurchaseRevenue(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("category = ? AND type = ?", enums.TransactionCategoryNotePurchase, enums.TransactionTypeDebit).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	return total, err
}
