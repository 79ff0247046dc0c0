package tutoring

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
)

// Repository persists tutoring sessions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, session *models.TutoringSession) error
	GetByID(ctx context.Context, sessionID uuid.UUID) (*models.TutoringSession, error)
	Update(ctx context.Context, sessionID uuid.UUID, updates map[string]any) error
	TransitionStatus(ctx context.Context, sessionID uuid.UUID, from, to enums.TutoringStatus, updates map[string]any) (bool, error)
	ListOpen(ctx context.Context, subject string, limit int) ([]models.TutoringSession, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.TutoringSession, error)
	ExpireOpenBefore(ctx context.Context, cutoff time.Time) (int64, error)
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

func (r *repository) Create(ctx context.Context, session *models.TutoringSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) GetByID(ctx context.Context, sessionID uuid.UUID) (*models.TutoringSession, error) {
	var session models.TutoringSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) Update(ctx context.Context, sessionID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.TutoringSession{}).
		Where("id = ?", sessionID).
		Updates(updates).Error
}

// TransitionStatus applies updates only when the session still holds the
// expected status, so two racing transitions cannot both win.
func (r *repository) TransitionStatus(ctx context.Context, sessionID uuid.UUID, from, to enums.TutoringStatus, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	result := r.db.WithContext(ctx).
		Model(&models.TutoringSession{}).
		Where("id = ? AND status = ?", sessionID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListOpen(ctx context.Context, subject string, limit int) ([]models.TutoringSession, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.TutoringStatusOpen).
		Order("created_at DESC, id DESC")
	if subject != "" {
		query = query.Where("subject = ?", subject)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.TutoringSession
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ExpireOpenBefore cancels requests that sat unclaimed past the cutoff.
// Only OPEN rows match, so a request accepted mid-sweep is left alone.
func (r *repository) ExpireOpenBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.TutoringSession{}).
		Where("status = ? AND created_at < ?", enums.TutoringStatusOpen, cutoff).
		Update("status", enums.TutoringStatusCancelled)
	return result.RowsAffected, result.Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.TutoringSession, error) {
	var rows []models.TutoringSession
	err := r.db.WithContext(ctx).
		Where("requester_id = ? OR tutor_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
