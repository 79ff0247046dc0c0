package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/notemarket/backend/pkg/logger"
)

const defaultTutoringTTLDays = 14

// TutoringTTLJobParams configures the stale tutoring request sweep.
type TutoringTTLJobParams struct {
	Logger     *logger.Logger
	Repository tutoringExpiryRepo
	TTLDays    int
}

type tutoringExpiryRepo interface {
	ExpireOpenBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewTutoringTTLJob constructs the job that cancels tutoring requests no
// tutor picked up within the TTL window.
func NewTutoringTTLJob(params TutoringTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("tutoring repository required")
	}
	ttl := params.TTLDays
	if ttl <= 0 {
		ttl = defaultTutoringTTLDays
	}
	return &tutoringTTLJob{
		logg:    params.Logger,
		repo:    params.Repository,
		ttlDays: ttl,
		now:     time.Now,
	}, nil
}

type tutoringTTLJob struct {
	logg    *logger.Logger
	repo    tutoringExpiryRepo
	ttlDays int
	now     func() time.Time
}

func (j *tutoringTTLJob) Name() string { return "tutoring-ttl" }

func (j *tutoringTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.ttlDays) * 24 * time.Hour)
	cancelled, err := j.repo.ExpireOpenBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expire open tutoring requests: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"ttl_days":  j.ttlDays,
		"cancelled": cancelled,
	})
	j.logg.Info(logCtx, "tutoring ttl sweep complete")
	return nil
}
