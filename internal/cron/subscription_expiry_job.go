package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/logger"
)

const subscriptionExpiryBatch = 500

// SubscriptionExpiryJobParams configures the subscription expiry sweep.
type SubscriptionExpiryJobParams struct {
	Logger   *logger.Logger
	Accounts expiredSubscriptionLister
	Expirer  subscriptionExpirer
}

type expiredSubscriptionLister interface {
	ListExpiredSubscriptions(ctx context.Context, asOf time.Time, limit int) ([]models.User, error)
}

type subscriptionExpirer interface {
	ExpireSubscription(ctx context.Context, userID uuid.UUID) error
}

// NewSubscriptionExpiryJob constructs the daily job that flips
// subscription_is_active off once the end date passes. The flag is display
// state: entitlement checks always compare the end date against the clock,
// so a late sweep never extends access.
func NewSubscriptionExpiryJob(params SubscriptionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("subscription expirer required")
	}
	return &subscriptionExpiryJob{
		logg:     params.Logger,
		accounts: params.Accounts,
		expirer:  params.Expirer,
		now:      time.Now,
	}, nil
}

type subscriptionExpiryJob struct {
	logg     *logger.Logger
	accounts expiredSubscriptionLister
	expirer  subscriptionExpirer
	now      func() time.Time
}

func (j *subscriptionExpiryJob) Name() string { return "subscription-expiry" }

func (j *subscriptionExpiryJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	users, err := j.accounts.ListExpiredSubscriptions(ctx, asOf, subscriptionExpiryBatch)
	if err != nil {
		return fmt.Errorf("query expired subscriptions: %w", err)
	}

	var errs []error
	expired := 0
	for _, user := range users {
		if err := j.expirer.ExpireSubscription(ctx, user.ID); err != nil {
			errs = append(errs, fmt.Errorf("expire subscription for %s: %w", user.ID, err))
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(users),
		"expired":    expired,
		"failed":     len(errs),
	})
	j.logg.Info(logCtx, "subscription expiry sweep complete")
	return multierr.Combine(errs...)
}
