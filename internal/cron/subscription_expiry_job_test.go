package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/notemarket/backend/pkg/db/models"
)

type fakeSubscriptionLister struct {
	users []models.User
	err   error
	asOf  time.Time
}

func (f *fakeSubscriptionLister) ListExpiredSubscriptions(ctx context.Context, asOf time.Time, limit int) ([]models.User, error) {
	f.asOf = asOf
	return f.users, f.err
}

type fakeExpirer struct {
	expired []uuid.UUID
	failFor uuid.UUID
}

func (f *fakeExpirer) ExpireSubscription(ctx context.Context, userID uuid.UUID) error {
	if userID == f.failFor {
		return errors.New("db down")
	}
	f.expired = append(f.expired, userID)
	return nil
}

func TestSubscriptionExpiryFlipsAllCandidates(t *testing.T) {
	users := []models.User{{ID: uuid.New()}, {ID: uuid.New()}}
	expirer := &fakeExpirer{}
	job, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{
		Logger:   testLogger(),
		Accounts: &fakeSubscriptionLister{users: users},
		Expirer:  expirer,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(expirer.expired) != 2 {
		t.Fatalf("expired %d users, want 2", len(expirer.expired))
	}
}

func TestSubscriptionExpiryContinuesPastFailures(t *testing.T) {
	bad := uuid.New()
	good := uuid.New()
	expirer := &fakeExpirer{failFor: bad}
	job, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{
		Logger:   testLogger(),
		Accounts: &fakeSubscriptionLister{users: []models.User{{ID: bad}, {ID: good}}},
		Expirer:  expirer,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if len(expirer.expired) != 1 || expirer.expired[0] != good {
		t.Fatalf("expired = %v, want only %s", expirer.expired, good)
	}
}

func TestSubscriptionExpiryQueryError(t *testing.T) {
	job, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{
		Logger:   testLogger(),
		Accounts: &fakeSubscriptionLister{err: errors.New("timeout")},
		Expirer:  &fakeExpirer{},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
