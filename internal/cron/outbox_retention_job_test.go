package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRetentionRepo struct {
	cutoff      time.Time
	minAttempts int
	deleted     int64
	err         error
}

func (f *fakeRetentionRepo) DeletePublishedBefore(cutoff time.Time, minAttempts int) (int64, error) {
	f.cutoff = cutoff
	f.minAttempts = minAttempts
	return f.deleted, f.err
}

func TestOutboxRetentionUsesConfiguredWindow(t *testing.T) {
	repo := &fakeRetentionRepo{deleted: 7}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      testLogger(),
		Repository:  repo,
		Retention:   10,
		MinAttempts: 3,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	before := time.Now().UTC().Add(-10 * 24 * time.Hour)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if repo.minAttempts != 3 {
		t.Fatalf("min attempts = %d, want 3", repo.minAttempts)
	}
	if repo.cutoff.Before(before.Add(-time.Minute)) || repo.cutoff.After(before.Add(time.Minute)) {
		t.Fatalf("cutoff = %v, want about %v", repo.cutoff, before)
	}
}

func TestOutboxRetentionDefaults(t *testing.T) {
	repo := &fakeRetentionRepo{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if repo.minAttempts != outboxMinAttempts {
		t.Fatalf("min attempts = %d, want %d", repo.minAttempts, outboxMinAttempts)
	}
}

func TestOutboxRetentionPropagatesError(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		Repository: &fakeRetentionRepo{err: errors.New("locked")},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
