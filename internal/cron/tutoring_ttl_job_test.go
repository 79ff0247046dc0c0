package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeTutoringRepo struct {
	cutoff    time.Time
	cancelled int64
	err       error
}

func (r *fakeTutoringRepo) ExpireOpenBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.cutoff = cutoff
	return r.cancelled, r.err
}

func TestTutoringTTLJobUsesConfiguredWindow(t *testing.T) {
	repo := &fakeTutoringRepo{cancelled: 3}
	job, err := NewTutoringTTLJob(TutoringTTLJobParams{
		Logger:     testLogger(),
		Repository: repo,
		TTLDays:    7,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := time.Now().UTC().Add(-7 * 24 * time.Hour)
	if diff := repo.cutoff.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("cutoff = %s, want near %s", repo.cutoff, want)
	}
}

func TestTutoringTTLJobDefaultsTTL(t *testing.T) {
	repo := &fakeTutoringRepo{}
	job, err := NewTutoringTTLJob(TutoringTTLJobParams{
		Logger:     testLogger(),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := time.Now().UTC().Add(-defaultTutoringTTLDays * 24 * time.Hour)
	if diff := repo.cutoff.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("cutoff = %s, want near %s", repo.cutoff, want)
	}
}

func TestTutoringTTLJobPropagatesError(t *testing.T) {
	repo := &fakeTutoringRepo{err: errors.New("deadlock detected")}
	job, err := NewTutoringTTLJob(TutoringTTLJobParams{
		Logger:     testLogger(),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
