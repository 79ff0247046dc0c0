package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/notemarket/backend/pkg/config"
	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/logger"
)

type fakeRepo struct {
	pending   []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	fetchErr  error
}

func (r *fakeRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	if limit > len(r.pending) {
		limit = len(r.pending)
	}
	return r.pending[:limit], nil
}

func (r *fakeRepo) MarkPublished(id uuid.UUID) error {
	r.published = append(r.published, id)
	return nil
}

func (r *fakeRepo) MarkFailed(id uuid.UUID, err error) error {
	r.failed = append(r.failed, id)
	return nil
}

type fakePubSub struct{}

func (fakePubSub) Ping(context.Context) error            { return nil }
func (fakePubSub) DomainPublisher() *gcppubsub.Publisher { return nil }

type fakeResult struct {
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	return "server-id", r.err
}

type fakePublisher struct {
	messages   []*gcppubsub.Message
	publishErr error
}

func (p *fakePublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	p.messages = append(p.messages, msg)
	return fakeResult{err: p.publishErr}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testConfig() *config.Config {
	return &config.Config{
		Outbox: config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: 5},
	}
}

func pendingEvent(eventType enums.OutboxEventType) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.OutboxAggregatePurchase,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"eventId":"evt-1","occurredAt":"2026-01-02T03:04:05Z","data":{}}`),
		CreatedAt:     time.Now().UTC(),
	}
}

func buildService(t *testing.T, repo *fakeRepo, pub *fakePublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:           testConfig(),
		Logger:           testLogger(),
		Repository:       repo,
		PubSub:           fakePubSub{},
		PublisherFactory: func() publisher { return pub },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestProcessBatchPublishesInOrder(t *testing.T) {
	first := pendingEvent(enums.OutboxEventPurchaseSettled)
	second := pendingEvent(enums.OutboxEventWalletToppedUp)
	repo := &fakeRepo{pending: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{}
	svc := buildService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report work")
	}
	if len(pub.messages) != 2 {
		t.Fatalf("expected 2 published messages, got %d", len(pub.messages))
	}
	if len(repo.published) != 2 || repo.published[0] != first.ID || repo.published[1] != second.ID {
		t.Fatalf("unexpected published ids %v", repo.published)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected no failures, got %v", repo.failed)
	}

	attrs := pub.messages[0].Attributes
	if attrs["event_type"] != string(enums.OutboxEventPurchaseSettled) {
		t.Fatalf("unexpected event_type attribute %q", attrs["event_type"])
	}
	if attrs["aggregate_id"] != first.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id attribute %q", attrs["aggregate_id"])
	}
	if attrs["event_id"] != "evt-1" {
		t.Fatalf("expected envelope event id attribute, got %q", attrs["event_id"])
	}
}

func TestProcessBatchMarksFailureAndContinues(t *testing.T) {
	first := pendingEvent(enums.OutboxEventPurchaseSettled)
	repo := &fakeRepo{pending: []models.OutboxEvent{first}}
	pub := &fakePublisher{publishErr: errors.New("deadline exceeded")}
	svc := buildService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report work")
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("expected failure recorded for %s, got %v", first.ID, repo.failed)
	}
	if len(repo.published) != 0 {
		t.Fatalf("expected no published ids, got %v", repo.published)
	}
}

func TestProcessBatchEmptyQueue(t *testing.T) {
	repo := &fakeRepo{}
	svc := buildService(t, repo, &fakePublisher{})

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if processed {
		t.Fatal("expected idle batch")
	}
}

func TestProcessBatchPropagatesFetchError(t *testing.T) {
	repo := &fakeRepo{fetchErr: errors.New("connection reset")}
	svc := buildService(t, repo, &fakePublisher{})

	if _, err := svc.processBatch(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestNewServiceAppliesDefaults(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     testLogger(),
		Repository: &fakeRepo{},
		PubSub:     fakePubSub{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.batchSize != defaultBatchSize {
		t.Fatalf("batch size = %d", svc.batchSize)
	}
	if svc.maxAttempts != defaultMaxAttempts {
		t.Fatalf("max attempts = %d", svc.maxAttempts)
	}
	if svc.pollInterval != time.Duration(defaultPollMs)*time.Millisecond {
		t.Fatalf("poll interval = %s", svc.pollInterval)
	}
}
