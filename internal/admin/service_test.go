package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	dbpkg "github.com/notemarket/backend/pkg/db"
	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/errors"
	"github.com/notemarket/backend/pkg/outbox"
)

type fixture struct {
	conn    *gorm.DB
	service Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:admin_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.User{},
		&models.Note{},
		&models.Purchase{},
		&models.WalletTransaction{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	events := outbox.NewService(outbox.NewRepository(conn), nil)
	service, err := NewService(NewRepository(conn), dbpkg.NewWithConn(conn), events)
	if err != nil {
		t.Fatalf("admin service: %v", err)
	}
	return &fixture{conn: conn, service: service}
}

func (f *fixture) seedUser(t *testing.T, role enums.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		Name:         "Test User",
		Role:         role,
	}
	if err := f.conn.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (f *fixture) seedNote(t *testing.T, creatorID uuid.UUID, status enums.NoteStatus) *models.Note {
	t.Helper()
	pages, _ := json.Marshal([]models.NotePage{
		{PageNumber: 1, Content: "Thermodynamics summary."},
	})
	note := &models.Note{
		Title:      "Thermodynamics",
		Subject:    "Physics",
		Pages:      pages,
		PriceCents: 3000,
		CreatorID:  creatorID,
		Status:     status,
	}
	if err := f.conn.Create(note).Error; err != nil {
		t.Fatalf("seed note: %v", err)
	}
	return note
}

func (f *fixture) reloadNote(t *testing.T, id uuid.UUID) *models.Note {
	t.Helper()
	var note models.Note
	if err := f.conn.First(&note, "id = ?", id).Error; err != nil {
		t.Fatalf("reload note %s: %v", id, err)
	}
	return &note
}

func TestReviewQueueListsParkedNotes(t *testing.T) {
	f := newFixture(t)
	creator := f.seedUser(t, enums.UserRoleNoteMaker)
	parked := f.seedNote(t, creator.ID, enums.NoteStatusPausedForReview)
	f.seedNote(t, creator.ID, enums.NoteStatusActive)
	f.seedNote(t, creator.ID, enums.NoteStatusDraft)

	deleted := f.seedNote(t, creator.ID, enums.NoteStatusPausedForReview)
	if err := f.conn.Model(&models.Note{}).Where("id = ?", deleted.ID).
		Update("is_deleted", true).Error; err != nil {
		t.Fatalf("soft delete note: %v", err)
	}

	queue, err := f.service.ReviewQueue(context.Background())
	if err != nil {
		t.Fatalf("review queue: %v", err)
	}
	if len(queue) != 1 {
		t.Fatalf("expected 1 note in queue, got %d", len(queue))
	}
	if queue[0].ID != parked.ID {
		t.Fatalf("expected parked note %s, got %s", parked.ID, queue[0].ID)
	}
}

func TestApproveNoteActivatesAndEmits(t *testing.T) {
	f := newFixture(t)
	creator := f.seedUser(t, enums.UserRoleNoteMaker)
	moderator := f.seedUser(t, enums.UserRoleAdmin)
	note := f.seedNote(t, creator.ID, enums.NoteStatusPausedForReview)

	approved, err := f.service.ApproveNote(context.Background(), note.ID, moderator.ID)
	if err != nil {
		t.Fatalf("approve note: %v", err)
	}
	if approved.Status != enums.NoteStatusActive {
		t.Fatalf("expected ACTIVE, got %s", approved.Status)
	}

	var events []models.OutboxEvent
	if err := f.conn.Find(&events).Error; err != nil {
		t.Fatalf("load outbox events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(events))
	}
	if events[0].EventType != enums.OutboxEventNotePublished {
		t.Fatalf("expected note published event, got %s", events[0].EventType)
	}
	if events[0].AggregateID != note.ID {
		t.Fatalf("expected aggregate %s, got %s", note.ID, events[0].AggregateID)
	}
}

func TestApproveNoteClearsRejectionReason(t *testing.T) {
	f := newFixture(t)
	creator := f.seedUser(t, enums.UserRoleNoteMaker)
	moderator := f.seedUser(t, enums.UserRoleAdmin)
	note := f.seedNote(t, creator.ID, enums.NoteStatusActive)
	ctx := context.Background()

	if _, err := f.service.RejectNote(ctx, note.ID, moderator.ID, "plagiarized content"); err != nil {
		t.Fatalf("reject note: %v", err)
	}
	rejected := f.reloadNote(t, note.ID)
	if rejected.Status != enums.NoteStatusRejected || rejected.ReviewReason != "plagiarized content" {
		t.Fatalf("expected rejection recorded, got status=%s reason=%q",
			rejected.Status, rejected.ReviewReason)
	}

	if _, err := f.service.ApproveNote(ctx, note.ID, moderator.ID); err != nil {
		t.Fatalf("approve rejected note: %v", err)
	}
	restored := f.reloadNote(t, note.ID)
	if restored.Status != enums.NoteStatusActive || restored.ReviewReason != "" {
		t.Fatalf("expected approval to clear the reason, got status=%s reason=%q",
			restored.Status, restored.ReviewReason)
	}
}

func TestApproveNoteStateGuards(t *testing.T) {
	f := newFixture(t)
	creator := f.seedUser(t, enums.UserRoleNoteMaker)
	moderator := f.seedUser(t, enums.UserRoleAdmin)
	ctx := context.Background()

	draft := f.seedNote(t, creator.ID, enums.NoteStatusDraft)
	if _, err := f.service.ApproveNote(ctx, draft.ID, moderator.ID); !errors.HasCode(err, errors.CodeStateConflict) {
		t.Fatalf("expected state conflict approving a draft, got %v", err)
	}
	if reloaded := f.reloadNote(t, draft.ID); reloaded.Status != enums.NoteStatusDraft {
		t.Fatalf("expected draft untouched, got %s", reloaded.Status)
	}

	if _, err := f.service.ApproveNote(ctx, uuid.New(), moderator.ID); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found for missing note, got %v", err)
	}

	var events int64
	f.conn.Model(&models.OutboxEvent{}).Count(&events)
	if events != 0 {
		t.Fatalf("expected no events for refused approvals, got %d", events)
	}
}

func TestRejectNoteStateGuards(t *testing.T) {
	f := newFixture(t)
	creator := f.seedUser(t, enums.UserRoleNoteMaker)
	moderator := f.seedUser(t, enums.UserRoleAdmin)
	ctx := context.Background()

	draft := f.seedNote(t, creator.ID, enums.NoteStatusDraft)
	if _, err := f.service.RejectNote(ctx, draft.ID, moderator.ID, "off topic"); !errors.HasCode(err, errors.CodeStateConflict) {
		t.Fatalf("expected state conflict rejecting a draft, got %v", err)
	}

	if _, err := f.service.RejectNote(ctx, uuid.New(), moderator.ID, "off topic"); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found for missing note, got %v", err)
	}
}

func TestStatsAggregates(t *testing.T) {
	f := newFixture(t)
	buyer := f.seedUser(t, enums.UserRoleUser)
	creator := f.seedUser(t, enums.UserRoleNoteMaker)
	f.seedUser(t, enums.UserRoleAdmin)
	ctx := context.Background()

	active := f.seedNote(t, creator.ID, enums.NoteStatusActive)
	f.seedNote(t, creator.ID, enums.NoteStatusPausedForReview)
	f.seedNote(t, creator.ID, enums.NoteStatusDraft)

	purchase := &models.Purchase{UserID: buyer.ID, NoteID: active.ID, PriceCents: 3000}
	if err := f.conn.Create(purchase).Error; err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
	transactions := []models.WalletTransaction{
		{
			UserID:   buyer.ID,
			Type:     enums.TransactionTypeDebit,
			Amount:   3000,
			Category: enums.TransactionCategoryNotePurchase,
			Status:   enums.TransactionStatusCompleted,
		},
		{
			UserID:   creator.ID,
			Type:     enums.TransactionTypeCredit,
			Amount:   2550,
			Category: enums.TransactionCategoryNotePurchase,
			Status:   enums.TransactionStatusCompleted,
		},
		{
			UserID:   buyer.ID,
			Type:     enums.TransactionTypeDebit,
			Amount:   999,
			Category: enums.TransactionCategorySubscription,
			Status:   enums.TransactionStatusCompleted,
		},
	}
	for i := range transactions {
		if err := f.conn.Create(&transactions[i]).Error; err != nil {
			t.Fatalf("seed transaction: %v", err)
		}
	}

	stats, err := f.service.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalUsers != 3 {
		t.Fatalf("expected 3 users, got %d", stats.TotalUsers)
	}
	if stats.NoteMakers != 2 {
		t.Fatalf("expected 2 notemakers (incl admin), got %d", stats.NoteMakers)
	}
	if stats.TotalNotes != 3 || stats.ActiveNotes != 1 || stats.PendingReview != 1 {
		t.Fatalf("unexpected note counts: %+v", stats)
	}
	if stats.TotalPurchases != 1 {
		t.Fatalf("expected 1 purchase, got %d", stats.TotalPurchases)
	}
	// Revenue counts only the buyer-side debit of note settlements, so the
	// creator credit and the subscription charge stay out.
	if stats.TotalRevenueCents != 3000 {
		t.Fatalf("expected revenue 3000, got %d", stats.TotalRevenueCents)
	}
}
