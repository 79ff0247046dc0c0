package subscriptions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/notemarket/backend/internal/accounts"
	"github.com/notemarket/backend/internal/ledger"
	dbpkg "github.com/notemarket/backend/pkg/db"
	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/errors"
	"github.com/notemarket/backend/pkg/outbox"
)

type fixture struct {
	conn     *gorm.DB
	service  *service
	platform *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:subscriptions_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.User{}, &models.WalletTransaction{}, &models.OutboxEvent{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	platform := &models.User{
		ID:           uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		Email:        "platform@notemarket.internal",
		PasswordHash: "!locked",
		Name:         "Platform",
		Role:         enums.UserRoleAdmin,
	}
	if err := conn.Create(platform).Error; err != nil {
		t.Fatalf("seed platform account: %v", err)
	}

	accountsSvc, err := accounts.NewService(accounts.NewRepository(conn))
	if err != nil {
		t.Fatalf("accounts service: %v", err)
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}

	svc, err := NewService(Deps{
		DB:         dbpkg.NewWithConn(conn),
		Accounts:   accountsSvc,
		Ledger:     ledgerSvc,
		Events:     outbox.NewService(outbox.NewRepository(conn), nil),
		PriceCents: 47900,
		Duration:   30 * 24 * time.Hour,
		PlatformID: platform.ID,
	})
	if err != nil {
		t.Fatalf("subscriptions service: %v", err)
	}

	return &fixture{conn: conn, service: svc.(*service), platform: platform}
}

func (f *fixture) seedUser(t *testing.T, balanceCents int64) *models.User {
	t.Helper()
	user := &models.User{
		Email:              fmt.Sprintf("%s@example.com", uuid.NewString()),
		PasswordHash:       "hash",
		Name:               "Test User",
		Role:               enums.UserRoleUser,
		WalletBalanceCents: balanceCents,
	}
	if err := f.conn.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestPurchaseSubscription(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, 47900)

	result, err := f.service.PurchaseSubscription(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("purchase subscription: %v", err)
	}
	if result.NewBalanceCents != 0 {
		t.Fatalf("expected zero balance after exact-price purchase, got %d", result.NewBalanceCents)
	}
	if result.Plan != enums.SubscriptionPlanPlus {
		t.Fatalf("expected PLUS plan, got %s", result.Plan)
	}
	if got := result.EndsAt.Sub(result.StartsAt); got != 30*24*time.Hour {
		t.Fatalf("expected 30 day window, got %s", got)
	}

	var reloaded models.User
	if err := f.conn.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.SubscriptionPlan != enums.SubscriptionPlanPlus || !reloaded.SubscriptionIsActive {
		t.Fatalf("unexpected subscription state: plan=%s active=%v",
			reloaded.SubscriptionPlan, reloaded.SubscriptionIsActive)
	}
	if !reloaded.HasActiveSubscription(result.StartsAt.Add(29 * 24 * time.Hour)) {
		t.Fatal("expected day 29 to be covered")
	}
	if reloaded.HasActiveSubscription(result.StartsAt.Add(31 * 24 * time.Hour)) {
		t.Fatal("expected day 31 to be outside the window")
	}

	var platform models.User
	if err := f.conn.First(&platform, "id = ?", f.platform.ID).Error; err != nil {
		t.Fatalf("reload platform: %v", err)
	}
	if platform.WalletBalanceCents != 47900 {
		t.Fatalf("expected platform credited with full price, got %d", platform.WalletBalanceCents)
	}

	var entries []models.WalletTransaction
	if err := f.conn.Find(&entries).Error; err != nil {
		t.Fatalf("load ledger entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Category != enums.TransactionCategorySubscription {
			t.Fatalf("expected SUBSCRIPTION category, got %s", entry.Category)
		}
	}

	var events []models.OutboxEvent
	if err := f.conn.Find(&events).Error; err != nil {
		t.Fatalf("load outbox events: %v", err)
	}
	if len(events) != 1 || events[0].EventType != enums.OutboxEventSubscriptionActivated {
		t.Fatalf("expected one subscription_activated event, got %+v", events)
	}
}

func TestPurchaseSubscriptionAlreadyActive(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, 100000)
	ctx := context.Background()

	if _, err := f.service.PurchaseSubscription(ctx, user.ID); err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	_, err := f.service.PurchaseSubscription(ctx, user.ID)
	if !errors.HasCode(err, errors.CodeConflict) {
		t.Fatalf("expected conflict for active subscription, got %v", err)
	}

	// The rejected attempt must not debit.
	var reloaded models.User
	if err := f.conn.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.WalletBalanceCents != 100000-47900 {
		t.Fatalf("expected single debit, balance %d", reloaded.WalletBalanceCents)
	}
}

func TestPurchaseSubscriptionInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, 47899)

	_, err := f.service.PurchaseSubscription(context.Background(), user.ID)
	if !errors.HasCode(err, errors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	var reloaded models.User
	if err := f.conn.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.SubscriptionPlan != enums.SubscriptionPlanFree {
		t.Fatalf("expected FREE plan after failed purchase, got %s", reloaded.SubscriptionPlan)
	}
	var entries int64
	f.conn.Model(&models.WalletTransaction{}).Count(&entries)
	if entries != 0 {
		t.Fatalf("expected no ledger entries, got %d", entries)
	}
}

func TestPurchaseSubscriptionAfterExpiry(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, 100000)
	ctx := context.Background()

	if _, err := f.service.PurchaseSubscription(ctx, user.ID); err != nil {
		t.Fatalf("first purchase: %v", err)
	}

	// Move the clock past the window and renew.
	f.service.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	result, err := f.service.PurchaseSubscription(ctx, user.ID)
	if err != nil {
		t.Fatalf("renewal after expiry: %v", err)
	}
	if result.NewBalanceCents != 100000-2*47900 {
		t.Fatalf("expected balance after two purchases, got %d", result.NewBalanceCents)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, 47900)
	ctx := context.Background()

	status, err := f.service.Status(ctx, user.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Active || status.Plan != enums.SubscriptionPlanFree {
		t.Fatalf("expected inactive FREE status, got %+v", status)
	}

	if _, err := f.service.PurchaseSubscription(ctx, user.ID); err != nil {
		t.Fatalf("purchase subscription: %v", err)
	}
	status, err = f.service.Status(ctx, user.ID)
	if err != nil {
		t.Fatalf("status after purchase: %v", err)
	}
	if !status.Active || status.Plan != enums.SubscriptionPlanPlus {
		t.Fatalf("expected active PLUS status, got %+v", status)
	}
}

func TestPurchaseSubscriptionGuardHoldsWithoutPreRead(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, 100000)
	ctx := context.Background()

	// Mark the window active directly, as a competing settlement that has
	// already taken the row would. The purchase must fail on the conditional
	// grant itself, not on a pre-read of the flag.
	starts := time.Now().UTC()
	ends := starts.Add(30 * 24 * time.Hour)
	if err := f.conn.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"subscription_plan":      enums.SubscriptionPlanPlus,
		"subscription_starts_at": starts,
		"subscription_ends_at":   ends,
		"subscription_is_active": true,
	}).Error; err != nil {
		t.Fatalf("mark window active: %v", err)
	}

	_, err := f.service.PurchaseSubscription(ctx, user.ID)
	if !errors.HasCode(err, errors.CodeConflict) {
		t.Fatalf("expected conflict from conditional grant, got %v", err)
	}

	var reloaded models.User
	if err := f.conn.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.WalletBalanceCents != 100000 {
		t.Fatalf("expected no debit on rejected grant, balance %d", reloaded.WalletBalanceCents)
	}
	if reloaded.SubscriptionEndsAt == nil || !reloaded.SubscriptionEndsAt.Equal(ends) {
		t.Fatalf("expected existing window untouched, ends_at %v", reloaded.SubscriptionEndsAt)
	}
	var entries int64
	f.conn.Model(&models.WalletTransaction{}).Count(&entries)
	if entries != 0 {
		t.Fatalf("expected no ledger entries, got %d", entries)
	}
}

func TestPurchaseSubscriptionRenewsStaleActiveFlag(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t, 100000)
	ctx := context.Background()

	// Expired window the expiry sweep has not cleared yet: the flag still
	// reads active but the end date is in the past.
	starts := time.Now().UTC().Add(-40 * 24 * time.Hour)
	ends := starts.Add(30 * 24 * time.Hour)
	if err := f.conn.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"subscription_plan":      enums.SubscriptionPlanPlus,
		"subscription_starts_at": starts,
		"subscription_ends_at":   ends,
		"subscription_is_active": true,
	}).Error; err != nil {
		t.Fatalf("mark stale window: %v", err)
	}

	result, err := f.service.PurchaseSubscription(ctx, user.ID)
	if err != nil {
		t.Fatalf("renewal over stale flag: %v", err)
	}
	if result.NewBalanceCents != 100000-47900 {
		t.Fatalf("expected one debit, balance %d", result.NewBalanceCents)
	}
}
