package accounts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/enums"
	"github.com/notemarket/backend/pkg/errors"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:accounts_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return conn
}

func seedUser(t *testing.T, conn *gorm.DB, balanceCents int64) *models.User {
	t.Helper()
	user := &models.User{
		Email:              fmt.Sprintf("%s@example.com", uuid.NewString()),
		PasswordHash:       "hash",
		Name:               "Test User",
		Role:               enums.UserRoleUser,
		WalletBalanceCents: balanceCents,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	service, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestDebitTracksSpend(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)
	user := seedUser(t, conn, 10000)

	balance, err := service.Debit(context.Background(), DebitInput{
		UserID:      user.ID,
		AmountCents: 4500,
		TrackSpend:  true,
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if balance != 5500 {
		t.Fatalf("expected balance 5500, got %d", balance)
	}

	var reloaded models.User
	if err := conn.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.WalletBalanceCents != 5500 {
		t.Fatalf("expected stored balance 5500, got %d", reloaded.WalletBalanceCents)
	}
	if reloaded.TotalSpentCents != 4500 {
		t.Fatalf("expected total spent 4500, got %d", reloaded.TotalSpentCents)
	}
}

func TestDebitExactBalance(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)
	user := seedUser(t, conn, 4500)

	balance, err := service.Debit(context.Background(), DebitInput{
		UserID:      user.ID,
		AmountCents: 4500,
	})
	if err != nil {
		t.Fatalf("debit at exact balance should succeed: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected zero balance, got %d", balance)
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)
	user := seedUser(t, conn, 100)

	_, err := service.Debit(context.Background(), DebitInput{
		UserID:      user.ID,
		AmountCents: 101,
	})
	if !errors.HasCode(err, errors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds error, got %v", err)
	}

	var reloaded models.User
	if err := conn.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.WalletBalanceCents != 100 {
		t.Fatalf("rejected debit must not change balance, got %d", reloaded.WalletBalanceCents)
	}
}

func TestDebitMissingUser(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)

	_, err := service.Debit(context.Background(), DebitInput{
		UserID:      uuid.New(),
		AmountCents: 100,
	})
	if !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)
	user := seedUser(t, conn, 1000)

	for _, amount := range []int64{0, -50} {
		_, err := service.Debit(context.Background(), DebitInput{
			UserID:      user.ID,
			AmountCents: amount,
		})
		if !errors.HasCode(err, errors.CodeValidation) {
			t.Fatalf("expected validation error for amount %d, got %v", amount, err)
		}
	}
}

func TestCreditTracksEarnings(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)
	user := seedUser(t, conn, 0)

	balance, err := service.Credit(context.Background(), CreditInput{
		UserID:        user.ID,
		AmountCents:   8500,
		TrackEarnings: true,
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if balance != 8500 {
		t.Fatalf("expected balance 8500, got %d", balance)
	}

	var reloaded models.User
	if err := conn.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.TotalEarningsCents != 8500 {
		t.Fatalf("expected total earnings 8500, got %d", reloaded.TotalEarningsCents)
	}
}

func TestCreditMissingUser(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)

	_, err := service.Credit(context.Background(), CreditInput{
		UserID:      uuid.New(),
		AmountCents: 100,
	})
	if !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRepeatedDebitsNeverOverspend(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)
	user := seedUser(t, conn, 500)

	var applied int
	for i := 0; i < 10; i++ {
		_, err := service.Debit(context.Background(), DebitInput{
			UserID:      user.ID,
			AmountCents: 100,
		})
		switch {
		case err == nil:
			applied++
		case errors.HasCode(err, errors.CodeInsufficientFunds):
		default:
			t.Fatalf("unexpected error on attempt %d: %v", i, err)
		}
	}
	if applied != 5 {
		t.Fatalf("expected exactly 5 debits of 100 against a 500 balance, got %d", applied)
	}

	var reloaded models.User
	if err := conn.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.WalletBalanceCents != 0 {
		t.Fatalf("expected drained balance, got %d", reloaded.WalletBalanceCents)
	}
}

func TestGrantAndExpireSubscription(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)
	user := seedUser(t, conn, 0)

	start := time.Now().UTC()
	end := start.Add(30 * 24 * time.Hour)
	if err := service.GrantSubscription(context.Background(), user.ID, enums.SubscriptionPlanPlus, start, end); err != nil {
		t.Fatalf("grant subscription: %v", err)
	}

	var reloaded models.User
	if err := conn.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.SubscriptionPlan != enums.SubscriptionPlanPlus {
		t.Fatalf("expected PLUS plan, got %s", reloaded.SubscriptionPlan)
	}
	if !reloaded.SubscriptionIsActive {
		t.Fatal("expected subscription marked active")
	}
	if !reloaded.HasActiveSubscription(start.Add(24 * time.Hour)) {
		t.Fatal("expected subscription to cover day 1")
	}
	if reloaded.HasActiveSubscription(end.Add(time.Hour)) {
		t.Fatal("expected subscription to lapse after the end date")
	}

	if err := service.ExpireSubscription(context.Background(), user.ID); err != nil {
		t.Fatalf("expire subscription: %v", err)
	}
	if err := conn.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.SubscriptionPlan != enums.SubscriptionPlanFree {
		t.Fatalf("expected FREE plan after expiry, got %s", reloaded.SubscriptionPlan)
	}
	if reloaded.SubscriptionIsActive {
		t.Fatal("expected subscription marked inactive after expiry")
	}
}

func TestGrantSubscriptionRejectsOverlappingWindow(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)
	user := seedUser(t, conn, 0)
	ctx := context.Background()

	start := time.Now().UTC()
	end := start.Add(30 * 24 * time.Hour)
	if err := service.GrantSubscription(ctx, user.ID, enums.SubscriptionPlanPlus, start, end); err != nil {
		t.Fatalf("first grant: %v", err)
	}

	// A second grant inside the window must lose on the conditional UPDATE.
	err := service.GrantSubscription(ctx, user.ID, enums.SubscriptionPlanPlus, start.Add(time.Hour), end.Add(time.Hour))
	if !errors.HasCode(err, errors.CodeConflict) {
		t.Fatalf("expected conflict for overlapping grant, got %v", err)
	}
	var reloaded models.User
	if err := conn.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.SubscriptionEndsAt == nil || !reloaded.SubscriptionEndsAt.Equal(end) {
		t.Fatalf("expected first window kept, ends_at %v", reloaded.SubscriptionEndsAt)
	}

	// Once the window has lapsed a new grant goes through.
	renewStart := end.Add(time.Hour)
	if err := service.GrantSubscription(ctx, user.ID, enums.SubscriptionPlanPlus, renewStart, renewStart.Add(30*24*time.Hour)); err != nil {
		t.Fatalf("grant after lapse: %v", err)
	}
}

func TestGrantSubscriptionMissingUser(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)

	start := time.Now().UTC()
	err := service.GrantSubscription(context.Background(), uuid.New(), enums.SubscriptionPlanPlus, start, start.Add(time.Hour))
	if !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
