package ledger

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
	"github.com/notemarket/backend/pkg/pagination"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.WalletTransaction{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	service, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestRecordEntry(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)
	userID := uuid.New()
	noteID := uuid.New()

	entry, err := service.RecordEntry(context.Background(), RecordEntryInput{
		UserID:            userID,
		Type:              enums.TransactionTypeDebit,
		AmountCents:       4500,
		Category:          enums.TransactionCategoryNotePurchase,
		Description:       "Purchased: Linear Algebra Summary",
		RelatedNoteID:     &noteID,
		BalanceAfterCents: 5500,
	})
	if err != nil {
		t.Fatalf("record entry: %v", err)
	}
	if entry.ID == uuid.Nil {
		t.Fatal("expected entry id to be assigned")
	}
	if entry.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected COMPLETED status, got %s", entry.Status)
	}
	if entry.BalanceAfterCents != 5500 {
		t.Fatalf("expected balance snapshot 5500, got %d", entry.BalanceAfterCents)
	}
}

func TestRecordEntryValidation(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)
	ctx := context.Background()
	base := RecordEntryInput{
		UserID:            uuid.New(),
		Type:              enums.TransactionTypeCredit,
		AmountCents:       100,
		Category:          enums.TransactionCategoryTopUp,
		BalanceAfterCents: 100,
	}

	missing := base
	missing.UserID = uuid.Nil
	if _, err := service.RecordEntry(ctx, missing); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for missing user, got %v", err)
	}

	badType := base
	badType.Type = "TRANSFER"
	if _, err := service.RecordEntry(ctx, badType); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for bad type, got %v", err)
	}

	badAmount := base
	badAmount.AmountCents = 0
	if _, err := service.RecordEntry(ctx, badAmount); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}

	badSnapshot := base
	badSnapshot.BalanceAfterCents = -1
	if _, err := service.RecordEntry(ctx, badSnapshot); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for negative snapshot, got %v", err)
	}
}

func TestListTransactionsPagination(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)
	userID := uuid.New()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		entry := models.WalletTransaction{
			UserID:            userID,
			Type:              enums.TransactionTypeCredit,
			Amount:            int64(100 * (i + 1)),
			Category:          enums.TransactionCategoryTopUp,
			BalanceAfterCents: int64(100 * (i + 1)),
			Status:            enums.TransactionStatusCompleted,
			CreatedAt:         base.Add(time.Duration(i) * time.Minute),
		}
		if err := conn.Create(&entry).Error; err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}

	first, err := service.ListTransactions(ctx, ListTransactionsInput{
		UserID: userID,
		Page:   pagination.Params{Limit: 3},
	})
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(first.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(first.Items))
	}
	if first.NextCursor == "" {
		t.Fatal("expected next cursor on first page")
	}
	if first.Items[0].Amount != 500 {
		t.Fatalf("expected newest entry first, got amount %d", first.Items[0].Amount)
	}

	second, err := service.ListTransactions(ctx, ListTransactionsInput{
		UserID: userID,
		Page:   pagination.Params{Limit: 3, Cursor: first.NextCursor},
	})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Items) != 2 {
		t.Fatalf("expected 2 items on second page, got %d", len(second.Items))
	}
	if second.NextCursor != "" {
		t.Fatal("expected no cursor on final page")
	}
}

func TestListTransactionsFilters(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)
	userID := uuid.New()
	ctx := context.Background()

	seed := []models.WalletTransaction{
		{UserID: userID, Type: enums.TransactionTypeCredit, Amount: 1000, Category: enums.TransactionCategoryTopUp, BalanceAfterCents: 1000, Status: enums.TransactionStatusCompleted},
		{UserID: userID, Type: enums.TransactionTypeDebit, Amount: 300, Category: enums.TransactionCategoryNotePurchase, BalanceAfterCents: 700, Status: enums.TransactionStatusCompleted},
		{UserID: userID, Type: enums.TransactionTypeDebit, Amount: 479, Category: enums.TransactionCategorySubscription, BalanceAfterCents: 221, Status: enums.TransactionStatusCompleted},
	}
	for i := range seed {
		if err := conn.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}

	debits, err := service.ListTransactions(ctx, ListTransactionsInput{
		UserID: userID,
		Type:   enums.TransactionTypeDebit,
	})
	if err != nil {
		t.Fatalf("list debits: %v", err)
	}
	if len(debits.Items) != 2 {
		t.Fatalf("expected 2 debits, got %d", len(debits.Items))
	}

	subs, err := service.ListTransactions(ctx, ListTransactionsInput{
		UserID:   userID,
		Category: enums.TransactionCategorySubscription,
	})
	if err != nil {
		t.Fatalf("list subscription entries: %v", err)
	}
	if len(subs.Items) != 1 {
		t.Fatalf("expected 1 subscription entry, got %d", len(subs.Items))
	}
}

func TestReconcile(t *testing.T) {
	conn := openTestDB(t)
	service := newTestService(t, conn)
	userID := uuid.New()
	ctx := context.Background()

	seed := []models.WalletTransaction{
		{UserID: userID, Type: enums.TransactionTypeCredit, Amount: 10000, Category: enums.TransactionCategoryTopUp, BalanceAfterCents: 10000, Status: enums.TransactionStatusCompleted},
		{UserID: userID, Type: enums.TransactionTypeDebit, Amount: 4500, Category: enums.TransactionCategoryNotePurchase, BalanceAfterCents: 5500, Status: enums.TransactionStatusCompleted},
		{UserID: userID, Type: enums.TransactionTypeCredit, Amount: 850, Category: enums.TransactionCategoryNoteSale, BalanceAfterCents: 6350, Status: enums.TransactionStatusCompleted},
	}
	for i := range seed {
		if err := conn.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}

	result, err := service.Reconcile(ctx, userID, 6350)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.CreditTotalCents != 10850 {
		t.Fatalf("expected credits 10850, got %d", result.CreditTotalCents)
	}
	if result.DebitTotalCents != 4500 {
		t.Fatalf("expected debits 4500, got %d", result.DebitTotalCents)
	}
	if !result.Balanced {
		t.Fatal("expected ledger to balance against wallet")
	}

	drifted, err := service.Reconcile(ctx, userID, 9999)
	if err != nil {
		t.Fatalf("reconcile drifted: %v", err)
	}
	if drifted.Balanced {
		t.Fatal("expected drifted balance to be flagged")
	}
}
