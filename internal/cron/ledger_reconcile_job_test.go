package cron

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/notemarket/backend/internal/ledger"
	"github.com/notemarket/backend/pkg/db/models"
)

type fakeWalletLister struct {
	users []models.User
}

func (f *fakeWalletLister) ListWallets(ctx context.Context, afterID uuid.UUID, limit int) ([]models.User, error) {
	if afterID != uuid.Nil {
		return nil, nil
	}
	return f.users, nil
}

type fakeReconciler struct {
	driftFor uuid.UUID
	checked  []uuid.UUID
}

func (f *fakeReconciler) Reconcile(ctx context.Context, userID uuid.UUID, walletBalanceCents int64) (*ledger.ReconcileResult, error) {
	f.checked = append(f.checked, userID)
	return &ledger.ReconcileResult{
		UserID:       userID,
		BalanceCents: walletBalanceCents,
		Balanced:     userID != f.driftFor,
	}, nil
}

func TestLedgerReconcileChecksEveryWallet(t *testing.T) {
	users := make([]models.User, 0, 3)
	for i := 0; i < 3; i++ {
		users = append(users, models.User{ID: uuid.New(), WalletBalanceCents: int64(i) * 100})
	}
	recon := &fakeReconciler{}
	job, err := NewLedgerReconcileJob(LedgerReconcileJobParams{
		Logger:   testLogger(),
		Accounts: &fakeWalletLister{users: users},
		Ledger:   recon,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(recon.checked) != 3 {
		t.Fatalf("checked %d wallets, want 3", len(recon.checked))
	}
}

func TestLedgerReconcileDriftIsNotAnError(t *testing.T) {
	drifted := models.User{ID: uuid.New(), WalletBalanceCents: 999}
	job, err := NewLedgerReconcileJob(LedgerReconcileJobParams{
		Logger:   testLogger(),
		Accounts: &fakeWalletLister{users: []models.User{drifted}},
		Ledger:   &fakeReconciler{driftFor: drifted.ID},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}
