package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/notemarket/backend/internal/ledger"
	"github.com/notemarket/backend/pkg/db/models"
	"github.com/notemarket/backend/pkg/logger"
)

const reconcileBatch = 200

// LedgerReconcileJobParams configures the nightly ledger audit.
type LedgerReconcileJobParams struct {
	Logger   *logger.Logger
	Accounts walletLister
	Ledger   reconciler
}

type walletLister interface {
	ListWallets(ctx context.Context, afterID uuid.UUID, limit int) ([]models.User, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, userID uuid.UUID, walletBalanceCents int64) (*ledger.ReconcileResult, error)
}

// NewLedgerReconcileJob constructs the job that recomputes every wallet
// balance from its transaction history and reports drift. Drift is a data
// bug, not a transient failure, so it is logged loudly rather than retried.
func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &ledgerReconcileJob{
		logg:     params.Logger,
		accounts: params.Accounts,
		ledger:   params.Ledger,
	}, nil
}

type ledgerReconcileJob struct {
	logg     *logger.Logger
	accounts walletLister
	ledger   reconciler
}

func (j *ledgerReconcileJob) Name() string { return "ledger-reconcile" }

func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	checked := 0
	drifted := 0
	afterID := uuid.Nil
	for {
		users, err := j.accounts.ListWallets(ctx, afterID, reconcileBatch)
		if err != nil {
			return fmt.Errorf("list wallets: %w", err)
		}
		if len(users) == 0 {
			break
		}
		for _, user := range users {
			result, err := j.ledger.Reconcile(ctx, user.ID, user.WalletBalanceCents)
			if err != nil {
				return fmt.Errorf("reconcile wallet %s: %w", user.ID, err)
			}
			checked++
			if result.Balanced {
				continue
			}
			drifted++
			driftCtx := j.logg.WithFields(ctx, map[string]any{
				"user_id":       user.ID,
				"balance_cents": result.BalanceCents,
				"net_cents":     result.NetCents,
			})
			j.logg.Warn(driftCtx, "wallet balance does not match ledger")
		}
		afterID = users[len(users)-1].ID
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked": checked,
		"drifted": drifted,
	})
	j.logg.Info(logCtx, "ledger reconcile sweep complete")
	return nil
}
