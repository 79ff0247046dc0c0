package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/notemarket/backend/pkg/migrate"
)

func TestMigrationDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestUsersMigrationContainsWalletConstraints(t *testing.T) {
	content := readMigration(t, "*_create_users_table.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS users",
		"CHECK (wallet_balance_cents >= 0)",
		"subscription_plan subscription_plan_enum NOT NULL DEFAULT 'FREE'",
		"'00000000-0000-0000-0000-000000000001'",
		"ON CONFLICT (id) DO NOTHING",
		"DROP TABLE IF EXISTS users",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPurchasesMigrationContainsUniqueGuard(t *testing.T) {
	content := readMigration(t, "*_create_purchases_table.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS purchases",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_purchases_user_note ON purchases (user_id, note_id)",
		"FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS purchases",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestWalletTransactionsMigrationContainsLedgerConstraints(t *testing.T) {
	content := readMigration(t, "*_create_wallet_transactions_table.sql")

	checks := []string{
		"CREATE TYPE transaction_type_enum AS ENUM ('CREDIT', 'DEBIT')",
		"CREATE TABLE IF NOT EXISTS wallet_transactions",
		"CHECK (amount_cents > 0)",
		"CHECK (balance_after_cents >= 0)",
		"CREATE INDEX IF NOT EXISTS ix_wallet_tx_user_created",
		"DROP TABLE IF EXISTS wallet_transactions",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
