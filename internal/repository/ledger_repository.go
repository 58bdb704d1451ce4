package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/shopspring/decimal"
)

type ledgerRepository struct {
	db sqlx.ExtContext
}

func NewLedgerRepository(db sqlx.ExtContext) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (id, user_id, entry_type, amount, reference, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.EntryType,
		entry.Amount,
		entry.Reference,
		entry.Metadata,
		entry.CreatedAt,
	)

	return classify(err)
}

func (r *ledgerRepository) SumByUser(ctx context.Context, userID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE user_id = $1
	`

	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, r.db, &total, query, userID); err != nil {
		return decimal.Zero, classify(err)
	}

	return total, nil
}

func (r *ledgerRepository) ListByUser(ctx context.Context, userID string) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT id, user_id, entry_type, amount, reference, metadata, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at, id
	`

	var entries []*domain.LedgerEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, userID); err != nil {
		return nil, classify(err)
	}

	return entries, nil
}

func (r *ledgerRepository) ExistsReference(ctx context.Context, reference string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE reference = $1)`

	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, query, reference); err != nil {
		return false, classify(err)
	}

	return exists, nil
}
