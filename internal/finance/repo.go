package finance

import (
	"context"
	"database/sql"
	"time"

	"parishledger/internal/money"
)

// PGRepository aggregates income and expenses from Postgres. Income comes
// from the payments table; expenses from ledger_entries, whose rows are
// captured by an external collaborator and only read here.
type PGRepository struct {
	db *sql.DB
}

// NewPGRepository creates a repo.
func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db}
}

// IncomeByCurrency sums payment amounts per currency over the window.
func (r *PGRepository) IncomeByCurrency(ctx context.Context, periodStart, periodEnd time.Time) (map[money.Currency]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT currency, COALESCE(SUM(amount_minor), 0)
		FROM payments
		WHERE paid_at::date BETWEEN $1::date AND $2::date
		GROUP BY currency
	`, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	return sumRows(rows)
}

// ExpenseByCurrency sums expense ledger entries per currency over the window.
func (r *PGRepository) ExpenseByCurrency(ctx context.Context, periodStart, periodEnd time.Time) (map[money.Currency]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT currency, COALESCE(SUM(amount_minor), 0)
		FROM ledger_entries
		WHERE kind = 'expense' AND entry_date BETWEEN $1::date AND $2::date
		GROUP BY currency
	`, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	return sumRows(rows)
}

func sumRows(rows *sql.Rows) (map[money.Currency]int64, error) {
	defer rows.Close()
	out := make(map[money.Currency]int64)
	for rows.Next() {
		var (
			code string
			sum  int64
		)
		if err := rows.Scan(&code, &sum); err != nil {
			return nil, err
		}
		cur, err := money.ParseCurrency(code)
		if err != nil {
			return nil, err
		}
		out[cur] = sum
	}
	return out, rows.Err()
}
