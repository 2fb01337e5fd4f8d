package finance

import (
	"context"
	"time"

	"parishledger/internal/money"
)

// Totals is one currency's line on the balance sheet. Balance is
// income - expense within that currency; currencies are never netted
// against each other.
type Totals struct {
	Income  money.Amount `json:"income"`
	Expense money.Amount `json:"expense"`
	Balance money.Amount `json:"balance"`
}

// Repository reads the two aggregation sources: cotisation income from the
// payment ledger and expenses from the externally-captured entry ledger.
// Both return minor-unit sums per currency over the inclusive date window.
type Repository interface {
	IncomeByCurrency(ctx context.Context, periodStart, periodEnd time.Time) (map[money.Currency]int64, error)
	ExpenseByCurrency(ctx context.Context, periodStart, periodEnd time.Time) (map[money.Currency]int64, error)
}

// Aggregator computes per-currency balances over a date window. Reads are
// over whatever the ledgers hold at the time; a balance computed mid-write
// may be momentarily stale, which is acceptable here.
type Aggregator struct {
	repo Repository
}

// NewAggregator creates an aggregator over a repository.
func NewAggregator(repo Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// Balance sums income and expense per currency over [periodStart, periodEnd].
// A currency present on only one side still gets a full line, with the
// missing side at zero.
func (a *Aggregator) Balance(ctx context.Context, periodStart, periodEnd time.Time) (map[money.Currency]Totals, error) {
	income, err := a.repo.IncomeByCurrency(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	expense, err := a.repo.ExpenseByCurrency(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	out := make(map[money.Currency]Totals)
	for cur := range income {
		out[cur] = Totals{}
	}
	for cur := range expense {
		out[cur] = Totals{}
	}
	for cur := range out {
		in := money.New(income[cur], cur)
		ex := money.New(expense[cur], cur)
		bal, err := in.Sub(ex)
		if err != nil {
			return nil, err
		}
		out[cur] = Totals{Income: in, Expense: ex, Balance: bal}
	}
	return out, nil
}
