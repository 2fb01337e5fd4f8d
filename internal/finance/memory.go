package finance

import (
	"context"
	"sync"
	"time"

	"parishledger/internal/money"
)

type entry struct {
	date   time.Time
	amount money.Amount
}

// MemoryRepository is the in-memory aggregation source used by tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	income   []entry
	expenses []entry
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// AddIncome records an income fact on a date.
func (r *MemoryRepository) AddIncome(date time.Time, amount money.Amount) {
	r.mu.Lock()
	r.income = append(r.income, entry{date: date, amount: amount})
	r.mu.Unlock()
}

// AddExpense records an expense fact on a date.
func (r *MemoryRepository) AddExpense(date time.Time, amount money.Amount) {
	r.mu.Lock()
	r.expenses = append(r.expenses, entry{date: date, amount: amount})
	r.mu.Unlock()
}

// IncomeByCurrency sums income per currency over the inclusive window.
func (r *MemoryRepository) IncomeByCurrency(_ context.Context, periodStart, periodEnd time.Time) (map[money.Currency]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sumEntries(r.income, periodStart, periodEnd), nil
}

// ExpenseByCurrency sums expenses per currency over the inclusive window.
func (r *MemoryRepository) ExpenseByCurrency(_ context.Context, periodStart, periodEnd time.Time) (map[money.Currency]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sumEntries(r.expenses, periodStart, periodEnd), nil
}

func sumEntries(entries []entry, start, end time.Time) map[money.Currency]int64 {
	out := make(map[money.Currency]int64)
	for _, e := range entries {
		if dateOnly(e.date).Before(dateOnly(start)) || dateOnly(e.date).After(dateOnly(end)) {
			continue
		}
		out[e.amount.Currency] += e.amount.Minor
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
