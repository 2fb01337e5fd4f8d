package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"parishledger/internal/money"
	"parishledger/internal/registry"
)

func testRegistry() *registry.Memory {
	reg := registry.NewMemory()
	required := money.New(5000, money.CDF)
	reg.PutActivity(registry.Activity{
		ID:             "act-1",
		Title:          "Camp biblique",
		RequiredAmount: &required,
		Currency:       money.CDF,
		StartsAt:       time.Date(2025, 7, 12, 9, 0, 0, 0, time.UTC),
		EndsAt:         time.Date(2025, 7, 12, 17, 0, 0, 0, time.UTC),
	})
	reg.PutParticipant(registry.Participant{ID: "part-1", DisplayName: "Grace K.", Kind: registry.KindChild})
	return reg
}

// pinnedRepo returns a memory repository whose clock is frozen at the given
// instant, so receipt day keys are predictable.
func pinnedRepo(at time.Time) *MemoryRepository {
	repo := NewMemoryRepository()
	repo.now = func() time.Time { return at }
	return repo
}

func TestRecordPaymentAllocatesReceipts(t *testing.T) {
	ctx := context.Background()
	paidAt := time.Date(2025, 7, 12, 10, 0, 0, 0, time.UTC)
	svc := NewService(pinnedRepo(paidAt), testRegistry())

	first, err := svc.RecordPayment(ctx, "act-1", "part-1", money.New(2000, money.CDF), MethodCash, paidAt, "staff-1")
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if first.ReceiptID != "RC-20250712-0001" {
		t.Fatalf("unexpected receipt id %s", first.ReceiptID)
	}

	second, err := svc.RecordPayment(ctx, "act-1", "part-1", money.New(3000, money.CDF), MethodMobileMoney, paidAt.Add(time.Hour), "staff-1")
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if second.ReceiptID != "RC-20250712-0002" {
		t.Fatalf("sequence did not advance: %s", second.ReceiptID)
	}

	history, err := svc.History(ctx, "act-1", "part-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("transactions must accumulate, not merge: got %d", len(history))
	}
}

func TestTotalPaidSumsPair(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), testRegistry())
	paidAt := time.Date(2025, 7, 12, 10, 0, 0, 0, time.UTC)

	for _, minor := range []int64{2000, 3000, 0} {
		if _, err := svc.RecordPayment(ctx, "act-1", "part-1", money.New(minor, money.CDF), MethodCash, paidAt, "staff-1"); err != nil {
			t.Fatalf("payment of %d: %v", minor, err)
		}
	}
	total, err := svc.TotalPaid(ctx, "act-1", "part-1")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Minor != 5000 || total.Currency != money.CDF {
		t.Fatalf("got %v, want 5000 CDF", total)
	}
}

func TestOverpaymentIsAccepted(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), testRegistry())
	paidAt := time.Date(2025, 7, 12, 10, 0, 0, 0, time.UTC)

	if _, err := svc.RecordPayment(ctx, "act-1", "part-1", money.New(9000, money.CDF), MethodBank, paidAt, "staff-1"); err != nil {
		t.Fatalf("overpayment should be accepted: %v", err)
	}
	total, err := svc.TotalPaid(ctx, "act-1", "part-1")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Minor != 9000 {
		t.Fatalf("got %v, want 9000 CDF", total)
	}
}

func TestForeignCurrencyIsRejected(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewService(repo, testRegistry())
	paidAt := time.Date(2025, 7, 12, 10, 0, 0, 0, time.UTC)

	if _, err := svc.RecordPayment(ctx, "act-1", "part-1", money.New(50, money.USD), MethodCash, paidAt, "staff-1"); !errors.Is(err, money.ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch at write, got %v", err)
	}

	// A foreign-currency record that slipped in upstream must surface as a
	// mismatch on read, never silently sum.
	if _, err := repo.Create(ctx, Record{
		ActivityID: "act-1", ParticipantID: "part-1",
		Amount: money.New(50, money.USD), Method: MethodCash, PaidAt: paidAt,
	}); err != nil {
		t.Fatalf("seed foreign record: %v", err)
	}
	if _, err := svc.TotalPaid(ctx, "act-1", "part-1"); !errors.Is(err, money.ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch on read, got %v", err)
	}
}

func TestRecordPaymentUnknownIDs(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), testRegistry())
	if _, err := svc.RecordPayment(ctx, "act-missing", "part-1", money.New(100, money.CDF), MethodCash, time.Time{}, "staff-1"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.RecordPayment(ctx, "act-1", "part-missing", money.New(100, money.CDF), MethodCash, time.Time{}, "staff-1"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBackdatedPaymentKeepsCurrentDayKey(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2025, 7, 12, 10, 0, 0, 0, time.UTC)
	svc := NewService(pinnedRepo(today), testRegistry())

	// Payment numbered on its creation day even when paid_at is in the past:
	// a closed day's counter never moves again.
	backdated := today.AddDate(0, 0, -2)
	first, err := svc.RecordPayment(ctx, "act-1", "part-1", money.New(1000, money.CDF), MethodCash, backdated, "staff-1")
	if err != nil {
		t.Fatalf("back-dated payment: %v", err)
	}
	if first.ReceiptID != "RC-20250712-0001" {
		t.Fatalf("receipt must carry the creation day, got %s", first.ReceiptID)
	}
	if !first.PaidAt.Equal(backdated) {
		t.Fatalf("paid_at must be preserved, got %v", first.PaidAt)
	}

	second, err := svc.RecordPayment(ctx, "act-1", "part-1", money.New(1000, money.CDF), MethodCash, backdated, "staff-1")
	if err != nil {
		t.Fatalf("second back-dated payment: %v", err)
	}
	if second.ReceiptID != "RC-20250712-0002" {
		t.Fatalf("sequence must advance on the current day, got %s", second.ReceiptID)
	}
}

func TestSequencerConcurrentDistinct(t *testing.T) {
	const n = 64
	seq := NewMemorySequencer()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(ctx, "20250712")
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			results <- v
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for v := range results {
		if seen[v] {
			t.Fatalf("duplicate sequence number %d", v)
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d distinct numbers, want %d", len(seen), n)
	}
	for i := int64(1); i <= n; i++ {
		if !seen[i] {
			t.Fatalf("missing sequence number %d", i)
		}
	}
}

func TestSequencerScopedByDay(t *testing.T) {
	seq := NewMemorySequencer()
	ctx := context.Background()
	for day := 0; day < 2; day++ {
		key := fmt.Sprintf("2025071%d", day+2)
		for want := int64(1); want <= 3; want++ {
			got, err := seq.Next(ctx, key)
			if err != nil {
				t.Fatalf("next: %v", err)
			}
			if got != want {
				t.Fatalf("day %s: got %d, want %d", key, got, want)
			}
		}
	}
}

func TestFormatReceiptID(t *testing.T) {
	if got := FormatReceiptID("20250712", 7); got != "RC-20250712-0007" {
		t.Fatalf("got %s", got)
	}
	if got := DayKey(time.Date(2025, 7, 12, 23, 30, 0, 0, time.FixedZone("CAT", 2*3600))); got != "20250712" {
		t.Fatalf("day key must be UTC-based, got %s", got)
	}
}
