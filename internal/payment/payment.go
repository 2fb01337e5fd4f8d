package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parishledger/internal/money"
)

// Method is how a payment was made.
type Method string

const (
	MethodCash        Method = "cash"
	MethodMobileMoney Method = "mobile-money"
	MethodBank        Method = "bank"
)

// ParseMethod validates a payment method value.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodCash, MethodMobileMoney, MethodBank:
		return Method(s), nil
	}
	return "", fmt.Errorf("invalid payment method %q", s)
}

// ErrReceiptConflict indicates two payments received the same receipt id.
// A correct sequencer never produces it; seeing it means the counter's
// atomicity was violated upstream.
var ErrReceiptConflict = errors.New("receipt id already allocated")

// Record is one payment transaction. Records are append-only: never
// mutated, never merged, and several may accumulate per pair.
type Record struct {
	ReceiptID     string       `json:"receipt_id"`
	ActivityID    string       `json:"activity_id"`
	ParticipantID string       `json:"participant_id"`
	Amount        money.Amount `json:"amount"`
	Method        Method       `json:"method"`
	PaidAt        time.Time    `json:"paid_at"`
	RecordedBy    string       `json:"recorded_by"`
	CreatedAt     time.Time    `json:"created_at"`
}

// DayKey scopes receipt numbering to one calendar day (UTC).
func DayKey(t time.Time) string {
	return t.UTC().Format("20060102")
}

// FormatReceiptID renders the public receipt identifier.
func FormatReceiptID(dayKey string, seq int64) string {
	return fmt.Sprintf("RC-%s-%04d", dayKey, seq)
}

// Repository persists payment records. Create must allocate the receipt
// sequence and insert the record as one atomic unit: a receipt number must
// never be observable without its payment.
type Repository interface {
	Create(ctx context.Context, rec Record) (Record, error)
	ListByPair(ctx context.Context, activityID, participantID string) ([]Record, error)
	GetByReceipt(ctx context.Context, receiptID string) (*Record, error)
}

// Sequencer issues day-scoped receipt sequence numbers. For a fixed day key
// successive calls return 1, 2, 3, ... with no duplicates under concurrency.
type Sequencer interface {
	Next(ctx context.Context, dayKey string) (int64, error)
}
