package payment

import (
	"context"
	"fmt"
	"time"

	"parishledger/internal/money"
	"parishledger/internal/registry"
)

// Service is the payment ledger. Transactions are append-only and
// accumulate toward an activity's required amount; overpayment is allowed.
type Service struct {
	repo Repository
	reg  registry.Registry
}

// NewService creates the ledger over a repository and the registry.
func NewService(repo Repository, reg registry.Registry) *Service {
	return &Service{repo: repo, reg: reg}
}

// RecordPayment appends one transaction and allocates its receipt id.
// The amount may exceed the required amount and is never merged with
// earlier transactions. recordedBy is the authenticated caller identity.
func (s *Service) RecordPayment(ctx context.Context, activityID, participantID string, amount money.Amount, method Method, paidAt time.Time, recordedBy string) (Record, error) {
	act, err := s.reg.GetActivity(ctx, activityID)
	if err != nil {
		return Record{}, err
	}
	if _, err := s.reg.GetParticipant(ctx, participantID); err != nil {
		return Record{}, err
	}
	if amount.Currency != act.Currency {
		return Record{}, fmt.Errorf("payment in %s against a %s activity: %w", amount.Currency, act.Currency, money.ErrCurrencyMismatch)
	}
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	rec := Record{
		ActivityID:    activityID,
		ParticipantID: participantID,
		Amount:        amount,
		Method:        method,
		PaidAt:        paidAt,
		RecordedBy:    recordedBy,
	}
	return s.repo.Create(ctx, rec)
}

// TotalPaid sums the pair's transactions in the activity's currency.
// A stored record in any other currency is a data problem upstream and is
// surfaced as ErrCurrencyMismatch, never coerced.
func (s *Service) TotalPaid(ctx context.Context, activityID, participantID string) (money.Amount, error) {
	act, err := s.reg.GetActivity(ctx, activityID)
	if err != nil {
		return money.Amount{}, err
	}
	if _, err := s.reg.GetParticipant(ctx, participantID); err != nil {
		return money.Amount{}, err
	}
	recs, err := s.repo.ListByPair(ctx, activityID, participantID)
	if err != nil {
		return money.Amount{}, err
	}
	total := money.Zero(act.Currency)
	for _, rec := range recs {
		total, err = total.Add(rec.Amount)
		if err != nil {
			return money.Amount{}, fmt.Errorf("receipt %s: %w", rec.ReceiptID, err)
		}
	}
	return total, nil
}

// History returns the pair's transactions in chronological order.
func (s *Service) History(ctx context.Context, activityID, participantID string) ([]Record, error) {
	if _, err := s.reg.GetActivity(ctx, activityID); err != nil {
		return nil, err
	}
	if _, err := s.reg.GetParticipant(ctx, participantID); err != nil {
		return nil, err
	}
	return s.repo.ListByPair(ctx, activityID, participantID)
}

// ByReceipt resolves one payment from its receipt id, or nil when unknown.
func (s *Service) ByReceipt(ctx context.Context, receiptID string) (*Record, error) {
	return s.repo.GetByReceipt(ctx, receiptID)
}
