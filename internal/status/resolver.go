// Package status derives one combined participation status per participant
// from the attendance and payment ledgers. The combination is a single
// tagged value so every attendance/payment pairing is nameable and
// exhaustively matchable, instead of two booleans drifting apart.
package status

import (
	"context"

	"parishledger/internal/attendance"
	"parishledger/internal/money"
	"parishledger/internal/payment"
	"parishledger/internal/registry"
)

// AttendanceState is the attendance half of the combined status.
type AttendanceState string

const (
	AttendancePresent        AttendanceState = "present"
	AttendanceAbsent         AttendanceState = "absent"
	AttendanceNotYetRecorded AttendanceState = "not-yet-recorded"
)

// PaymentState is the payment half of the combined status.
type PaymentState string

const (
	PaymentNotApplicable PaymentState = "not-applicable"
	PaymentPending       PaymentState = "pending"
	PaymentPartial       PaymentState = "partial"
	PaymentPaid          PaymentState = "paid"
)

// ParticipantStatus is the combined, derived status. It is never persisted;
// every read recomputes it from the two ledgers.
type ParticipantStatus struct {
	Attendance     AttendanceState `json:"attendance"`
	Payment        PaymentState    `json:"payment"`
	TotalPaid      money.Amount    `json:"total_paid"`
	RequiredAmount *money.Amount   `json:"required_amount,omitempty"`
}

// Resolver combines the two ledgers on read.
type Resolver struct {
	reg registry.Registry
	att *attendance.Service
	pay *payment.Service
}

// NewResolver creates a resolver over the two ledgers and the registry.
func NewResolver(reg registry.Registry, att *attendance.Service, pay *payment.Service) *Resolver {
	return &Resolver{reg: reg, att: att, pay: pay}
}

// Resolve computes the pair's combined status. No side effects; safe to
// call repeatedly.
func (r *Resolver) Resolve(ctx context.Context, activityID, participantID string) (ParticipantStatus, error) {
	act, err := r.reg.GetActivity(ctx, activityID)
	if err != nil {
		return ParticipantStatus{}, err
	}

	rec, err := r.att.Get(ctx, activityID, participantID)
	if err != nil {
		return ParticipantStatus{}, err
	}
	total, err := r.pay.TotalPaid(ctx, activityID, participantID)
	if err != nil {
		return ParticipantStatus{}, err
	}

	return ParticipantStatus{
		Attendance:     attendanceState(rec),
		Payment:        paymentState(total, act.RequiredAmount),
		TotalPaid:      total,
		RequiredAmount: act.RequiredAmount,
	}, nil
}

// attendanceState collapses ledger statuses onto the combined status axis:
// late counts as present, excused counts as absent.
func attendanceState(rec *attendance.Record) AttendanceState {
	if rec == nil {
		return AttendanceNotYetRecorded
	}
	switch rec.Status {
	case attendance.StatusPresent, attendance.StatusLate:
		return AttendancePresent
	default:
		return AttendanceAbsent
	}
}

func paymentState(total money.Amount, required *money.Amount) PaymentState {
	if required == nil || required.IsZero() {
		return PaymentNotApplicable
	}
	switch {
	case total.IsZero():
		return PaymentPending
	case total.Minor < required.Minor:
		return PaymentPartial
	default:
		return PaymentPaid
	}
}
