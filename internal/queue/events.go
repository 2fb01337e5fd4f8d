package queue

import (
	"encoding/json"

	"github.com/google/uuid"

	"parishledger/internal/attendance"
	"parishledger/internal/payment"
)

// Event types carried on the queue. Consumers that don't recognize a type
// skip it.
const (
	TypeAttendanceRecorded = "attendance.recorded"
	TypePaymentRecorded    = "payment.recorded"
)

// NewAttendanceRecorded wraps an attendance write as an event.
func NewAttendanceRecorded(rec attendance.Record) (Message, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return Message{}, err
	}
	return Message{ID: uuid.NewString(), Type: TypeAttendanceRecorded, Body: body}, nil
}

// NewPaymentRecorded wraps a payment write as an event.
func NewPaymentRecorded(rec payment.Record) (Message, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return Message{}, err
	}
	return Message{ID: uuid.NewString(), Type: TypePaymentRecorded, Body: body}, nil
}
