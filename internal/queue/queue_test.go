package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"parishledger/internal/money"
	"parishledger/internal/payment"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewInMemory(4)

	rec := payment.Record{
		ReceiptID:  "RC-20250712-0001",
		ActivityID: "act-1",
		Amount:     money.New(2000, money.CDF),
		Method:     payment.MethodCash,
		PaidAt:     time.Date(2025, 7, 12, 10, 0, 0, 0, time.UTC),
	}
	msg, err := NewPaymentRecorded(rec)
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	if err := q.Publish(ctx, msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	out, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	select {
	case got := <-out:
		if got.Type != TypePaymentRecorded {
			t.Fatalf("unexpected type %s", got.Type)
		}
		var decoded payment.Record
		if err := json.Unmarshal(got.Body, &decoded); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded.ReceiptID != rec.ReceiptID {
			t.Fatalf("got %s, want %s", decoded.ReceiptID, rec.ReceiptID)
		}
	case <-time.After(time.Second):
		t.Fatal("message never arrived")
	}
}

func TestInMemoryPublishCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(0)
	cancel()
	if err := q.Publish(ctx, Message{Type: TypeAttendanceRecorded}); err == nil {
		t.Fatal("publish on a cancelled context should fail")
	}
}
