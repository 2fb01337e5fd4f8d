package registry

import (
	"context"
	"errors"
	"time"

	"parishledger/internal/money"
)

// ErrNotFound indicates an unknown activity or participant id.
var ErrNotFound = errors.New("not found")

// ParticipantKind distinguishes children from their monitors.
type ParticipantKind string

const (
	KindChild   ParticipantKind = "child"
	KindMonitor ParticipantKind = "monitor"
)

// Activity is a scheduled event participants attend and may pay for.
// Activities are created and edited elsewhere; this core only reads them.
type Activity struct {
	ID             string
	Title          string
	RequiredAmount *money.Amount
	Currency       money.Currency
	StartsAt       time.Time
	EndsAt         time.Time
}

// Participant is a child or monitor referenced by the ledgers.
type Participant struct {
	ID          string
	DisplayName string
	Kind        ParticipantKind
}

// Registry resolves activity and participant identifiers. It fronts the
// externally-owned activity/participant tables.
type Registry interface {
	GetActivity(ctx context.Context, id string) (Activity, error)
	GetParticipant(ctx context.Context, id string) (Participant, error)
}
