package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"parishledger/internal/money"
)

// PGRegistry reads activities and participants from Postgres.
type PGRegistry struct {
	db *sql.DB
}

// NewPGRegistry creates a registry backed by the shared database.
func NewPGRegistry(db *sql.DB) *PGRegistry {
	return &PGRegistry{db: db}
}

// GetActivity loads one activity by id.
func (r *PGRegistry) GetActivity(ctx context.Context, id string) (Activity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, required_minor, currency, starts_at, ends_at
		FROM activities WHERE id = $1
	`, id)
	var (
		act           Activity
		requiredMinor sql.NullInt64
		currency      string
	)
	if err := row.Scan(&act.ID, &act.Title, &requiredMinor, &currency, &act.StartsAt, &act.EndsAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Activity{}, fmt.Errorf("activity %s: %w", id, ErrNotFound)
		}
		return Activity{}, err
	}
	cur, err := money.ParseCurrency(currency)
	if err != nil {
		return Activity{}, err
	}
	act.Currency = cur
	if requiredMinor.Valid {
		amt := money.New(requiredMinor.Int64, cur)
		act.RequiredAmount = &amt
	}
	return act, nil
}

// GetParticipant loads one participant by id.
func (r *PGRegistry) GetParticipant(ctx context.Context, id string) (Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, display_name, kind
		FROM participants WHERE id = $1
	`, id)
	var p Participant
	if err := row.Scan(&p.ID, &p.DisplayName, &p.Kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Participant{}, fmt.Errorf("participant %s: %w", id, ErrNotFound)
		}
		return Participant{}, err
	}
	return p, nil
}
