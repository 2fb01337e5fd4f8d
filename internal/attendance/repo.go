package attendance

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepository persists attendance records in Postgres. The primary key on
// (activity_id, participant_id) plus ON CONFLICT DO UPDATE gives the
// one-record-per-pair invariant and serializes concurrent writes on the row.
type PGRepository struct {
	db *sql.DB
}

// NewPGRepository creates a repo.
func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db}
}

// Upsert creates the pair's record or overwrites it, last write wins.
func (r *PGRepository) Upsert(ctx context.Context, rec Record) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (activity_id, participant_id, status, source, arrived_at, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (activity_id, participant_id) DO UPDATE SET
			status = EXCLUDED.status,
			source = EXCLUDED.source,
			arrived_at = EXCLUDED.arrived_at,
			recorded_by = EXCLUDED.recorded_by,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, rec.ActivityID, rec.ParticipantID, rec.Status, rec.Source, rec.ArrivedAt, rec.RecordedBy)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get returns the pair's record, or nil when none exists.
func (r *PGRepository) Get(ctx context.Context, activityID, participantID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT activity_id, participant_id, status, source, arrived_at, recorded_by, created_at, updated_at
		FROM attendance_records
		WHERE activity_id = $1 AND participant_id = $2
	`, activityID, participantID)
	var rec Record
	if err := row.Scan(&rec.ActivityID, &rec.ParticipantID, &rec.Status, &rec.Source, &rec.ArrivedAt, &rec.RecordedBy, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListByActivity returns all records for an activity ordered by arrival.
func (r *PGRepository) ListByActivity(ctx context.Context, activityID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT activity_id, participant_id, status, source, arrived_at, recorded_by, created_at, updated_at
		FROM attendance_records
		WHERE activity_id = $1
		ORDER BY arrived_at
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ActivityID, &rec.ParticipantID, &rec.Status, &rec.Source, &rec.ArrivedAt, &rec.RecordedBy, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
