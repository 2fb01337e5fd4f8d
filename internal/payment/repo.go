package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"parishledger/internal/money"
)

// PGRepository persists payments in Postgres.
type PGRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPGRepository creates a repo.
func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db, now: time.Now}
}

// Create allocates the day's next receipt number and inserts the payment in
// a single transaction. The counter row upsert takes a row lock, so two
// payments in the same millisecond still get distinct numbers. The day key
// comes from the record's creation time, never from paid_at: a back-dated
// payment does not reopen a past day's counter.
func (r *PGRepository) Create(ctx context.Context, rec Record) (Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer tx.Rollback()

	dayKey := DayKey(r.now())
	var seq int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO receipt_counters (day_key, next_seq)
		VALUES ($1, 1)
		ON CONFLICT (day_key) DO UPDATE SET next_seq = receipt_counters.next_seq + 1
		RETURNING next_seq
	`, dayKey).Scan(&seq)
	if err != nil {
		return Record{}, err
	}
	rec.ReceiptID = FormatReceiptID(dayKey, seq)

	row := tx.QueryRowContext(ctx, `
		INSERT INTO payments (receipt_id, activity_id, participant_id, amount_minor, currency, method, paid_at, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, rec.ReceiptID, rec.ActivityID, rec.ParticipantID, rec.Amount.Minor, rec.Amount.Currency, rec.Method, rec.PaidAt, rec.RecordedBy)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrReceiptConflict
		}
		return Record{}, err
	}

	if err := tx.Commit(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListByPair returns the pair's payments in chronological order.
func (r *PGRepository) ListByPair(ctx context.Context, activityID, participantID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT receipt_id, activity_id, participant_id, amount_minor, currency, method, paid_at, recorded_by, created_at
		FROM payments
		WHERE activity_id = $1 AND participant_id = $2
		ORDER BY paid_at
	`, activityID, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// GetByReceipt returns one payment by receipt id, or nil when unknown.
func (r *PGRepository) GetByReceipt(ctx context.Context, receiptID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT receipt_id, activity_id, participant_id, amount_minor, currency, method, paid_at, recorded_by, created_at
		FROM payments WHERE receipt_id = $1
	`, receiptID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec      Record
		minor    int64
		currency string
	)
	if err := row.Scan(&rec.ReceiptID, &rec.ActivityID, &rec.ParticipantID, &minor, &currency, &rec.Method, &rec.PaidAt, &rec.RecordedBy, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	cur, err := money.ParseCurrency(currency)
	if err != nil {
		return Record{}, err
	}
	rec.Amount = money.New(minor, cur)
	return rec, nil
}
