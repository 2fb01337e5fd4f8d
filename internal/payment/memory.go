package payment

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemorySequencer is the in-memory receipt counter. One mutex covers all
// day keys; counters only ever move forward.
type MemorySequencer struct {
	mu   sync.Mutex
	next map[string]int64
}

// NewMemorySequencer constructs an empty sequencer.
func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{next: make(map[string]int64)}
}

// Next returns the day's next sequence number, starting at 1.
func (s *MemorySequencer) Next(_ context.Context, dayKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next[dayKey]++
	return s.next[dayKey], nil
}

// MemoryRepository keeps payments in memory, allocating receipts through a
// MemorySequencer under the same lock so allocation and append stay atomic.
type MemoryRepository struct {
	mu   sync.RWMutex
	seq  *MemorySequencer
	data map[string]Record // keyed by receipt id
	now  func() time.Time
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{seq: NewMemorySequencer(), data: make(map[string]Record), now: time.Now}
}

// Create allocates the receipt id and appends the record. The day key comes
// from the record's creation time, never from paid_at, so a back-dated
// payment does not reopen a past day's counter.
func (r *MemoryRepository) Create(ctx context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dayKey := DayKey(r.now())
	seq, err := r.seq.Next(ctx, dayKey)
	if err != nil {
		return Record{}, err
	}
	rec.ReceiptID = FormatReceiptID(dayKey, seq)
	if _, exists := r.data[rec.ReceiptID]; exists {
		return Record{}, ErrReceiptConflict
	}
	rec.CreatedAt = r.now().UTC()
	r.data[rec.ReceiptID] = rec
	return rec, nil
}

// ListByPair returns the pair's payments in chronological order.
func (r *MemoryRepository) ListByPair(_ context.Context, activityID, participantID string) ([]Record, error) {
	r.mu.RLock()
	var res []Record
	for _, rec := range r.data {
		if rec.ActivityID == activityID && rec.ParticipantID == participantID {
			res = append(res, rec)
		}
	}
	r.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool { return res[i].PaidAt.Before(res[j].PaidAt) })
	return res, nil
}

// GetByReceipt returns one payment by receipt id, or nil when unknown.
func (r *MemoryRepository) GetByReceipt(_ context.Context, receiptID string) (*Record, error) {
	r.mu.RLock()
	rec, ok := r.data[receiptID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	copy := rec
	return &copy, nil
}
