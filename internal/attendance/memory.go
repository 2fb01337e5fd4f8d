package attendance

import (
	"context"
	"sort"
	"sync"
	"time"
)

type pairKey struct {
	activityID    string
	participantID string
}

// MemoryRepository keeps attendance records in a mutex-guarded map.
// Used by unit tests and local development without Postgres.
type MemoryRepository struct {
	mu   sync.RWMutex
	data map[pairKey]Record
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[pairKey]Record)}
}

// Upsert creates the pair's record or overwrites it, last write wins.
func (r *MemoryRepository) Upsert(_ context.Context, rec Record) (Record, error) {
	key := pairKey{rec.ActivityID, rec.ParticipantID}
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.data[key]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	r.data[key] = rec
	return rec, nil
}

// Get returns the pair's record, or nil when none exists.
func (r *MemoryRepository) Get(_ context.Context, activityID, participantID string) (*Record, error) {
	r.mu.RLock()
	rec, ok := r.data[pairKey{activityID, participantID}]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	copy := rec
	return &copy, nil
}

// ListByActivity returns all records for an activity ordered by arrival.
func (r *MemoryRepository) ListByActivity(_ context.Context, activityID string) ([]Record, error) {
	r.mu.RLock()
	var res []Record
	for key, rec := range r.data {
		if key.activityID == activityID {
			res = append(res, rec)
		}
	}
	r.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool { return res[i].ArrivedAt.Before(res[j].ArrivedAt) })
	return res, nil
}
