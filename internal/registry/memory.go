package registry

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory registry used by tests and local development.
type Memory struct {
	mu           sync.RWMutex
	activities   map[string]Activity
	participants map[string]Participant
}

// NewMemory constructs an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		activities:   make(map[string]Activity),
		participants: make(map[string]Participant),
	}
}

// PutActivity stores or replaces an activity.
func (m *Memory) PutActivity(a Activity) {
	m.mu.Lock()
	m.activities[a.ID] = a
	m.mu.Unlock()
}

// PutParticipant stores or replaces a participant.
func (m *Memory) PutParticipant(p Participant) {
	m.mu.Lock()
	m.participants[p.ID] = p
	m.mu.Unlock()
}

// GetActivity returns the activity or ErrNotFound.
func (m *Memory) GetActivity(_ context.Context, id string) (Activity, error) {
	m.mu.RLock()
	a, ok := m.activities[id]
	m.mu.RUnlock()
	if !ok {
		return Activity{}, fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	return a, nil
}

// GetParticipant returns the participant or ErrNotFound.
func (m *Memory) GetParticipant(_ context.Context, id string) (Participant, error) {
	m.mu.RLock()
	p, ok := m.participants[id]
	m.mu.RUnlock()
	if !ok {
		return Participant{}, fmt.Errorf("participant %s: %w", id, ErrNotFound)
	}
	return p, nil
}
