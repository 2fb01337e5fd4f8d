package scan

import (
	"sync"
	"time"

	"parishledger/internal/attendance"
	"parishledger/internal/registry"
)

type poolKey struct {
	activityID string
	deviceID   string
}

// Pool hands out one live protocol per (activity, device) pair so a device
// that keeps scanning reuses its de-duplication state between requests.
type Pool struct {
	att    *attendance.Service
	reg    registry.Registry
	window time.Duration

	mu   sync.Mutex
	live map[poolKey]*Protocol
}

// NewPool creates a protocol pool.
func NewPool(att *attendance.Service, reg registry.Registry, window time.Duration) *Pool {
	return &Pool{att: att, reg: reg, window: window, live: make(map[poolKey]*Protocol)}
}

// Acquire returns the pair's protocol, creating it on first use.
func (p *Pool) Acquire(activityID, deviceID string) *Protocol {
	key := poolKey{activityID, deviceID}
	p.mu.Lock()
	defer p.mu.Unlock()
	if proto, ok := p.live[key]; ok {
		return proto
	}
	proto := NewProtocol(p.att, p.reg, activityID, deviceID, p.window)
	p.live[key] = proto
	return proto
}

// Release closes and removes the pair's protocol, if any.
func (p *Pool) Release(activityID, deviceID string) {
	key := poolKey{activityID, deviceID}
	p.mu.Lock()
	proto := p.live[key]
	delete(p.live, key)
	p.mu.Unlock()
	if proto != nil {
		proto.Close()
	}
}

// CloseAll tears down every live protocol. Called on shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	live := p.live
	p.live = make(map[poolKey]*Protocol)
	p.mu.Unlock()
	for _, proto := range live {
		proto.Close()
	}
}
