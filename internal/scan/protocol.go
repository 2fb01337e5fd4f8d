package scan

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"parishledger/internal/attendance"
	"parishledger/internal/registry"
)

// State is the protocol's position in the scan cycle. Every Scan call walks
// Idle -> Detecting -> Verifying -> {Success, Rejected} and settles back on
// Idle before returning.
type State string

const (
	StateIdle      State = "idle"
	StateDetecting State = "detecting"
	StateVerifying State = "verifying"
	StateSuccess   State = "success"
	StateRejected  State = "rejected"
)

// RejectReason explains a rejected scan. Both reasons invite a rescan.
type RejectReason string

const (
	ReasonMalformedCode      RejectReason = "malformed_code"
	ReasonUnknownParticipant RejectReason = "unknown_participant"
	ReasonDuplicate          RejectReason = "duplicate"
)

// ErrClosed is returned when scanning after the protocol was torn down.
var ErrClosed = errors.New("scan protocol closed")

// codePrefix is the payload framing QR badges carry.
const codePrefix = "participant:"

// DefaultDedupWindow suppresses a camera re-reporting the held code.
const DefaultDedupWindow = 2500 * time.Millisecond

// Result is the outcome of one scan cycle.
type Result struct {
	Accepted   bool               `json:"accepted"`
	Reason     RejectReason       `json:"reason,omitempty"`
	Attendance *attendance.Record `json:"attendance,omitempty"`
}

// Protocol turns scanned QR payloads into attendance facts for one activity
// on one scanning device. The de-duplication window is purely a local
// debounce; the real duplicate guard is the attendance ledger's
// one-record-per-pair upsert.
type Protocol struct {
	att      *attendance.Service
	reg      registry.Registry
	activity string
	device   string
	window   time.Duration
	now      func() time.Time

	mu           sync.Mutex
	state        State
	lastPayload  string
	lastAccepted time.Time
	closed       bool
}

// NewProtocol creates a protocol for one (activity, device) pair.
func NewProtocol(att *attendance.Service, reg registry.Registry, activityID, deviceID string, window time.Duration) *Protocol {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Protocol{
		att:      att,
		reg:      reg,
		activity: activityID,
		device:   deviceID,
		window:   window,
		now:      time.Now,
		state:    StateIdle,
	}
}

// State returns the protocol's current state.
func (p *Protocol) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Scan runs one full cycle for a scanned payload. An accepted payload writes
// attendance exactly once; rejected payloads write nothing.
func (p *Protocol) Scan(ctx context.Context, payload string) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return Result{}, ErrClosed
	}

	p.state = StateDetecting
	now := p.now()
	if payload == p.lastPayload && now.Sub(p.lastAccepted) < p.window {
		return p.reject(ReasonDuplicate), nil
	}

	p.state = StateVerifying
	participantID, ok := decode(payload)
	if !ok {
		return p.reject(ReasonMalformedCode), nil
	}
	if _, err := p.reg.GetParticipant(ctx, participantID); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return p.reject(ReasonUnknownParticipant), nil
		}
		p.state = StateIdle
		return Result{}, err
	}

	act, err := p.reg.GetActivity(ctx, p.activity)
	if err != nil {
		p.state = StateIdle
		return Result{}, err
	}
	status := attendance.StatusPresent
	if now.After(act.StartsAt) {
		status = attendance.StatusLate
	}

	rec, err := p.att.RecordAttendance(ctx, p.activity, participantID, status, attendance.SourceQRScan, now, p.device)
	if err != nil {
		p.state = StateIdle
		return Result{}, err
	}

	p.state = StateSuccess
	p.lastPayload = payload
	p.lastAccepted = now
	p.state = StateIdle
	return Result{Accepted: true, Attendance: &rec}, nil
}

// Close tears the protocol down. Valid from any state; no write is implied.
func (p *Protocol) Close() {
	p.mu.Lock()
	p.closed = true
	p.state = StateIdle
	p.mu.Unlock()
}

func (p *Protocol) reject(reason RejectReason) Result {
	p.state = StateRejected
	p.state = StateIdle
	return Result{Accepted: false, Reason: reason}
}

// decode extracts the participant id from a badge payload.
func decode(payload string) (string, bool) {
	if !strings.HasPrefix(payload, codePrefix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(payload, codePrefix))
	if id == "" || strings.ContainsAny(id, " \t\n") {
		return "", false
	}
	return id, true
}
