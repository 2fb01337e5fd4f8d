package attendance

import (
	"context"
	"fmt"
	"time"

	"parishledger/internal/registry"
)

// Status is the attendance state recorded for a participant.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
	StatusExcused Status = "excused"
)

// ParseStatus validates an attendance status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPresent, StatusLate, StatusAbsent, StatusExcused:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid attendance status %q", s)
}

// Source records how an attendance fact entered the system.
type Source string

const (
	SourceManual Source = "manual"
	SourceQRScan Source = "qr-scan"
)

// ParseSource validates an attendance source value.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceManual, SourceQRScan:
		return Source(s), nil
	}
	return "", fmt.Errorf("invalid attendance source %q", s)
}

// Record is the single attendance fact for an (activity, participant) pair.
// At most one record exists per pair; later writes overwrite it.
type Record struct {
	ActivityID    string    `json:"activity_id"`
	ParticipantID string    `json:"participant_id"`
	Status        Status    `json:"status"`
	Source        Source    `json:"source"`
	ArrivedAt     time.Time `json:"arrived_at"`
	RecordedBy    string    `json:"recorded_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Repository persists attendance records.
type Repository interface {
	// Upsert writes the record, replacing any existing record for the
	// same (activity, participant) pair. Last write wins.
	Upsert(ctx context.Context, rec Record) (Record, error)
	// Get returns the pair's record, or nil when none exists.
	Get(ctx context.Context, activityID, participantID string) (*Record, error)
	// ListByActivity returns all records for an activity.
	ListByActivity(ctx context.Context, activityID string) ([]Record, error)
}

// Service is the attendance ledger. Both the manual-entry path and the
// QR-scan path write through here, so either can supersede the other.
type Service struct {
	repo Repository
	reg  registry.Registry
}

// NewService creates the ledger over a repository and the registry.
func NewService(repo Repository, reg registry.Registry) *Service {
	return &Service{repo: repo, reg: reg}
}

// RecordAttendance creates or overwrites the attendance fact for the pair.
// recordedBy is the authenticated caller identity; arrivedAt defaults to now.
func (s *Service) RecordAttendance(ctx context.Context, activityID, participantID string, status Status, source Source, arrivedAt time.Time, recordedBy string) (Record, error) {
	if _, err := s.reg.GetActivity(ctx, activityID); err != nil {
		return Record{}, err
	}
	if _, err := s.reg.GetParticipant(ctx, participantID); err != nil {
		return Record{}, err
	}
	if arrivedAt.IsZero() {
		arrivedAt = time.Now().UTC()
	}
	rec := Record{
		ActivityID:    activityID,
		ParticipantID: participantID,
		Status:        status,
		Source:        source,
		ArrivedAt:     arrivedAt,
		RecordedBy:    recordedBy,
	}
	return s.repo.Upsert(ctx, rec)
}

// Get returns the pair's attendance record, or nil when none was recorded.
func (s *Service) Get(ctx context.Context, activityID, participantID string) (*Record, error) {
	if _, err := s.reg.GetActivity(ctx, activityID); err != nil {
		return nil, err
	}
	if _, err := s.reg.GetParticipant(ctx, participantID); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, activityID, participantID)
}

// Roster returns every attendance record for an activity.
func (s *Service) Roster(ctx context.Context, activityID string) ([]Record, error) {
	if _, err := s.reg.GetActivity(ctx, activityID); err != nil {
		return nil, err
	}
	return s.repo.ListByActivity(ctx, activityID)
}
