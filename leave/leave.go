/*
Package leave implements the leave-request approval workflow.

A request is created pending and transitions once, via a single admin
action, to approved or rejected. Decisions are terminal: there is no
un-approve path, and a second decision on the same request fails.
*/
package leave

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// TYPES
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Request struct {
	ID          int64
	EmployeeID  int64
	Start       time.Time
	End         time.Time
	Type        string // e.g. "Vacation", "Sick", "Personal"
	Status      Status
	RequestedAt time.Time
	AdminNotes  string
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrRequestNotFound is returned when the referenced request doesn't exist.
	ErrRequestNotFound = errors.New("leave request not found")

	// ErrAlreadyDecided is returned when deciding a request that is no
	// longer pending.
	ErrAlreadyDecided = errors.New("leave request already decided")

	// ErrInvalidRange is returned when the requested range ends before it starts.
	ErrInvalidRange = errors.New("start date cannot be after end date")

	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("all fields are required for a leave request")
)

// =============================================================================
// STORE
// =============================================================================

// Store persists leave requests.
type Store interface {
	// InsertRequest persists a new request and returns it with an ID.
	InsertRequest(ctx context.Context, req Request) (*Request, error)

	// GetRequest returns the request, or (nil, nil) when absent.
	GetRequest(ctx context.Context, id int64) (*Request, error)

	// DecideRequest moves a request out of pending, conditional on it
	// still being pending. Returns ErrAlreadyDecided otherwise.
	DecideRequest(ctx context.Context, id int64, status Status, notes string) error
}

// =============================================================================
// SERVICE
// =============================================================================

// Service validates and drives the workflow.
type Service struct {
	Store Store

	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

func NewService(store Store) *Service {
	return &Service{Store: store, Now: time.Now}
}

// Submit files a new pending request.
func (s *Service) Submit(ctx context.Context, employeeID int64, start, end time.Time, leaveType string) (*Request, error) {
	if leaveType == "" || start.IsZero() || end.IsZero() {
		return nil, ErrMissingField
	}
	if start.After(end) {
		return nil, ErrInvalidRange
	}
	return s.Store.InsertRequest(ctx, Request{
		EmployeeID:  employeeID,
		Start:       start,
		End:         end,
		Type:        leaveType,
		Status:      StatusPending,
		RequestedAt: s.now(),
	})
}

// Approve marks a pending request approved. Terminal.
func (s *Service) Approve(ctx context.Context, id int64, notes string) error {
	return s.decide(ctx, id, StatusApproved, notes)
}

// Reject marks a pending request rejected. Terminal.
func (s *Service) Reject(ctx context.Context, id int64, notes string) error {
	return s.decide(ctx, id, StatusRejected, notes)
}

func (s *Service) decide(ctx context.Context, id int64, status Status, notes string) error {
	req, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrRequestNotFound
	}
	return s.Store.DecideRequest(ctx, id, status, notes)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
