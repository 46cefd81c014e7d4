/*
Package attendance tracks clock-in/clock-out intervals.

An employee is modeled as a two-state machine: ClockedOut -> ClockedIn
-> ClockedOut. Clocking in while already clocked in is rejected, so an
employee has at most one open interval at any time; a partial unique
index in the store backstops the check.
*/
package attendance

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
	StatusClockedIn  Status = "Clocked In"
	StatusClockedOut Status = "Clocked Out"
)

// Interval is one attendance row. ClockOut is nil while the interval
// is open.
type Interval struct {
	ID         int64
	EmployeeID int64
	ClockIn    time.Time
	ClockOut   *time.Time
}

func (i Interval) Open() bool { return i.ClockOut == nil }

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrAlreadyClockedIn is returned when an open interval already exists.
	ErrAlreadyClockedIn = errors.New("employee is already clocked in")

	// ErrNotClockedIn is returned by clock-out when no interval is open.
	ErrNotClockedIn = errors.New("no active clock-in found")
)

// =============================================================================
// STORE
// =============================================================================

// Store persists attendance intervals.
type Store interface {
	// OpenInterval returns the most recent open interval for the employee,
	// or (nil, nil) when there is none.
	OpenInterval(ctx context.Context, employeeID int64) (*Interval, error)

	// InsertInterval persists a new interval and returns it with an ID.
	InsertInterval(ctx context.Context, iv Interval) (*Interval, error)

	// CloseInterval sets the clock-out time on an interval.
	CloseInterval(ctx context.Context, id int64, at time.Time) error
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker drives the per-employee clock state machine.
type Tracker struct {
	Store Store

	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

func NewTracker(store Store) *Tracker {
	return &Tracker{Store: store, Now: time.Now}
}

// ClockIn opens a new interval. Rejected when one is already open.
func (t *Tracker) ClockIn(ctx context.Context, employeeID int64) (*Interval, error) {
	open, err := t.Store.OpenInterval(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrAlreadyClockedIn
	}
	return t.Store.InsertInterval(ctx, Interval{
		EmployeeID: employeeID,
		ClockIn:    t.now(),
	})
}

// ClockOut closes the open interval. Errors when none is open, with no
// mutation.
func (t *Tracker) ClockOut(ctx context.Context, employeeID int64) (*Interval, error) {
	open, err := t.Store.OpenInterval(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNotClockedIn
	}
	at := t.now()
	if err := t.Store.CloseInterval(ctx, open.ID, at); err != nil {
		return nil, err
	}
	open.ClockOut = &at
	return open, nil
}

// Status reports "Clocked In" iff the employee has an open interval.
func (t *Tracker) Status(ctx context.Context, employeeID int64) (Status, error) {
	open, err := t.Store.OpenInterval(ctx, employeeID)
	if err != nil {
		return "", err
	}
	if open != nil {
		return StatusClockedIn, nil
	}
	return StatusClockedOut, nil
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}
