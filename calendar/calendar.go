// Package calendar holds the shared company calendar model.
package calendar

import (
	"errors"
	"time"
)

type EventType string

const (
	EventCompany EventType = "company_event"
	EventHoliday EventType = "holiday"
	EventLeave   EventType = "leave"
)

var (
	ErrEventNotFound = errors.New("calendar event not found")
	ErrMissingField  = errors.New("title, dates, and event type are required")
	ErrInvalidRange  = errors.New("event ends before it starts")
	ErrUnknownType   = errors.New("unknown event type")
)

// Event is one calendar entry. CreatedBy is nil for system-generated
// events such as imported holidays.
type Event struct {
	ID          int64
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Type        EventType
	CreatedBy   *int64
}

// Validate checks required fields and range ordering.
func (e Event) Validate() error {
	if e.Title == "" || e.Start.IsZero() || e.End.IsZero() || e.Type == "" {
		return ErrMissingField
	}
	switch e.Type {
	case EventCompany, EventHoliday, EventLeave:
	default:
		return ErrUnknownType
	}
	if e.Start.After(e.End) {
		return ErrInvalidRange
	}
	return nil
}
