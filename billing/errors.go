/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All billing error types in one place for consistency and discoverability.
  Callers classify errors with the helpers below instead of matching on
  concrete types.

ERROR CATEGORIES:
  1. Validation errors - malformed input (bad range, zero delta, measure mismatch)
  2. Not-found errors  - referenced project or record absent
  3. Conflict errors   - overlapping generation, concurrent adjustment

USAGE:
  records, err := engine.Generate(ctx, projectID, start, end)
  switch {
  case billing.IsNotFound(err):   // 404 / flash "not found"
  case billing.IsValidation(err): // 400 / flash the message
  case billing.IsConflict(err):   // 409 / retry or surface
  }

SEE ALSO:
  - engine.go: Generation, returns not-found/validation/overlap errors
  - adjust.go: Adjustments, returns concurrency conflicts
*/
package billing

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrProjectNotFound is returned when the referenced project doesn't exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrRecordNotFound is returned when the referenced billing record doesn't exist.
	ErrRecordNotFound = errors.New("billing record not found")

	// ErrInvalidRange is returned when a billing range ends before it starts.
	ErrInvalidRange = errors.New("invalid range: end before start")

	// ErrZeroDelta is returned when an adjustment carries no amount.
	ErrZeroDelta = errors.New("adjustment delta must be non-zero")

	// ErrOverlappingRecord is returned when a generation pass would double-bill
	// an (employee, project) pair for a range that overlaps an existing record.
	ErrOverlappingRecord = errors.New("overlapping billing record exists")

	// ErrConcurrentAdjustment is returned when optimistic locking detects that
	// the record changed underneath an adjustment. Safe to retry.
	ErrConcurrentAdjustment = errors.New("concurrent adjustment detected")

	// ErrMeasureMismatch is returned when a work report's measure doesn't match
	// its project's billing method (hours on a count-based project, or the reverse).
	ErrMeasureMismatch = errors.New("work report measure does not match billing method")

	// ErrUnknownMethod is returned for a billing method outside hourly/count_based.
	ErrUnknownMethod = errors.New("unknown billing method")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RangeError reports an inverted date range.
type RangeError struct {
	Start time.Time
	End   time.Time
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range: start %s after end %s",
		e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}

func (e *RangeError) Unwrap() error { return ErrInvalidRange }

// OverlapError reports which existing record blocks a generation pass.
type OverlapError struct {
	ProjectID  int64
	EmployeeID int64
	ExistingID int64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("billing record %d already covers an overlapping range for employee %d on project %d",
		e.ExistingID, e.EmployeeID, e.ProjectID)
}

func (e *OverlapError) Unwrap() error { return ErrOverlappingRecord }

// MeasureError reports a work report whose measure contradicts the project's
// billing method.
type MeasureError struct {
	Method  Method
	Message string
}

func (e *MeasureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

func (e *MeasureError) Unwrap() error { return ErrMeasureMismatch }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound) || errors.Is(err, ErrRecordNotFound)
}

// IsValidation returns true if the error is due to invalid input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrZeroDelta) ||
		errors.Is(err, ErrMeasureMismatch) ||
		errors.Is(err, ErrUnknownMethod)
}

// IsConflict returns true if the error is a concurrency or uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOverlappingRecord) ||
		errors.Is(err, ErrConcurrentAdjustment)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentAdjustment)
}
