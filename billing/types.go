/*
Package billing derives invoice lines from logged work.

PURPOSE:
  This package contains the billing-generation and adjustment engine.
  Work reports accumulate continuously from employee submissions; a
  generation pass aggregates them over a date range per employee,
  applies the project's rate policy, and persists one billing record
  per employee. Records are never deleted; corrections are append-only
  adjustments that move the record's running amount while preserving
  the original base amount and a full audit trail.

KEY CONCEPTS IN THIS FILE (types.go):
  - Method:     Per-project rate policy selector (hourly vs count-based)
  - Project:    Billable project with its method
  - WorkReport: One dated entry of hours or units against a project
  - Record:     One generated invoice line (mutable amount, audited)
  - Adjustment: Append-only signed correction to a record
  - RateTable:  The configured hourly/per-unit rates

DESIGN PRINCIPLES:
  1. Precision: amounts use decimal.Decimal, never float math
  2. Auditability: Record.Amount == Record.BaseAmount + sum of adjustment deltas
  3. Append-only: adjustments are never edited or deleted

SEE ALSO:
  - engine.go: Aggregation and record generation
  - adjust.go: Transactional adjustment application
  - errors.go: Error taxonomy
*/
package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BILLING METHOD - Per-project rate policy selector
// =============================================================================

type Method string

const (
	MethodHourly     Method = "hourly"
	MethodCountBased Method = "count_based"
)

// ParseMethod converts user input into a Method.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodHourly, MethodCountBased:
		return Method(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// =============================================================================
// PROJECT
// =============================================================================

type Project struct {
	ID          int64
	Name        string
	Description string
	Method      Method
	Active      bool
}

// =============================================================================
// WORK REPORT - Dated entry of hours or units
// =============================================================================

// WorkReport is a single day's submission by an employee against a project.
// Exactly one of Hours/Units is set, matching the project's billing method.
// ValidateReport enforces this at write time.
type WorkReport struct {
	ID          int64
	EmployeeID  int64
	ProjectID   int64
	Date        time.Time
	Hours       *float64
	Units       *int64
	Description string
}

func (r WorkReport) HoursOrZero() float64 {
	if r.Hours == nil {
		return 0
	}
	return *r.Hours
}

func (r WorkReport) UnitsOrZero() int64 {
	if r.Units == nil {
		return 0
	}
	return *r.Units
}

// ValidateReport checks that a report's measure matches the billing method:
// hourly projects take hours and no units, count-based projects the reverse.
func ValidateReport(method Method, r WorkReport) error {
	switch method {
	case MethodHourly:
		if r.Hours == nil || *r.Hours <= 0 {
			return &MeasureError{Method: method, Message: "hours worked is required for hourly projects"}
		}
		if r.Units != nil {
			return &MeasureError{Method: method, Message: "units completed must be empty for hourly projects"}
		}
	case MethodCountBased:
		if r.Units == nil || *r.Units <= 0 {
			return &MeasureError{Method: method, Message: "units completed is required for count-based projects"}
		}
		if r.Hours != nil {
			return &MeasureError{Method: method, Message: "hours worked must be empty for count-based projects"}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	return nil
}

// =============================================================================
// BILLING RECORD - One generated invoice line
// =============================================================================

// Record is one aggregation pass's result for one employee within one
// project and date range. BaseAmount is fixed at generation time; Amount
// is the running total moved by adjustments. Version is the optimistic
// lock used to serialize concurrent adjustments.
type Record struct {
	ID            int64
	ProjectID     int64
	EmployeeID    int64
	Start         time.Time
	End           time.Time
	HoursBilled   *float64
	UnitsBilled   *int64
	Amount        decimal.Decimal
	BaseAmount    decimal.Decimal
	GenerationRef string
	Version       int64
	GeneratedAt   time.Time
}

// Adjustment is an append-only signed correction to a record's amount.
// No update or delete path exists anywhere in the system.
type Adjustment struct {
	ID        int64
	RecordID  int64
	AdminID   int64
	Delta     decimal.Decimal
	Reason    string
	CreatedAt time.Time
}

// =============================================================================
// RATE TABLE
// =============================================================================

// RateTable holds the configured billing rates.
type RateTable struct {
	Hourly  decimal.Decimal
	PerUnit decimal.Decimal
}

// DefaultRates returns the stock rates: 50 per hour, 5 per unit.
func DefaultRates() RateTable {
	return RateTable{
		Hourly:  decimal.NewFromInt(50),
		PerUnit: decimal.NewFromInt(5),
	}
}

// AmountFor computes the billed amount for aggregated totals under a method.
func (t RateTable) AmountFor(method Method, hours float64, units int64) (decimal.Decimal, error) {
	switch method {
	case MethodHourly:
		return decimal.NewFromFloat(hours).Mul(t.Hourly), nil
	case MethodCountBased:
		return decimal.NewFromInt(units).Mul(t.PerUnit), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}
