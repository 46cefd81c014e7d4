/*
engine.go - Billing record generation

PURPOSE:
  Aggregates work reports over an inclusive date range per employee and
  persists one billing record per employee touched. The whole pass is
  atomic: either every record for the range commits, or none does.

DOUBLE-BILLING GUARD:
  A generation pass refuses to run when any employee it would bill
  already has a record for this project whose range overlaps the
  requested one. Re-running the same range is therefore rejected
  instead of silently creating duplicates; a unique index on
  (project, employee, start, end) backstops the check in the store.

GENERATION REFERENCE:
  All records of one pass share a generation reference (UUID) so a
  pass can be inspected as a unit afterwards.

SEE ALSO:
  - types.go: Record, WorkReport, RateTable
  - adjust.go: Post-generation corrections
*/
package billing

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// GENERATION STORE - Persistence needed by the engine
// =============================================================================

// GenerationStore is the persistence interface the engine generates against.
type GenerationStore interface {
	// GetProject returns the project, or (nil, nil) when absent.
	GetProject(ctx context.Context, id int64) (*Project, error)

	// WorkReportsInRange returns all reports for the project with
	// date in [start, end].
	WorkReportsInRange(ctx context.Context, projectID int64, start, end time.Time) ([]WorkReport, error)

	// OverlappingRecord returns an existing record for (project, employee)
	// whose range overlaps [start, end], or (nil, nil) when there is none.
	OverlappingRecord(ctx context.Context, projectID, employeeID int64, start, end time.Time) (*Record, error)

	// SaveRecords persists all records atomically and returns them with
	// assigned IDs.
	SaveRecords(ctx context.Context, records []Record) ([]Record, error)
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine turns accumulated work reports into billing records.
type Engine struct {
	Store GenerationStore
	Rates RateTable

	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

func NewEngine(store GenerationStore, rates RateTable) *Engine {
	return &Engine{Store: store, Rates: rates, Now: time.Now}
}

// workTotals is the per-employee aggregation of one pass.
type workTotals struct {
	hours float64
	units int64
}

// Generate aggregates work reports for the project in [start, end] and
// persists one record per employee. Absent measures count as zero, so a
// report carrying only hours contributes nothing to a count-based total
// and vice versa.
func (e *Engine) Generate(ctx context.Context, projectID int64, start, end time.Time) ([]Record, error) {
	if start.After(end) {
		return nil, &RangeError{Start: start, End: end}
	}

	project, err := e.Store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	reports, err := e.Store.WorkReportsInRange(ctx, projectID, start, end)
	if err != nil {
		return nil, err
	}

	// Group by employee.
	totals := make(map[int64]*workTotals)
	for _, r := range reports {
		t, ok := totals[r.EmployeeID]
		if !ok {
			t = &workTotals{}
			totals[r.EmployeeID] = t
		}
		t.hours += r.HoursOrZero()
		t.units += r.UnitsOrZero()
	}
	if len(totals) == 0 {
		return nil, nil
	}

	// Deterministic order for record creation and error reporting.
	employeeIDs := make([]int64, 0, len(totals))
	for id := range totals {
		employeeIDs = append(employeeIDs, id)
	}
	sort.Slice(employeeIDs, func(i, j int) bool { return employeeIDs[i] < employeeIDs[j] })

	ref := uuid.NewString()
	now := e.now()

	records := make([]Record, 0, len(employeeIDs))
	for _, employeeID := range employeeIDs {
		existing, err := e.Store.OverlappingRecord(ctx, projectID, employeeID, start, end)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, &OverlapError{ProjectID: projectID, EmployeeID: employeeID, ExistingID: existing.ID}
		}

		t := totals[employeeID]
		amount, err := e.Rates.AmountFor(project.Method, t.hours, t.units)
		if err != nil {
			return nil, err
		}

		rec := Record{
			ProjectID:     projectID,
			EmployeeID:    employeeID,
			Start:         start,
			End:           end,
			Amount:        amount,
			BaseAmount:    amount,
			GenerationRef: ref,
			Version:       1,
			GeneratedAt:   now,
		}
		switch project.Method {
		case MethodHourly:
			hours := t.hours
			rec.HoursBilled = &hours
		case MethodCountBased:
			units := t.units
			rec.UnitsBilled = &units
		}
		records = append(records, rec)
	}

	return e.Store.SaveRecords(ctx, records)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
