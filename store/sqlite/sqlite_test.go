/*
sqlite_test.go - Store-level tests

Focuses on behavior the schema itself enforces: the partial unique index
on open attendance rows, the unique billing range index, and the
conditional leave decision update.
*/
package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce/attendance"
	"github.com/warp/workforce/billing"
	"github.com/warp/workforce/calendar"
	"github.com/warp/workforce/leave"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func addEmployee(t *testing.T, store *Store, email string) int64 {
	t.Helper()
	emp, err := store.SaveEmployee(context.Background(), Employee{
		FirstName:  "Test",
		LastName:   "Person",
		Email:      email,
		Department: "Ops",
		Active:     true,
	})
	require.NoError(t, err)
	return emp.ID
}

func addProject(t *testing.T, store *Store, name string) int64 {
	t.Helper()
	p, err := store.SaveProject(context.Background(), billing.Project{
		Name:   name,
		Method: billing.MethodHourly,
		Active: true,
	})
	require.NoError(t, err)
	return p.ID
}

func TestOpenIntervalIndex_BlocksSecondOpenRow(t *testing.T) {
	// GIVEN: an open interval inserted directly, bypassing the tracker
	store := newStore(t)
	ctx := context.Background()
	empID := addEmployee(t, store, "a@example.com")

	_, err := store.InsertInterval(ctx, attendance.Interval{
		EmployeeID: empID,
		ClockIn:    time.Now(),
	})
	require.NoError(t, err)

	// WHEN: inserting a second open row for the same employee
	_, err = store.InsertInterval(ctx, attendance.Interval{
		EmployeeID: empID,
		ClockIn:    time.Now(),
	})

	// THEN: the partial unique index rejects it
	assert.ErrorIs(t, err, attendance.ErrAlreadyClockedIn)
}

func TestBillingRangeIndex_BlocksExactDuplicate(t *testing.T) {
	// GIVEN: a saved billing record
	store := newStore(t)
	ctx := context.Background()
	empID := addEmployee(t, store, "a@example.com")
	projID := addProject(t, store, "Platform")

	rec := billing.Record{
		ProjectID:     projID,
		EmployeeID:    empID,
		Start:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
		Amount:        decimal.NewFromInt(400),
		BaseAmount:    decimal.NewFromInt(400),
		GenerationRef: "ref-1",
		Version:       1,
		GeneratedAt:   time.Now(),
	}
	_, err := store.SaveRecords(ctx, []billing.Record{rec})
	require.NoError(t, err)

	// WHEN: saving the exact same range again
	rec.GenerationRef = "ref-2"
	_, err = store.SaveRecords(ctx, []billing.Record{rec})

	// THEN: rejected as an overlap, and the batch is not persisted
	var overlapErr *billing.OverlapError
	require.ErrorAs(t, err, &overlapErr)
	assert.Equal(t, empID, overlapErr.EmployeeID)

	records, err := store.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSaveRecords_AtomicBatch(t *testing.T) {
	// GIVEN: one record already billed for employee B
	store := newStore(t)
	ctx := context.Background()
	empA := addEmployee(t, store, "a@example.com")
	empB := addEmployee(t, store, "b@example.com")
	projID := addProject(t, store, "Platform")

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	mk := func(emp int64, ref string) billing.Record {
		return billing.Record{
			ProjectID: projID, EmployeeID: emp, Start: start, End: end,
			Amount: decimal.NewFromInt(100), BaseAmount: decimal.NewFromInt(100),
			GenerationRef: ref, Version: 1, GeneratedAt: time.Now(),
		}
	}
	_, err := store.SaveRecords(ctx, []billing.Record{mk(empB, "ref-1")})
	require.NoError(t, err)

	// WHEN: a batch where the second insert collides
	_, err = store.SaveRecords(ctx, []billing.Record{mk(empA, "ref-2"), mk(empB, "ref-2")})

	// THEN: the whole batch rolls back, employee A gets nothing
	require.Error(t, err)
	records, err := store.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, empB, records[0].EmployeeID)
}

func TestUpdateRecordAmount_VersionCheck(t *testing.T) {
	// GIVEN
	store := newStore(t)
	ctx := context.Background()
	empID := addEmployee(t, store, "a@example.com")
	projID := addProject(t, store, "Platform")
	saved, err := store.SaveRecords(ctx, []billing.Record{{
		ProjectID: projID, EmployeeID: empID,
		Start:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
		Amount: decimal.NewFromInt(400), BaseAmount: decimal.NewFromInt(400),
		GenerationRef: "ref-1", Version: 1, GeneratedAt: time.Now(),
	}})
	require.NoError(t, err)
	id := saved[0].ID

	// WHEN: updating with the right version, then with a stale one
	require.NoError(t, store.UpdateRecordAmount(ctx, id, decimal.NewFromInt(350), 1))
	err = store.UpdateRecordAmount(ctx, id, decimal.NewFromInt(300), 1)

	// THEN
	assert.ErrorIs(t, err, billing.ErrConcurrentAdjustment)
	rec, err := store.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(350)))
	assert.Equal(t, int64(2), rec.Version)
}

func TestDecideRequest_OnlyPendingMoves(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	empID := addEmployee(t, store, "a@example.com")

	req, err := store.InsertRequest(ctx, leave.Request{
		EmployeeID:  empID,
		Start:       time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
		Type:        "vacation",
		Status:      leave.StatusPending,
		RequestedAt: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, store.DecideRequest(ctx, req.ID, leave.StatusApproved, "ok"))
	assert.ErrorIs(t, store.DecideRequest(ctx, req.ID, leave.StatusRejected, "no"), leave.ErrAlreadyDecided)
	assert.ErrorIs(t, store.DecideRequest(ctx, 999, leave.StatusApproved, ""), leave.ErrRequestNotFound)
}

func TestListWorkReports_Filters(t *testing.T) {
	// GIVEN: reports across two employees and dates
	store := newStore(t)
	ctx := context.Background()
	empA := addEmployee(t, store, "a@example.com")
	empB := addEmployee(t, store, "b@example.com")
	projID := addProject(t, store, "Platform")

	hours := 2.0
	for _, r := range []billing.WorkReport{
		{EmployeeID: empA, ProjectID: projID, Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Hours: &hours},
		{EmployeeID: empA, ProjectID: projID, Date: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), Hours: &hours},
		{EmployeeID: empB, ProjectID: projID, Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Hours: &hours},
	} {
		_, err := store.InsertWorkReport(ctx, r)
		require.NoError(t, err)
	}

	// WHEN/THEN: employee filter
	got, err := store.ListWorkReports(ctx, WorkReportFilter{EmployeeID: &empA})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Date range filter
	end := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	got, err = store.ListWorkReports(ctx, WorkReportFilter{End: &end})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Combined
	got, err = store.ListWorkReports(ctx, WorkReportFilter{EmployeeID: &empB, End: &end})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// No filter returns everything
	got, err = store.ListWorkReports(ctx, WorkReportFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestCalendarEvents_RoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	event, err := store.SaveEvent(ctx, calendar.Event{
		Title: "All hands",
		Start: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 4, 1, 11, 0, 0, 0, time.UTC),
		Type:  calendar.EventCompany,
	})
	require.NoError(t, err)

	event.Title = "All hands (moved)"
	_, err = store.SaveEvent(ctx, *event)
	require.NoError(t, err)

	got, err := store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "All hands (moved)", got.Title)

	require.NoError(t, store.DeleteEvent(ctx, event.ID))
	got, err = store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveAdminUser_Upsert(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, err := store.SaveAdminUser(ctx, AdminUser{Username: "admin", PasswordHash: "hash-1"})
	require.NoError(t, err)

	second, err := store.SaveAdminUser(ctx, AdminUser{Username: "admin", PasswordHash: "hash-2"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := store.GetAdminByUsername(ctx, "admin")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hash-2", got.PasswordHash)

	missing, err := store.GetAdminByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
