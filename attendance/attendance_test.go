package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce/attendance"
	"github.com/warp/workforce/store/sqlite"
)

func setup(t *testing.T) (*sqlite.Store, *attendance.Tracker, int64) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	emp, err := store.SaveEmployee(context.Background(), sqlite.Employee{
		FirstName:  "Ada",
		LastName:   "Byron",
		Email:      "ada@example.com",
		Department: "Engineering",
		Active:     true,
	})
	require.NoError(t, err)
	return store, attendance.NewTracker(store), emp.ID
}

func TestClockInOut_RoundTrip(t *testing.T) {
	// GIVEN: a clocked-out employee
	store, tracker, empID := setup(t)
	ctx := context.Background()

	status, err := tracker.Status(ctx, empID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusClockedOut, status)

	// WHEN: clocking in
	iv, err := tracker.ClockIn(ctx, empID)
	require.NoError(t, err)
	assert.True(t, iv.Open())

	// THEN: status flips, and flips back after clock-out
	status, err = tracker.Status(ctx, empID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusClockedIn, status)

	closed, err := tracker.ClockOut(ctx, empID)
	require.NoError(t, err)
	require.NotNil(t, closed.ClockOut)
	assert.False(t, closed.ClockOut.Before(closed.ClockIn))

	status, err = tracker.Status(ctx, empID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusClockedOut, status)

	// The closed interval is the latest one.
	latest, err := store.LatestInterval(ctx, empID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.False(t, latest.Open())
}

func TestClockIn_TwiceRejected(t *testing.T) {
	_, tracker, empID := setup(t)
	ctx := context.Background()

	_, err := tracker.ClockIn(ctx, empID)
	require.NoError(t, err)

	_, err = tracker.ClockIn(ctx, empID)
	assert.ErrorIs(t, err, attendance.ErrAlreadyClockedIn)
}

func TestClockOut_WithoutOpenInterval(t *testing.T) {
	// GIVEN: no open interval
	store, tracker, empID := setup(t)
	ctx := context.Background()

	// WHEN
	_, err := tracker.ClockOut(ctx, empID)

	// THEN: error, and nothing was written
	assert.ErrorIs(t, err, attendance.ErrNotClockedIn)
	latest, err := store.LatestInterval(ctx, empID)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestClockIn_NewIntervalAfterClose(t *testing.T) {
	// GIVEN: one completed interval
	_, tracker, empID := setup(t)
	ctx := context.Background()
	tracker.Now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	_, err := tracker.ClockIn(ctx, empID)
	require.NoError(t, err)
	tracker.Now = func() time.Time { return time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC) }
	_, err = tracker.ClockOut(ctx, empID)
	require.NoError(t, err)

	// WHEN: clocking in again
	tracker.Now = func() time.Time { return time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC) }
	iv, err := tracker.ClockIn(ctx, empID)

	// THEN: a fresh open interval
	require.NoError(t, err)
	assert.True(t, iv.Open())
	assert.Equal(t, 3, iv.ClockIn.Day())
}

func TestCountClockedIn(t *testing.T) {
	store, tracker, empID := setup(t)
	ctx := context.Background()

	n, err := store.CountClockedIn(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = tracker.ClockIn(ctx, empID)
	require.NoError(t, err)

	n, err = store.CountClockedIn(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
