package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce/leave"
	"github.com/warp/workforce/store/sqlite"
)

func setup(t *testing.T) (*sqlite.Store, *leave.Service, int64) {
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
	return store, leave.NewService(store), emp.ID
}

func date(d int) time.Time {
	return time.Date(2026, 7, d, 0, 0, 0, 0, time.UTC)
}

func TestSubmit_CreatesPending(t *testing.T) {
	// GIVEN
	store, svc, empID := setup(t)
	ctx := context.Background()

	// WHEN
	req, err := svc.Submit(ctx, empID, date(6), date(10), "vacation")

	// THEN
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, req.Status)

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, leave.StatusPending, got.Status)
	assert.Equal(t, "vacation", got.Type)
	assert.Equal(t, date(6), got.Start)
	assert.Equal(t, date(10), got.End)
}

func TestSubmit_Validation(t *testing.T) {
	_, svc, empID := setup(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, empID, date(10), date(6), "vacation")
	assert.ErrorIs(t, err, leave.ErrInvalidRange)

	_, err = svc.Submit(ctx, empID, date(6), date(10), "")
	assert.ErrorIs(t, err, leave.ErrMissingField)

	_, err = svc.Submit(ctx, empID, time.Time{}, date(10), "sick")
	assert.ErrorIs(t, err, leave.ErrMissingField)
}

func TestDecide_Terminal(t *testing.T) {
	// GIVEN: an approved request
	store, svc, empID := setup(t)
	ctx := context.Background()
	req, err := svc.Submit(ctx, empID, date(6), date(10), "vacation")
	require.NoError(t, err)
	require.NoError(t, svc.Approve(ctx, req.ID, "enjoy"))

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)
	assert.Equal(t, "enjoy", got.AdminNotes)

	// WHEN: deciding again, either way
	err = svc.Reject(ctx, req.ID, "changed my mind")

	// THEN: rejected with a conflict, status unchanged
	assert.ErrorIs(t, err, leave.ErrAlreadyDecided)
	got, err = store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)
	assert.Equal(t, "enjoy", got.AdminNotes)
}

func TestDecide_UnknownRequest(t *testing.T) {
	_, svc, _ := setup(t)

	err := svc.Approve(context.Background(), 42, "")

	assert.ErrorIs(t, err, leave.ErrRequestNotFound)
}

func TestReject_SetsNotes(t *testing.T) {
	store, svc, empID := setup(t)
	ctx := context.Background()
	req, err := svc.Submit(ctx, empID, date(6), date(10), "personal")
	require.NoError(t, err)

	require.NoError(t, svc.Reject(ctx, req.ID, "short staffed that week"))

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, got.Status)
	assert.Equal(t, "short staffed that week", got.AdminNotes)
}
