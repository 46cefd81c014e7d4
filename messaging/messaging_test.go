package messaging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce/messaging"
	"github.com/warp/workforce/store/sqlite"
)

func setup(t *testing.T) *messaging.Mailbox {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return messaging.NewMailbox(store)
}

func TestSend_DirectMessage(t *testing.T) {
	// GIVEN
	mb := setup(t)
	ctx := context.Background()
	admin := messaging.AdminActor(1)
	emp := messaging.EmployeeActor(7)

	// WHEN: admin sends a direct message to employee 7
	sent, err := mb.Send(ctx, admin, &emp, "Schedule", "Shift moved to 10am.", "")
	require.NoError(t, err)
	assert.False(t, sent.Broadcast())

	// THEN: it shows in the recipient's inbox and the sender's outbox,
	// but not in another employee's inbox
	inbox, err := mb.Inbox(ctx, emp)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Schedule", inbox[0].Subject)
	assert.Equal(t, admin, inbox[0].Sender)

	outbox, err := mb.Outbox(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, outbox, 1)

	other, err := mb.Inbox(ctx, messaging.EmployeeActor(8))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSend_BroadcastReachesEveryone(t *testing.T) {
	mb := setup(t)
	ctx := context.Background()
	admin := messaging.AdminActor(1)

	// WHEN: nil recipient
	sent, err := mb.Send(ctx, admin, nil, "Holiday", "Office closed Friday.", "")
	require.NoError(t, err)
	assert.True(t, sent.Broadcast())

	// THEN: every actor's inbox includes it
	for _, actor := range []messaging.Actor{
		messaging.EmployeeActor(1),
		messaging.EmployeeActor(99),
		messaging.AdminActor(2),
	} {
		inbox, err := mb.Inbox(ctx, actor)
		require.NoError(t, err)
		assert.Len(t, inbox, 1, "broadcast missing for %s", actor)
	}
}

func TestSend_EmptyBodyRejected(t *testing.T) {
	mb := setup(t)

	_, err := mb.Send(context.Background(), messaging.AdminActor(1), nil, "subject", "   ", "")

	assert.ErrorIs(t, err, messaging.ErrEmptyBody)
}

func TestSend_AttachmentNameOnly(t *testing.T) {
	mb := setup(t)
	ctx := context.Background()
	emp := messaging.EmployeeActor(3)

	_, err := mb.Send(ctx, messaging.AdminActor(1), &emp, "Contract", "See attached.", "contract.pdf")
	require.NoError(t, err)

	inbox, err := mb.Inbox(ctx, emp)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "contract.pdf", inbox[0].AttachmentName)
}

func TestParseActor(t *testing.T) {
	actor, err := messaging.ParseActor("employee:42")
	require.NoError(t, err)
	assert.Equal(t, messaging.EmployeeActor(42), actor)

	actor, err = messaging.ParseActor("admin:1")
	require.NoError(t, err)
	assert.Equal(t, messaging.AdminActor(1), actor)

	for _, bad := range []string{"", "42", "manager:1", "employee:x"} {
		_, err := messaging.ParseActor(bad)
		assert.ErrorIs(t, err, messaging.ErrBadActor, "input %q", bad)
	}
}
