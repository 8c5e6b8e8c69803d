package dispatch_test

import (
	"context"
	"testing"

	"github.com/smallbiznis/eventcrew/internal/collab/collabtest"
	"github.com/smallbiznis/eventcrew/internal/collab/dispatch"
	"github.com/smallbiznis/eventcrew/internal/collab/domain"
	"github.com/smallbiznis/eventcrew/internal/outbox"
	"github.com/smallbiznis/eventcrew/internal/providers/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockIssuer struct {
	mock.Mock
}

func (m *mockIssuer) Issue(ctx context.Context, inviteID string) error {
	return m.Called(ctx, inviteID).Error(0)
}

func newDispatcher(t *testing.T, f *collabtest.Fixture, iss dispatch.Issuer, maxAttempts int) *dispatch.Dispatcher {
	t.Helper()
	d, err := dispatch.New(dispatch.Params{
		Log:    zap.NewNop(),
		Queue:  f.Outbox,
		Issuer: iss,
		Clock:  f.Clock,
		Config: dispatch.Config{BatchSize: 10, MaxAttempts: maxAttempts},
	})
	require.NoError(t, err)
	return d
}

func allEvents(t *testing.T, f *collabtest.Fixture) []outbox.Event {
	t.Helper()
	var events []outbox.Event
	require.NoError(t, f.DB.Order("created_at ASC, id ASC").Find(&events).Error)
	return events
}

func TestRunOnceDeliversCreatedInvites(t *testing.T) {
	ctx := context.Background()
	f := collabtest.New(t)
	ev := f.SeedEvent(t, "Gala", "2025-01-01", "")
	resp, err := f.Service.Invite(ctx, domain.InviteRequest{EventID: ev.ID.String(), Email: "a@b.co", Role: string(domain.RoleAdmin)})
	require.NoError(t, err)

	iss := &mockIssuer{}
	iss.On("Issue", mock.Anything, resp.ID).Return(nil).Once()

	res, err := newDispatcher(t, f, iss, 3).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, dispatch.Result{Sent: 1}, res)
	iss.AssertExpectations(t)

	events := allEvents(t, f)
	require.Len(t, events, 1)
	assert.True(t, events[0].Published)
	assert.Empty(t, events[0].LastError)

	res, err = newDispatcher(t, f, iss, 3).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, dispatch.Result{}, res)
}

func TestRunOnceRetiresMissingInvite(t *testing.T) {
	ctx := context.Background()
	f := collabtest.New(t)
	require.NoError(t, f.Outbox.Publish(ctx, domain.InviteCreatedTopic, domain.InviteCreatedPayload{InviteID: "12345"}))

	iss := &mockIssuer{}
	iss.On("Issue", mock.Anything, "12345").Return(domain.ErrInviteNotFound).Once()

	res, err := newDispatcher(t, f, iss, 3).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeadLetter)

	events := allEvents(t, f)
	assert.True(t, events[0].Published)
	assert.Equal(t, domain.ErrInviteNotFound.Error(), events[0].LastError)
}

func TestRunOnceRetriesUntilMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := collabtest.New(t)
	require.NoError(t, f.Outbox.Publish(ctx, domain.InviteCreatedTopic, domain.InviteCreatedPayload{InviteID: "777"}))

	iss := &mockIssuer{}
	iss.On("Issue", mock.Anything, "777").Return(email.ErrSendFailed).Twice()
	d := newDispatcher(t, f, iss, 2)

	for i := 0; i < 3; i++ {
		_, err := d.RunOnce(ctx)
		require.NoError(t, err)
	}
	iss.AssertExpectations(t)
	iss.AssertNumberOfCalls(t, "Issue", 2)

	events := allEvents(t, f)
	assert.False(t, events[0].Published)
	assert.Equal(t, 2, events[0].Attempts)
	assert.Equal(t, email.ErrSendFailed.Error(), events[0].LastError)
}

func TestRunOnceRetiresMalformedPayload(t *testing.T) {
	ctx := context.Background()
	f := collabtest.New(t)
	require.NoError(t, f.Outbox.Publish(ctx, domain.InviteCreatedTopic, map[string]int{"unexpected": 1}))

	iss := &mockIssuer{}
	res, err := newDispatcher(t, f, iss, 3).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeadLetter)
	iss.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := dispatch.New(dispatch.Params{})
	assert.Error(t, err)
}
