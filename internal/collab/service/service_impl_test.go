package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/smallbiznis/eventcrew/internal/collab/collabtest"
	"github.com/smallbiznis/eventcrew/internal/collab/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteCreatesPendingRowAndOutboxEvent(t *testing.T) {
	ctx := context.Background()
	f := collabtest.New(t)
	ev := f.SeedEvent(t, "Summer Fest", "2025-07-04", "Riverside Park")

	resp, err := f.Service.Invite(ctx, domain.InviteRequest{
		EventID: ev.ID.String(),
		Email:   " Jo@Example.COM ",
		Role: string(domain.RoleCheckIn),
	})
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", resp.Email)
	assert.Equal(t, domain.StatusPending, resp.Status)

	view, err := f.Service.GetByID(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Summer Fest", view.EventName)
	assert.Len(t, view.InviteToken, 43)
	assert.Nil(t, view.AcceptedAt)

	pending, err := f.Outbox.Pending(ctx, domain.InviteCreatedTopic, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	var payload domain.InviteCreatedPayload
	require.NoError(t, json.Unmarshal(pending[0].Payload, &payload))
	assert.Equal(t, resp.ID, payload.InviteID)
	assert.Equal(t, ev.ID.String(), payload.EventID)
}

func TestInviteValidation(t *testing.T) {
	ctx := context.Background()
	f := collabtest.New(t)
	ev := f.SeedEvent(t, "Gala", "2025-01-01", "")

	cases := []struct {
		name string
		req  domain.InviteRequest
		want error
	}{
		{"bad event id", domain.InviteRequest{EventID: "abc", Email: "a@b.co", Role: string(domain.RoleAdmin)}, domain.ErrInvalidEvent},
		{"unknown event", domain.InviteRequest{EventID: "42", Email: "a@b.co", Role: string(domain.RoleAdmin)}, domain.ErrEventNotFound},
		{"bad email", domain.InviteRequest{EventID: ev.ID.String(), Email: "nope", Role: string(domain.RoleAdmin)}, domain.ErrInvalidEmail},
		{"bad role", domain.InviteRequest{EventID: ev.ID.String(), Email: "a@b.co", Role: "owner"}, domain.ErrInvalidRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.Service.Invite(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestInviteRejectsDuplicatePending(t *testing.T) {
	ctx := context.Background()
	f := collabtest.New(t)
	ev := f.SeedEvent(t, "Gala", "2025-01-01", "")
	req := domain.InviteRequest{EventID: ev.ID.String(), Email: "a@b.co", Role: string(domain.RoleTicketing)}

	_, err := f.Service.Invite(ctx, req)
	require.NoError(t, err)
	_, err = f.Service.Invite(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInviteExists)

	pending, err := f.Outbox.Pending(ctx, domain.InviteCreatedTopic, 10, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestAcceptSetsFieldsOnce(t *testing.T) {
	ctx := context.Background()
	f := collabtest.New(t)
	ev := f.SeedEvent(t, "Gala", "2025-01-01", "")
	f.SeedInvite(t, ev.ID, "a@b.co", string(domain.RoleAdmin), "tok-1", domain.StatusPending)

	view, err := f.Service.Accept(ctx, domain.AcceptRequest{Token: "tok-1", UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, view.Status)
	require.NotNil(t, view.UserID)
	assert.Equal(t, "user-1", *view.UserID)
	require.NotNil(t, view.AcceptedAt)
	firstAcceptedAt := view.AcceptedAt.UTC()
	assert.True(t, firstAcceptedAt.Equal(collabtest.Epoch))

	f.Clock.Advance(time.Hour)
	again, err := f.Service.Accept(ctx, domain.AcceptRequest{Token: "tok-1", UserID: "user-2"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", *again.UserID)
	assert.True(t, again.AcceptedAt.UTC().Equal(firstAcceptedAt))
}

func TestTerminalStatusesDoNotFlip(t *testing.T) {
	ctx := context.Background()
	f := collabtest.New(t)
	ev := f.SeedEvent(t, "Gala", "2025-01-01", "")
	f.SeedInvite(t, ev.ID, "a@b.co", string(domain.RoleAdmin), "tok-acc", domain.StatusPending)
	f.SeedInvite(t, ev.ID, "c@d.co", string(domain.RoleAdmin), "tok-dec", domain.StatusPending)

	_, err := f.Service.Accept(ctx, domain.AcceptRequest{Token: "tok-acc", UserID: "u"})
	require.NoError(t, err)
	_, err = f.Service.Decline(ctx, "tok-acc")
	assert.ErrorIs(t, err, domain.ErrInviteAlreadyResolved)
	assert.Equal(t, domain.StatusAccepted, f.Invite(t, "tok-acc").Status)

	_, err = f.Service.Decline(ctx, "tok-dec")
	require.NoError(t, err)
	_, err = f.Service.Decline(ctx, "tok-dec")
	require.NoError(t, err)
	_, err = f.Service.Accept(ctx, domain.AcceptRequest{Token: "tok-dec", UserID: "u"})
	assert.ErrorIs(t, err, domain.ErrInviteAlreadyResolved)

	declined := f.Invite(t, "tok-dec")
	assert.Equal(t, domain.StatusDeclined, declined.Status)
	assert.Nil(t, declined.AcceptedAt)
	assert.Nil(t, declined.UserID)
}

func TestUnknownTokenIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := collabtest.New(t)

	_, err := f.Service.GetByToken(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
	_, err = f.Service.Accept(ctx, domain.AcceptRequest{Token: "missing", UserID: "u"})
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
	_, err = f.Service.Decline(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
	_, err = f.Service.GetByID(ctx, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
}

func TestAcceptRequiresUser(t *testing.T) {
	f := collabtest.New(t)
	_, err := f.Service.Accept(context.Background(), domain.AcceptRequest{Token: "tok"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}
