package issuer_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/eventcrew/internal/collab/collabtest"
	"github.com/smallbiznis/eventcrew/internal/collab/domain"
	"github.com/smallbiznis/eventcrew/internal/collab/issuer"
	"github.com/smallbiznis/eventcrew/internal/config"
	"github.com/smallbiznis/eventcrew/internal/observability/metrics"
	"github.com/smallbiznis/eventcrew/internal/providers/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg email.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func newIssuer(t *testing.T, f *collabtest.Fixture, mailer email.Provider) (*issuer.Issuer, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	iss, err := issuer.New(issuer.Params{
		Cfg:      config.Config{AppBaseURL: "https://crew.example.com/"},
		Log:      zap.NewNop(),
		Repo:     f.Repo,
		Mailer:   mailer,
		Settings: config.NewStaticMailSettings(config.DefaultMailSettings()),
		Metrics:  m,
	})
	require.NoError(t, err)
	return iss, reg
}

func TestIssueRendersRoleLabelAndAcceptURL(t *testing.T) {
	f := collabtest.New(t)
	ev := f.SeedEvent(t, "Launch Party", "2025-03-01", "Dock 5")
	invite := f.SeedInvite(t, ev.ID, "jo@example.com", string(domain.RoleCheckIn), "tok-Check_in-123", domain.StatusPending)

	var sent email.Message
	mailer := &mockMailer{}
	mailer.On("Send", mock.Anything, mock.AnythingOfType("email.Message")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(email.Message) }).
		Return(nil).Once()

	iss, reg := newIssuer(t, f, mailer)
	require.NoError(t, iss.Issue(context.Background(), invite.ID.String()))
	mailer.AssertExpectations(t)

	assert.Equal(t, "jo@example.com", sent.To)
	assert.Equal(t, "You're invited to join the Launch Party team", sent.Subject)
	assert.Contains(t, sent.HTML, "Check-in — scan tickets and manage guest check-in")
	assert.Contains(t, sent.HTML, "https://crew.example.com/collab/accept/tok-Check_in-123")
	assert.Contains(t, sent.HTML, "Saturday, March 1, 2025")
	assert.Contains(t, sent.HTML, "Launch Party")

	expected := `
# HELP eventcrew_invite_emails_total Invite emails by issuance result.
# TYPE eventcrew_invite_emails_total counter
eventcrew_invite_emails_total{result="sent"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "eventcrew_invite_emails_total"))
}

func TestIssueUnknownInvite(t *testing.T) {
	f := collabtest.New(t)
	mailer := &mockMailer{}
	iss, _ := newIssuer(t, f, mailer)

	err := iss.Issue(context.Background(), f.Node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
	err = iss.Issue(context.Background(), "garbage")
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestIssuePropagatesSendFailureWithoutMutation(t *testing.T) {
	f := collabtest.New(t)
	ev := f.SeedEvent(t, "Gala", "not a date", "")
	invite := f.SeedInvite(t, ev.ID, "jo@example.com", "stage_manager", "tok-2", domain.StatusPending)

	mailer := &mockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything).Return(email.ErrSendFailed).Once()

	iss, _ := newIssuer(t, f, mailer)
	err := iss.Issue(context.Background(), invite.ID.String())
	assert.ErrorIs(t, err, email.ErrSendFailed)
	assert.Equal(t, domain.StatusPending, f.Invite(t, "tok-2").Status)
}

func TestRenderFallsBackForUnknownRoleAndDate(t *testing.T) {
	f := collabtest.New(t)
	iss, _ := newIssuer(t, f, &mockMailer{})

	msg, err := iss.Render(domain.InviteView{
		Email:       "jo@example.com",
		Role:        "stage_manager",
		InviteToken: "tok-3",
		EventName:   "Gala",
		EventDate:   "sometime soon",
	})
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "Stage Manager")
	assert.Contains(t, msg.HTML, "sometime soon")
}
