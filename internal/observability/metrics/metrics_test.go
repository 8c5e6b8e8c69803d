package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrementByLabel(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.IncInviteEmail(ResultSent)
	m.IncInviteEmail(ResultSent)
	m.IncInviteEmail(ResultSendFailed)
	m.IncAcceptStep("")
	m.IncMarkerConsumed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.inviteEmails.WithLabelValues(ResultSent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inviteEmails.WithLabelValues(ResultSendFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.acceptSteps.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.markerConsumed))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IncInviteEmail(ResultSent)
	m.IncAcceptStep("done")
	m.IncMarkerConsumed()
	m.IncDispatch("published")
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}
