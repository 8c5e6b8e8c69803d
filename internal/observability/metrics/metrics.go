package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "eventcrew"

const (
	ResultSent           = "sent"
	ResultNotFound       = "invite_not_found"
	ResultTokenExchange  = "token_exchange_failed"
	ResultSendFailed     = "send_failed"
	ResultInternalFailed = "internal_error"
)

// Metrics holds the invite lifecycle instruments.
type Metrics struct {
	inviteEmails    *prometheus.CounterVec
	acceptSteps     *prometheus.CounterVec
	markerConsumed  prometheus.Counter
	dispatchBatches *prometheus.CounterVec
}

// New registers the instruments on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		inviteEmails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invite_emails_total",
			Help:      "Invite emails by issuance result.",
		}, []string{"result"}),
		acceptSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_steps_total",
			Help:      "Acceptance page transitions by resulting step.",
		}, []string{"step"}),
		markerConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_marker_consumed_total",
			Help:      "Pending-token markers consumed by a sign-in notification.",
		}),
		dispatchBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dispatch_total",
			Help:      "Outbox rows handled by the invite dispatcher, by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{m.inviteEmails, m.acceptSteps, m.markerConsumed, m.dispatchBatches} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) IncInviteEmail(result string) {
	if m == nil {
		return
	}
	m.inviteEmails.WithLabelValues(normalize(result)).Inc()
}

func (m *Metrics) IncAcceptStep(step string) {
	if m == nil {
		return
	}
	m.acceptSteps.WithLabelValues(normalize(step)).Inc()
}

func (m *Metrics) IncMarkerConsumed() {
	if m == nil {
		return
	}
	m.markerConsumed.Inc()
}

func (m *Metrics) IncDispatch(outcome string) {
	if m == nil {
		return
	}
	m.dispatchBatches.WithLabelValues(normalize(outcome)).Inc()
}

func normalize(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
