package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "medchat"

// Client holds the chat client collectors. A nil *Client is valid and
// records nothing, so components can run without metrics.
type Client struct {
	PollTicks     prometheus.Counter
	PollFailures  prometheus.Counter
	FetchDuration prometheus.Histogram
	MessagesSent  prometheus.Counter
	SendFailures  prometheus.Counter
	TypingSignals *prometheus.CounterVec
}

// NewClient creates the client collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewClient(reg prometheus.Registerer) *Client {
	m := &Client{
		PollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Number of message fetches issued by the poller.",
		}),
		PollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_failures_total",
			Help:      "Number of poller fetches that returned an error.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of message history fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages confirmed by the server.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Messages the server rejected or that never reached it.",
		}),
		TypingSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "typing_signals_total",
			Help:      "Typing signals sent, by state.",
		}, []string{"state"}),
	}
	if reg != nil {
		reg.MustRegister(m.PollTicks, m.PollFailures, m.FetchDuration,
			m.MessagesSent, m.SendFailures, m.TypingSignals)
	}
	return m
}

func (m *Client) PollTick() {
	if m == nil {
		return
	}
	m.PollTicks.Inc()
}

func (m *Client) PollFailure() {
	if m == nil {
		return
	}
	m.PollFailures.Inc()
}

// ObserveFetch records a fetch latency in seconds.
func (m *Client) ObserveFetch(seconds float64) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(seconds)
}

func (m *Client) MessageSent() {
	if m == nil {
		return
	}
	m.MessagesSent.Inc()
}

func (m *Client) SendFailure() {
	if m == nil {
		return
	}
	m.SendFailures.Inc()
}

func (m *Client) TypingSignal(typing bool) {
	if m == nil {
		return
	}
	state := "stopped"
	if typing {
		state = "typing"
	}
	m.TypingSignals.WithLabelValues(state).Inc()
}
