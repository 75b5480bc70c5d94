package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors are the Prometheus series exported on /metrics
type Collectors struct {
	CallsTotal    *prometheus.CounterVec
	CallDuration  *prometheus.HistogramVec
	CostTotal     *prometheus.CounterVec
	TokensTotal   *prometheus.CounterVec
	FeedbackTotal *prometheus.CounterVec
	ChatsInFlight prometheus.Gauge
}

func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multichat_provider_calls_total",
				Help: "Provider calls by service and status.",
			},
			[]string{"service", "status"},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "multichat_provider_call_seconds",
				Help:    "Provider call latency by service.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"service"},
		),
		CostTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multichat_provider_cost_usd_total",
				Help: "Estimated provider spend in USD by service.",
			},
			[]string{"service"},
		),
		TokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multichat_provider_tokens_total",
				Help: "Tokens by service and direction (in, out).",
			},
			[]string{"service", "direction"},
		),
		FeedbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multichat_feedback_events_total",
				Help: "Feedback votes by service and value.",
			},
			[]string{"service", "feedback"},
		),
		ChatsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "multichat_chats_in_flight",
			Help: "Chat requests currently fanned out to providers.",
		}),
	}
	reg.MustRegister(c.CallsTotal, c.CallDuration, c.CostTotal, c.TokensTotal, c.FeedbackTotal, c.ChatsInFlight)
	return c
}
