package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmaxmax/go-sse"

	"github.com/aigoflow/multichat-service/internal/config"
	"github.com/aigoflow/multichat-service/internal/models"
	"github.com/aigoflow/multichat-service/internal/repository"
)

// MetricsTopic is the NATS subject metrics snapshots are published on
const MetricsTopic = "chat.metrics"

var metricsEvent = sse.Type("metrics")

// MetricsService builds the metrics display and pushes it to SSE
// subscribers and NATS
type MetricsService struct {
	repo      repository.Repository
	services  config.Services
	interval  time.Duration
	sse       *sse.Server
	publisher EventPublisher
	notify    chan struct{}
}

func NewMetricsService(repo repository.Repository, cfg *config.Config) *MetricsService {
	return &MetricsService{
		repo:     repo,
		services: cfg.Services,
		interval: cfg.MetricsInterval,
		sse:      &sse.Server{},
		notify:   make(chan struct{}, 1),
	}
}

func (m *MetricsService) SetPublisher(p EventPublisher) {
	m.publisher = p
}

// Snapshot aggregates call totals and feedback, keyed by response key
func (m *MetricsService) Snapshot(ctx context.Context) (*models.Metrics, error) {
	totals, err := m.repo.Calls().Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load call totals: %w", err)
	}
	votes, err := m.repo.Feedback().Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback summary: %w", err)
	}

	byService := make(map[string]models.ServiceTotals, len(totals))
	for _, t := range totals {
		byService[t.Service] = t
	}

	out := &models.Metrics{
		Services:    make(map[string]models.ServiceMetrics),
		GeneratedAt: time.Now().UTC(),
	}
	for _, name := range m.services.Names() {
		svc, _ := m.services.Get(name)
		t := byService[name]
		v := votes[name]

		out.Services[svc.ResponseKey] = models.ServiceMetrics{
			Calls:        t.Calls,
			Errors:       t.Errors,
			TotalCost:    t.TotalCost,
			TokensIn:     t.TokensIn,
			TokensOut:    t.TokensOut,
			AvgLatencyMs: t.AvgLatencyMs,
			Positive:     v.Positive,
			Negative:     v.Negative,
		}
		out.TotalCalls += t.Calls
		out.TotalCost += t.TotalCost
		out.FeedbackSummary.Positive += v.Positive
		out.FeedbackSummary.Negative += v.Negative
	}

	return out, nil
}

// Notify asks Start to push a snapshot now
func (m *MetricsService) Notify() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Start pushes a snapshot every interval and whenever Notify is called
func (m *MetricsService) Start(ctx context.Context) error {
	interval := m.interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	slog.Info("Starting metrics service", "interval", interval.String())

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				m.sse.Shutdown(shutdownCtx)
				cancel()
				return
			case <-ticker.C:
				m.Push(ctx)
			case <-m.notify:
				m.Push(ctx)
			}
		}
	}()

	return nil
}

// Push sends the current snapshot to stream subscribers and NATS
func (m *MetricsService) Push(ctx context.Context) {
	snapshot, err := m.Snapshot(ctx)
	if err != nil {
		slog.Error("Failed to build metrics snapshot", "error", err)
		return
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to marshal metrics snapshot", "error", err)
		return
	}

	msg := &sse.Message{Type: metricsEvent}
	msg.AppendData(string(data))
	if err := m.sse.Publish(msg); err != nil {
		slog.Debug("Failed to publish metrics event", "error", err)
	}

	if m.publisher != nil {
		if err := m.publisher.Publish(MetricsTopic, snapshot); err != nil {
			slog.Warn("Failed to publish metrics snapshot", "error", err)
		}
	}
}

// Stream serves metrics snapshots as server-sent events
func (m *MetricsService) Stream() http.Handler {
	return m.sse
}
