package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aigoflow/multichat-service/internal/config"
)

// Backpressure statuses
const (
	StatusHealthy  = "healthy"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

type MonitoringService struct {
	publisher    EventPublisher
	config       *config.Config
	pendingCount int64 // atomic counter
	activeCount  int64 // atomic counter for chats being fanned out
	lastActivity int64 // unix nanos
}

type BackpressureReport struct {
	ServiceName      string    `json:"service_name"`
	PendingMessages  int64     `json:"pending_messages"`
	ActiveProcessing int64     `json:"active_processing"`
	Timestamp        time.Time `json:"timestamp"`
	WorkerCount      int       `json:"worker_count"`
	QueueCapacity    int       `json:"queue_capacity"`
	Status           string    `json:"status"`
}

func NewMonitoringService(publisher EventPublisher, cfg *config.Config) *MonitoringService {
	return &MonitoringService{
		publisher: publisher,
		config:    cfg,
	}
}

// Topic is the subject backpressure reports go to
func (m *MonitoringService) Topic() string {
	return fmt.Sprintf("%s.%s", m.config.MonitoringTopic, m.config.ServiceName)
}

func (m *MonitoringService) Start(ctx context.Context) error {
	slog.Info("Starting monitoring service",
		"topic", m.Topic(),
		"threshold", m.config.BackpressureThreshold)

	go m.monitorBackpressure(ctx)
	return nil
}

func (m *MonitoringService) monitorBackpressure(ctx context.Context) {
	// report every second while busy, every 10s when idle
	highLoadTicker := time.NewTicker(1 * time.Second)
	lowLoadTicker := time.NewTicker(10 * time.Second)
	defer highLoadTicker.Stop()
	defer lowLoadTicker.Stop()

	busy := false
	for {
		var tick <-chan time.Time = lowLoadTicker.C
		if busy {
			tick = highLoadTicker.C
		}

		select {
		case <-ctx.Done():
			return
		case <-tick:
			report := m.Report()
			busy = report.PendingMessages+report.ActiveProcessing > 0
			m.publish(report)
		}
	}
}

// Report captures the current counters
func (m *MonitoringService) Report() BackpressureReport {
	pending := atomic.LoadInt64(&m.pendingCount)
	active := atomic.LoadInt64(&m.activeCount)
	return BackpressureReport{
		ServiceName:      m.config.ServiceName,
		PendingMessages:  pending,
		ActiveProcessing: active,
		Timestamp:        time.Now(),
		WorkerCount:      m.config.Concurrency,
		QueueCapacity:    m.config.MaxMsgs,
		Status:           m.calculateStatus(pending, active),
	}
}

func (m *MonitoringService) publish(report BackpressureReport) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(m.Topic(), report); err != nil {
		slog.Warn("Failed to publish backpressure report", "error", err)
		return
	}

	if report.PendingMessages > 0 || report.Status != StatusHealthy {
		slog.Info("Backpressure report",
			"pending", report.PendingMessages,
			"active", report.ActiveProcessing,
			"status", report.Status)
	}
}

func (m *MonitoringService) calculateStatus(pending, active int64) string {
	total := pending + active
	switch {
	case total == 0:
		return StatusHealthy
	case total < int64(m.config.BackpressureThreshold):
		return StatusWarning
	default:
		return StatusCritical
	}
}

func (m *MonitoringService) IncrementPending() {
	atomic.AddInt64(&m.pendingCount, 1)
}

func (m *MonitoringService) DecrementPending() {
	atomic.AddInt64(&m.pendingCount, -1)
}

// IncrementActive also marks the service as recently active
func (m *MonitoringService) IncrementActive() {
	atomic.AddInt64(&m.activeCount, 1)
	atomic.StoreInt64(&m.lastActivity, time.Now().UnixNano())
}

func (m *MonitoringService) DecrementActive() {
	atomic.AddInt64(&m.activeCount, -1)
}

// LastActivity is the start of the most recent chat, or zero
func (m *MonitoringService) LastActivity() time.Time {
	ns := atomic.LoadInt64(&m.lastActivity)
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
