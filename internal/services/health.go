package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aigoflow/multichat-service/internal/config"
)

const Version = "1.0.0"

type HealthService struct {
	nats       *nats.Conn
	config     *config.Config
	monitoring *MonitoringService
}

// ProviderHealth tells whether a service can answer without a user key
type ProviderHealth struct {
	Name          string `json:"name"`
	ResponseKey   string `json:"response_key"`
	FreeModel     string `json:"free_model"`
	PaidModel     string `json:"paid_model,omitempty"`
	DefaultKeySet bool   `json:"default_key_set"`
}

type HealthStatus struct {
	ServiceName  string           `json:"service_name"`
	Status       string           `json:"status"` // online, busy
	LastActivity time.Time        `json:"last_activity"`
	Providers    []ProviderHealth `json:"providers"`
	Endpoint     string           `json:"endpoint"`
	NATSTopic    string           `json:"nats_topic"`
	Version      string           `json:"version"`
}

func NewHealthService(natsConn *nats.Conn, cfg *config.Config, monitoring *MonitoringService) *HealthService {
	return &HealthService{
		nats:       natsConn,
		config:     cfg,
		monitoring: monitoring,
	}
}

// HealthTopic is the request/reply subject for a service's health
func HealthTopic(serviceName string) string {
	return fmt.Sprintf("services.%s.health", serviceName)
}

// HeartbeatTopic is the subject a service's heartbeats go to
func HeartbeatTopic(serviceName string) string {
	return fmt.Sprintf("monitoring.services.heartbeat.%s", serviceName)
}

func (h *HealthService) Start(ctx context.Context) error {
	healthTopic := HealthTopic(h.config.ServiceName)

	_, err := h.nats.Subscribe(healthTopic, func(msg *nats.Msg) {
		statusData, err := json.Marshal(h.Status())
		if err != nil {
			slog.Error("Failed to marshal health status", "error", err)
			return
		}

		if err := msg.Respond(statusData); err != nil {
			slog.Error("Failed to respond to health check", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to health topic: %w", err)
	}

	slog.Info("Health service started", "topic", healthTopic)

	go h.publishHeartbeats(ctx)
	return nil
}

func (h *HealthService) publishHeartbeats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	heartbeatTopic := HeartbeatTopic(h.config.ServiceName)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			statusData, err := json.Marshal(h.Status())
			if err != nil {
				continue
			}

			if err := h.nats.Publish(heartbeatTopic, statusData); err != nil {
				slog.Warn("Failed to publish heartbeat", "error", err)
			}
		}
	}
}

// Status describes this instance and its providers
func (h *HealthService) Status() HealthStatus {
	status := HealthStatus{
		ServiceName: h.config.ServiceName,
		Status:      "online",
		Endpoint:    fmt.Sprintf("http://%s", h.config.HTTPAddr),
		NATSTopic:   h.config.Subject,
		Version:     Version,
	}

	if h.monitoring != nil {
		status.LastActivity = h.monitoring.LastActivity()
		if h.monitoring.Report().Status == StatusCritical {
			status.Status = "busy"
		}
	}

	for _, name := range h.config.Services.Names() {
		svc, _ := h.config.Services.Get(name)
		status.Providers = append(status.Providers, ProviderHealth{
			Name:          svc.Name,
			ResponseKey:   svc.ResponseKey,
			FreeModel:     svc.FreeModel,
			PaidModel:     svc.PaidModel,
			DefaultKeySet: usableKey(h.config.DefaultKeys[name]) != "",
		})
	}
	return status
}
