package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aigoflow/multichat-service/pkg/client"
)

// ServiceStatus is what the monitor knows about one running instance
type ServiceStatus struct {
	client.HealthStatus
	Backpressure *Backpressure `json:"backpressure,omitempty"`
	LastSeen     time.Time     `json:"last_seen"`
	FirstSeen    time.Time     `json:"first_seen"`
	Uptime       time.Duration `json:"uptime"`
	RTT          time.Duration `json:"rtt,omitempty"`
}

// Backpressure mirrors the reports instances publish while busy
type Backpressure struct {
	PendingMessages  int64     `json:"pending_messages"`
	ActiveProcessing int64     `json:"active_processing"`
	WorkerCount      int       `json:"worker_count"`
	QueueCapacity    int       `json:"queue_capacity"`
	Status           string    `json:"status"`
	Timestamp        time.Time `json:"timestamp"`
}

// MonitorService collects heartbeats, backpressure and metrics snapshots
type MonitorService struct {
	chat      *client.NATSChatClient
	nats      *nats.Conn
	services  map[string]*ServiceStatus
	metrics   *client.Metrics
	mu        sync.RWMutex
	listeners []chan []ServiceStatus
}

func NewMonitorService(natsURL string) (*MonitorService, error) {
	c, err := client.NewNATSClient(natsURL, "multichat-monitor")
	if err != nil {
		return nil, err
	}

	return &MonitorService{
		chat:     c,
		nats:     c.Connection(),
		services: make(map[string]*ServiceStatus),
	}, nil
}

func (m *MonitorService) Start(ctx context.Context) error {
	if _, err := m.nats.Subscribe("monitoring.services.heartbeat.*", m.onHeartbeat); err != nil {
		return fmt.Errorf("failed to subscribe to heartbeats: %w", err)
	}
	if _, err := m.nats.Subscribe("monitoring.services.backpressure.*", m.onBackpressure); err != nil {
		return fmt.Errorf("failed to subscribe to backpressure: %w", err)
	}
	if _, err := m.chat.SubscribeMetrics(func(snapshot *client.Metrics) {
		m.mu.Lock()
		m.metrics = snapshot
		m.mu.Unlock()
		m.notifyListeners()
	}); err != nil {
		return err
	}

	log.Println("Monitor service started, listening for heartbeats...")

	go m.cleanupStaleServices(ctx)
	return nil
}

func (m *MonitorService) onHeartbeat(msg *nats.Msg) {
	var status client.HealthStatus
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		log.Printf("Failed to parse heartbeat from %s: %v", msg.Subject, err)
		return
	}

	now := time.Now()
	m.mu.Lock()
	entry, exists := m.services[status.ServiceName]
	if !exists {
		entry = &ServiceStatus{FirstSeen: now}
		m.services[status.ServiceName] = entry
	}
	entry.HealthStatus = status
	entry.LastSeen = now
	entry.Uptime = now.Sub(entry.FirstSeen)
	m.mu.Unlock()

	m.notifyListeners()
}

func (m *MonitorService) onBackpressure(msg *nats.Msg) {
	var report struct {
		ServiceName string `json:"service_name"`
		Backpressure
	}
	if err := json.Unmarshal(msg.Data, &report); err != nil {
		log.Printf("Failed to parse backpressure report from %s: %v", msg.Subject, err)
		return
	}

	m.mu.Lock()
	entry, exists := m.services[report.ServiceName]
	if !exists {
		now := time.Now()
		entry = &ServiceStatus{FirstSeen: now, LastSeen: now}
		entry.ServiceName = report.ServiceName
		m.services[report.ServiceName] = entry
	}
	bp := report.Backpressure
	entry.Backpressure = &bp
	m.mu.Unlock()

	m.notifyListeners()
}

func (m *MonitorService) cleanupStaleServices(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			for name, s := range m.services {
				if time.Since(s.LastSeen) > 2*time.Minute {
					log.Printf("Removing stale service: %s", name)
					delete(m.services, name)
				}
			}
			m.mu.Unlock()
			m.notifyListeners()
		}
	}
}

// QueryHealth asks one instance for its status and records the round trip
func (m *MonitorService) QueryHealth(ctx context.Context, serviceName string) (*ServiceStatus, error) {
	start := time.Now()
	status, err := m.chat.CheckHealth(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	m.mu.Lock()
	entry, exists := m.services[serviceName]
	if !exists {
		entry = &ServiceStatus{FirstSeen: now}
		m.services[serviceName] = entry
	}
	entry.HealthStatus = *status
	entry.LastSeen = now
	entry.Uptime = now.Sub(entry.FirstSeen)
	entry.RTT = time.Since(start)
	out := *entry
	m.mu.Unlock()

	return &out, nil
}

func (m *MonitorService) GetServices() []ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	services := make([]ServiceStatus, 0, len(m.services))
	for _, s := range m.services {
		services = append(services, *s)
	}
	sort.Slice(services, func(i, j int) bool {
		return services[i].ServiceName < services[j].ServiceName
	})
	return services
}

func (m *MonitorService) GetMetrics() *client.Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

func (m *MonitorService) AddListener() chan []ServiceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan []ServiceStatus, 10)
	m.listeners = append(m.listeners, ch)
	return ch
}

func (m *MonitorService) notifyListeners() {
	services := m.GetServices()

	m.mu.RLock()
	for _, ch := range m.listeners {
		select {
		case ch <- services:
		default:
		}
	}
	m.mu.RUnlock()
}

func (m *MonitorService) Close() {
	m.chat.Close()
}

func main() {
	var (
		natsURL  = flag.String("nats", "nats://127.0.0.1:4222", "NATS server URL")
		httpAddr = flag.String("http", "", "Serve the monitor API on this address")
		service  = flag.String("service", "multichat", "Service name to query on startup")
		onceMode = flag.Bool("once", false, "Query once and exit")
	)
	flag.Parse()

	monitor, err := NewMonitorService(*natsURL)
	if err != nil {
		log.Fatalf("Failed to create monitor: %v", err)
	}
	defer monitor.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *onceMode {
		status, err := monitor.QueryHealth(ctx, *service)
		if err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		printServices([]ServiceStatus{*status}, nil)
		return
	}

	if err := monitor.Start(ctx); err != nil {
		log.Fatalf("Failed to start monitor: %v", err)
	}
	if _, err := monitor.QueryHealth(ctx, *service); err != nil {
		log.Printf("Initial health check for %s failed: %v", *service, err)
	}

	if *httpAddr != "" {
		go runHTTPServer(ctx, monitor, *httpAddr)
	}
	runCLIDashboard(ctx, monitor)
}

func runCLIDashboard(ctx context.Context, monitor *MonitorService) {
	updates := monitor.AddListener()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	printServices(monitor.GetServices(), monitor.GetMetrics())
	for {
		select {
		case <-ctx.Done():
			return
		case services := <-updates:
			printServices(services, monitor.GetMetrics())
		case <-ticker.C:
			printServices(monitor.GetServices(), monitor.GetMetrics())
		}
	}
}

func printServices(services []ServiceStatus, metrics *client.Metrics) {
	fmt.Print("\033[2J\033[H")
	fmt.Printf("Multichat Monitor  %s\n\n", time.Now().Format("15:04:05"))

	fmt.Printf("%-15s %-9s %-10s %-8s %-8s %-30s\n", "SERVICE", "STATUS", "QUEUE", "UPTIME", "SEEN", "PROVIDERS")
	fmt.Println(strings.Repeat("-", 84))
	if len(services) == 0 {
		fmt.Println("No services discovered yet")
	}
	for _, s := range services {
		queue := "-"
		if s.Backpressure != nil {
			queue = fmt.Sprintf("%d/%d %s", s.Backpressure.PendingMessages, s.Backpressure.QueueCapacity, s.Backpressure.Status)
		}
		var providers []string
		for _, p := range s.Providers {
			providers = append(providers, p.ResponseKey)
		}
		fmt.Printf("%-15s %-9s %-10s %-8s %-8s %-30s\n",
			truncateString(s.ServiceName, 15),
			s.Status,
			truncateString(queue, 10),
			formatDuration(s.Uptime),
			formatDuration(time.Since(s.LastSeen)),
			truncateString(strings.Join(providers, ","), 30))
	}

	if metrics == nil {
		return
	}
	fmt.Printf("\nCalls: %d  Cost: $%.4f  Feedback: +%d / -%d\n\n",
		metrics.TotalCalls, metrics.TotalCost, metrics.FeedbackSummary.Positive, metrics.FeedbackSummary.Negative)
	fmt.Printf("%-10s %-7s %-7s %-10s %-10s %-7s\n", "MODEL", "CALLS", "ERRORS", "COST", "LATENCY", "+/-")
	keys := make([]string, 0, len(metrics.Services))
	for k := range metrics.Services {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sm := metrics.Services[k]
		fmt.Printf("%-10s %-7d %-7d $%-9.4f %-10s %d/%d\n",
			k, sm.Calls, sm.Errors, sm.TotalCost,
			fmt.Sprintf("%.0fms", sm.AvgLatencyMs), sm.Positive, sm.Negative)
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

func runHTTPServer(ctx context.Context, monitor *MonitorService, addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/services", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, monitor.GetServices())
	})

	mux.HandleFunc("/api/services/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/api/services/")
		if name == "" {
			http.Error(w, "Service name required", http.StatusBadRequest)
			return
		}
		status, err := monitor.QueryHealth(r.Context(), name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, status)
	})

	mux.HandleFunc("/api/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics := monitor.GetMetrics()
		if metrics == nil {
			http.Error(w, "No metrics received yet", http.StatusNotFound)
			return
		}
		writeJSON(w, metrics)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Printf("HTTP server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(v)
}
