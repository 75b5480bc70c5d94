package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
)

const (
	DefaultSubject = "chat.request"
	MetricsSubject = "chat.metrics"
)

// ChatClient provides a client interface for the multichat service
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	CheckHealth(ctx context.Context, service string) (*HealthStatus, error)
	SubscribeMetrics(fn func(*Metrics)) (func() error, error)
	Close() error
}

// NATSChatClient implements ChatClient over NATS
type NATSChatClient struct {
	conn     *nats.Conn
	clientID string
	subject  string
	timeout  time.Duration
}

// NewNATSClient connects to NATS and returns a chat client
func NewNATSClient(natsURL, clientID string) (*NATSChatClient, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if clientID == "" {
		clientID = "chat-client"
	}

	return &NATSChatClient{
		conn:     conn,
		clientID: clientID,
		subject:  DefaultSubject,
		timeout:  90 * time.Second,
	}, nil
}

// Chat publishes the request on the work queue subject and waits for the
// reply on a subject unique to this request
func (c *NATSChatClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.ReqID == "" {
		req.ReqID = ulid.Make().String()
	}
	req.ReplyTo = fmt.Sprintf("chat.reply.%s.%s", c.clientID, req.ReqID)

	requestBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// subscribe before publishing so the reply cannot be missed
	replyChan := make(chan *nats.Msg, 1)
	sub, err := c.conn.Subscribe(req.ReplyTo, keepFirst(replyChan))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to reply: %w", err)
	}
	defer sub.Unsubscribe()

	if err := c.conn.Publish(c.subject, requestBytes); err != nil {
		return nil, fmt.Errorf("failed to publish request: %w", err)
	}

	slog.Debug("Published chat request", "req_id", req.ReqID, "reply_subject", req.ReplyTo)

	select {
	case msg := <-replyChan:
		var response ChatResponse
		if err := json.Unmarshal(msg.Data, &response); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if response.Error != "" {
			return &response, fmt.Errorf("chat failed: %s", response.Error)
		}
		return &response, nil

	case <-time.After(c.timeout):
		return nil, fmt.Errorf("request timeout after %v", c.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// keepFirst hands the first reply to ch and drops the rest. A redelivered
// request can be answered twice and the handler must never block.
func keepFirst(ch chan *nats.Msg) nats.MsgHandler {
	return func(msg *nats.Msg) {
		select {
		case ch <- msg:
		default:
		}
	}
}

// CheckHealth asks a service instance for its health over request/reply
func (c *NATSChatClient) CheckHealth(ctx context.Context, service string) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg, err := c.conn.RequestWithContext(ctx, fmt.Sprintf("services.%s.health", service), nil)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	var health HealthStatus
	if err := json.Unmarshal(msg.Data, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	return &health, nil
}

// SubscribeMetrics calls fn for every published metrics snapshot. The
// returned function stops the subscription.
func (c *NATSChatClient) SubscribeMetrics(fn func(*Metrics)) (func() error, error) {
	sub, err := c.conn.Subscribe(MetricsSubject, func(msg *nats.Msg) {
		var m Metrics
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			slog.Warn("Failed to parse metrics snapshot", "error", err)
			return
		}
		fn(&m)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to metrics: %w", err)
	}
	return sub.Unsubscribe, nil
}

// Close closes the NATS connection
func (c *NATSChatClient) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}

// SetTimeout configures the chat reply timeout
func (c *NATSChatClient) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SetSubject changes the work queue subject chats are published on
func (c *NATSChatClient) SetSubject(subject string) {
	c.subject = subject
}

// Connection exposes the underlying connection for raw subscriptions
func (c *NATSChatClient) Connection() *nats.Conn {
	return c.conn
}

var _ ChatClient = (*NATSChatClient)(nil)
