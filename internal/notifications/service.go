package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"postflow/internal/config"
)

const userAgent = "Postflow-Go/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventPublishFailed    Event = "publish_failed"
	EventPostPublished    Event = "post_published"
	EventPostReviewed     Event = "post_reviewed"
	EventTestNotification Event = "test"
)

// Payload carries event fields. Known keys: post, client, error, externalID,
// decision, feedback.
type Payload map[string]any

// Service defines the notification surface used by the worker and the API.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventPublishFailed:    cfg.Notifications.PublishFailures,
			EventPostPublished:    cfg.Notifications.Published,
			EventPostReviewed:     cfg.Notifications.Reviews,
			EventTestNotification: true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	post := payload.text("post", "post")
	client := payload.text("client", "")
	switch event {
	case EventPublishFailed:
		body := fmt.Sprintf("❌ Publish failed: %s", post)
		if client != "" {
			body += fmt.Sprintf(" (%s)", client)
		}
		body += "\n" + payload.text("error", "unknown error")
		return message{
			title:    "Postflow - Publish Failed",
			body:     body,
			tags:     []string{"postflow", "publish", "failed"},
			priority: "high",
		}, true
	case EventPostPublished:
		body := fmt.Sprintf("✅ Published: %s", post)
		if external := payload.text("externalID", ""); external != "" {
			body += fmt.Sprintf("\nPlatform id: %s", external)
		}
		return message{
			title: "Postflow - Published",
			body:  body,
			tags:  []string{"postflow", "publish", "completed"},
		}, true
	case EventPostReviewed:
		decision := payload.text("decision", "reviewed")
		body := fmt.Sprintf("📝 %s %s %s", fallback(client, "Client"), decision, post)
		if feedback := payload.text("feedback", ""); feedback != "" {
			body += fmt.Sprintf("\nFeedback: %s", feedback)
		}
		return message{
			title: "Postflow - Post Reviewed",
			body:  body,
			tags:  []string{"postflow", "review", decision},
		}, true
	case EventTestNotification:
		return message{
			title:    "Postflow - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"postflow", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) text(key, def string) string {
	if p == nil {
		return def
	}
	value, ok := p[key]
	if !ok || value == nil {
		return def
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case error:
		s = v.Error()
	default:
		s = fmt.Sprint(v)
	}
	return fallback(strings.TrimSpace(s), def)
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
