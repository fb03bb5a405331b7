package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"postflow/internal/config"
)

// Type names a lifecycle event.
type Type string

const (
	TypePostCreated   Type = "post.created"
	TypePostApproved  Type = "post.approved"
	TypePostRejected  Type = "post.rejected"
	TypePostPublished Type = "post.published"
	TypePublishFailed Type = "post.publish_failed"
)

// Event is the JSON document written for each lifecycle change.
type Event struct {
	Type          Type      `json:"type"`
	PostID        int64     `json:"post_id"`
	ClientID      int64     `json:"client_id"`
	Status        string    `json:"status"`
	ExternalID    string    `json:"external_id,omitempty"`
	Error         string    `json:"error,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Sink receives lifecycle events.
type Sink interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Emit(context.Context, Event) error { return nil }

func (Noop) Close() error { return nil }

// MessageWriter is the subset of *kafka.Writer the sink depends on.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// KafkaSink writes events keyed by post id so a post's history stays on one
// partition.
type KafkaSink struct {
	writer MessageWriter
	now    func() time.Time
}

// NewKafkaSink wraps an existing writer.
func NewKafkaSink(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer, now: time.Now}
}

// New returns the sink configured by cfg.Events.
func New(cfg *config.Config) (Sink, error) {
	if cfg == nil || !cfg.Events.Enabled {
		return Noop{}, nil
	}
	brokers := make([]string, 0, len(cfg.Events.Brokers))
	for _, broker := range cfg.Events.Brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("events enabled without brokers")
	}
	topic := strings.TrimSpace(cfg.Events.Topic)
	if topic == "" {
		return nil, errors.New("events enabled without topic")
	}
	w := &kgo.Writer{
		Addr:                   kgo.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kgo.Hash{},
		RequiredAcks:           kgo.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaSink(w), nil
}

// Emit serializes event and writes it synchronously.
func (s *KafkaSink) Emit(ctx context.Context, event Event) error {
	if s == nil || s.writer == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kgo.Message{
		Key:   []byte(strconv.FormatInt(event.PostID, 10)),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kgo.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event for post %d: %w", event.Type, event.PostID, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
