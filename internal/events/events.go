// Package events publishes report lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	ReportSubmitted     = "report.submitted"
	ReportStatusChanged = "report.status_changed"
	ReportStale         = "report.stale"
)

type Event struct {
	Type     string            `json:"type"`
	ReportID string            `json:"report_id"`
	UserID   string            `json:"user_id,omitempty"`
	Images   []string          `json:"images,omitempty"`
	Failed   map[string]string `json:"failed,omitempty"`
	Status   string            `json:"status,omitempty"`
	At       time.Time         `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes events as JSON keyed by report id, so one report's events
// stay on one partition.
type Kafka struct {
	writer messageWriter
}

func NewKafka(broker, topic string) *Kafka {
	return &Kafka{writer: &kafka.Writer{
		Addr:     kafka.TCP(broker),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}}
}

func (k *Kafka) Publish(ctx context.Context, event Event) error {
	const op = "events.Kafka.Publish"

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ReportID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
