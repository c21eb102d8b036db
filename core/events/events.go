// Package events publishes domain events to Kafka. The push-notification
// dispatcher consumes these to fan incident updates out to registered
// devices. Publishing is best effort, a broker outage never fails the
// originating request.
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// TopicIncidentCreated carries one message per successfully submitted
// incident report.
const TopicIncidentCreated = "incident.created"

// IncidentCreated is the payload published on TopicIncidentCreated.
type IncidentCreated struct {
	IncidentID  int64     `json:"incident_id"`
	AccountID   string    `json:"account_id"`
	Description string    `json:"description"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	PhotoURL    string    `json:"photo_url"`
	ReportedAt  time.Time `json:"reported_at"`
}

// Publisher writes domain events to Kafka.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns a publisher for the given brokers.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        TopicIncidentCreated,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// PublishIncidentCreated publishes the event, keyed by incident id so
// updates for one report stay ordered.
func (p *Publisher) PublishIncidentCreated(ctx context.Context, event IncidentCreated) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.IncidentID, 10)),
		Value: value,
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
