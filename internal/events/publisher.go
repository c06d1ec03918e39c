// Package events publishes analysed-transaction events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"farewatch/internal/config"
	"farewatch/internal/fraud"
)

// EventType identifies the payload published for each recorded analysis.
const EventType = "ticket_transaction.analyzed"

// AnalyzedEvent is the JSON body of one Kafka message.
type AnalyzedEvent struct {
	Type        string             `json:"type"`
	TicketID    string             `json:"ticket_id"`
	Timestamp   time.Time          `json:"timestamp"`
	Station     string             `json:"station"`
	Amount      string             `json:"amount"`
	FraudScore  float64            `json:"fraud_score"`
	Status      string             `json:"status"`
	RiskLevel   string             `json:"risk_level"`
	ProcessedAt time.Time          `json:"processed_at"`
	Factors     map[string]float64 `json:"factors,omitempty"`
}

// NewAnalyzedEvent converts a result into its wire form.
func NewAnalyzedEvent(res fraud.Result) AnalyzedEvent {
	return AnalyzedEvent{
		Type:        EventType,
		TicketID:    res.TicketID,
		Timestamp:   res.Timestamp.UTC(),
		Station:     res.Station,
		Amount:      res.Amount.StringFixed(2),
		FraudScore:  res.FraudScore,
		Status:      res.Status.String(),
		RiskLevel:   string(res.RiskLevel()),
		ProcessedAt: res.ProcessedAt.UTC(),
		Factors:     res.Factors,
	}
}

// Publisher emits one event per durably recorded analysis.
type Publisher interface {
	PublishAnalyzed(ctx context.Context, res fraud.Result) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by ticket id so every event for one
// ticket lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher builds a publisher from config.
func NewKafkaPublisher(cfg config.EventsConfig) *KafkaPublisher {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: batchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaPublisher{writer: w, topic: cfg.Topic}
}

func newPublisherWithWriter(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

// PublishAnalyzed encodes and writes one event.
func (p *KafkaPublisher) PublishAnalyzed(ctx context.Context, res fraud.Result) error {
	value, err := json.Marshal(NewAnalyzedEvent(res))
	if err != nil {
		return fmt.Errorf("encode analyzed event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(res.TicketID),
		Value: value,
		Time:  res.ProcessedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventType)},
			{Key: "status", Value: []byte(res.Status.String())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ Publisher = (*KafkaPublisher)(nil)
