package producer

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	auditdomain "auth-token-service/internal/audit/domain"
)

// kafkaEvent is the wire shape of one security event on the topic.
type kafkaEvent struct {
	OccurredAt time.Time      `json:"occurred_at"`
	TenantID   string         `json:"tenant_id"`
	SubjectID  string         `json:"subject_id"`
	Action     string         `json:"action"`
	Severity   string         `json:"severity"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// KafkaProducer implements Producer using segmentio/kafka-go.
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaProducer creates a Kafka producer that writes security events to
// the given topic. Returns nil when brokers or topic are unset so the
// caller can treat the stream as disabled. Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer, topic: topic}
}

// Emit serializes the event as JSON and writes it to the Kafka topic, keyed
// by tenant so one tenant's events stay ordered within a partition.
func (p *KafkaProducer) Emit(ctx context.Context, e *auditdomain.Entry) error {
	if p == nil || p.writer == nil || e == nil {
		return nil
	}
	payload, err := json.Marshal(kafkaEvent{
		OccurredAt: e.OccurredAt,
		TenantID:   e.TenantID,
		SubjectID:  e.SubjectID,
		Action:     e.Action,
		Severity:   string(e.Severity),
		Detail:     e.Detail,
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(e.TenantID),
		Value: payload,
	})
	if err != nil {
		log.Printf("telemetry: kafka emit failed: %v", err)
		return err
	}
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
