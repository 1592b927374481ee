package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	goRecovery "github.com/agriskills/goRecovery"
	"go.uber.org/zap"
)

// AuditSink forwards audit events to a topic, keyed by session ID. Send
// failures are logged and dropped.
type AuditSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

var _ goRecovery.AuditSink = (*AuditSink)(nil)

func NewAuditSink(producer sarama.SyncProducer, topic string, logger *zap.Logger) *AuditSink {
	if topic == "" {
		topic = TopicAudit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditSink{producer: producer, topic: topic, logger: logger.Named("kafka_audit")}
}

func (s *AuditSink) Emit(_ context.Context, event goRecovery.AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal audit event", zap.Error(err))
		return
	}

	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(event.SessionID),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		s.logger.Warn("audit event dropped",
			zap.String("event_type", event.EventType),
			zap.String("session_id", event.SessionID),
			zap.Error(err),
		)
	}
}
