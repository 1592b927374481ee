// Package kafka publishes recovery traffic to Kafka with sarama: delivery
// jobs for out-of-band secrets and audit events.
package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
)

const (
	TopicDelivery = "recovery.delivery"
	TopicAudit    = "recovery.audit"
)

// NewSyncProducer returns an idempotent, all-replica-ack producer.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return producer, nil
}
