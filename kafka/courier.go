package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/agriskills/goRecovery/provider/redisidp"
	"go.uber.org/zap"
)

// Delivery job kinds.
const (
	KindOTPSMS     = "otp_sms"
	KindResetEmail = "reset_email"
)

// DeliveryJob is the message a downstream SMS or mail worker consumes.
type DeliveryJob struct {
	Kind        string    `json:"kind"`
	To          string    `json:"to"`
	Code        string    `json:"code,omitempty"`
	Token       string    `json:"token,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Courier hands secrets to delivery workers through a topic. Messages are
// keyed by destination so jobs for one recipient stay ordered.
type Courier struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
	now      func() time.Time
}

var _ redisidp.Courier = (*Courier)(nil)

func NewCourier(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Courier {
	if topic == "" {
		topic = TopicDelivery
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Courier{producer: producer, topic: topic, logger: logger.Named("kafka_courier"), now: time.Now}
}

func (c *Courier) SendOTP(ctx context.Context, phone, code string) error {
	return c.publish(ctx, DeliveryJob{Kind: KindOTPSMS, To: phone, Code: code})
}

func (c *Courier) SendResetLink(ctx context.Context, email, token string) error {
	return c.publish(ctx, DeliveryJob{Kind: KindResetEmail, To: email, Token: token})
}

func (c *Courier) publish(ctx context.Context, job DeliveryJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job.RequestedAt = c.now().UTC()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery job: %w", err)
	}

	partition, offset, err := c.producer.SendMessage(&sarama.ProducerMessage{
		Topic: c.topic,
		Key:   sarama.StringEncoder(job.To),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("failed to send delivery job: %w", err)
	}

	c.logger.Debug("delivery job sent",
		zap.String("kind", job.Kind),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}
