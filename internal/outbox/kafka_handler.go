package outbox

import (
	"context"
	"fmt"

	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/pkg/kafka"
	"github.com/hkhalili/shopflow/pkg/logger"
	"github.com/hkhalili/shopflow/pkg/retry"
)

// KafkaHandler publishes outbox messages to Kafka
type KafkaHandler struct {
	logger   logger.Logger
	producer *kafka.Producer
	topic    string
	retryCfg *retry.RetryConfig
}

// NewKafkaHandler creates a new KafkaHandler. Publishing retries with
// exponential backoff before the message is handed back to the outbox.
func NewKafkaHandler(producer *kafka.Producer, topic string, logger logger.Logger) *KafkaHandler {
	return &KafkaHandler{
		producer: producer,
		topic:    topic,
		logger:   logger,
		retryCfg: &retry.RetryConfig{
			MaxAttempts:     3,
			BackoffStrategy: retry.NewDefaultExponentialBackoff(),
			Logger:          logger,
		},
	}
}

// HandleMessage publishes an outbox message to Kafka. The aggregate ID is
// the partition key so events for one order stay ordered.
func (h *KafkaHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	key := message.AggregateID

	err := retry.Retry(ctx, func() error {
		return h.producer.SendMessage(ctx, h.topic, key, message.Payload)
	}, h.retryCfg)

	if err != nil {
		h.logger.Error("Failed to publish message to Kafka",
			"error", err,
			"messageID", message.ID,
			"aggregateID", message.AggregateID)
		return fmt.Errorf("failed to publish message to Kafka: %w", err)
	}

	h.logger.Debug("Published message to Kafka",
		"topic", h.topic,
		"messageID", message.ID,
		"aggregateID", message.AggregateID,
		"eventType", message.EventType)

	return nil
}
