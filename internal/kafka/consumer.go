package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"terrace-booking/internal/logger"
	"terrace-booking/internal/models"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader messageReader
	logger *logger.Logger
}

// NewConsumer creates a group reader over every booking topic.
func NewConsumer(brokers, topics []string, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	return newConsumer(reader, log)
}

func newConsumer(r messageReader, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Discard()
	}
	return &Consumer{reader: r, logger: log}
}

// Start hands every decodable booking event to handler until ctx is done.
// Messages that do not decode are logged and skipped.
func (c *Consumer) Start(ctx context.Context, handler func(models.BookingEvent)) error {
	c.logger.LogKafka("CONSUME", "booking", "Kafka consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		var event models.BookingEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message at %s/%d@%d: %v",
				msg.Topic, msg.Partition, msg.Offset, err))
			continue
		}
		if event.Type == "" || event.BookingID == "" {
			c.logger.Warn("KAFKA", fmt.Sprintf("Skipping message without event type or booking id on %s", msg.Topic))
			continue
		}

		c.logger.LogKafka("RECEIVE", msg.Topic, fmt.Sprintf("%s %s", event.Type, event.BookingID))
		handler(event)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
