package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"terrace-booking/internal/config"
	"terrace-booking/internal/logger"
	"terrace-booking/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes booking lifecycle events, keyed by booking id so that
// all events of one booking land on the same partition.
type Producer struct {
	Writer messageWriter
	Topics config.TopicConfig
	Logger *logger.Logger
	Now    func() time.Time
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return newProducer(writer, topics, log)
}

func newProducer(w messageWriter, topics config.TopicConfig, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.Discard()
	}
	return &Producer{Writer: w, Topics: topics, Logger: log, Now: time.Now}
}

// PublishBookingCreated streams the booking creation event to Kafka
func (p *Producer) PublishBookingCreated(ctx context.Context, booking models.Booking) error {
	return p.publish(ctx, p.Topics.BookingCreated, models.BookingCreated, booking)
}

// PublishBookingCancelled streams the booking cancellation event to Kafka
func (p *Producer) PublishBookingCancelled(ctx context.Context, booking models.Booking) error {
	return p.publish(ctx, p.Topics.BookingCancelled, models.BookingCancelled, booking)
}

// PublishBookingExpired streams the booking expiry event to Kafka
func (p *Producer) PublishBookingExpired(ctx context.Context, booking models.Booking) error {
	return p.publish(ctx, p.Topics.BookingExpired, models.BookingExpired, booking)
}

func (p *Producer) publish(ctx context.Context, topic string, eventType models.BookingEventType, booking models.Booking) error {
	event := models.NewBookingEvent(eventType, booking, p.Now())
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(booking.ID),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, topic, err)
	}
	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("%s %s", eventType, booking.ID))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
