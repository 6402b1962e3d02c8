package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"terrace-booking/internal/logger"
)

// EnsureTopicsExist creates the booking topics on the cluster controller.
// Topics that already exist are left alone.
func EnsureTopicsExist(ctx context.Context, brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	if log == nil {
		log = logger.Discard()
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial %s: %w", brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		switch {
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.LogKafka("TOPIC", topic, "already exists")
		case err != nil:
			// Keep going; the writer can still auto-create on first publish.
			log.Warn("KAFKA", fmt.Sprintf("Error creating topic %s: %v", topic, err))
		default:
			log.LogKafka("TOPIC", topic, "created")
		}
	}
	return nil
}
