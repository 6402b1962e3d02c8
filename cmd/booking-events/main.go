// Command booking-events tails the booking topics and logs every lifecycle
// event, giving an audit trail of table occupancy changes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"terrace-booking/internal/config"
	"terrace-booking/internal/kafka"
	"terrace-booking/internal/logger"
	"terrace-booking/internal/models"
)

func main() {
	_ = godotenv.Load() // Loads .env file if present

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLogger(cfg.Log.Dir, cfg.Log.Service+"-events")
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	topics := cfg.Kafka.Topics.All()
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics, cfg.Kafka.GroupID, log)
	defer consumer.Close()
	log.Info("KAFKA", fmt.Sprintf("Tailing %s as group %s", strings.Join(topics, ", "), cfg.Kafka.GroupID))

	err = consumer.Start(ctx, func(e models.BookingEvent) {
		log.LogBooking(strings.ToUpper(strings.TrimPrefix(string(e.Type), "booking.")), e.BookingID,
			fmt.Sprintf("%s %s-%s tables %s now %s", e.Booking.Date, e.Booking.StartTime, e.Booking.EndTime,
				strings.Join(e.TableIDs, ", "), e.TableStatus))
	})
	if err != nil {
		log.Fatal("KAFKA", fmt.Sprintf("Consumer stopped: %v", err))
	}
	log.Info("APP", "Event tail stopped")
}
