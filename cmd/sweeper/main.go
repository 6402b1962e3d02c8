// Command sweeper runs a single expiry sweep against the configured store and
// exits. It is meant for cron when the service runs without its background
// sweeper.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"terrace-booking/internal/booking"
	"terrace-booking/internal/booking/backend"
	"terrace-booking/internal/config"
	"terrace-booking/internal/kafka"
	"terrace-booking/internal/logger"
)

func main() {
	_ = godotenv.Load() // Loads .env file if present

	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "sweeper: %v\n", err)
		os.Exit(1)
	}
}

// run sweeps once and prints the freed bookings to out. Every resource it
// opens is closed before it returns.
func run(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("sweeper", flag.ContinueOnError)
	at := flags.String("at", "", "sweep as of this RFC3339 time instead of now")
	if err := flags.Parse(args); err != nil {
		return err
	}

	now := time.Now()
	if *at != "" {
		parsed, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("invalid -at value %q: %w", *at, err)
		}
		now = parsed
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.NewLogger(cfg.Log.Dir, cfg.Log.Service+"-sweeper")
	defer log.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Error("STORE", fmt.Sprintf("Failed to open %s store: %v", cfg.Store.Driver, err))
		return err
	}
	defer store.Close()

	opts := booking.Options{
		Location: cfg.Terrace.Location,
		Locker:   store.Locker,
		Logger:   log,
		Shared:   store.Shared,
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer func() {
			if err := producer.Close(); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
			}
		}()
		opts.Publisher = producer
	}

	service, err := booking.NewService(ctx, store.Store, opts)
	if err != nil {
		log.Error("STORE", fmt.Sprintf("Failed to load terrace state: %v", err))
		return err
	}

	freed, err := service.SweepExpired(ctx, now)
	if err != nil {
		log.Error("SWEEP", fmt.Sprintf("Sweep failed: %v", err))
		return err
	}
	log.LogSweep(fmt.Sprintf("Sweep as of %s released %d booking(s)", now.In(cfg.Terrace.Location).Format(time.RFC3339), len(freed)))
	for _, b := range freed {
		fmt.Fprintf(out, "%s\t%s\t%s-%s\t%v\n", b.ID, b.Name, b.StartTime, b.EndTime, b.Tables)
	}
	return nil
}
