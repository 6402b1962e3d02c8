package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"terrace-booking/internal/booking"
	"terrace-booking/internal/booking/backend"
	"terrace-booking/internal/booking/booking_api"
	"terrace-booking/internal/booking/qr"
	"terrace-booking/internal/config"
	"terrace-booking/internal/kafka"
	"terrace-booking/internal/logger"
	"terrace-booking/internal/sse"
)

// setupPublisher returns the Kafka producer when publishing is enabled, and
// a no-op publisher otherwise.
func setupPublisher(ctx context.Context, cfg *config.Config, log *logger.Logger) (booking.EventPublisher, func()) {
	if !cfg.Kafka.Enabled {
		log.Info("KAFKA", "Event publishing disabled")
		return booking.NopPublisher{}, func() {}
	}

	log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers %v", cfg.Kafka.Brokers))
	topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := kafka.EnsureTopicsExist(topicCtx, cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Booking topics ensured successfully")
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
	log.Info("KAFKA", "Kafka producer initialized successfully")
	return producer, func() {
		if err := producer.Close(); err != nil {
			log.Error("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.Log.Dir, cfg.Log.Service)
	defer log.Close()

	log.Info("APP", "Starting Terrace Booking Service initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("STORE", fmt.Sprintf("Failed to open %s store: %v", cfg.Store.Driver, err))
	}
	defer store.Close()

	publisher, closePublisher := setupPublisher(ctx, cfg, log)
	defer closePublisher()

	emitter := sse.NewTableEventEmitter()

	service, err := booking.NewService(ctx, store.Store, booking.Options{
		Location:    cfg.Terrace.Location,
		Publisher:   booking.Publishers{emitter, publisher},
		Locker:      store.Locker,
		Logger:      log,
		SweepOnRead: cfg.Sweep.OnRead,
		Shared:      store.Shared,
	})
	if err != nil {
		log.Fatal("STORE", fmt.Sprintf("Failed to load terrace state: %v", err))
	}
	log.Info("APP", fmt.Sprintf("Terrace state loaded (timezone %s)", cfg.Terrace.Location))

	var sweeper *booking.Sweeper
	if cfg.Sweep.Interval > 0 {
		sweeper = booking.NewSweeper(service, cfg.Sweep.Interval, nil, log)
		if err := sweeper.Start(ctx); err != nil {
			log.Fatal("SWEEP", fmt.Sprintf("Failed to start sweeper: %v", err))
		}
	} else {
		log.Info("SWEEP", "Background sweeper disabled")
	}

	handler := booking_api.NewHandler(service, qr.NewGenerator(cfg.QR.Secret), log)
	handler.Events = booking_api.NewSSEHandler(emitter, log)
	log.Info("HTTP", "Setting up router and middleware")
	router := booking_api.NewRouter(handler, log, cfg.Server.StaticDir)
	log.Info("ROUTER", "Terrace routes registered under /api")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Terrace Booking Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	if sweeper != nil {
		sweeper.Stop()
	}
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Terrace Booking Service shutdown complete")
	}
}
