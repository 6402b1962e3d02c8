package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"terrace-booking/internal/booking"
	"terrace-booking/internal/config"
	"terrace-booking/internal/logger"
	"terrace-booking/internal/models"
)

// Connect opens a client and checks the connection before handing it out.
func Connect(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		log.Error("REDIS", fmt.Sprintf("Failed to connect to Redis at %s: %v", cfg.Addr, err))
		return nil, err
	}
	log.Info("REDIS", fmt.Sprintf("Connected to Redis at %s", cfg.Addr))
	return client, nil
}

// Store keeps the whole terrace state as one JSON value under Key.
type Store struct {
	Client *redis.Client
	Key    string
	Seed   func() []models.Table
}

func NewStore(client *redis.Client, key string, seed func() []models.Table) *Store {
	return &Store{Client: client, Key: key, Seed: seed}
}

func (s *Store) Load(ctx context.Context) (models.Snapshot, error) {
	raw, err := s.Client.Get(ctx, s.Key).Bytes()
	if err == redis.Nil {
		snap := booking.Bootstrap(s.Seed)
		// SetNX so a concurrent first start cannot overwrite a seeded state.
		data, err := json.Marshal(snap)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("encode state: %w", err)
		}
		ok, err := s.Client.SetNX(ctx, s.Key, data, 0).Result()
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("seed %s: %w", s.Key, err)
		}
		if ok {
			return snap, nil
		}
		raw, err = s.Client.Get(ctx, s.Key).Bytes()
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("get %s: %w", s.Key, err)
		}
	} else if err != nil {
		return models.Snapshot{}, fmt.Errorf("get %s: %w", s.Key, err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode %s: %w", s.Key, err)
	}
	snap.Tables = booking.Initialize(snap.Tables, s.Seed)
	if snap.Bookings == nil {
		snap.Bookings = []models.Booking{}
	}
	return snap, nil
}

func (s *Store) Save(ctx context.Context, snap models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.Client.Set(ctx, s.Key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.Key, err)
	}
	return nil
}
