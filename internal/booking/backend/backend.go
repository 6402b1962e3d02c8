// Package backend opens the store selected by STORE_DRIVER together with the
// optional cross-process write lock.
package backend

import (
	"context"
	"fmt"

	"terrace-booking/internal/booking"
	bookingdb "terrace-booking/internal/booking/db"
	"terrace-booking/internal/booking/filestore"
	bookingredis "terrace-booking/internal/booking/redis"
	"terrace-booking/internal/config"
	"terrace-booking/internal/logger"
)

type Backend struct {
	Store  booking.Store
	Locker booking.Locker
	// Shared is set for stores other processes can write to.
	Shared  bool
	closers []func() error
}

func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Backend, error) {
	b := &Backend{}

	switch cfg.Store.Driver {
	case config.DriverFile:
		b.Store = filestore.New(cfg.Store.FilePath, nil)
		log.LogStore("OPEN", "file", cfg.Store.FilePath)

	case config.DriverSQLite:
		bunDB, err := bookingdb.Open(cfg.Store.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, bunDB.Close)
		store := &bookingdb.DB{Bun: bunDB}
		if err := store.Migrate(ctx); err != nil {
			b.Close()
			return nil, err
		}
		b.Store = store
		b.Shared = true
		log.LogStore("OPEN", "sqlite", cfg.Store.SQLiteDSN)

	case config.DriverRedis:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	if cfg.Store.Driver == config.DriverRedis || cfg.Redis.LockEnabled {
		client, err := bookingredis.Connect(ctx, cfg.Redis, log)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		if cfg.Store.Driver == config.DriverRedis {
			b.Store = bookingredis.NewStore(client, cfg.Redis.StateKey, nil)
			b.Shared = true
			log.LogStore("OPEN", "redis", cfg.Redis.StateKey)
		}
		if cfg.Redis.LockEnabled {
			b.Locker = bookingredis.NewLock(client, cfg.Redis.LockKey, cfg.Redis.LockTTL, log)
			log.LogStore("LOCK", "redis", fmt.Sprintf("%s (ttl %s)", cfg.Redis.LockKey, cfg.Redis.LockTTL))
		}
	}
	return b, nil
}

// Close releases connections in reverse opening order.
func (b *Backend) Close() error {
	var firstErr error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.closers = nil
	return firstErr
}
