package backend_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrace-booking/internal/booking"
	"terrace-booking/internal/booking/backend"
	bookingdb "terrace-booking/internal/booking/db"
	"terrace-booking/internal/booking/filestore"
	bookingredis "terrace-booking/internal/booking/redis"
	"terrace-booking/internal/config"
	"terrace-booking/internal/logger"
)

func baseConfig() *config.Config {
	return &config.Config{
		Redis: config.RedisConfig{
			StateKey: "terrace:state",
			LockKey:  "terrace:lock",
			LockTTL:  time.Second,
		},
	}
}

func TestOpenFileStore(t *testing.T) {
	cfg := baseConfig()
	cfg.Store = config.StoreConfig{Driver: config.DriverFile, FilePath: filepath.Join(t.TempDir(), "db.json")}

	b, err := backend.Open(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &filestore.Store{}, b.Store)
	assert.Nil(t, b.Locker)
	assert.False(t, b.Shared)
}

func TestOpenSQLiteStore(t *testing.T) {
	cfg := baseConfig()
	cfg.Store = config.StoreConfig{Driver: config.DriverSQLite, SQLiteDSN: ":memory:"}

	b, err := backend.Open(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &bookingdb.DB{}, b.Store)
	assert.True(t, b.Shared)
	snap, err := b.Store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Tables, 26)
}

func TestOpenRedisStoreWithLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := baseConfig()
	cfg.Store = config.StoreConfig{Driver: config.DriverRedis}
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.LockEnabled = true

	b, err := backend.Open(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &bookingredis.Store{}, b.Store)
	assert.IsType(t, &bookingredis.Lock{}, b.Locker)
	assert.True(t, b.Shared)

	svc, err := booking.NewService(context.Background(), b.Store, booking.Options{Locker: b.Locker})
	require.NoError(t, err)
	assert.Len(t, svc.Snapshot().Tables, 26)
	assert.True(t, mr.Exists("terrace:state"))
}

func TestOpenFileStoreWithRedisLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := baseConfig()
	cfg.Store = config.StoreConfig{Driver: config.DriverFile, FilePath: filepath.Join(t.TempDir(), "db.json")}
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.LockEnabled = true

	b, err := backend.Open(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &filestore.Store{}, b.Store)
	assert.NotNil(t, b.Locker)
}

func TestOpenFailsWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cfg := baseConfig()
	cfg.Store = config.StoreConfig{Driver: config.DriverRedis}
	cfg.Redis.Addr = addr

	_, err = backend.Open(context.Background(), cfg, logger.Discard())
	assert.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := baseConfig()
	cfg.Store = config.StoreConfig{Driver: "postgres"}
	_, err := backend.Open(context.Background(), cfg, logger.Discard())
	assert.Error(t, err)
}
