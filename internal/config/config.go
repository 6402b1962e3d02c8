package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Sweep   SweepConfig
	Terrace TerraceConfig
	QR      QRConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port         string
	StaticDir    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type StoreConfig struct {
	Driver    string
	FilePath  string
	SQLiteDSN string
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	StateKey    string
	LockKey     string
	LockTTL     time.Duration
	LockEnabled bool
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	GroupID string
	Topics  TopicConfig
}

type TopicConfig struct {
	BookingCreated   string
	BookingCancelled string
	BookingExpired   string
}

func (t TopicConfig) All() []string {
	return []string{t.BookingCreated, t.BookingCancelled, t.BookingExpired}
}

type SweepConfig struct {
	// Interval of the background sweeper; zero disables it.
	Interval time.Duration
	OnRead   bool
}

type TerraceConfig struct {
	Location *time.Location
}

type QRConfig struct {
	Secret string
}

type LogConfig struct {
	Dir     string
	Service string
}

func Load() (*Config, error) {
	driver := strings.ToLower(getEnv("STORE_DRIVER", DriverFile))
	switch driver {
	case DriverFile, DriverSQLite, DriverRedis:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", driver)
	}

	loc := time.Local
	if tz := os.Getenv("TERRACE_TIMEZONE"); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TERRACE_TIMEZONE %q: %w", tz, err)
		}
		loc = parsed
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":3000"),
			StaticDir:    getEnv("STATIC_DIR", "public"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Store: StoreConfig{
			Driver:    driver,
			FilePath:  getEnv("DB_FILE", "db.json"),
			SQLiteDSN: getEnv("SQLITE_DSN", "file:terrace.db?cache=shared"),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvInt("REDIS_DB", 0),
			StateKey:    getEnv("REDIS_STATE_KEY", "terrace:state"),
			LockKey:     getEnv("REDIS_LOCK_KEY", "terrace:write_lock"),
			LockTTL:     time.Duration(getEnvInt("REDIS_LOCK_TTL_SECONDS", 10)) * time.Second,
			LockEnabled: getEnvBool("REDIS_LOCK_ENABLED", driver == DriverRedis),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			GroupID: getEnv("KAFKA_GROUP_ID", "terrace-booking-audit"),
			Topics: TopicConfig{
				BookingCreated:   getEnv("KAFKA_TOPIC_CREATED", "terrace.booking.created"),
				BookingCancelled: getEnv("KAFKA_TOPIC_CANCELLED", "terrace.booking.cancelled"),
				BookingExpired:   getEnv("KAFKA_TOPIC_EXPIRED", "terrace.booking.expired"),
			},
		},
		Sweep: SweepConfig{
			Interval: time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
			OnRead:   getEnvBool("SWEEP_ON_READ", true),
		},
		Terrace: TerraceConfig{
			Location: loc,
		},
		QR: QRConfig{
			Secret: getEnv("QR_SECRET_KEY", "terrace-dev-secret"),
		},
		Log: LogConfig{
			Dir:     getEnv("LOG_DIR", "logs"),
			Service: getEnv("SERVICE_NAME", "terrace-booking"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
