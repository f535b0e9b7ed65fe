package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type RealtimeConfig struct {
	Backend           string
	QueueDepth        int
	EventTTL          time.Duration
	KeepAlive         time.Duration
	StreamBuffer      int
	RequireStreamAuth bool
	BalanceCache      bool
	FanoutChannel     string
	KeyPrefix         string
	MaxSnapshotDays   int
}

func LoadRealtimeConfig() *RealtimeConfig {
	cfg := &RealtimeConfig{
		Backend:           strings.ToLower(getEnv("REALTIME_BACKEND", BackendMemory)),
		QueueDepth:        getEnvAsInt("REALTIME_QUEUE_DEPTH", 10),
		EventTTL:          getEnvAsDuration("REALTIME_EVENT_TTL", 24*time.Hour),
		KeepAlive:         getEnvAsDuration("REALTIME_KEEPALIVE", 0),
		StreamBuffer:      getEnvAsInt("REALTIME_STREAM_BUFFER", 16),
		RequireStreamAuth: getEnvAsBool("REALTIME_REQUIRE_STREAM_AUTH", true),
		BalanceCache:      getEnvAsBool("REALTIME_BALANCE_CACHE", true),
		FanoutChannel:     getEnv("REALTIME_FANOUT_CHANNEL", "wallet-updates"),
		KeyPrefix:         getEnv("REALTIME_KEY_PREFIX", "updates:"),
		MaxSnapshotDays:   getEnvAsInt("SNAPSHOT_MAX_RANGE_DAYS", 366),
	}

	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = 10
	}
	if cfg.StreamBuffer < 1 {
		cfg.StreamBuffer = 16
	}
	if cfg.Backend != BackendRedis {
		cfg.Backend = BackendMemory
	}
	// Cache invalidation is process-local, so shared deployments read through
	if cfg.Backend == BackendRedis && cfg.BalanceCache {
		log.Println("[CONFIG] Balance cache disabled: the redis backend implies more than one instance")
		cfg.BalanceCache = false
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
