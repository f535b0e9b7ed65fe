package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds the server level settings. Database and Redis settings are
// read by the database package straight from viper.
type AppConfig struct {
	Env             string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	Realtime        *RealtimeConfig
}

// IsProduction reports whether internal error details must be hidden from clients
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// Load reads .env and the environment into viper and returns the app config
func Load() *AppConfig {
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("app.env", "APP_ENV")
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	viper.SetDefault("app.env", "development")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)
	viper.SetDefault("server.idle_timeout", 60*time.Second)
	viper.SetDefault("server.request_timeout", 60*time.Second)
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)
	viper.SetDefault("server.allowed_origins", []string{"https://*", "http://*"})

	return &AppConfig{
		Env:             viper.GetString("app.env"),
		Port:            viper.GetString("server.port"),
		ReadTimeout:     viper.GetDuration("server.read_timeout"),
		WriteTimeout:    viper.GetDuration("server.write_timeout"),
		IdleTimeout:     viper.GetDuration("server.idle_timeout"),
		RequestTimeout:  viper.GetDuration("server.request_timeout"),
		ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
		AllowedOrigins:  viper.GetStringSlice("server.allowed_origins"),
		Realtime:        LoadRealtimeConfig(),
	}
}
