package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/SWM-FIRE/modoco-backend-sub000/modules/auth"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/fanout"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/gateway"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/messages"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/session"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Gateway gateway.Config
	Auth    auth.Config
	Fanout  fanout.Config

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DBPath        string
	SessionTTL    time.Duration
	MessageTTL    time.Duration

	ChatLimit       int
	ChatWindow      time.Duration
	HealthInterval  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() (Config, error) {
	cfg := Config{
		Gateway: gateway.DefaultConfig(),
		Auth:    auth.DefaultConfig(),
		Fanout:  fanout.DefaultConfig(),
	}

	cfg.Gateway.Port = getEnv("PORT", cfg.Gateway.Port)
	cfg.Gateway.AllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.Gateway.AllowedOrigins)
	cfg.Gateway.SendQueueSize = getEnvInt("WS_SEND_QUEUE", cfg.Gateway.SendQueueSize)
	cfg.Gateway.PingInterval = getEnvDuration("WS_PING_INTERVAL", cfg.Gateway.PingInterval)
	cfg.Gateway.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.Gateway.RequestTimeout)

	cfg.Auth.SecretKey = getEnv("JWT_SECRET", cfg.Auth.SecretKey)
	cfg.Auth.Issuer = getEnv("JWT_ISSUER", cfg.Auth.Issuer)
	cfg.Auth.AccessTokenDuration = getEnvDuration("JWT_ACCESS_TTL", cfg.Auth.AccessTokenDuration)

	cfg.Fanout.Transport = getEnv("FANOUT_TRANSPORT", cfg.Fanout.Transport)
	cfg.Fanout.NATS.URL = getEnv("NATS_URL", cfg.Fanout.NATS.URL)
	cfg.Fanout.SubjectPrefix = getEnv("FANOUT_SUBJECT_PREFIX", cfg.Fanout.SubjectPrefix)

	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.DBPath = getEnv("ROOM_DB_PATH", "rooms.db")
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", session.DefaultTTL)
	cfg.MessageTTL = getEnvDuration("MESSAGE_TTL", messages.DefaultTTL)

	cfg.ChatLimit = getEnvInt("CHAT_RATE_LIMIT", 20)
	cfg.ChatWindow = getEnvDuration("CHAT_RATE_WINDOW", 10*time.Second)
	cfg.HealthInterval = getEnvDuration("HEALTH_INTERVAL", 5*time.Second)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if c.Gateway.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.Gateway.SendQueueSize <= 0 {
		errs = append(errs, errors.New("WS_SEND_QUEUE must be positive"))
	}
	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	switch c.Fanout.Transport {
	case fanout.TransportNATS, fanout.TransportLocal:
	default:
		errs = append(errs, fmt.Errorf("FANOUT_TRANSPORT must be %q or %q", fanout.TransportNATS, fanout.TransportLocal))
	}
	if c.ChatLimit <= 0 || c.ChatWindow <= 0 {
		errs = append(errs, errors.New("CHAT_RATE_LIMIT and CHAT_RATE_WINDOW must be positive"))
	}
	if c.SessionTTL <= 0 || c.MessageTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL and MESSAGE_TTL must be positive"))
	}
	if c.HealthInterval <= 0 {
		errs = append(errs, errors.New("HEALTH_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
