package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port         int
	MasterSecret string
	GinMode      string
	TLSCertFile  string
	TLSKeyFile   string
	TokenExpiry  time.Duration

	DatabaseURL string

	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3PublicBaseURL string
	S3AccessKey     string
	S3SecretKey     string

	PollInterval   time.Duration
	StreamLifetime time.Duration
	FrameByteLimit int
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:           3000,
		GinMode:        "release",
		TokenExpiry:    7 * 24 * time.Hour,
		S3Region:       "us-east-1",
		PollInterval:   5 * time.Second,
		StreamLifetime: 5 * time.Minute,
		FrameByteLimit: 512 * 1024,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return Config{}, fmt.Errorf("MASTER_SECRET is required")
	}

	cfg.DatabaseURL = env.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	cfg.S3Endpoint = env.Getenv("S3_ENDPOINT")
	if raw := env.Getenv("S3_REGION"); raw != "" {
		cfg.S3Region = raw
	}
	cfg.S3Bucket = env.Getenv("S3_BUCKET")
	cfg.S3PublicBaseURL = env.Getenv("S3_PUBLIC_BASE_URL")
	cfg.S3AccessKey = env.Getenv("S3_ACCESS_KEY")
	cfg.S3SecretKey = env.Getenv("S3_SECRET_KEY")

	if raw := env.Getenv("POLL_INTERVAL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid POLL_INTERVAL_SECONDS")
		}
		cfg.PollInterval = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("STREAM_LIFETIME_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid STREAM_LIFETIME_SECONDS")
		}
		cfg.StreamLifetime = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("FRAME_BYTE_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return Config{}, fmt.Errorf("invalid FRAME_BYTE_LIMIT")
		}
		cfg.FrameByteLimit = limit
	}

	return cfg, nil
}
