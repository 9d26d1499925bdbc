package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pictoria/service-api/pkg/database"
	"github.com/ovaphlow/pictoria/service-api/pkg/utilities"
)

// Config is the process-wide configuration assembled from the environment.
type Config struct {
	Server     ServerConfig
	Database   database.Config
	Log        utilities.Config
	Auth       AuthConfig
	Redis      RedisConfig
	S3         S3Config
	Inference  InferenceConfig
	Compositor CompositorConfig
}

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig describes how bearer tokens issued by the auth provider are verified.
type AuthConfig struct {
	JWTSecret   string
	JWTAudience string
	JWTIssuer   string
}

// RedisConfig is optional; an empty Addr selects the in-process page cache,
// which holds at most MemoryEntries pages.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	PageTTL       time.Duration
	MemoryEntries int
}

// S3Config is optional; an empty Bucket disables seed uploads.
type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

type InferenceConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type CompositorConfig struct {
	CJKFontPath     string
	CaptionFontPath string
}

var ErrMissingJWTSecret = errors.New("config: AUTH_JWT_SECRET is required")

// Load reads .env (if present) and the environment.
func Load() *Config {
	// best-effort: no .env means the real environment is used as-is
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("SERVER_ADDR", "0.0.0.0:8431"),
			ReadTimeout:     getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:     getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Database: database.ConfigFromEnv(),
		Log:      utilities.ConfigFromEnv(),
		Auth: AuthConfig{
			JWTSecret:   getEnv("AUTH_JWT_SECRET", ""),
			JWTAudience: getEnv("AUTH_JWT_AUDIENCE", "authenticated"),
			JWTIssuer:   getEnv("AUTH_JWT_ISSUER", ""),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getInt("REDIS_DB", 0),
			PageTTL:       getDuration("CACHE_PAGE_TTL", 5*time.Minute),
			MemoryEntries: getInt("CACHE_MEMORY_ENTRIES", 1024),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			PublicBaseURL:   getEnv("S3_PUBLIC_BASE_URL", ""),
		},
		Inference: InferenceConfig{
			BaseURL: getEnv("INFERENCE_BASE_URL", "https://api.replicate.com"),
			Token:   getEnv("INFERENCE_API_TOKEN", ""),
			Timeout: getDuration("INFERENCE_TIMEOUT", 90*time.Second),
		},
		Compositor: CompositorConfig{
			CJKFontPath:     getEnv("COMPOSITOR_CJK_FONT", ""),
			CaptionFontPath: getEnv("COMPOSITOR_CAPTION_FONT", ""),
		},
	}
}

// Validate reports configuration the service cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getDuration accepts Go durations ("90s", "5m") or a bare number of seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
