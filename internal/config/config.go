// Package config loads service settings from .env and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"ENV" env-default:"local"`
	HTTPAddr string `env:"HTTP_ADDR" env-default:":8080"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"15s"`

	DatabaseURL string `env:"DATABASE_URL" env-required:"true"`
	RedisURL    string `env:"REDIS_URL"`

	Auth     AuthConfig
	Storage  StorageConfig
	Geocoder GeocoderConfig
	Summary  SummaryConfig
	Log      LogConfig
	Limits   LimitsConfig

	CORSOrigins []string `env:"CORS_ORIGINS" env-default:"http://localhost:5173,http://127.0.0.1:5173"`
}

type AuthConfig struct {
	JWTSecret  string        `env:"AUTH_JWT_SECRET" env-required:"true"`
	AccessTTL  time.Duration `env:"AUTH_ACCESS_TTL" env-default:"15m"`
	RefreshTTL time.Duration `env:"AUTH_REFRESH_TTL" env-default:"720h"`
	ClockSkew  time.Duration `env:"AUTH_CLOCK_SKEW" env-default:"60s"`
}

type StorageConfig struct {
	Driver    string `env:"STORAGE_DRIVER" env-default:"local"` // local | s3
	UploadDir string `env:"UPLOAD_DIR" env-default:"./uploads"`

	Endpoint        string        `env:"AWS_ENDPOINT"`
	Region          string        `env:"AWS_REGION" env-default:"auto"`
	Bucket          string        `env:"AWS_BUCKET"`
	AccessKeyID     string        `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY"`
	UsePathStyle    bool          `env:"AWS_S3_PATH_STYLE" env-default:"false"`
	URLExpiry       time.Duration `env:"AWS_URL_EXPIRY" env-default:"1h"`
}

type GeocoderConfig struct {
	URL       string        `env:"GEOCODER_URL" env-default:"https://nominatim.openstreetmap.org/reverse"`
	UserAgent string        `env:"GEOCODER_USER_AGENT" env-default:"BookThriftApp/1.0"`
	RPS       float64       `env:"GEOCODER_RPS" env-default:"1"`
	Timeout   time.Duration `env:"GEOCODER_TIMEOUT" env-default:"5s"`
}

type SummaryConfig struct {
	APIKey  string        `env:"GEMINI_API_KEY"`
	Model   string        `env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`
	Timeout time.Duration `env:"SUMMARY_TIMEOUT" env-default:"30s"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
}

type LimitsConfig struct {
	MaxUploadBytes   int64         `env:"MAX_UPLOAD_BYTES" env-default:"10485760"`
	RatePerSecond    float64       `env:"RATE_LIMIT_RPS" env-default:"5"`
	RateBurst        int           `env:"RATE_LIMIT_BURST" env-default:"20"`
	LoginMaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS" env-default:"10"`
	LoginWindow      time.Duration `env:"LOGIN_WINDOW" env-default:"5m"`
}

// Load reads envFiles (missing files are ignored) and then the environment.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on settings the service cannot run with.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("config: AUTH_JWT_SECRET must be at least 32 characters")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return errors.New("config: AUTH_ACCESS_TTL and AUTH_REFRESH_TTL must be positive")
	}
	switch c.Storage.Driver {
	case "local":
		if c.Storage.UploadDir == "" {
			return errors.New("config: UPLOAD_DIR is required for local storage")
		}
	case "s3":
		if c.Storage.Bucket == "" || c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
			return errors.New("config: AWS_BUCKET, AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required for s3 storage")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Geocoder.RPS <= 0 {
		return errors.New("config: GEOCODER_RPS must be positive")
	}
	if c.Limits.MaxUploadBytes <= 0 {
		return errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool { return strings.EqualFold(c.Env, "production") }

// HardeningWarnings lists non-fatal issues worth logging at startup.
func (c *Config) HardeningWarnings() []string {
	var warns []string
	if c.Auth.AccessTTL > time.Hour {
		warns = append(warns, fmt.Sprintf("AUTH_ACCESS_TTL=%s is > 1h; consider shorter access tokens", c.Auth.AccessTTL))
	}
	if c.Auth.RefreshTTL < 24*time.Hour {
		warns = append(warns, fmt.Sprintf("AUTH_REFRESH_TTL=%s is < 24h; users may be logged out too often", c.Auth.RefreshTTL))
	}
	if c.RedisURL == "" {
		warns = append(warns, "REDIS_URL not set; rate limiting and refresh tokens are disabled")
	}
	if c.Summary.APIKey == "" {
		warns = append(warns, "GEMINI_API_KEY not set; summaries will be unavailable")
	}
	if c.IsProduction() && strings.HasPrefix(c.RedisURL, "redis://") {
		warns = append(warns, "REDIS_URL uses redis:// (no TLS). Prefer rediss:// for TLS")
	}
	return warns
}
