package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/books")
	t.Setenv("AUTH_JWT_SECRET", secret)

	cfg, err := Load("testdata/does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, "BookThriftApp/1.0", cfg.Geocoder.UserAgent)
	assert.Equal(t, "gemini-2.5-flash", cfg.Summary.Model)
	assert.Equal(t, int64(10<<20), cfg.Limits.MaxUploadBytes)
	assert.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.CORSOrigins)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "unused")
	require.NoError(t, os.Unsetenv("DATABASE_URL"))
	t.Setenv("AUTH_JWT_SECRET", secret)

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			DatabaseURL: "postgres://x",
			Auth:        AuthConfig{JWTSecret: secret, AccessTTL: time.Minute, RefreshTTL: time.Hour},
			Storage:     StorageConfig{Driver: "local", UploadDir: "./uploads"},
			Geocoder:    GeocoderConfig{RPS: 1},
			Limits:      LimitsConfig{MaxUploadBytes: 1},
		}
	}

	c := base()
	assert.NoError(t, c.Validate())

	c = base()
	c.Auth.JWTSecret = "short"
	assert.Error(t, c.Validate())

	c = base()
	c.Storage.Driver = "s3"
	assert.Error(t, c.Validate())
	c.Storage.Bucket, c.Storage.AccessKeyID, c.Storage.SecretAccessKey = "b", "k", "s"
	assert.NoError(t, c.Validate())

	c = base()
	c.Storage.Driver = "ftp"
	assert.Error(t, c.Validate())
}

func TestHardeningWarnings(t *testing.T) {
	c := Config{Env: "production", RedisURL: "redis://cache:6379", Auth: AuthConfig{AccessTTL: 2 * time.Hour, RefreshTTL: time.Hour}}
	warns := c.HardeningWarnings()
	assert.Len(t, warns, 4)
}
