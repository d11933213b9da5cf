package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/5w1tchy/book-thrift/internal/config"
	"github.com/5w1tchy/book-thrift/internal/external"
	"github.com/5w1tchy/book-thrift/internal/listings"
	"github.com/5w1tchy/book-thrift/internal/logging"
	"github.com/5w1tchy/book-thrift/internal/storage/local"
	"github.com/5w1tchy/book-thrift/internal/storage/s3"
)

const uploadsPrefix = "/uploads"

// connectRedis returns nil when url is empty. A configured but unreachable
// Redis is an error.
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	if strings.HasPrefix(url, "rediss://") && opt.TLSConfig == nil {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = time.Second
	opt.WriteTimeout = time.Second

	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	log := logging.Component("main")
	log.Info().Msg("connected to redis")
	return rdb, nil
}

// openStorage returns the image store and, for local storage, the handler
// serving it.
func openStorage(ctx context.Context, c config.StorageConfig) (listings.AssetStore, http.Handler, error) {
	switch c.Driver {
	case "s3":
		st, err := s3.New(ctx, s3.Config{
			Endpoint:        c.Endpoint,
			Region:          c.Region,
			Bucket:          c.Bucket,
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
			UsePathStyle:    c.UsePathStyle,
			URLExpiry:       c.URLExpiry,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	default:
		st, err := local.New(c.UploadDir, uploadsPrefix)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Handler(), nil
	}
}

func newGeocoder(c config.GeocoderConfig) *external.Nominatim {
	return external.NewNominatim(external.NominatimConfig{
		URL:       c.URL,
		UserAgent: c.UserAgent,
		RPS:       c.RPS,
		Timeout:   c.Timeout,
		Breaker:   external.BreakerConfig{Name: "geocoder", FailureThreshold: 5, OpenTimeout: 30 * time.Second},
	})
}

// newSummarizer falls back to a summarizer that always degrades when Gemini
// is not configured.
func newSummarizer(ctx context.Context, c config.SummaryConfig) listings.Summarizer {
	s, err := external.NewGemini(ctx, external.SummarizerConfig{
		APIKey:  c.APIKey,
		Model:   c.Model,
		Timeout: c.Timeout,
		Breaker: external.BreakerConfig{Name: "summarizer", FailureThreshold: 3, OpenTimeout: time.Minute},
	})
	if err != nil {
		log := logging.Component("main")
		log.Warn().Err(err).Msg("summaries disabled")
		return external.NopSummarizer{}
	}
	return s
}
