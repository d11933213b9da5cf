package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/5w1tchy/book-thrift/internal/logging"
	"github.com/5w1tchy/book-thrift/internal/metrics"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

type NominatimConfig struct {
	URL       string
	UserAgent string
	RPS       float64
	Timeout   time.Duration
	Breaker   BreakerConfig
}

// Nominatim resolves coordinates to a display name with the OpenStreetMap
// reverse geocoding API. Requests are throttled to RPS.
type Nominatim struct {
	url       string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[string]
}

func NewNominatim(cfg NominatimConfig) *Nominatim {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "geocoder"
	}
	return &Nominatim{
		url:       cfg.URL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		breaker:   newBreaker(cfg.Breaker),
	}
}

var errNoAddress = errors.New("geocoder: response has no display_name")

// ResolveAddress never fails: on any error it degrades to UnknownLocation.
func (n *Nominatim) ResolveAddress(ctx context.Context, lat, lon float64) Result[string] {
	if err := n.limiter.Wait(ctx); err != nil {
		return n.degrade(ctx, err)
	}
	name, err := n.breaker.Execute(func() (string, error) {
		return n.reverse(ctx, lat, lon)
	})
	if err != nil {
		return n.degrade(ctx, err)
	}
	return Ok(name)
}

func (n *Nominatim) reverse(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.url+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocoder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocoder: status %d", resp.StatusCode)
	}

	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("geocoder: decode: %w", err)
	}
	if body.DisplayName == "" {
		return "", errNoAddress
	}
	return body.DisplayName, nil
}

func (n *Nominatim) degrade(ctx context.Context, err error) Result[string] {
	logging.Ctx(ctx).Warn().Err(err).Str("component", "geocoder").Msg("reverse geocoding degraded")
	metrics.ExternalDegraded.WithLabelValues("geocoder").Inc()
	return Degraded(UnknownLocation, err)
}
