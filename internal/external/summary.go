package external

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/5w1tchy/book-thrift/internal/logging"
	"github.com/5w1tchy/book-thrift/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// GenerateFunc sends prompt to a text model and returns its reply.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

type SummarizerConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Breaker BreakerConfig
}

type Summarizer struct {
	generate GenerateFunc
	timeout  time.Duration
	breaker  *gobreaker.CircuitBreaker[string]
}

var errEmptySummary = errors.New("summarizer: empty response")

// NewGemini builds a Summarizer backed by the Gemini API.
func NewGemini(ctx context.Context, cfg SummarizerConfig) (*Summarizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("summarizer: api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("summarizer: new client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	gen := func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return NewSummarizer(gen, cfg), nil
}

// NewSummarizer wraps an arbitrary generator with timeout and breaker.
func NewSummarizer(gen GenerateFunc, cfg SummarizerConfig) *Summarizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "summarizer"
	}
	return &Summarizer{generate: gen, timeout: cfg.Timeout, breaker: newBreaker(cfg.Breaker)}
}

func Prompt(title, description, author string) string {
	var b strings.Builder
	b.WriteString("Summarize this book in 3 to 4  sentences for a reader.\n")
	fmt.Fprintf(&b, "Title: %s\n", title)
	fmt.Fprintf(&b, "Description: %s\n", description)
	fmt.Fprintf(&b, "Author: %s\n", author)
	return b.String()
}

// Summarize never fails: errors degrade to NoSummaryAvailable.
func (s *Summarizer) Summarize(ctx context.Context, title, description, author string) Result[string] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.breaker.Execute(func() (string, error) {
		out, err := s.generate(ctx, Prompt(title, description, author))
		if err != nil {
			return "", err
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return "", errEmptySummary
		}
		return out, nil
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("component", "summarizer").Msg("summary degraded")
		metrics.ExternalDegraded.WithLabelValues("summarizer").Inc()
		return Degraded(NoSummaryAvailable, err)
	}
	return Ok(text)
}

// NopSummarizer is used when no API key is configured.
type NopSummarizer struct{}

var errSummarizerDisabled = errors.New("summarizer: not configured")

func (NopSummarizer) Summarize(ctx context.Context, _, _, _ string) Result[string] {
	metrics.ExternalDegraded.WithLabelValues("summarizer").Inc()
	return Degraded(NoSummaryAvailable, errSummarizerDisabled)
}
