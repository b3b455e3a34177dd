package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adamavenir/parley/internal/core"
	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when the provider cannot translate right now,
// including when the circuit breaker is open.
var ErrUnavailable = errors.New("translation unavailable")

// Identity returns text unchanged. Used when no provider is configured.
type Identity struct{}

func (Identity) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

// Config configures the HTTP translation client.
type Config struct {
	Endpoint       string
	APIKey         string
	Timeout        time.Duration
	MaxElapsedTime time.Duration
}

// HTTPTranslator calls a Google-Translate-v2-shaped JSON endpoint.
type HTTPTranslator struct {
	endpoint string
	apiKey   string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	maxRetry time.Duration
	logger   *zap.Logger
}

type translateRequest struct {
	Q      []string `json:"q"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Format string   `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

// NewHTTPTranslator builds a client guarded by a circuit breaker.
func NewHTTPTranslator(cfg Config, logger *zap.Logger) *HTTPTranslator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = cfg.Timeout
	}

	settings := gobreaker.Settings{
		Name:        "translate",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("translation breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &HTTPTranslator{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker:  gobreaker.NewCircuitBreaker(settings),
		maxRetry: cfg.MaxElapsedTime,
		logger:   logger,
	}
}

// Translate converts text from source to target. Same-language requests and
// empty text return immediately without a network call.
func (t *HTTPTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if text == "" || core.SameLanguage(source, target) {
		return text, nil
	}

	result, err := t.breaker.Execute(func() (any, error) {
		return t.translateWithRetry(ctx, text, source, target)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result.(string), nil
}

func (t *HTTPTranslator) translateWithRetry(ctx context.Context, text, source, target string) (string, error) {
	payload, err := json.Marshal(translateRequest{
		Q:      []string{text},
		Source: core.NormalizeLanguage(source),
		Target: core.NormalizeLanguage(target),
		Format: "text",
	})
	if err != nil {
		return "", err
	}

	var translated string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if t.apiKey != "" {
			q := req.URL.Query()
			q.Set("key", t.apiKey)
			req.URL.RawQuery = q.Encode()
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			_, _ = io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("translate: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return backoff.Permanent(fmt.Errorf("translate: status %d", resp.StatusCode))
		}

		var decoded translateResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("decode translation: %w", err))
		}
		if len(decoded.Data.Translations) == 0 {
			return backoff.Permanent(errors.New("translate: empty response"))
		}
		translated = decoded.Data.Translations[0].TranslatedText
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = t.maxRetry
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return translated, nil
}
