// Package flags is a minimal client for the feature-flag provider.
// Evaluation failures never reach callers: the provider sits behind a
// circuit breaker and every error resolves to the caller's default.
package flags

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[bool]
	logger     zerolog.Logger
}

func NewClient(baseURL string, logger zerolog.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:    "feature-flags",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("flag breaker state change")
		},
	})

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 2 * time.Second},
		breaker:    breaker,
		logger:     logger,
	}
}

type flagResponse struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

// BoolFlag evaluates key against the provider. On any failure,
// including an open circuit, it returns defaultValue.
func (c *Client) BoolFlag(ctx context.Context, key string, defaultValue bool) bool {
	if c.baseURL == "" {
		return defaultValue
	}

	enabled, err := c.breaker.Execute(func() (bool, error) {
		return c.fetch(ctx, key)
	})
	if err != nil {
		c.logger.Debug().Err(err).Str("flag", key).Msg("flag evaluation failed, using default")
		return defaultValue
	}
	return enabled
}

func (c *Client) fetch(ctx context.Context, key string) (bool, error) {
	url := fmt.Sprintf("%s/api/flags/%s", c.baseURL, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("build flag request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("flag request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("flag provider returned %d", resp.StatusCode)
	}

	var body flagResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode flag response: %w", err)
	}

	return body.Enabled, nil
}
