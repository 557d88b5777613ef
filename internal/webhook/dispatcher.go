// Package webhook delivers gateway events to tenant-configured HTTP
// endpoints with at-least-once semantics.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wagate/gateway-server-go/internal/config"
	"github.com/wagate/gateway-server-go/internal/errors"
)

// Dispatcher posts JSON payloads to webhook URLs. Each delivery gets a
// bounded number of attempts with linear backoff; a 429 doubles the wait.
type Dispatcher struct {
	client *http.Client
	sleep  func(time.Duration)
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		// Per-attempt deadline comes from the request context; the
		// client timeout is a backstop.
		client: &http.Client{Timeout: config.WebhookTimeout},
		sleep:  time.Sleep,
	}
}

// Send delivers the payload to url. Any 2xx response counts as delivered;
// everything else is retried up to the attempt budget. Returns the final
// error when all attempts fail.
func (d *Dispatcher) Send(ctx context.Context, webhookURL string, payload any) error {
	if err := ValidateURL(webhookURL); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "marshal webhook payload", err)
	}

	var lastErr error
	for attempt := 1; attempt <= config.WebhookMaxAttempts; attempt++ {
		status, err := d.post(ctx, webhookURL, body)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("url", webhookURL).
					Int("attempt", attempt).
					Msg("webhook delivered after retry")
			}
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return errors.WebhookFailed(webhookURL).WithCause(ctx.Err())
		}

		if attempt < config.WebhookMaxAttempts {
			wait := time.Duration(attempt) * config.WebhookBackoffBase
			if status == http.StatusTooManyRequests {
				wait *= 2
			}
			log.Warn().
				Err(err).
				Str("url", webhookURL).
				Int("attempt", attempt).
				Dur("backoff", wait).
				Msg("webhook attempt failed, retrying")
			d.sleep(wait)
		}
	}

	log.Error().
		Err(lastErr).
		Str("url", webhookURL).
		Int("attempts", config.WebhookMaxAttempts).
		Msg("webhook delivery abandoned")
	return errors.WebhookFailed(webhookURL).WithCause(lastErr)
}

// post runs one attempt under its own deadline. Returns the response
// status (0 when no response arrived) alongside the error.
func (d *Dispatcher) post(ctx context.Context, webhookURL string, body []byte) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, config.WebhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.InvalidWebhookURL(rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.InvalidWebhookURL(rawURL)
	}
	if parsed.Host == "" {
		return errors.InvalidWebhookURL(rawURL)
	}
	return nil
}
