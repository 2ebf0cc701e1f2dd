// Package webhook delivers batch-completion events to caller-supplied
// endpoints, signed with HMAC-SHA256 so the receiver can verify the
// payload came from this service.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string      `json:"type"` // e.g. "extract.batch.completed"
	JobID     string      `json:"job_id"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// retrySchedule spaces the delivery attempts of DeliverAsync. The
// first entry is the initial attempt.
var retrySchedule = []time.Duration{0, time.Second, 5 * time.Second, 30 * time.Second}

const (
	signatureHeader = "X-Gridsight-Signature"
	userAgent       = "Gridsight-Webhook/1.0"
	attemptTimeout  = 10 * time.Second
)

// Deliver sends one event synchronously. When secret is non-empty the
// body is signed and the signature sent as
// "X-Gridsight-Signature: sha256=<hex>". A 4xx/5xx response counts as
// a delivery failure.
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if secret != "" {
		req.Header.Set(signatureHeader, "sha256="+sign(body, secret))
	}

	client := &http.Client{Timeout: attemptTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends an event in the background, retrying on the
// package retry schedule. Exhausting the schedule is logged, not
// surfaced; the batch job result does not depend on webhook delivery.
func DeliverAsync(url, secret string, event *Event) {
	go func() {
		for attempt, delay := range retrySchedule {
			if delay > 0 {
				time.Sleep(delay)
			}

			ctx, cancel := context.WithTimeout(context.Background(), attemptTimeout)
			err := Deliver(ctx, url, secret, event)
			cancel()

			if err == nil {
				slog.Info("webhook delivered",
					"url", url,
					"event", event.Type,
					"job_id", event.JobID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", url,
				"event", event.Type,
				"job_id", event.JobID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", url,
			"event", event.Type,
			"job_id", event.JobID,
		)
	}()
}

// sign computes the hex HMAC-SHA256 of body under secret.
func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
