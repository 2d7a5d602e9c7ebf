package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/podcasts/internal/models"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the body when a secret is set.
	SignatureHeader = "X-Podcast-Signature"
	// TimestampHeader carries the unix send time.
	TimestampHeader = "X-Podcast-Timestamp"

	maxResponseBody = 512
)

// DeliveryError wraps webhook delivery errors with HTTP status code
type DeliveryError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *DeliveryError) Error() string {
	return e.Message
}

// Notifier posts generation events to a single URL. One attempt per event.
type Notifier struct {
	url        string
	secret     string
	httpClient *http.Client
	now        func() time.Time
}

// NewNotifier creates a notifier. secret may be empty to send unsigned payloads.
func NewNotifier(url, secret string, httpClient *http.Client) *Notifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	log.Info().
		Str("url", url).
		Bool("signed", secret != "").
		Msg("Webhook notifier initialized")

	return &Notifier{
		url:        url,
		secret:     secret,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// PublishEvent delivers event as JSON
func (n *Notifier) PublishEvent(ctx context.Context, event *models.GenerationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Podcasts-Webhook/1.0")
	req.Header.Set(TimestampHeader, strconv.FormatInt(n.now().Unix(), 10))
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, n.secret))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("webhook returned status %d", resp.StatusCode),
			Body:       string(respBody),
		}
	}

	log.Info().
		Str("run_id", event.RunID.String()).
		Str("event", event.Type).
		Str("url", n.url).
		Msg("Webhook delivered")

	return nil
}

// Sign returns the hex HMAC-SHA256 of payload
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
