// Package notifications delivers ops alerts to a chat webhook.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kjannette/pulse-backend/internal/httputil"
	"github.com/rs/zerolog"
)

const defaultServiceName = "pulse-backend"

// Alerts are sent inline from request handlers, so the whole delivery,
// retries included, is bounded well below the API write timeout.
const (
	deliveryTimeout = 5 * time.Second
	attemptTimeout  = 2 * time.Second
)

type flavor int

const (
	flavorSlack flavor = iota
	flavorDiscord
)

func (f flavor) String() string {
	if f == flavorDiscord {
		return "discord"
	}
	return "slack"
}

func detectFlavor(webhookURL string) flavor {
	if strings.Contains(strings.ToLower(webhookURL), "discord") {
		return flavorDiscord
	}
	return flavorSlack
}

// Sender posts ops alerts to a Slack- or Discord-compatible webhook.
// Without a URL it only logs.
type Sender struct {
	webhookURL  string
	serviceName string
	flavor      flavor
	httpClient  *http.Client
	retry       httputil.RetryConfig
	log         zerolog.Logger
}

func NewSender(webhookURL, serviceName string, log zerolog.Logger) *Sender {
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	return &Sender{
		webhookURL:  webhookURL,
		serviceName: serviceName,
		flavor:      detectFlavor(webhookURL),
		httpClient:  &http.Client{Timeout: attemptTimeout},
		retry: httputil.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   250 * time.Millisecond,
			MaxDelay:    250 * time.Millisecond,
			Log:         log,
		},
		log: log,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}

// Send always logs the alert, then delivers it if a webhook is configured.
// Delivery failures are logged and never returned; the caller's
// cancellation does not abort a delivery already under way.
func (s *Sender) Send(ctx context.Context, msg string) {
	s.log.Warn().Str("alert", msg).Msg("ops alert")
	if !s.Enabled() {
		return
	}

	body, err := json.Marshal(s.payload(msg))
	if err != nil {
		s.log.Error().Err(err).Msg("marshal alert payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("flavor", s.flavor.String()).Msg("alert delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		s.log.Error().
			Int("status", resp.StatusCode).
			Str("flavor", s.flavor.String()).
			Str("body", string(snippet)).
			Msg("alert rejected by webhook")
	}
}

// payload shapes the message for the webhook flavor. Slack renders the
// service name in bold; Discord shows it as the sender.
func (s *Sender) payload(msg string) map[string]string {
	switch s.flavor {
	case flavorDiscord:
		return map[string]string{
			"content":  msg,
			"username": s.serviceName,
		}
	default:
		return map[string]string{
			"text":     fmt.Sprintf("*%s* %s", s.serviceName, msg),
			"username": s.serviceName,
		}
	}
}
