// Package market fetches quotes and candles from upstream market-data
// providers and reshapes them into models.Quote and models.Candle.
package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/kjannette/pulse-backend/internal/httputil"
	"github.com/kjannette/pulse-backend/internal/models"
	"github.com/rs/zerolog"
)

// Provider is the capability both upstream adapters share. Handlers pick
// the adapter by route.
type Provider interface {
	FetchQuote(ctx context.Context, symbol string) (*models.Quote, error)
	FetchChart(ctx context.Context, symbol string, params ChartParams) ([]models.Candle, error)
}

// ChartParams carries the optional query knobs. Equity reads Interval and
// Range; Futures reads Interval and Limit.
type ChartParams struct {
	Interval string
	Range    string
	Limit    int
}

var (
	ErrNoData        = errors.New("no data found")
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// UpstreamError is a failed call to a provider: a non-2xx status, a
// transport error, or a timeout.
type UpstreamError struct {
	Provider string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s upstream returned status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s upstream request failed: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type Options struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	Log     zerolog.Logger
}

const defaultTimeout = 10 * time.Second

var symbolRegexp = regexp.MustCompile(`^[A-Za-z0-9.\-^=]{1,20}$`)

// ValidateSymbol rejects anything that could not be a ticker. The symbol
// itself is never rewritten here.
func ValidateSymbol(symbol string) error {
	if !symbolRegexp.MatchString(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

// client bundles the outbound plumbing shared by both adapters.
type client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	timeout    time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

func newClient(name, defaultBaseURL string, opts Options) client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	attempts := opts.Retries + 1
	if attempts < 1 {
		attempts = 1
	}
	return client{
		name:       name,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retry: httputil.RetryConfig{
			MaxAttempts: attempts,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			Log:         opts.Log,
		},
		timeout: timeout,
		now:     time.Now,
		log:     opts.Log,
	}
}

// cacheBust is appended as the "_" query parameter so intermediaries never
// serve a stored response.
func (c *client) cacheBust() string {
	return strconv.FormatInt(c.now().UnixMilli(), 10)
}

// get issues one bounded GET through the retrying client. A response is
// returned only for statuses below 500; the caller owns its body.
func (c *client) get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range header {
			req.Header[k] = v
		}
		return req, nil
	})
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the request timeout once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
