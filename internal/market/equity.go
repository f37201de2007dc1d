package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kjannette/pulse-backend/internal/httputil"
	"github.com/kjannette/pulse-backend/internal/models"
)

const (
	equityName           = "equity"
	equityDefaultBaseURL = "https://query1.finance.yahoo.com"
	equityChartPath      = "/v8/finance/chart/"
	equityQuotePath      = "/v7/finance/quote"

	defaultEquityInterval = "1d"
	defaultEquityRange    = "1mo"
)

// The equity provider blocks clients that do not look like a browser.
var browserHeaders = http.Header{
	"User-Agent":      {"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"},
	"Accept":          {"application/json,text/plain,*/*"},
	"Accept-Language": {"en-US,en;q=0.9"},
	"Cache-Control":   {"no-cache"},
}

var openMarketStates = map[string]bool{
	"REGULAR": true,
	"PRE":     true,
	"POST":    true,
}

// Equity adapts a Yahoo-style market-data API: quotes come from the quote
// endpoint and candles from the chart endpoint. Symbols are passed through
// unchanged. Every failure to obtain a usable payload other than a
// transport error is reported as ErrNoData.
type Equity struct {
	client
}

func NewEquity(opts Options) *Equity {
	return &Equity{client: newClient(equityName, equityDefaultBaseURL, opts)}
}

type equityQuoteResponse struct {
	QuoteResponse struct {
		Result []equityQuote `json:"result"`
	} `json:"quoteResponse"`
}

type equityQuote struct {
	Symbol                     string   `json:"symbol"`
	RegularMarketPrice         *float64 `json:"regularMarketPrice"`
	CurrentPrice               *float64 `json:"currentPrice"`
	RegularMarketPreviousClose *float64 `json:"regularMarketPreviousClose"`
	PreviousClose              *float64 `json:"previousClose"`
	RegularMarketDayHigh       *float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow        *float64 `json:"regularMarketDayLow"`
	RegularMarketVolume        *float64 `json:"regularMarketVolume"`
	RegularMarketTime          int64    `json:"regularMarketTime"`
	MarketState                string   `json:"marketState"`
}

type equityChartResponse struct {
	Chart struct {
		Result []equityResult `json:"result"`
	} `json:"chart"`
}

type equityResult struct {
	Timestamp  []float64 `json:"timestamp"`
	Indicators struct {
		Quote []equityQuoteSeries `json:"quote"`
	} `json:"indicators"`
}

// Upstream sends null for bars with no trades.
type equityQuoteSeries struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

func (e *Equity) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("symbols", symbol)
	q.Set("_", e.cacheBust())

	var data equityQuoteResponse
	if err := e.getJSON(ctx, symbol, e.baseURL+equityQuotePath+"?"+q.Encode(), &data); err != nil {
		return nil, err
	}
	if len(data.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("%w: %s quote has no result", ErrNoData, symbol)
	}
	return quoteFromResult(symbol, data.QuoteResponse.Result[0]), nil
}

func (e *Equity) FetchChart(ctx context.Context, symbol string, params ChartParams) ([]models.Candle, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	interval := params.Interval
	if interval == "" {
		interval = defaultEquityInterval
	}
	rng := params.Range
	if rng == "" {
		rng = defaultEquityRange
	}

	q := url.Values{}
	q.Set("interval", interval)
	q.Set("range", rng)
	q.Set("_", e.cacheBust())

	var data equityChartResponse
	rawURL := e.baseURL + equityChartPath + url.PathEscape(symbol) + "?" + q.Encode()
	if err := e.getJSON(ctx, symbol, rawURL, &data); err != nil {
		return nil, err
	}
	if len(data.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s chart has no result", ErrNoData, symbol)
	}
	res := data.Chart.Result[0]
	if len(res.Timestamp) == 0 || len(res.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: %s chart has no series", ErrNoData, symbol)
	}

	series := res.Indicators.Quote[0]
	candles := ExtractCandles(Series{
		Timestamps: res.Timestamp,
		Open:       deref(series.Open),
		High:       deref(series.High),
		Low:        deref(series.Low),
		Close:      deref(series.Close),
		Volume:     deref(series.Volume),
	})

	e.log.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Str("range", rng).
		Int("rows", len(res.Timestamp)).
		Int("candles", len(candles)).
		Msg("equity chart normalized")
	return candles, nil
}

// getJSON maps a status error, a non-2xx response or an undecodable body
// to ErrNoData. Only transport failures become UpstreamError.
func (e *Equity) getJSON(ctx context.Context, symbol, rawURL string, dst any) error {
	resp, err := e.get(ctx, rawURL, browserHeaders)
	if err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) {
			return fmt.Errorf("%w: %s returned status %d", ErrNoData, symbol, se.Code)
		}
		return &UpstreamError{Provider: equityName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned status %d", ErrNoData, symbol, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrNoData, symbol, err)
	}
	return nil
}

func quoteFromResult(symbol string, r equityQuote) *models.Quote {
	prevClose := firstPositive(r.RegularMarketPreviousClose, r.PreviousClose)
	price := firstPositive(r.RegularMarketPrice, r.CurrentPrice, &prevClose)

	return NewQuote(models.Quote{
		Symbol:        symbol,
		Price:         price,
		PreviousClose: prevClose,
		High:          valueOr(r.RegularMarketDayHigh),
		Low:           valueOr(r.RegularMarketDayLow),
		Volume:        valueOr(r.RegularMarketVolume),
		MarketTime:    r.RegularMarketTime,
		IsMarketOpen:  openMarketStates[r.MarketState],
	})
}
