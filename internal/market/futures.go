package market

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kjannette/pulse-backend/internal/httputil"
	"github.com/kjannette/pulse-backend/internal/models"
)

const (
	futuresName           = "futures"
	futuresDefaultBaseURL = "https://fapi.binance.com"
	futuresKlinesPath     = "/fapi/v1/klines"
	futuresTickerPath     = "/fapi/v1/ticker/24hr"

	quoteCurrency           = "USDT"
	futuresFallbackInterval = "1d"
	DefaultFuturesLimit     = 500
	MaxFuturesLimit         = 1500
)

var baseTickers = map[string]bool{
	"BTC": true, "ETH": true, "XRP": true, "BNB": true,
	"SOL": true, "ADA": true, "DOGE": true, "DOT": true,
}

var forwardedIntervals = map[string]bool{
	"1m": true, "5m": true, "15m": true, "1h": true,
}

// FuturesSymbol appends the quote currency to known base tickers and leaves
// every other symbol untouched.
func FuturesSymbol(symbol string) string {
	if baseTickers[symbol] {
		return symbol + quoteCurrency
	}
	return symbol
}

// FuturesInterval forwards the four supported intervals and coerces
// everything else, including an empty value, to daily.
func FuturesInterval(interval string) string {
	if forwardedIntervals[interval] {
		return interval
	}
	return futuresFallbackInterval
}

// Futures adapts a Binance USDⓈ-M style kline endpoint. Rows are taken in
// upstream order and are not filtered.
type Futures struct {
	client
}

func NewFutures(opts Options) *Futures {
	return &Futures{client: newClient(futuresName, futuresDefaultBaseURL, opts)}
}

func (f *Futures) FetchChart(ctx context.Context, symbol string, params ChartParams) ([]models.Candle, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultFuturesLimit
	}
	limit = min(limit, MaxFuturesLimit)

	q := url.Values{}
	q.Set("symbol", FuturesSymbol(symbol))
	q.Set("interval", FuturesInterval(params.Interval))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("_", f.cacheBust())

	var rows [][]json.RawMessage
	if err := f.getJSON(ctx, futuresKlinesPath+"?"+q.Encode(), &rows); err != nil {
		return nil, err
	}

	candles := parseKlines(rows)
	f.log.Debug().
		Str("symbol", q.Get("symbol")).
		Str("interval", q.Get("interval")).
		Int("candles", len(candles)).
		Msg("futures chart normalized")
	return candles, nil
}

// FetchQuote reads the rolling 24h ticker. The 24h open stands in for the
// previous close, and the market is always open.
func (f *Futures) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("symbol", FuturesSymbol(symbol))
	q.Set("_", f.cacheBust())

	var t struct {
		Symbol    string          `json:"symbol"`
		LastPrice json.RawMessage `json:"lastPrice"`
		OpenPrice json.RawMessage `json:"openPrice"`
		HighPrice json.RawMessage `json:"highPrice"`
		LowPrice  json.RawMessage `json:"lowPrice"`
		Volume    json.RawMessage `json:"volume"`
		CloseTime int64           `json:"closeTime"`
	}
	if err := f.getJSON(ctx, futuresTickerPath+"?"+q.Encode(), &t); err != nil {
		return nil, err
	}

	return NewQuote(models.Quote{
		Symbol:        symbol,
		Price:         parseNumber(t.LastPrice),
		PreviousClose: parseNumber(t.OpenPrice),
		High:          parseNumber(t.HighPrice),
		Low:           parseNumber(t.LowPrice),
		Volume:        parseNumber(t.Volume),
		MarketTime:    t.CloseTime / 1000,
		IsMarketOpen:  true,
	}), nil
}

func (f *Futures) getJSON(ctx context.Context, pathAndQuery string, dst any) error {
	resp, err := f.get(ctx, f.baseURL+pathAndQuery, nil)
	if err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) {
			return &UpstreamError{Provider: futuresName, Status: se.Code, Err: err}
		}
		return &UpstreamError{Provider: futuresName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Provider: futuresName, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &UpstreamError{Provider: futuresName, Err: err}
	}
	return nil
}

// parseKlines reads rows laid out as
//
//	[0] open time (ms)  [1] open  [2] high  [3] low  [4] close  [5] volume  ...
//
// Unparsable or missing fields become 0; the row is kept.
func parseKlines(rows [][]json.RawMessage) []models.Candle {
	out := make([]models.Candle, 0, len(rows))
	for _, r := range rows {
		field := func(i int) float64 {
			if i < len(r) {
				return parseNumber(r[i])
			}
			return 0
		}
		out = append(out, models.Candle{
			Time:   int64(field(0)) / 1000,
			Open:   field(1),
			High:   field(2),
			Low:    field(3),
			Close:  field(4),
			Volume: field(5),
		})
	}
	return out
}

// parseNumber accepts a JSON number or a numeric string.
func parseNumber(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
