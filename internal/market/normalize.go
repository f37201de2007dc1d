package market

import (
	"cmp"
	"math"
	"slices"

	"github.com/kjannette/pulse-backend/internal/models"
)

// msThreshold separates millisecond timestamps from second timestamps.
// 1e12 ms is September 2001; 1e12 s is far beyond any real bar.
const msThreshold = 1e12

// NormalizeTimestamp converts an upstream timestamp to whole Unix seconds.
func NormalizeTimestamp(ts float64) int64 {
	if ts >= msThreshold {
		return int64(math.Floor(ts / 1000))
	}
	return int64(math.Floor(ts))
}

// Series is a chart in parallel-array form. Missing entries read as 0.
type Series struct {
	Timestamps []float64
	Open       []float64
	High       []float64
	Low        []float64
	Close      []float64
	Volume     []float64
}

// ExtractCandles zips the series by index, drops rows whose open, high, low
// or close is not positive, and returns the survivors ascending by time.
func ExtractCandles(s Series) []models.Candle {
	out := make([]models.Candle, 0, len(s.Timestamps))
	for i, ts := range s.Timestamps {
		c := models.Candle{
			Time:   NormalizeTimestamp(ts),
			Open:   at(s.Open, i),
			High:   at(s.High, i),
			Low:    at(s.Low, i),
			Close:  at(s.Close, i),
			Volume: at(s.Volume, i),
		}
		if !c.Valid() {
			continue
		}
		out = append(out, c)
	}
	SortCandles(out)
	return out
}

// SortCandles orders by time ascending; equal times keep upstream order.
func SortCandles(candles []models.Candle) {
	slices.SortStableFunc(candles, func(a, b models.Candle) int {
		return cmp.Compare(a.Time, b.Time)
	})
}

func at(vals []float64, i int) float64 {
	if i < len(vals) {
		v := vals[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}
	return 0
}

// NewQuote fills the derived change fields from price and previous close.
func NewQuote(q models.Quote) *models.Quote {
	q.Change = q.Price - q.PreviousClose
	if q.PreviousClose > 0 {
		q.ChangePercent = q.Change / q.PreviousClose * 100
	} else {
		q.ChangePercent = 0
	}
	return &q
}

// firstPositive returns the first candidate that is present and above zero.
func firstPositive(candidates ...*float64) float64 {
	for _, c := range candidates {
		if c != nil && *c > 0 {
			return *c
		}
	}
	return 0
}

func deref(vals []*float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if v != nil {
			out[i] = *v
		}
	}
	return out
}

func valueOr(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
