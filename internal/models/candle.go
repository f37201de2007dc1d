package models

// Candle is one OHLCV bar in the normalized output format.
// Time is Unix seconds and is the ordering key.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Valid reports whether all four prices are strictly positive.
func (c Candle) Valid() bool {
	return c.Open > 0 && c.High > 0 && c.Low > 0 && c.Close > 0
}
