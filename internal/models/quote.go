package models

// Quote is a single real-time price observation with derived change metrics.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previousClose"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        float64 `json:"volume"`
	MarketTime    int64   `json:"marketTime"`
	IsMarketOpen  bool    `json:"isMarketOpen"`
}
