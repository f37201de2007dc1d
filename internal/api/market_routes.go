package api

import (
	"net/http"

	"github.com/kjannette/pulse-backend/internal/market"
	"github.com/kjannette/pulse-backend/internal/models"
)

type candlesResponse struct {
	Candles []models.Candle `json:"candles"`
}

func (s *Server) handleStockPrice(w http.ResponseWriter, r *http.Request) {
	quote, err := s.stocks.FetchQuote(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeServiceError(w, r, "stock price", err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleStockChart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	candles, err := s.stocks.FetchChart(r.Context(), r.PathValue("symbol"), market.ChartParams{
		Interval: q.Get("interval"),
		Range:    q.Get("range"),
	})
	if err != nil {
		writeServiceError(w, r, "stock chart", err)
		return
	}
	writeCandles(w, candles)
}

func (s *Server) handleFuturesPrice(w http.ResponseWriter, r *http.Request) {
	quote, err := s.futures.FetchQuote(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeServiceError(w, r, "futures price", err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleFuturesChart(w http.ResponseWriter, r *http.Request) {
	candles, err := s.futures.FetchChart(r.Context(), r.PathValue("symbol"), market.ChartParams{
		Interval: r.URL.Query().Get("interval"),
		Limit:    parseLimit(r, market.DefaultFuturesLimit),
	})
	if err != nil {
		writeServiceError(w, r, "futures chart", err)
		return
	}
	writeCandles(w, candles)
}

func writeCandles(w http.ResponseWriter, candles []models.Candle) {
	if candles == nil {
		candles = []models.Candle{}
	}
	writeJSON(w, http.StatusOK, candlesResponse{Candles: candles})
}
