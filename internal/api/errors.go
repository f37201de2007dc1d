package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kjannette/pulse-backend/internal/account"
	"github.com/kjannette/pulse-backend/internal/market"
	"github.com/kjannette/pulse-backend/internal/repository"
	"github.com/kjannette/pulse-backend/internal/uid"
	"github.com/rs/zerolog"
)

const noDataMessage = "No data found"

// writeServiceError maps a domain error onto a status and a client message.
// 4xx messages are specific; 5xx messages stay generic and the full error
// goes to the log.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := classify(err)

	l := zerolog.Ctx(r.Context())
	ev := l.Warn()
	if status >= http.StatusInternalServerError {
		ev = l.Error()
	}
	ev.Err(err).Str("op", op).Int("status", status).Msg("request failed")

	writeError(w, status, msg)
}

func classify(err error) (int, string) {
	var (
		ve *account.ValidationError
		ue *market.UpstreamError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, market.ErrInvalidSymbol):
		return http.StatusBadRequest, "invalid symbol"
	case errors.Is(err, account.ErrInvalidCredentials):
		return http.StatusUnauthorized, account.ErrInvalidCredentials.Error()
	case errors.Is(err, market.ErrNoData):
		return http.StatusNotFound, noDataMessage
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, account.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.As(err, &ue):
		if ue.Status != 0 {
			return http.StatusInternalServerError, fmt.Sprintf("upstream provider error (status %d)", ue.Status)
		}
		return http.StatusInternalServerError, "upstream provider unavailable"
	case errors.Is(err, uid.ErrAllocationExhausted):
		return http.StatusInternalServerError, "could not allocate a user id, please retry"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
