package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kjannette/pulse-backend/internal/account"
	"github.com/kjannette/pulse-backend/internal/auth"
	"github.com/kjannette/pulse-backend/internal/market"
	"github.com/kjannette/pulse-backend/internal/models"
	"github.com/rs/zerolog"
)

const (
	maxQueryLimit = market.MaxFuturesLimit
	maxBodyBytes  = 1 << 20

	requestIDHeader = "X-Request-ID"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Accounts is satisfied by *account.Service.
type Accounts interface {
	Register(ctx context.Context, in account.RegisterInput) (*account.Session, error)
	Login(ctx context.Context, email, password string) (*account.Session, error)
	Me(ctx context.Context, id int64) (*models.User, error)
	ChangeUID(ctx context.Context, id int64, newUID string) (*models.User, error)
}

type Deps struct {
	DB       Pinger
	Stocks   market.Provider
	Futures  market.Provider
	Accounts Accounts
	Tokens   auth.Verifier
	Log      zerolog.Logger
}

type Server struct {
	db         Pinger
	stocks     market.Provider
	futures    market.Provider
	accounts   Accounts
	tokens     auth.Verifier
	log        zerolog.Logger
	httpServer *http.Server
}

func NewServer(deps Deps, port int, corsOrigin string) *Server {
	s := &Server{
		db:       deps.DB,
		stocks:   deps.Stocks,
		futures:  deps.Futures,
		accounts: deps.Accounts,
		tokens:   deps.Tokens,
		log:      deps.Log,
	}

	mux := http.NewServeMux()

	// Market data
	mux.HandleFunc("GET /stock/price/{symbol}", s.handleStockPrice)
	mux.HandleFunc("GET /stock/chart/{symbol}", s.handleStockChart)
	mux.HandleFunc("GET /futures/price/{symbol}", s.handleFuturesPrice)
	mux.HandleFunc("GET /futures/chart/{symbol}", s.handleFuturesChart)

	// Accounts
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.Handle("GET /users/me", s.requireAuth(http.HandlerFunc(s.handleMe)))
	mux.Handle("PATCH /users/me/uid", s.requireAuth(http.HandlerFunc(s.handleChangeUID)))

	mux.HandleFunc("GET /health", s.handleHealth)

	handler := s.requestLogger(corsMiddleware(mux, corsOrigin))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.log.Info().
		Str("addr", s.httpServer.Addr).
		Str("health", "http://localhost"+s.httpServer.Addr+"/health").
		Msg("REST API server started")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// requestLogger tags every request with an id, echoes it back, and puts a
// request-scoped logger in the context for handlers.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" || len(reqID) > 64 {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		l := s.log.With().Str("request_id", reqID).Logger()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(l.WithContext(r.Context())))

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		ev := l.Info()
		if rec.status >= http.StatusInternalServerError {
			ev = l.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", requestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth rejects requests without a valid bearer token before the
// wrapped handler runs.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token == "" {
			writeError(w, http.StatusUnauthorized, "invalid Authorization header")
			return
		}

		p, err := s.tokens.Verify(token)
		if err != nil {
			zerolog.Ctx(r.Context()).Debug().Err(err).Msg("token rejected")
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

// --- request helpers ---

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
