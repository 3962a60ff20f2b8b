// Package httpapi is the HTTP front-end for the mint flow.
//
// Routes:
//
//	POST /api/mint          run one attempt for {address, lat, lng}
//	GET  /api/status        current attempt state and last token
//	GET  /api/tokens/{id}   on-chain address data for a token
//	GET  /metrics           Prometheus exposition
//
// Failures carry only the category and its end-user notice. Diagnostic
// detail stays in the server log.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/roach88/geomint/internal/geo"
	"github.com/roach88/geomint/internal/mint"
)

// maxBodyBytes bounds the mint request body.
const maxBodyBytes = 16 << 10

// Minter is the mint surface the server drives. Implemented by *mint.Minter.
type Minter interface {
	Mint(ctx context.Context, sel *geo.Selection) (*mint.MintedToken, error)
	Status() mint.Status
	Lookup(ctx context.Context, tokenID *big.Int) (*mint.TokenRecord, error)
}

// Options configures a Server.
type Options struct {
	AllowedOrigins []string
	RatePerSec     float64
	Burst          int

	// Metrics serves /metrics. Omitted when nil.
	Metrics http.Handler

	Logger *slog.Logger
	Now    func() time.Time
}

// Server routes HTTP requests to a Minter.
type Server struct {
	minter  Minter
	logger  *slog.Logger
	limiter *ipLimiter
	router  chi.Router
}

// New builds the router.
func New(m Minter, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		minter:  m,
		logger:  opts.Logger,
		limiter: newIPLimiter(opts.RatePerSec, opts.Burst, 0),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/status", s.handleStatus)
		api.Group(func(limited chi.Router) {
			limited.Use(s.limiter.middleware(opts.Now))
			limited.Post("/mint", s.handleMint)
			limited.Get("/tokens/{id}", s.handleToken)
		})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

type mintRequest struct {
	Address *string  `json:"address"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

// selection returns nil when the request names no field at all and an
// invalid_selection error when it names only some of them.
func (req mintRequest) selection() (*geo.Selection, error) {
	sel, err := geo.Resolve(req.Address, req.Lat, req.Lng)
	if err != nil {
		return nil, mint.IncompleteSelection(err)
	}
	return sel, nil
}

type errorBody struct {
	Category        string `json:"category"`
	Message         string `json:"message"`
	AttemptID       string `json:"attemptId,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
}

type mintResponse struct {
	*mint.MintedToken
	ExplorerURL string `json:"explorerUrl"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Category: "bad_request", Message: "Request body must be JSON."})
		return
	}

	sel, err := req.selection()
	var token *mint.MintedToken
	if err == nil {
		token, err = s.minter.Mint(r.Context(), sel)
	}
	if err != nil {
		if errors.Is(err, mint.ErrAttemptInFlight) {
			writeJSON(w, http.StatusConflict, errorBody{
				Category: "in_flight",
				Message:  "A mint is already in progress.",
			})
			return
		}
		var me *mint.Error
		if errors.As(err, &me) {
			writeJSON(w, categoryStatus(me.Category), errorBody{
				Category:        string(me.Category),
				Message:         me.Notice(),
				AttemptID:       me.AttemptID,
				TransactionHash: me.TxHash,
			})
			return
		}
		s.logger.Error("mint failed with untyped error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Category: "internal", Message: "Error generating NFT."})
		return
	}

	writeJSON(w, http.StatusOK, mintResponse{MintedToken: token, ExplorerURL: token.ExplorerURL()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.minter.Status())
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, ok := new(big.Int).SetString(raw, 10)
	if !ok || id.Sign() < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Category: "bad_request", Message: "Token id must be a non-negative integer."})
		return
	}

	rec, err := s.minter.Lookup(r.Context(), id)
	switch {
	case errors.Is(err, mint.ErrNoWallet):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Category: string(mint.CategoryNoWallet),
			Message:  mint.CategoryNoWallet.Notice(),
		})
	case err != nil:
		s.logger.Warn("token lookup failed", "token_id", raw, "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Category: "lookup_failed", Message: "Could not read token data."})
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

// categoryStatus maps a failure category to an HTTP status.
func categoryStatus(c mint.Category) int {
	switch c {
	case mint.CategoryNoSelection, mint.CategoryInvalidSelection:
		return http.StatusBadRequest
	case mint.CategoryNoWallet, mint.CategoryWrongNetwork:
		return http.StatusServiceUnavailable
	case mint.CategoryRejected, mint.CategoryMissingTransfer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
