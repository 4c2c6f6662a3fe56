// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	service "github.com/okian/wagerpool/internal/app"
	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/escrow"
	"github.com/okian/wagerpool/internal/domain/model"
	"github.com/okian/wagerpool/pkg/logger"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 16

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	StatsProvider

	ProgramID() address.Address

	Initialize(ctx context.Context, p escrow.InitializeParams) (model.Pool, error)
	Pool(ctx context.Context, addr address.Address) (model.Pool, error)
	PoolSigner(ctx context.Context, pool address.Address) (address.Address, uint8, error)

	RoundSeeds(ctx context.Context, pool address.Address, id string) (bump, vaultBump uint8, err error)
	CreateRound(ctx context.Context, p escrow.CreateRoundParams) (escrow.RoundView, error)
	RoundByID(ctx context.Context, pool address.Address, id string) (escrow.RoundView, error)

	Deposit(ctx context.Context, p escrow.DepositParams) (escrow.DepositResult, error)
	Receipt(ctx context.Context, depositor address.Address, roundID string) (escrow.ReceiptView, error)

	Account(ctx context.Context, addr address.Address) (service.AccountView, error)
	Airdrop(ctx context.Context, addr address.Address, amount uint64) (uint64, error)
}

// Server wires HTTP routes for the escrow API.
type Server struct {
	deps   Dependencies
	logger logger.Logger

	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	poolHandler    *PoolHandler
	roundHandler   *RoundHandler
	accountHandler *AccountHandler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		logger:         logger.Nop(),
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		poolHandler:    NewPoolHandler(deps),
		roundHandler:   NewRoundHandler(deps),
		accountHandler: NewAccountHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router. extras register additional routes behind the
// same middleware stack.
func (s *Server) Handler(extras ...func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(metricsMiddleware)

	s.Register(r)
	for _, register := range extras {
		register(r)
	}
	return r
}

// Register attaches all API routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/program", s.handleProgram)

		r.Route("/pools", func(r chi.Router) {
			r.With(signerMiddleware).Post("/", s.poolHandler.HandleInitialize)
			r.Get("/{pool}", s.poolHandler.HandleGetPool)
			r.Get("/{pool}/signer", s.poolHandler.HandleGetSigner)

			r.With(signerMiddleware).Post("/{pool}/rounds", s.roundHandler.HandleCreateRound)
			r.Get("/{pool}/rounds/{id}", s.roundHandler.HandleGetRound)
			r.With(signerMiddleware).Post("/{pool}/rounds/{id}/deposits", s.roundHandler.HandleDeposit)
		})

		r.Get("/rounds/{id}/receipts/{depositor}", s.roundHandler.HandleGetReceipt)

		r.Get("/accounts/{addr}", s.accountHandler.HandleGetAccount)
		r.Post("/accounts/{addr}/airdrop", s.accountHandler.HandleAirdrop)
	})
}

type programResponse struct {
	ProgramID address.Address `json:"program_id"`
}

func (s *Server) handleProgram(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, programResponse{ProgramID: s.deps.ProgramID()})
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and a stable code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapError(err)
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError && err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, RequestID: requestIDFromContext(r.Context())})
}

// decodeBody reads a bounded JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

// pathAddress parses the address in URL parameter name.
func pathAddress(r *http.Request, op, name string) (address.Address, error) {
	a, err := address.Parse(chi.URLParam(r, name))
	if err != nil {
		return address.Zero, WrapKind(op, ErrBadRequest, err)
	}
	return a, nil
}

// optionalAddress parses s, treating the empty string as the zero address.
func optionalAddress(op, field, s string) (address.Address, error) {
	if s == "" {
		return address.Zero, nil
	}
	a, err := address.Parse(s)
	if err != nil {
		return address.Zero, WrapKind(op+"."+field, ErrBadRequest, err)
	}
	return a, nil
}
