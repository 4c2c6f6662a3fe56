package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/escrow"
)

// RoundDependencies defines the round and deposit operations used by RoundHandler.
type RoundDependencies interface {
	RoundSeeds(ctx context.Context, pool address.Address, id string) (bump, vaultBump uint8, err error)
	CreateRound(ctx context.Context, p escrow.CreateRoundParams) (escrow.RoundView, error)
	RoundByID(ctx context.Context, pool address.Address, id string) (escrow.RoundView, error)
	Deposit(ctx context.Context, p escrow.DepositParams) (escrow.DepositResult, error)
	Receipt(ctx context.Context, depositor address.Address, roundID string) (escrow.ReceiptView, error)
}

// RoundHandler handles round, deposit and receipt requests.
type RoundHandler struct {
	deps RoundDependencies
}

// NewRoundHandler creates a new round handler.
func NewRoundHandler(deps RoundDependencies) *RoundHandler {
	return &RoundHandler{deps: deps}
}

// createRoundRequest mirrors the OpenAPI schema for POST /v1/pools/{pool}/rounds.
// Omitted bumps default to the canonical ones.
type createRoundRequest struct {
	ID        string `json:"id"`
	Bump      *uint8 `json:"bump"`
	VaultBump *uint8 `json:"vault_bump"`
	Odd       uint8  `json:"odd"`
	Capacity  uint8  `json:"capacity"`
	Bid       uint64 `json:"bid"`
}

// depositRequest mirrors the OpenAPI schema for deposits. Omitted addresses
// default to the stored round's accounts and the caller.
type depositRequest struct {
	Round       string `json:"round"`
	Depositor   string `json:"depositor"`
	Vault       string `json:"vault"`
	FeeReceiver string `json:"fee_receiver"`
}

// HandleCreateRound handles POST /v1/pools/{pool}/rounds requests.
func (h *RoundHandler) HandleCreateRound(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_round"
	pool, err := pathAddress(r, op, "pool")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createRoundRequest
	if err := decodeBody(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Bump == nil || req.VaultBump == nil {
		bump, vaultBump, err := h.deps.RoundSeeds(r.Context(), pool, req.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if req.Bump == nil {
			req.Bump = &bump
		}
		if req.VaultBump == nil {
			req.VaultBump = &vaultBump
		}
	}

	rv, err := h.deps.CreateRound(r.Context(), escrow.CreateRoundParams{
		Pool:      pool,
		Signer:    signerFromContext(r.Context()),
		Bump:      *req.Bump,
		VaultBump: *req.VaultBump,
		ID:        req.ID,
		Odd:       req.Odd,
		Capacity:  req.Capacity,
		Bid:       req.Bid,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

// HandleGetRound handles GET /v1/pools/{pool}/rounds/{id} requests.
func (h *RoundHandler) HandleGetRound(w http.ResponseWriter, r *http.Request) {
	pool, err := pathAddress(r, "api.get_round", "pool")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rv, err := h.deps.RoundByID(r.Context(), pool, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

// HandleDeposit handles POST /v1/pools/{pool}/rounds/{id}/deposits requests.
func (h *RoundHandler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	const op = "api.deposit"
	pool, err := pathAddress(r, op, "pool")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req depositRequest
	if err := decodeBody(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}
	params, err := h.depositParams(r, op, pool, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.deps.Deposit(r.Context(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *RoundHandler) depositParams(r *http.Request, op string, pool address.Address, req *depositRequest) (escrow.DepositParams, error) {
	signer := signerFromContext(r.Context())
	p := escrow.DepositParams{Pool: pool, Signer: signer}

	var err error
	if p.Round, err = optionalAddress(op, "round", req.Round); err != nil {
		return p, err
	}
	if p.Depositor, err = optionalAddress(op, "depositor", req.Depositor); err != nil {
		return p, err
	}
	if p.Vault, err = optionalAddress(op, "vault", req.Vault); err != nil {
		return p, err
	}
	if p.FeeReceiver, err = optionalAddress(op, "fee_receiver", req.FeeReceiver); err != nil {
		return p, err
	}
	if p.Depositor.IsZero() {
		p.Depositor = signer
	}

	id := chi.URLParam(r, "id")
	rv, err := h.deps.RoundByID(r.Context(), pool, id)
	if err != nil {
		return p, err
	}
	if !p.Round.IsZero() && p.Round != rv.Address {
		return p, fmt.Errorf("%w: round %s is not round %q of pool %s", escrow.ErrConstraintViolation, p.Round, id, pool)
	}
	p.Round = rv.Address
	if p.Vault.IsZero() {
		p.Vault = rv.Vault
	}
	if p.FeeReceiver.IsZero() {
		p.FeeReceiver = rv.FeeReceiver
	}
	return p, nil
}

// HandleGetReceipt handles GET /v1/rounds/{id}/receipts/{depositor} requests.
func (h *RoundHandler) HandleGetReceipt(w http.ResponseWriter, r *http.Request) {
	depositor, err := pathAddress(r, "api.get_receipt", "depositor")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rc, err := h.deps.Receipt(r.Context(), depositor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}
