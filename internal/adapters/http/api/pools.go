package api

import (
	"context"
	"net/http"

	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/escrow"
	"github.com/okian/wagerpool/internal/domain/model"
)

// PoolDependencies defines the pool operations used by PoolHandler.
type PoolDependencies interface {
	Initialize(ctx context.Context, p escrow.InitializeParams) (model.Pool, error)
	Pool(ctx context.Context, addr address.Address) (model.Pool, error)
	PoolSigner(ctx context.Context, pool address.Address) (address.Address, uint8, error)
}

// PoolHandler handles pool requests.
type PoolHandler struct {
	deps PoolDependencies
}

// NewPoolHandler creates a new pool handler.
func NewPoolHandler(deps PoolDependencies) *PoolHandler {
	return &PoolHandler{deps: deps}
}

// initializeRequest mirrors the OpenAPI schema for POST /v1/pools. Omitted
// pool_signer and nonce default to the canonical derivation; an omitted
// authority defaults to the caller.
type initializeRequest struct {
	Pool       string `json:"pool"`
	Authority  string `json:"authority"`
	PoolSigner string `json:"pool_signer"`
	Nonce      *uint8 `json:"nonce"`
}

type poolResponse struct {
	Address address.Address `json:"address"`
	model.Pool
}

type signerResponse struct {
	Pool   address.Address `json:"pool"`
	Signer address.Address `json:"signer"`
	Nonce  uint8           `json:"nonce"`
}

// HandleInitialize handles POST /v1/pools requests.
func (h *PoolHandler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	const op = "api.initialize"
	var req initializeRequest
	if err := decodeBody(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}
	params, err := h.initializeParams(r, op, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pool, err := h.deps.Initialize(r.Context(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, poolResponse{Address: params.Pool, Pool: pool})
}

func (h *PoolHandler) initializeParams(r *http.Request, op string, req *initializeRequest) (escrow.InitializeParams, error) {
	signer := signerFromContext(r.Context())
	p := escrow.InitializeParams{Signer: signer}

	var err error
	if req.Pool == "" {
		return p, WrapKind(op, ErrBadRequest, errMissingField("pool"))
	}
	if p.Pool, err = optionalAddress(op, "pool", req.Pool); err != nil {
		return p, err
	}
	if p.Authority, err = optionalAddress(op, "authority", req.Authority); err != nil {
		return p, err
	}
	if p.Authority.IsZero() {
		p.Authority = signer
	}
	if p.PoolSigner, err = optionalAddress(op, "pool_signer", req.PoolSigner); err != nil {
		return p, err
	}

	if p.PoolSigner.IsZero() || req.Nonce == nil {
		canonical, nonce, err := h.deps.PoolSigner(r.Context(), p.Pool)
		if err != nil {
			return p, err
		}
		if p.PoolSigner.IsZero() {
			p.PoolSigner = canonical
		}
		if req.Nonce == nil {
			req.Nonce = &nonce
		}
	}
	p.Nonce = *req.Nonce
	return p, nil
}

// HandleGetPool handles GET /v1/pools/{pool} requests.
func (h *PoolHandler) HandleGetPool(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "api.get_pool", "pool")
	if err != nil {
		writeError(w, r, err)
		return
	}
	pool, err := h.deps.Pool(r.Context(), addr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, poolResponse{Address: addr, Pool: pool})
}

// HandleGetSigner handles GET /v1/pools/{pool}/signer requests.
func (h *PoolHandler) HandleGetSigner(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "api.get_signer", "pool")
	if err != nil {
		writeError(w, r, err)
		return
	}
	signer, nonce, err := h.deps.PoolSigner(r.Context(), addr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signerResponse{Pool: addr, Signer: signer, Nonce: nonce})
}
