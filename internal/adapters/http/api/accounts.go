package api

import (
	"context"
	"net/http"

	service "github.com/okian/wagerpool/internal/app"
	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/model"
)

// AccountDependencies defines the ledger operations used by AccountHandler.
type AccountDependencies interface {
	Account(ctx context.Context, addr address.Address) (service.AccountView, error)
	Airdrop(ctx context.Context, addr address.Address, amount uint64) (uint64, error)
}

// AccountHandler handles account requests.
type AccountHandler struct {
	deps AccountDependencies
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(deps AccountDependencies) *AccountHandler {
	return &AccountHandler{deps: deps}
}

type airdropRequest struct {
	Amount uint64 `json:"amount"`
}

type airdropResponse struct {
	Address    address.Address `json:"address"`
	Balance    uint64          `json:"balance"`
	BalanceSOL string          `json:"balance_sol"`
}

// HandleGetAccount handles GET /v1/accounts/{addr} requests.
func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "api.get_account", "addr")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.deps.Account(r.Context(), addr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleAirdrop handles POST /v1/accounts/{addr}/airdrop requests.
func (h *AccountHandler) HandleAirdrop(w http.ResponseWriter, r *http.Request) {
	const op = "api.airdrop"
	addr, err := pathAddress(r, op, "addr")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req airdropRequest
	if err := decodeBody(w, r, op, &req); err != nil {
		writeError(w, r, err)
		return
	}
	bal, err := h.deps.Airdrop(r.Context(), addr, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, airdropResponse{Address: addr, Balance: bal, BalanceSOL: model.FormatSOL(bal)})
}
