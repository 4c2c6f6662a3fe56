package service

import (
	"errors"

	"github.com/okian/wagerpool/internal/domain/escrow"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrFaucetDisabled = errors.New("faucet disabled")
	ErrInvalidAmount  = errors.New("invalid airdrop amount")
)

// Service error codes, alongside the escrow codes.
const (
	CodeNotStarted     = "NotStarted"
	CodeFaucetDisabled = "FaucetDisabled"
	CodeInvalidAmount  = "InvalidAmount"
)

// Code maps err to a stable code, covering both service and escrow errors.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotStarted):
		return CodeNotStarted
	case errors.Is(err, ErrFaucetDisabled):
		return CodeFaucetDisabled
	case errors.Is(err, ErrInvalidAmount):
		return CodeInvalidAmount
	default:
		return escrow.Code(err)
	}
}
