package escrow

import (
	"errors"
)

// Sentinel kinds for escrow errors. Every failure aborts the whole operation
// and leaves records and balances as they were.
var (
	ErrAlreadyInitialized  = errors.New("pool already initialized")
	ErrAddressInUse        = errors.New("address already in use")
	ErrInvalidCapacity     = errors.New("capacity must be greater than zero")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrFinishedGame        = errors.New("finished game")
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrDuplicateDeposit    = errors.New("this address deposited already")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNotInitialized      = errors.New("pool not initialized")
	ErrInvalidRoundID      = errors.New("invalid round id")
	ErrMinDepositAmount    = errors.New("bid below minimum deposit amount")
	ErrMissingSignature    = errors.New("missing required signature")
	ErrNotFound            = errors.New("record not found")
)

// Stable error codes, safe to expose to clients.
const (
	CodeAlreadyInitialized  = "AlreadyInitialized"
	CodeAddressInUse        = "AddressAlreadyInUse"
	CodeInvalidCapacity     = "InvalidCapacity"
	CodeConstraintViolation = "ConstraintViolation"
	CodeFinishedGame        = "FinishedGame"
	CodeArithmeticOverflow  = "ArithmeticOverflow"
	CodeDuplicateDeposit    = "DuplicateDeposit"
	CodeInsufficientFunds   = "InsufficientFunds"
	CodeNotInitialized      = "NotInitialized"
	CodeInvalidRoundID      = "InvalidRoundID"
	CodeMinDepositAmount    = "MinDepositAmount"
	CodeMissingSignature    = "MissingSignature"
	CodeNotFound            = "NotFound"
	CodeInternal            = "Internal"
)

// DuplicateDeposit is listed ahead of AddressInUse since both may wrap the
// same ledger collision.
var codes = []struct { //nolint:gochecknoglobals // fixed lookup table
	err  error
	code string
}{
	{ErrDuplicateDeposit, CodeDuplicateDeposit},
	{ErrAlreadyInitialized, CodeAlreadyInitialized},
	{ErrAddressInUse, CodeAddressInUse},
	{ErrInvalidCapacity, CodeInvalidCapacity},
	{ErrConstraintViolation, CodeConstraintViolation},
	{ErrFinishedGame, CodeFinishedGame},
	{ErrArithmeticOverflow, CodeArithmeticOverflow},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrNotInitialized, CodeNotInitialized},
	{ErrInvalidRoundID, CodeInvalidRoundID},
	{ErrMinDepositAmount, CodeMinDepositAmount},
	{ErrMissingSignature, CodeMissingSignature},
	{ErrNotFound, CodeNotFound},
}

// Code maps err to its stable code. It returns "" for nil and CodeInternal
// for anything outside the escrow taxonomy.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
