package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrAddressInUse          = errors.New("address already in use")
	ErrAccountNotFound       = errors.New("account not found")
	ErrOwnerMismatch         = errors.New("account not owned by program")
	ErrDataTooLarge          = errors.New("data exceeds allocated space")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrBalanceOverflow       = errors.New("balance overflow")
	ErrInvalidTransferSource = errors.New("transfer source carries data")
	ErrReadOnly              = errors.New("read-only transaction")
	ErrInvalidSpace          = errors.New("invalid account space")
	ErrTooManyConflicts      = errors.New("transaction conflict retries exhausted")
	ErrClosed                = errors.New("ledger closed")
)
