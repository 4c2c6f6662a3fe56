package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/wagerpool/internal/app"
	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/escrow"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrMissingSigner = errors.New("missing X-Signer header")
)

// API-only error codes.
const (
	codeBadRequest    = "BadRequest"
	codeMissingSigner = "MissingSigner"
	codeInternal      = "Internal"
)

// KindError tags an error with the handler operation and a sentinel kind.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// WrapKind tags err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

func errMissingField(name string) error {
	return fmt.Errorf("missing %s", name)
}

// mapError picks the status and code for err.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingSigner):
		return http.StatusUnauthorized, codeMissingSigner
	case errors.Is(err, ErrBadRequest), errors.Is(err, address.ErrInvalidAddress):
		return http.StatusBadRequest, codeBadRequest
	}

	code := service.Code(err)
	switch code {
	case escrow.CodeInvalidCapacity, escrow.CodeInvalidRoundID, escrow.CodeMinDepositAmount,
		service.CodeInvalidAmount:
		return http.StatusBadRequest, code
	case escrow.CodeMissingSignature, service.CodeFaucetDisabled:
		return http.StatusForbidden, code
	case escrow.CodeNotFound, escrow.CodeNotInitialized:
		return http.StatusNotFound, code
	case escrow.CodeAddressInUse, escrow.CodeDuplicateDeposit, escrow.CodeFinishedGame,
		escrow.CodeAlreadyInitialized:
		return http.StatusConflict, code
	case escrow.CodeInsufficientFunds:
		return http.StatusPaymentRequired, code
	case escrow.CodeConstraintViolation, escrow.CodeArithmeticOverflow:
		return http.StatusUnprocessableEntity, code
	case service.CodeNotStarted:
		return http.StatusServiceUnavailable, code
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
