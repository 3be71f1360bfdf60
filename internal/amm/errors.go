package amm

import (
	"errors"
	"fmt"

	"ammLedger/internal/ledger"
)

// Error is a typed AMM failure with a stable numeric code.
type Error struct {
	Code uint32
	Name string
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

var (
	ErrPoolLocked          = &Error{Code: 6000, Name: "PoolLocked", Msg: "pool is locked"}
	ErrInvalidAmount       = &Error{Code: 6001, Name: "InvalidAmount", Msg: "invalid amount"}
	ErrZeroBalance         = &Error{Code: 6002, Name: "ZeroBalance", Msg: "zero balance"}
	ErrOverflow            = &Error{Code: 6003, Name: "Overflow", Msg: "arithmetic overflow"}
	ErrUnderflow           = &Error{Code: 6004, Name: "Underflow", Msg: "arithmetic underflow"}
	ErrSlippageExceeded    = &Error{Code: 6005, Name: "SlippageExceeded", Msg: "slippage exceeded"}
	ErrInsufficientBalance = &Error{Code: 6006, Name: "InsufficientBalance", Msg: "insufficient balance"}
	ErrInvalidFee          = &Error{Code: 6007, Name: "InvalidFee", Msg: "invalid fee"}
	ErrIdenticalMints      = &Error{Code: 6008, Name: "IdenticalMints", Msg: "pool mints must differ"}
	ErrPoolExists          = &Error{Code: 6009, Name: "PoolExists", Msg: "pool already exists"}
	ErrPoolNotFound        = &Error{Code: 6010, Name: "PoolNotFound", Msg: "pool not found"}
	ErrUnauthorized        = &Error{Code: 6011, Name: "Unauthorized", Msg: "unauthorized"}
)

// AsError extracts the AMM error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ledgerError maps a host ledger failure inside an engine transaction onto the
// AMM taxonomy. Unknown failures are returned unchanged.
func ledgerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrAccountNotFound):
		return fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
	case errors.Is(err, ledger.ErrUnauthorized), errors.Is(err, ledger.ErrInvalidSigner), errors.Is(err, ledger.ErrInvalidPoolSigner):
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case errors.Is(err, ledger.ErrOverflow):
		return fmt.Errorf("%w: %v", ErrOverflow, err)
	case errors.Is(err, ledger.ErrPoolNotFound):
		return ErrPoolNotFound
	default:
		return err
	}
}
