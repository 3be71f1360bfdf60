package ledger

import "errors"

var (
	ErrPoolNotFound      = errors.New("pool not found")
	ErrMintNotFound      = errors.New("mint not found")
	ErrAccountNotFound   = errors.New("token account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnauthorized      = errors.New("signer does not own the account")
	ErrMintMismatch      = errors.New("account mint mismatch")
	ErrOverflow          = errors.New("balance overflow")
	ErrInvalidSigner     = errors.New("key cannot sign")
	ErrInvalidPoolSigner = errors.New("pool seeds do not derive its address")
	ErrConflict          = errors.New("concurrent modification, resubmit")
)
