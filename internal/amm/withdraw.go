package amm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ammLedger/internal/address"
	"ammLedger/internal/ledger"
	"ammLedger/internal/model"
)

// WithdrawRequest burns Amount LP tokens for a pro-rata share of both vaults.
type WithdrawRequest struct {
	Pool   address.PublicKey
	User   address.PublicKey
	Amount uint64
	MinX   uint64
	MinY   uint64
}

// WithdrawResult is the outcome of an executed withdraw.
type WithdrawResult struct {
	AmountX uint64
	AmountY uint64
	State   model.PoolState
}

// Withdraw redeems LP tokens. The LP supply is read before the burn, the
// shares are truncated toward zero, and the burn comes after both vault
// transfers. Withdraw is allowed on a locked pool.
func (e *Engine) Withdraw(ctx context.Context, req WithdrawRequest) (WithdrawResult, error) {
	start := time.Now()
	res, err := e.withdraw(ctx, req)
	e.observe(model.KindWithdraw, req.Pool, req.User, start, err,
		zap.Uint64("lp_amount", req.Amount),
		zap.Uint64("min_x", req.MinX),
		zap.Uint64("min_y", req.MinY),
		zap.Uint64("amount_x", res.AmountX),
		zap.Uint64("amount_y", res.AmountY),
	)
	return res, err
}

func (e *Engine) withdraw(ctx context.Context, req WithdrawRequest) (WithdrawResult, error) {
	var res WithdrawResult
	err := e.ledger.Execute(ctx, req.Pool, func(tx *ledger.Txn) error {
		state, err := tx.PoolState(req.Pool)
		if err != nil {
			return ledgerError(err)
		}
		pool := state.Pool
		if req.Amount == 0 {
			return ErrZeroBalance
		}

		userLP := address.AssociatedTokenAddress(req.User, pool.MintLP)
		var held uint64
		if acct, err := tx.TokenAccount(userLP); err == nil {
			held = acct.Amount
		}
		if req.Amount > held {
			return ErrInsufficientBalance
		}

		x, y, err := QuoteWithdraw(req.Amount, state.VaultX, state.VaultY, state.LPSupply)
		if err != nil {
			return err
		}
		if x < req.MinX || y < req.MinY {
			return ErrSlippageExceeded
		}

		userSigner, err := ledger.UserSigner(req.User)
		if err != nil {
			return ledgerError(err)
		}
		poolSigner, err := tx.PoolSigner(pool)
		if err != nil {
			return ledgerError(err)
		}
		userX, err := tx.EnsureAssociatedAccount(req.User, pool.MintX)
		if err != nil {
			return ledgerError(err)
		}
		userY, err := tx.EnsureAssociatedAccount(req.User, pool.MintY)
		if err != nil {
			return ledgerError(err)
		}

		if err := tx.Transfer(pool.VaultX(), userX, x, poolSigner); err != nil {
			return ledgerError(err)
		}
		if err := tx.Transfer(pool.VaultY(), userY, y, poolSigner); err != nil {
			return ledgerError(err)
		}
		if err := tx.Burn(userLP, pool.MintLP, req.Amount, userSigner); err != nil {
			return ledgerError(err)
		}

		after, err := tx.PoolState(req.Pool)
		if err != nil {
			return ledgerError(err)
		}
		res = WithdrawResult{AmountX: x, AmountY: y, State: after}
		return nil
	})
	if err != nil {
		return WithdrawResult{}, err
	}
	return res, nil
}
