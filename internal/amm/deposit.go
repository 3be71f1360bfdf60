package amm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ammLedger/internal/address"
	"ammLedger/internal/ledger"
	"ammLedger/internal/model"
)

// DepositRequest mints Amount LP tokens in exchange for at most MaxX and MaxY.
type DepositRequest struct {
	Pool   address.PublicKey
	User   address.PublicKey
	Amount uint64
	MaxX   uint64
	MaxY   uint64
}

// DepositResult is the outcome of an executed deposit.
type DepositResult struct {
	AmountX uint64
	AmountY uint64
	State   model.PoolState
}

// Deposit adds liquidity. The first deposit into an empty pool provides
// exactly MaxX and MaxY; later deposits pay the pro-rata amounts rounded up.
func (e *Engine) Deposit(ctx context.Context, req DepositRequest) (DepositResult, error) {
	start := time.Now()
	res, err := e.deposit(ctx, req)
	e.observe(model.KindDeposit, req.Pool, req.User, start, err,
		zap.Uint64("lp_amount", req.Amount),
		zap.Uint64("max_x", req.MaxX),
		zap.Uint64("max_y", req.MaxY),
		zap.Uint64("amount_x", res.AmountX),
		zap.Uint64("amount_y", res.AmountY),
	)
	return res, err
}

func (e *Engine) deposit(ctx context.Context, req DepositRequest) (DepositResult, error) {
	var res DepositResult
	err := e.ledger.Execute(ctx, req.Pool, func(tx *ledger.Txn) error {
		state, err := tx.PoolState(req.Pool)
		if err != nil {
			return ledgerError(err)
		}
		pool := state.Pool
		if pool.Locked {
			return ErrPoolLocked
		}
		if req.Amount == 0 {
			return ErrInvalidAmount
		}

		var x, y uint64
		if state.LPSupply == 0 && state.VaultX == 0 && state.VaultY == 0 {
			if req.MaxX == 0 || req.MaxY == 0 {
				return ErrInvalidAmount
			}
			x, y = req.MaxX, req.MaxY
		} else {
			x, y, err = QuoteDeposit(req.Amount, state.VaultX, state.VaultY, state.LPSupply)
			if err != nil {
				return err
			}
		}
		if x > req.MaxX || y > req.MaxY {
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

		if err := tx.Transfer(address.AssociatedTokenAddress(req.User, pool.MintX), pool.VaultX(), x, userSigner); err != nil {
			return ledgerError(err)
		}
		if err := tx.Transfer(address.AssociatedTokenAddress(req.User, pool.MintY), pool.VaultY(), y, userSigner); err != nil {
			return ledgerError(err)
		}
		userLP, err := tx.EnsureAssociatedAccount(req.User, pool.MintLP)
		if err != nil {
			return ledgerError(err)
		}
		if err := tx.MintTo(pool.MintLP, userLP, req.Amount, poolSigner); err != nil {
			return ledgerError(err)
		}

		after, err := tx.PoolState(req.Pool)
		if err != nil {
			return ledgerError(err)
		}
		res = DepositResult{AmountX: x, AmountY: y, State: after}
		return nil
	})
	if err != nil {
		return DepositResult{}, err
	}
	return res, nil
}
