package amm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ammLedger/internal/address"
	"ammLedger/internal/ledger"
	"ammLedger/internal/model"
)

// SwapRequest sells AmountIn of one pool asset for the other. IsX sells X for Y.
type SwapRequest struct {
	Pool         address.PublicKey
	User         address.PublicKey
	IsX          bool
	AmountIn     uint64
	MinAmountOut uint64
}

// SwapResult is the outcome of an executed swap. ReserveIn and ReserveOut are
// the vault balances before the swap.
type SwapResult struct {
	Fee        uint64
	AmountIn   uint64
	AmountOut  uint64
	ReserveIn  uint64
	ReserveOut uint64
	State      model.PoolState
}

// Swap checks, in order: pool not locked, non-zero input, curve math,
// slippage floor and vault overdraw. It then moves AmountIn from the user to
// the input vault and AmountOut from the output vault to the user.
func (e *Engine) Swap(ctx context.Context, req SwapRequest) (SwapResult, error) {
	start := time.Now()
	res, err := e.swap(ctx, req)
	e.observe(model.KindSwap, req.Pool, req.User, start, err,
		zap.Bool("is_x", req.IsX),
		zap.Uint64("amount_in", req.AmountIn),
		zap.Uint64("min_amount_out", req.MinAmountOut),
		zap.Uint64("amount_out", res.AmountOut),
		zap.Uint64("fee", res.Fee),
	)
	if err == nil {
		e.metrics.RecordSwap(req.Pool.String(), req.IsX, res.AmountIn, res.Fee)
	}
	return res, err
}

func (e *Engine) swap(ctx context.Context, req SwapRequest) (SwapResult, error) {
	var res SwapResult
	err := e.ledger.Execute(ctx, req.Pool, func(tx *ledger.Txn) error {
		state, err := tx.PoolState(req.Pool)
		if err != nil {
			return ledgerError(err)
		}
		pool := state.Pool
		if pool.Locked {
			return ErrPoolLocked
		}
		if req.AmountIn == 0 {
			return ErrInvalidAmount
		}

		reserveIn, reserveOut := state.VaultX, state.VaultY
		if !req.IsX {
			reserveIn, reserveOut = state.VaultY, state.VaultX
		}
		quote, err := QuoteSwap(reserveIn, reserveOut, req.AmountIn, pool.FeeBps)
		if err != nil {
			return err
		}
		if quote.AmountOut < req.MinAmountOut {
			return ErrSlippageExceeded
		}
		if quote.AmountOut > reserveOut {
			return ErrInsufficientBalance
		}

		userSigner, err := ledger.UserSigner(req.User)
		if err != nil {
			return ledgerError(err)
		}
		poolSigner, err := tx.PoolSigner(pool)
		if err != nil {
			return ledgerError(err)
		}

		mintIn, mintOut := pool.Mints(req.IsX)
		fromVault, toVault := pool.Vaults(req.IsX)
		userIn := address.AssociatedTokenAddress(req.User, mintIn)
		userOut, err := tx.EnsureAssociatedAccount(req.User, mintOut)
		if err != nil {
			return ledgerError(err)
		}

		if err := tx.Transfer(userIn, fromVault, req.AmountIn, userSigner); err != nil {
			return ledgerError(err)
		}
		if err := tx.Transfer(toVault, userOut, quote.AmountOut, poolSigner); err != nil {
			return ledgerError(err)
		}

		after, err := tx.PoolState(req.Pool)
		if err != nil {
			return ledgerError(err)
		}
		res = SwapResult{
			Fee:        quote.Fee,
			AmountIn:   req.AmountIn,
			AmountOut:  quote.AmountOut,
			ReserveIn:  reserveIn,
			ReserveOut: reserveOut,
			State:      after,
		}
		return nil
	})
	if err != nil {
		return SwapResult{}, err
	}
	return res, nil
}
