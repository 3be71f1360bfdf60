package amm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ammLedger/internal/address"
	"ammLedger/internal/ledger"
	"ammLedger/internal/model"
)

// SetLocked sets the pool's lock flag. Only the pool authority may call it;
// a pool created without an authority can never be locked.
func (e *Engine) SetLocked(ctx context.Context, poolKey, user address.PublicKey, locked bool) (model.PoolState, error) {
	start := time.Now()
	kind := model.KindUnlock
	if locked {
		kind = model.KindLock
	}

	var state model.PoolState
	err := e.ledger.Execute(ctx, poolKey, func(tx *ledger.Txn) error {
		pool, err := tx.Pool(poolKey)
		if err != nil {
			return ledgerError(err)
		}
		if _, err := ledger.UserSigner(user); err != nil {
			return ledgerError(err)
		}
		if pool.Authority == nil || *pool.Authority != user {
			return ErrUnauthorized
		}
		if pool.Locked != locked {
			pool.Locked = locked
			tx.PutPool(pool)
		}
		state, err = tx.PoolState(poolKey)
		return ledgerError(err)
	})
	e.observe(kind, poolKey, user, start, err, zap.Bool("locked", locked))
	if err != nil {
		return model.PoolState{}, err
	}
	return state, nil
}
