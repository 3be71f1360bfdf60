package amm

import (
	"context"
	"fmt"

	"ammLedger/internal/model"
)

// Apply executes one instruction and returns its journal record. A rejected
// instruction yields a record carrying the error code and name. The record is
// also sent to every subscriber.
func (e *Engine) Apply(ctx context.Context, ins model.Instruction) model.JournalRecord {
	rec := model.JournalRecord{
		Seq:       ins.Seq,
		Kind:      ins.Kind,
		Pool:      ins.Pool,
		User:      ins.User,
		Timestamp: ins.Timestamp,
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = uint64(e.now().Unix())
	}

	var (
		state model.PoolState
		err   error
	)
	switch ins.Kind {
	case model.KindInitialize:
		state, err = e.Initialize(ctx, InitializeRequest{
			Initializer: ins.User,
			Seed:        ins.Seed,
			FeeBps:      ins.FeeBps,
			Authority:   ins.Authority,
			MintX:       ins.MintX,
			MintY:       ins.MintY,
		})
		rec.Pool = state.Pool.Address
		rec.Initialize = &model.InitializeEventData{Seed: ins.Seed, FeeBps: ins.FeeBps}
	case model.KindDeposit:
		var res DepositResult
		res, err = e.Deposit(ctx, DepositRequest{Pool: ins.Pool, User: ins.User, Amount: ins.Amount, MaxX: ins.LimitA, MaxY: ins.LimitB})
		state = res.State
		rec.Deposit = &model.DepositEventData{LPAmount: ins.Amount, MaxX: ins.LimitA, MaxY: ins.LimitB, AmountX: res.AmountX, AmountY: res.AmountY}
	case model.KindSwap:
		var res SwapResult
		res, err = e.Swap(ctx, SwapRequest{Pool: ins.Pool, User: ins.User, IsX: ins.IsX, AmountIn: ins.Amount, MinAmountOut: ins.LimitA})
		state = res.State
		rec.Swap = &model.SwapEventData{IsX: ins.IsX, AmountIn: ins.Amount, MinAmountOut: ins.LimitA, Fee: res.Fee, AmountOut: res.AmountOut}
	case model.KindWithdraw:
		var res WithdrawResult
		res, err = e.Withdraw(ctx, WithdrawRequest{Pool: ins.Pool, User: ins.User, Amount: ins.Amount, MinX: ins.LimitA, MinY: ins.LimitB})
		state = res.State
		rec.Withdraw = &model.WithdrawEventData{LPAmount: ins.Amount, MinX: ins.LimitA, MinY: ins.LimitB, AmountX: res.AmountX, AmountY: res.AmountY}
	case model.KindLock, model.KindUnlock:
		state, err = e.SetLocked(ctx, ins.Pool, ins.User, ins.Kind == model.KindLock)
	default:
		err = fmt.Errorf("unknown instruction kind %q", ins.Kind)
	}

	if err != nil {
		rec.Error = err.Error()
		if ammErr, ok := AsError(err); ok {
			rec.ErrorCode = ammErr.Code
			rec.Error = ammErr.Name
		}
	} else {
		rec.State = &state
	}

	e.feed.Send(rec)
	return rec
}
