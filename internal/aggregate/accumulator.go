package aggregate

import (
	"math/big"

	"ammLedger/internal/model"
)

// Accumulator holds aggregate values for one pool window.
type Accumulator struct {
	PoolAddress   string
	Pool          model.Pool
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	DepositCount  uint64
	WithdrawCount uint64
	VolumeInX     *big.Int
	VolumeInY     *big.Int
	VolumeOutX    *big.Int
	VolumeOutY    *big.Int
	FeeX          *big.Int
	FeeY          *big.Int
	LastState     *model.PoolState
	LastTS        uint64
	LastSeq       uint64
}

func NewAccumulator(record model.JournalRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolAddress: record.Pool.String(),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeInX:   big.NewInt(0),
		VolumeInY:   big.NewInt(0),
		VolumeOutX:  big.NewInt(0),
		VolumeOutY:  big.NewInt(0),
		FeeX:        big.NewInt(0),
		FeeY:        big.NewInt(0),
		LastTS:      record.Timestamp,
		LastSeq:     record.Seq,
	}
}

// AddRecord folds one successful journal record into the window. It reports
// false for records that carry nothing to aggregate.
func (a *Accumulator) AddRecord(record model.JournalRecord) bool {
	if !record.Succeeded() {
		return false
	}
	if record.State != nil && record.Seq >= a.LastSeq {
		state := *record.State
		a.LastState = &state
		a.Pool = state.Pool
		a.LastSeq = record.Seq
	}
	if record.Timestamp > a.LastTS {
		a.LastTS = record.Timestamp
	}

	switch record.Kind {
	case model.KindSwap:
		if record.Swap == nil {
			return false
		}
		a.applySwap(*record.Swap)
	case model.KindDeposit:
		if record.Deposit == nil {
			return false
		}
		a.DepositCount++
	case model.KindWithdraw:
		if record.Withdraw == nil {
			return false
		}
		a.WithdrawCount++
	default:
		return record.State != nil
	}
	return true
}

func (a *Accumulator) applySwap(swap model.SwapEventData) {
	in := new(big.Int).SetUint64(swap.AmountIn)
	out := new(big.Int).SetUint64(swap.AmountOut)
	fee := new(big.Int).SetUint64(swap.Fee)
	if swap.IsX {
		a.VolumeInX.Add(a.VolumeInX, in)
		a.VolumeOutY.Add(a.VolumeOutY, out)
		a.FeeX.Add(a.FeeX, fee)
	} else {
		a.VolumeInY.Add(a.VolumeInY, in)
		a.VolumeOutX.Add(a.VolumeOutX, out)
		a.FeeY.Add(a.FeeY, fee)
	}
	a.SwapCount++
}

// Metrics renders the window for storage.
func (a *Accumulator) Metrics(windowSeconds uint64) model.PoolWindowMetrics {
	m := model.PoolWindowMetrics{
		PoolAddress:    a.PoolAddress,
		WindowSizeSecs: int64(windowSeconds),
		WindowStart:    unixTime(a.WindowStart),
		WindowEnd:      unixTime(a.WindowEnd),
		SwapCount:      a.SwapCount,
		DepositCount:   a.DepositCount,
		WithdrawCount:  a.WithdrawCount,
		VolumeInX:      a.VolumeInX.String(),
		VolumeInY:      a.VolumeInY.String(),
		VolumeOutX:     a.VolumeOutX.String(),
		VolumeOutY:     a.VolumeOutY.String(),
		FeeX:           a.FeeX.String(),
		FeeY:           a.FeeY.String(),
	}
	if a.LastState != nil {
		vaultX := new(big.Int).SetUint64(a.LastState.VaultX)
		vaultY := new(big.Int).SetUint64(a.LastState.VaultY)
		m.VaultX = stringPtr(vaultX.String())
		m.VaultY = stringPtr(vaultY.String())
		m.LPSupply = stringPtr(new(big.Int).SetUint64(a.LastState.LPSupply).String())
		m.FeeRateX, m.FeeRateY = computeFeeRates(a.FeeX, a.FeeY, vaultX, vaultY)
	}
	return m
}
