package amm

import (
	"github.com/holiman/uint256"

	"ammLedger/internal/model"
)

// SwapQuote is the result of pricing a swap against the current reserves.
type SwapQuote struct {
	Fee           uint64
	NetIn         uint64
	AmountOut     uint64
	NewReserveIn  uint64
	NewReserveOut uint64
}

// QuoteSwap prices amountIn against (reserveIn, reserveOut) on the constant
// product curve. The fee is taken from the input and stays in the input vault.
// Every product is computed in 256 bits and narrowed with a check.
func QuoteSwap(reserveIn, reserveOut, amountIn uint64, feeBps uint16) (SwapQuote, error) {
	fee, err := mulDiv(amountIn, uint64(feeBps), model.FeeDenominator, false)
	if err != nil {
		return SwapQuote{}, err
	}
	if fee > amountIn {
		return SwapQuote{}, ErrUnderflow
	}
	netIn := amountIn - fee

	k, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(reserveIn), uint256.NewInt(reserveOut))
	if overflow {
		return SwapQuote{}, ErrOverflow
	}
	newIn, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(reserveIn), uint256.NewInt(netIn))
	if overflow || !newIn.IsUint64() {
		return SwapQuote{}, ErrOverflow
	}
	if newIn.IsZero() {
		return SwapQuote{}, ErrUnderflow
	}
	newOut := new(uint256.Int).Div(k, newIn)
	if !newOut.IsUint64() {
		return SwapQuote{}, ErrOverflow
	}
	if newOut.Uint64() > reserveOut {
		return SwapQuote{}, ErrUnderflow
	}

	return SwapQuote{
		Fee:           fee,
		NetIn:         netIn,
		AmountOut:     reserveOut - newOut.Uint64(),
		NewReserveIn:  newIn.Uint64(),
		NewReserveOut: newOut.Uint64(),
	}, nil
}

// QuoteWithdraw returns the pro-rata share of both vaults for amount LP
// tokens, truncated toward zero.
func QuoteWithdraw(amount, vaultX, vaultY, supply uint64) (uint64, uint64, error) {
	x, err := mulDiv(amount, vaultX, supply, false)
	if err != nil {
		return 0, 0, err
	}
	y, err := mulDiv(amount, vaultY, supply, false)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// QuoteDeposit returns the amounts of X and Y required to mint amount LP
// tokens into a pool that already holds liquidity, rounded up.
func QuoteDeposit(amount, vaultX, vaultY, supply uint64) (uint64, uint64, error) {
	x, err := mulDiv(amount, vaultX, supply, true)
	if err != nil {
		return 0, 0, err
	}
	y, err := mulDiv(amount, vaultY, supply, true)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// Invariant returns vaultX*vaultY as a 256-bit integer.
func Invariant(vaultX, vaultY uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(vaultX), uint256.NewInt(vaultY))
}

// mulDiv computes a*b/d in 256 bits. A zero divisor is Underflow and a
// quotient wider than 64 bits is Overflow.
func mulDiv(a, b, d uint64, roundUp bool) (uint64, error) {
	if d == 0 {
		return 0, ErrUnderflow
	}
	prod, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow {
		return 0, ErrOverflow
	}
	div := uint256.NewInt(d)
	q := new(uint256.Int).Div(prod, div)
	if roundUp && !new(uint256.Int).Mod(prod, div).IsZero() {
		q.AddUint64(q, 1)
	}
	if !q.IsUint64() {
		return 0, ErrOverflow
	}
	return q.Uint64(), nil
}
