package postgres

import (
	"strconv"

	"ammLedger/internal/model"
)

// Token amounts are u64, so they are passed as decimal text into NUMERIC columns.
func numeric(v uint64) *string {
	s := strconv.FormatUint(v, 10)
	return &s
}

func numericSeed(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// journalAmounts flattens the kind-specific payload into
// (amount_in, amount_out, fee, amount_x, amount_y). Unused columns are NULL.
func journalAmounts(r model.JournalRecord) (in, out, fee, x, y *string) {
	switch {
	case r.Swap != nil:
		in, fee = numeric(r.Swap.AmountIn), numeric(r.Swap.Fee)
		if r.Succeeded() {
			out = numeric(r.Swap.AmountOut)
		}
	case r.Deposit != nil:
		in = numeric(r.Deposit.LPAmount)
		if r.Succeeded() {
			x, y = numeric(r.Deposit.AmountX), numeric(r.Deposit.AmountY)
		}
	case r.Withdraw != nil:
		in = numeric(r.Withdraw.LPAmount)
		if r.Succeeded() {
			x, y = numeric(r.Withdraw.AmountX), numeric(r.Withdraw.AmountY)
		}
	}
	return in, out, fee, x, y
}
