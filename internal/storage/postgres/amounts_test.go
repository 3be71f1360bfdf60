package postgres

import (
	"math"
	"testing"

	"ammLedger/internal/model"
)

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestNumericKeepsFullRange(t *testing.T) {
	if got := deref(numeric(math.MaxUint64)); got != "18446744073709551615" {
		t.Fatalf("numeric(max) = %s", got)
	}
}

func TestJournalAmounts(t *testing.T) {
	swap := model.JournalRecord{Kind: model.KindSwap, Swap: &model.SwapEventData{AmountIn: 100, Fee: 1, AmountOut: 90}}
	in, out, fee, x, y := journalAmounts(swap)
	if deref(in) != "100" || deref(out) != "90" || deref(fee) != "1" || x != nil || y != nil {
		t.Fatalf("swap amounts: %s %s %s %s %s", deref(in), deref(out), deref(fee), deref(x), deref(y))
	}

	rejected := model.JournalRecord{Kind: model.KindWithdraw, Withdraw: &model.WithdrawEventData{LPAmount: 5}, Error: "ZeroBalance"}
	in, out, _, x, y = journalAmounts(rejected)
	if deref(in) != "5" || out != nil || x != nil || y != nil {
		t.Fatalf("rejected withdraw should only carry the input amount")
	}
}
