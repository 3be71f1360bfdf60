package aggregate

import (
	"math/big"
	"time"
)

const ratioScale = 18

func computeFeeRates(feeX, feeY, vaultX, vaultY *big.Int) (*string, *string) {
	var rateX, rateY *string
	if rate := computeRateFromInt(feeX, vaultX); rate != "" {
		rateX = &rate
	}
	if rate := computeRateFromInt(feeY, vaultY); rate != "" {
		rateY = &rate
	}
	return rateX, rateY
}

func computeRateFromInt(fee, balance *big.Int) string {
	if fee == nil || fee.Sign() == 0 || balance == nil || balance.Sign() == 0 {
		return ""
	}
	return new(big.Rat).SetFrac(fee, balance).FloatString(ratioScale)
}

func windowStart(ts, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func unixTime(ts uint64) time.Time {
	return time.Unix(int64(ts), 0).UTC()
}

func stringPtr(s string) *string {
	return &s
}
