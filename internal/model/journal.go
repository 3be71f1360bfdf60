package model

import "ammLedger/internal/address"

// Operation kinds recorded in the journal.
const (
	KindInitialize = "initialize"
	KindDeposit    = "deposit"
	KindSwap       = "swap"
	KindWithdraw   = "withdraw"
	KindLock       = "lock"
	KindUnlock     = "unlock"
)

// JournalRecord is the normalized record of one operation, executed or rejected.
type JournalRecord struct {
	Seq        uint64               `json:"seq"`
	Kind       string               `json:"kind"`
	Pool       address.PublicKey    `json:"pool"`
	User       address.PublicKey    `json:"user"`
	Timestamp  uint64               `json:"timestamp"`
	Swap       *SwapEventData       `json:"swap,omitempty"`
	Deposit    *DepositEventData    `json:"deposit,omitempty"`
	Withdraw   *WithdrawEventData   `json:"withdraw,omitempty"`
	Initialize *InitializeEventData `json:"initialize,omitempty"`
	State      *PoolState           `json:"state,omitempty"`
	ErrorCode  uint32               `json:"error_code,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// Succeeded reports whether the operation was applied.
func (r JournalRecord) Succeeded() bool {
	return r.Error == ""
}
