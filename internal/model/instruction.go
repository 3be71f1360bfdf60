package model

import "ammLedger/internal/address"

// Instruction is one line of a replay input file. Fields not used by Kind are ignored.
type Instruction struct {
	Seq       uint64            `json:"seq"`
	Kind      string            `json:"kind"`
	Pool      address.PublicKey `json:"pool"`
	User      address.PublicKey `json:"user"`
	Timestamp uint64            `json:"timestamp,omitempty"`
	IsX       bool              `json:"is_x,omitempty"`
	Amount    uint64            `json:"amount,omitempty"`
	// LimitA/LimitB bound the token amounts of the operation: the minimum
	// output of a swap (LimitA only), the minimum x/y paid out by a withdraw
	// and the maximum x/y taken by a deposit.
	LimitA uint64 `json:"limit_a,omitempty"`
	LimitB uint64 `json:"limit_b,omitempty"`

	// initialize only
	Seed      uint64             `json:"seed,omitempty"`
	FeeBps    uint16             `json:"fee_bps,omitempty"`
	MintX     address.PublicKey  `json:"mint_x"`
	MintY     address.PublicKey  `json:"mint_y"`
	Authority *address.PublicKey `json:"authority,omitempty"`
}
