package model

// SwapEventData is the payload of an executed swap.
type SwapEventData struct {
	IsX          bool   `json:"is_x"`
	AmountIn     uint64 `json:"amount_in"`
	MinAmountOut uint64 `json:"min_amount_out"`
	Fee          uint64 `json:"fee"`
	AmountOut    uint64 `json:"amount_out"`
}

// DepositEventData is the payload of an executed deposit.
type DepositEventData struct {
	LPAmount uint64 `json:"lp_amount"`
	MaxX     uint64 `json:"max_x"`
	MaxY     uint64 `json:"max_y"`
	AmountX  uint64 `json:"amount_x"`
	AmountY  uint64 `json:"amount_y"`
}

// WithdrawEventData is the payload of an executed withdraw.
type WithdrawEventData struct {
	LPAmount uint64 `json:"lp_amount"`
	MinX     uint64 `json:"min_x"`
	MinY     uint64 `json:"min_y"`
	AmountX  uint64 `json:"amount_x"`
	AmountY  uint64 `json:"amount_y"`
}

// InitializeEventData is the payload of a pool creation.
type InitializeEventData struct {
	Seed   uint64 `json:"seed"`
	FeeBps uint16 `json:"fee_bps"`
}
