package model

import "time"

// PoolWindowMetrics stores aggregated activity for a pool window.
type PoolWindowMetrics struct {
	PoolAddress    string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	DepositCount   uint64
	WithdrawCount  uint64
	VolumeInX      string
	VolumeInY      string
	VolumeOutX     string
	VolumeOutY     string
	FeeX           string
	FeeY           string
	VaultX         *string
	VaultY         *string
	LPSupply       *string
	FeeRateX       *string
	FeeRateY       *string
}
