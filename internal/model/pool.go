package model

import "ammLedger/internal/address"

// FeeDenominator is the basis-point denominator for FeeBps.
const FeeDenominator = 10_000

// Pool is the config record of one trading pair. The config address and the
// LP mint address are program-derived from Seed and the two bumps.
type Pool struct {
	Address    address.PublicKey  `json:"address"`
	Seed       uint64             `json:"seed"`
	Authority  *address.PublicKey `json:"authority,omitempty"`
	MintX      address.PublicKey  `json:"mint_x"`
	MintY      address.PublicKey  `json:"mint_y"`
	MintLP     address.PublicKey  `json:"mint_lp"`
	FeeBps     uint16             `json:"fee_bps"`
	Locked     bool               `json:"locked"`
	ConfigBump uint8              `json:"config_bump"`
	LPBump     uint8              `json:"lp_bump"`
}

// VaultX is the pool's custody account for MintX.
func (p Pool) VaultX() address.PublicKey {
	return address.AssociatedTokenAddress(p.Address, p.MintX)
}

// VaultY is the pool's custody account for MintY.
func (p Pool) VaultY() address.PublicKey {
	return address.AssociatedTokenAddress(p.Address, p.MintY)
}

// Vaults returns (from, to) for a swap direction. isX means X is sold.
func (p Pool) Vaults(isX bool) (address.PublicKey, address.PublicKey) {
	if isX {
		return p.VaultX(), p.VaultY()
	}
	return p.VaultY(), p.VaultX()
}

// Mints returns (in, out) mints for a swap direction.
func (p Pool) Mints(isX bool) (address.PublicKey, address.PublicKey) {
	if isX {
		return p.MintX, p.MintY
	}
	return p.MintY, p.MintX
}

// PoolState is a point-in-time view of a pool and its balances.
type PoolState struct {
	Pool     Pool   `json:"pool"`
	VaultX   uint64 `json:"vault_x"`
	VaultY   uint64 `json:"vault_y"`
	LPSupply uint64 `json:"lp_supply"`
}
