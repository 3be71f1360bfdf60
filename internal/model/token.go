package model

import "ammLedger/internal/address"

// Mint is a fungible token definition.
type Mint struct {
	Address   address.PublicKey `json:"address"`
	Authority address.PublicKey `json:"authority"`
	Decimals  uint8             `json:"decimals"`
	Supply    uint64            `json:"supply"`
}

// TokenAccount holds one owner's balance of one mint.
type TokenAccount struct {
	Address address.PublicKey `json:"address"`
	Mint    address.PublicKey `json:"mint"`
	Owner   address.PublicKey `json:"owner"`
	Amount  uint64            `json:"amount"`
}
