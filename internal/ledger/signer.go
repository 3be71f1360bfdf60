package ledger

import "ammLedger/internal/address"

// Signer is a capability that authorizes debits from accounts owned by its
// key. The zero value authorizes nothing. A Signer is obtained either from
// UserSigner for an on-curve key or from Txn.PoolSigner for a pool's
// delegated authority.
type Signer struct {
	key   address.PublicKey
	valid bool
}

// UserSigner returns the capability of an externally owned key. Program
// derived addresses are off-curve and are refused here, so a caller cannot
// present a pool's config address as its own signature.
func UserSigner(key address.PublicKey) (Signer, error) {
	if !key.IsOnCurve() {
		return Signer{}, ErrInvalidSigner
	}
	return Signer{key: key, valid: true}, nil
}

func (s Signer) Key() address.PublicKey {
	return s.key
}

func (s Signer) authorizes(owner address.PublicKey) bool {
	return s.valid && s.key == owner
}
