// Package address implements public keys and program-derived addresses.
package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const (
	// KeyLength is the size of a public key in bytes.
	KeyLength = 32
	// MaxSeeds is the maximum number of seeds accepted by CreateProgramAddress.
	MaxSeeds = 16
	// MaxSeedLength is the maximum length of a single seed.
	MaxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrInvalidKey   = errors.New("invalid public key")
	ErrMaxSeeds     = errors.New("too many seeds")
	ErrSeedTooLong  = errors.New("seed exceeds max length")
	ErrOnCurve      = errors.New("derived address is on the ed25519 curve")
	ErrNoViableBump = errors.New("unable to find a viable program address bump")
	ErrBumpMismatch = errors.New("bump does not derive the expected address")
)

// PublicKey is a 32-byte account address.
type PublicKey [KeyLength]byte

// Zero is the all-zero key.
var Zero PublicKey

// TokenProgramID owns every token account and mint.
var TokenProgramID = MustParse("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

// AssociatedTokenProgramID is the program under which associated token accounts are derived.
var AssociatedTokenProgramID = FromLabel("associated-token-account")

// DefaultProgramID is the AMM program used when none is configured.
var DefaultProgramID = FromLabel("amm-ledger")

// Parse decodes a base58 public key.
func Parse(s string) (PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}
	if len(raw) != KeyLength {
		return PublicKey{}, fmt.Errorf("%w: length %d", ErrInvalidKey, len(raw))
	}
	var pk PublicKey
	copy(pk[:], raw)
	return pk, nil
}

// MustParse is Parse for package-level constants.
func MustParse(s string) PublicKey {
	pk, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// FromBytes copies a 32-byte slice into a key.
func FromBytes(b []byte) (PublicKey, error) {
	if len(b) != KeyLength {
		return PublicKey{}, fmt.Errorf("%w: length %d", ErrInvalidKey, len(b))
	}
	var pk PublicKey
	copy(pk[:], b)
	return pk, nil
}

// FromLabel hashes a label into a stable key. Used for built-in program ids.
func FromLabel(label string) PublicKey {
	return PublicKey(sha256.Sum256([]byte(label)))
}

func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

func (pk PublicKey) Bytes() []byte {
	out := make([]byte, KeyLength)
	copy(out, pk[:])
	return out
}

func (pk PublicKey) IsZero() bool {
	return pk == Zero
}

// IsOnCurve reports whether the key is a valid ed25519 point. Only on-curve
// keys can have a private key, so program-derived addresses must be off-curve.
func (pk PublicKey) IsOnCurve() bool {
	return isOnCurve(pk[:])
}

func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// CreateProgramAddress derives an address from seeds (the bump included) and
// a program id. It fails when the hash lands on the curve.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	if len(seeds) > MaxSeeds {
		return PublicKey{}, ErrMaxSeeds
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return PublicKey{}, ErrSeedTooLong
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var pk PublicKey
	copy(pk[:], h.Sum(nil))
	if isOnCurve(pk[:]) {
		return PublicKey{}, ErrOnCurve
	}
	return pk, nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		pk, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return pk, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return PublicKey{}, 0, err
		}
	}
	return PublicKey{}, 0, ErrNoViableBump
}

// VerifyProgramAddress checks that seeds plus bump derive want.
func VerifyProgramAddress(seeds [][]byte, bump uint8, programID PublicKey, want PublicKey) error {
	withBump := append(append([][]byte{}, seeds...), []byte{bump})
	got, err := CreateProgramAddress(withBump, programID)
	if err != nil {
		return err
	}
	if got != want {
		return ErrBumpMismatch
	}
	return nil
}

// AssociatedTokenAddress returns the canonical token account for (owner, mint).
func AssociatedTokenAddress(owner, mint PublicKey) PublicKey {
	pk, _, err := FindProgramAddress(
		[][]byte{owner[:], TokenProgramID[:], mint[:]},
		AssociatedTokenProgramID,
	)
	if err != nil {
		// 256 consecutive on-curve hashes do not happen in practice.
		panic(err)
	}
	return pk
}

func isOnCurve(b []byte) bool {
	if len(b) != KeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
