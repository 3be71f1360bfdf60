package ledger

import (
	"context"
	"fmt"

	"ammLedger/internal/address"
	"ammLedger/internal/model"
)

// Source backs a ledger that is not fully loaded. A lookup that misses the
// resident entries falls through to it, and the result becomes resident.
type Source interface {
	Pool(key address.PublicKey) (model.Pool, bool, error)
	Mint(key address.PublicKey) (model.Mint, bool, error)
	TokenAccount(key address.PublicKey) (model.TokenAccount, bool, error)
}

// SetSource installs the read-through source. Call it before the ledger is used.
func (l *Ledger) SetSource(src Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.source = src
}

type seqKey struct{}

// WithSeq tags ctx with the sequence number of the instruction being
// executed. A transaction committed under it records the number together
// with its writes, see AppliedSeq.
func WithSeq(ctx context.Context, seq uint64) context.Context {
	return context.WithValue(ctx, seqKey{}, seq)
}

func seqFrom(ctx context.Context) uint64 {
	seq, _ := ctx.Value(seqKey{}).(uint64)
	return seq
}

// fault makes key resident if the source has it.
func fault[T any](l *Ledger, key address.PublicKey, resident func() map[address.PublicKey]T, fetch func(address.PublicKey) (T, bool, error)) error {
	l.mu.RLock()
	src := l.source
	_, ok := resident()[key]
	l.mu.RUnlock()
	if ok || src == nil {
		return nil
	}

	v, found, err := fetch(key)
	if err != nil {
		return fmt.Errorf("read %s from source: %w", key, err)
	}
	if !found {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// a commit may have landed while the source was read
	if _, ok := resident()[key]; !ok {
		resident()[key] = v
	}
	return nil
}

func (l *Ledger) faultPool(key address.PublicKey) error {
	return fault(l, key, func() map[address.PublicKey]model.Pool { return l.pools }, func(k address.PublicKey) (model.Pool, bool, error) {
		return l.source.Pool(k)
	})
}

func (l *Ledger) faultMint(key address.PublicKey) error {
	return fault(l, key, func() map[address.PublicKey]model.Mint { return l.mints }, func(k address.PublicKey) (model.Mint, bool, error) {
		return l.source.Mint(k)
	})
}

func (l *Ledger) faultAccount(key address.PublicKey) error {
	return fault(l, key, func() map[address.PublicKey]model.TokenAccount { return l.accounts }, func(k address.PublicKey) (model.TokenAccount, bool, error) {
		return l.source.TokenAccount(k)
	})
}
