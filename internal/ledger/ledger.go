// Package ledger holds token balances and applies transactions atomically.
package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"ammLedger/internal/address"
	"ammLedger/internal/model"
)

// State is a snapshot of the ledger. AppliedSeq is the highest instruction
// sequence number committed through WithSeq.
type State struct {
	Pools      []model.Pool
	Mints      []model.Mint
	Accounts   []model.TokenAccount
	AppliedSeq uint64
}

// ChangeSet holds every entry written by one committed transaction. Seq is
// non-zero when the transaction advances the applied sequence number and must
// be persisted in the same write as the entries.
type ChangeSet struct {
	Pools    []model.Pool
	Mints    []model.Mint
	Accounts []model.TokenAccount
	Seq      uint64
}

func (c ChangeSet) Empty() bool {
	return len(c.Pools) == 0 && len(c.Mints) == 0 && len(c.Accounts) == 0
}

// Committer persists a change set. If Commit fails the transaction is discarded.
type Committer interface {
	Commit(ctx context.Context, changes ChangeSet) error
}

// Ledger is the in-memory account store. Execute serializes transactions per
// lock key and validates read versions at commit, so two transactions under
// different keys that touch the same account cannot both commit.
type Ledger struct {
	programID address.PublicKey
	committer Committer
	logger    *zap.Logger

	mu         sync.RWMutex
	source     Source
	appliedSeq uint64
	pools      map[address.PublicKey]model.Pool
	mints      map[address.PublicKey]model.Mint
	accounts   map[address.PublicKey]model.TokenAccount
	versions   map[address.PublicKey]uint64

	locksMu sync.Mutex
	locks   map[address.PublicKey]*sync.Mutex
}

// New builds an empty ledger. committer may be nil.
func New(programID address.PublicKey, committer Committer, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		programID: programID,
		committer: committer,
		logger:    logger,
		pools:     make(map[address.PublicKey]model.Pool),
		mints:     make(map[address.PublicKey]model.Mint),
		accounts:  make(map[address.PublicKey]model.TokenAccount),
		versions:  make(map[address.PublicKey]uint64),
		locks:     make(map[address.PublicKey]*sync.Mutex),
	}
}

// ProgramID returns the program under which pool addresses are derived.
func (l *Ledger) ProgramID() address.PublicKey {
	return l.programID
}

// Load replaces the ledger contents with a snapshot.
func (l *Ledger) Load(state State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pools = make(map[address.PublicKey]model.Pool, len(state.Pools))
	l.mints = make(map[address.PublicKey]model.Mint, len(state.Mints))
	l.accounts = make(map[address.PublicKey]model.TokenAccount, len(state.Accounts))
	l.versions = make(map[address.PublicKey]uint64)
	l.appliedSeq = state.AppliedSeq
	for _, p := range state.Pools {
		l.pools[p.Address] = p
	}
	for _, m := range state.Mints {
		l.mints[m.Address] = m
	}
	for _, a := range state.Accounts {
		l.accounts[a.Address] = a
	}
	l.logger.Debug("ledger loaded",
		zap.Int("pools", len(state.Pools)),
		zap.Int("mints", len(state.Mints)),
		zap.Int("accounts", len(state.Accounts)),
		zap.Uint64("applied_seq", state.AppliedSeq),
	)
}

// AppliedSeq returns the highest committed instruction sequence number.
func (l *Ledger) AppliedSeq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.appliedSeq
}

// Snapshot returns a copy of the resident ledger, ordered by address. With a
// Source installed, entries never read are not included.
func (l *Ledger) Snapshot() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state := State{
		Pools:      make([]model.Pool, 0, len(l.pools)),
		Mints:      make([]model.Mint, 0, len(l.mints)),
		Accounts:   make([]model.TokenAccount, 0, len(l.accounts)),
		AppliedSeq: l.appliedSeq,
	}
	for _, p := range l.pools {
		state.Pools = append(state.Pools, p)
	}
	for _, m := range l.mints {
		state.Mints = append(state.Mints, m)
	}
	for _, a := range l.accounts {
		state.Accounts = append(state.Accounts, a)
	}
	sort.Slice(state.Pools, func(i, j int) bool { return less(state.Pools[i].Address, state.Pools[j].Address) })
	sort.Slice(state.Mints, func(i, j int) bool { return less(state.Mints[i].Address, state.Mints[j].Address) })
	sort.Slice(state.Accounts, func(i, j int) bool { return less(state.Accounts[i].Address, state.Accounts[j].Address) })
	return state
}

// Pool returns a committed pool.
func (l *Ledger) Pool(key address.PublicKey) (p model.Pool, err error) {
	err = l.View(func(tx *Txn) error {
		p, err = tx.Pool(key)
		return err
	})
	return p, err
}

// Mint returns a committed mint.
func (l *Ledger) Mint(key address.PublicKey) (m model.Mint, err error) {
	err = l.View(func(tx *Txn) error {
		m, err = tx.Mint(key)
		return err
	})
	return m, err
}

// TokenAccount returns a committed token account.
func (l *Ledger) TokenAccount(key address.PublicKey) (a model.TokenAccount, err error) {
	err = l.View(func(tx *Txn) error {
		a, err = tx.TokenAccount(key)
		return err
	})
	return a, err
}

// Balance returns the amount held by owner of mint, zero if the associated
// account does not exist.
func (l *Ledger) Balance(owner, mint address.PublicKey) uint64 {
	acct, err := l.TokenAccount(address.AssociatedTokenAddress(owner, mint))
	if err != nil {
		return 0
	}
	return acct.Amount
}

// PoolState returns the pool with its vault balances and LP supply.
func (l *Ledger) PoolState(key address.PublicKey) (model.PoolState, error) {
	var state model.PoolState
	err := l.View(func(tx *Txn) error {
		var err error
		state, err = tx.PoolState(key)
		return err
	})
	return state, err
}

// View runs fn against a transaction that is never committed.
func (l *Ledger) View(fn func(tx *Txn) error) error {
	return fn(newTxn(l))
}

// Execute runs fn inside a transaction serialized on lockKey. Writes become
// visible only if fn returns nil and the commit (including persistence)
// succeeds. Otherwise nothing changes.
func (l *Ledger) Execute(ctx context.Context, lockKey address.PublicKey, fn func(tx *Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := l.lock(lockKey)
	defer unlock()

	tx := newTxn(l)
	if err := fn(tx); err != nil {
		return err
	}
	return l.commit(ctx, tx)
}

func (l *Ledger) commit(ctx context.Context, tx *Txn) error {
	changes := tx.changeSet()
	if changes.Empty() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if seq := seqFrom(ctx); seq > l.appliedSeq {
		changes.Seq = seq
	}

	for key, version := range tx.reads {
		if l.versions[key] != version {
			return ErrConflict
		}
	}

	if l.committer != nil {
		if err := l.committer.Commit(ctx, changes); err != nil {
			return fmt.Errorf("persist changes: %w", err)
		}
	}

	for _, p := range changes.Pools {
		l.pools[p.Address] = p
		l.versions[p.Address]++
	}
	for _, m := range changes.Mints {
		l.mints[m.Address] = m
		l.versions[m.Address]++
	}
	for _, a := range changes.Accounts {
		l.accounts[a.Address] = a
		l.versions[a.Address]++
	}
	if changes.Seq > 0 {
		l.appliedSeq = changes.Seq
	}
	return nil
}

func (l *Ledger) lock(key address.PublicKey) func() {
	l.locksMu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

func less(a, b address.PublicKey) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
