// Package pebble persists the ledger in a pebble key-value store.
package pebble

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"ammLedger/internal/address"
	"ammLedger/internal/ledger"
	"ammLedger/internal/model"
)

const (
	defaultPoolCacheSize    = 256
	defaultAccountCacheSize = 4096
)

var (
	ErrClosed   = errors.New("store is closed")
	ErrNotFound = errors.New("key not found")
)

var (
	poolPrefix    = []byte("pool/")
	mintPrefix    = []byte("mint/")
	accountPrefix = []byte("acct/")
	seqKey        = []byte("meta/seq")
	appliedKey    = []byte("meta/applied")
)

// Store keeps one entry per pool, mint and token account. Pools and token
// accounts are also cached in memory. It implements ledger.Source.
type Store struct {
	db       *pebble.DB
	pools    *lru.Cache[address.PublicKey, model.Pool]
	accounts *lru.Cache[address.PublicKey, model.TokenAccount]
	logger   *zap.Logger

	seqMu sync.Mutex
}

// Open opens (or creates) a store in dir.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	return open(dir, &pebble.Options{}, logger)
}

// OpenInMemory opens a store backed by an in-memory filesystem.
func OpenInMemory(logger *zap.Logger) (*Store, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()}, logger)
}

func open(dir string, opts *pebble.Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	pools, err := lru.New[address.PublicKey, model.Pool](defaultPoolCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	accounts, err := lru.New[address.PublicKey, model.TokenAccount](defaultAccountCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, pools: pools, accounts: accounts, logger: logger}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Commit writes a ledger change set in one synced batch. A non-zero
// changes.Seq is stored in the same batch as the applied marker.
func (s *Store) Commit(_ context.Context, changes ledger.ChangeSet) error {
	if s.db == nil {
		return ErrClosed
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, p := range changes.Pools {
		if err := setJSON(batch, key(poolPrefix, p.Address), p); err != nil {
			return err
		}
	}
	for _, m := range changes.Mints {
		if err := setJSON(batch, key(mintPrefix, m.Address), m); err != nil {
			return err
		}
	}
	for _, a := range changes.Accounts {
		if err := setJSON(batch, key(accountPrefix, a.Address), a); err != nil {
			return err
		}
	}
	if changes.Seq > 0 {
		if err := batch.Set(appliedKey, encodeSeq(changes.Seq), nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	for _, p := range changes.Pools {
		s.pools.Add(p.Address, p)
	}
	for _, a := range changes.Accounts {
		s.accounts.Add(a.Address, a)
	}
	s.logger.Debug("ledger changes persisted",
		zap.Int("pools", len(changes.Pools)),
		zap.Int("mints", len(changes.Mints)),
		zap.Int("accounts", len(changes.Accounts)),
		zap.Uint64("seq", changes.Seq),
	)
	return nil
}

// Load reads the full ledger state.
func (s *Store) Load(_ context.Context) (ledger.State, error) {
	if s.db == nil {
		return ledger.State{}, ErrClosed
	}
	var state ledger.State
	if err := scan(s.db, poolPrefix, func(p model.Pool) { state.Pools = append(state.Pools, p) }); err != nil {
		return ledger.State{}, fmt.Errorf("load pools: %w", err)
	}
	if err := scan(s.db, mintPrefix, func(m model.Mint) { state.Mints = append(state.Mints, m) }); err != nil {
		return ledger.State{}, fmt.Errorf("load mints: %w", err)
	}
	if err := scan(s.db, accountPrefix, func(a model.TokenAccount) { state.Accounts = append(state.Accounts, a) }); err != nil {
		return ledger.State{}, fmt.Errorf("load accounts: %w", err)
	}
	applied, err := s.AppliedSeq()
	if err != nil {
		return ledger.State{}, err
	}
	state.AppliedSeq = applied
	for _, p := range state.Pools {
		s.pools.Add(p.Address, p)
	}
	return state, nil
}

// AppliedSeq returns the last instruction sequence number stored by Commit,
// zero if none.
func (s *Store) AppliedSeq() (uint64, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	return readSeq(s.db, appliedKey)
}

// Pool returns a persisted pool, served from the cache when possible.
func (s *Store) Pool(addr address.PublicKey) (model.Pool, bool, error) {
	return cached(s, s.pools, poolPrefix, addr)
}

// TokenAccount returns a persisted token account, served from the cache
// when possible.
func (s *Store) TokenAccount(addr address.PublicKey) (model.TokenAccount, bool, error) {
	return cached(s, s.accounts, accountPrefix, addr)
}

// Mint returns a persisted mint.
func (s *Store) Mint(addr address.PublicKey) (model.Mint, bool, error) {
	if s.db == nil {
		return model.Mint{}, false, ErrClosed
	}
	var m model.Mint
	if err := getJSON(s.db, key(mintPrefix, addr), &m); err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Mint{}, false, nil
		}
		return model.Mint{}, false, err
	}
	return m, true, nil
}

func cached[T any](s *Store, cache *lru.Cache[address.PublicKey, T], prefix []byte, addr address.PublicKey) (T, bool, error) {
	var v T
	if c, ok := cache.Get(addr); ok {
		return c, true, nil
	}
	if s.db == nil {
		return v, false, ErrClosed
	}
	if err := getJSON(s.db, key(prefix, addr), &v); err != nil {
		if errors.Is(err, ErrNotFound) {
			return v, false, nil
		}
		return v, false, err
	}
	cache.Add(addr, v)
	return v, true, nil
}

// NextSeq increments and returns the journal sequence counter.
func (s *Store) NextSeq() (uint64, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	seq, err := readSeq(s.db, seqKey)
	if err != nil {
		return 0, err
	}
	seq++
	if err := s.db.Set(seqKey, encodeSeq(seq), pebble.Sync); err != nil {
		return 0, fmt.Errorf("write sequence: %w", err)
	}
	return seq, nil
}

func readSeq(db *pebble.DB, k []byte) (uint64, error) {
	val, closer, err := db.Get(k)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read %s: %w", k, err)
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, fmt.Errorf("read %s: bad length %d", k, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

func encodeSeq(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}

func key(prefix []byte, addr address.PublicKey) []byte {
	out := make([]byte, 0, len(prefix)+address.KeyLength)
	out = append(out, prefix...)
	return append(out, addr[:]...)
}

func setJSON(batch *pebble.Batch, k []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", k[:len(k)-address.KeyLength], err)
	}
	return batch.Set(k, data, nil)
}

func getJSON(db *pebble.DB, k []byte, v any) error {
	val, closer, err := db.Get(k)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	defer closer.Close()
	return json.Unmarshal(val, v)
}

// upperBound returns the smallest key greater than every key with prefix.
func upperBound(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	end[len(end)-1]++
	return end
}

func scan[T any](db *pebble.DB, prefix []byte, fn func(T)) error {
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var v T
		if err := json.Unmarshal(iter.Value(), &v); err != nil {
			return fmt.Errorf("decode %x: %w", iter.Key(), err)
		}
		fn(v)
	}
	return iter.Error()
}
