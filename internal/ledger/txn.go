package ledger

import (
	"sort"

	gmath "github.com/ethereum/go-ethereum/common/math"

	"ammLedger/internal/address"
	"ammLedger/internal/model"
)

// Txn stages reads and writes against a Ledger. Reads see the transaction's
// own writes first, then committed state.
type Txn struct {
	ledger   *Ledger
	reads    map[address.PublicKey]uint64
	pools    map[address.PublicKey]model.Pool
	mints    map[address.PublicKey]model.Mint
	accounts map[address.PublicKey]model.TokenAccount
}

func newTxn(l *Ledger) *Txn {
	return &Txn{
		ledger:   l,
		reads:    make(map[address.PublicKey]uint64),
		pools:    make(map[address.PublicKey]model.Pool),
		mints:    make(map[address.PublicKey]model.Mint),
		accounts: make(map[address.PublicKey]model.TokenAccount),
	}
}

// ProgramID returns the ledger's program id.
func (t *Txn) ProgramID() address.PublicKey {
	return t.ledger.programID
}

func (t *Txn) Pool(key address.PublicKey) (model.Pool, error) {
	if p, ok := t.pools[key]; ok {
		return p, nil
	}
	l := t.ledger
	if err := l.faultPool(key); err != nil {
		return model.Pool{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	t.observe(key)
	p, ok := l.pools[key]
	if !ok {
		return model.Pool{}, ErrPoolNotFound
	}
	return p, nil
}

func (t *Txn) Mint(key address.PublicKey) (model.Mint, error) {
	if m, ok := t.mints[key]; ok {
		return m, nil
	}
	l := t.ledger
	if err := l.faultMint(key); err != nil {
		return model.Mint{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	t.observe(key)
	m, ok := l.mints[key]
	if !ok {
		return model.Mint{}, ErrMintNotFound
	}
	return m, nil
}

func (t *Txn) TokenAccount(key address.PublicKey) (model.TokenAccount, error) {
	if a, ok := t.accounts[key]; ok {
		return a, nil
	}
	l := t.ledger
	if err := l.faultAccount(key); err != nil {
		return model.TokenAccount{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	t.observe(key)
	a, ok := l.accounts[key]
	if !ok {
		return model.TokenAccount{}, ErrAccountNotFound
	}
	return a, nil
}

// PoolState reads a pool with its vault balances and LP supply.
func (t *Txn) PoolState(key address.PublicKey) (model.PoolState, error) {
	pool, err := t.Pool(key)
	if err != nil {
		return model.PoolState{}, err
	}
	vx, err := t.TokenAccount(pool.VaultX())
	if err != nil {
		return model.PoolState{}, err
	}
	vy, err := t.TokenAccount(pool.VaultY())
	if err != nil {
		return model.PoolState{}, err
	}
	lp, err := t.Mint(pool.MintLP)
	if err != nil {
		return model.PoolState{}, err
	}
	return model.PoolState{Pool: pool, VaultX: vx.Amount, VaultY: vy.Amount, LPSupply: lp.Supply}, nil
}

// PutPool stages a pool record.
func (t *Txn) PutPool(pool model.Pool) {
	t.pools[pool.Address] = pool
}

// CreateMint stages a new mint with zero supply.
func (t *Txn) CreateMint(key, authority address.PublicKey, decimals uint8) (model.Mint, error) {
	if ok, err := t.exists(key); err != nil {
		return model.Mint{}, err
	} else if ok {
		return model.Mint{}, ErrAccountExists
	}
	m := model.Mint{Address: key, Authority: authority, Decimals: decimals}
	t.mints[key] = m
	return m, nil
}

// CreateAssociatedAccount creates the associated account of (owner, mint)
// and fails if it already exists.
func (t *Txn) CreateAssociatedAccount(owner, mint address.PublicKey) (address.PublicKey, error) {
	if _, err := t.Mint(mint); err != nil {
		return address.PublicKey{}, err
	}
	key := address.AssociatedTokenAddress(owner, mint)
	if ok, err := t.exists(key); err != nil {
		return address.PublicKey{}, err
	} else if ok {
		return address.PublicKey{}, ErrAccountExists
	}
	t.accounts[key] = model.TokenAccount{Address: key, Mint: mint, Owner: owner}
	return key, nil
}

// EnsureAssociatedAccount returns the associated account of (owner, mint),
// creating it with a zero balance if absent. An existing account is left untouched.
func (t *Txn) EnsureAssociatedAccount(owner, mint address.PublicKey) (address.PublicKey, error) {
	key := address.AssociatedTokenAddress(owner, mint)
	acct, err := t.TokenAccount(key)
	if err == nil {
		if acct.Mint != mint {
			return address.PublicKey{}, ErrMintMismatch
		}
		return key, nil
	}
	if err != ErrAccountNotFound {
		return address.PublicKey{}, err
	}
	return t.CreateAssociatedAccount(owner, mint)
}

// Transfer moves amount between two accounts of the same mint. signer must own from.
func (t *Txn) Transfer(from, to address.PublicKey, amount uint64, signer Signer) error {
	src, err := t.TokenAccount(from)
	if err != nil {
		return err
	}
	if !signer.authorizes(src.Owner) {
		return ErrUnauthorized
	}
	dst, err := t.TokenAccount(to)
	if err != nil {
		return err
	}
	if src.Mint != dst.Mint {
		return ErrMintMismatch
	}

	debited, underflow := gmath.SafeSub(src.Amount, amount)
	if underflow {
		return ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	credited, overflow := gmath.SafeAdd(dst.Amount, amount)
	if overflow {
		return ErrOverflow
	}

	src.Amount = debited
	dst.Amount = credited
	t.accounts[from] = src
	t.accounts[to] = dst
	return nil
}

// Burn destroys amount from account and reduces the mint supply. signer must own account.
func (t *Txn) Burn(account, mint address.PublicKey, amount uint64, signer Signer) error {
	acct, err := t.TokenAccount(account)
	if err != nil {
		return err
	}
	if acct.Mint != mint {
		return ErrMintMismatch
	}
	if !signer.authorizes(acct.Owner) {
		return ErrUnauthorized
	}
	m, err := t.Mint(mint)
	if err != nil {
		return err
	}

	balance, underflow := gmath.SafeSub(acct.Amount, amount)
	if underflow {
		return ErrInsufficientFunds
	}
	supply, underflow := gmath.SafeSub(m.Supply, amount)
	if underflow {
		return ErrInsufficientFunds
	}

	acct.Amount = balance
	m.Supply = supply
	t.accounts[account] = acct
	t.mints[mint] = m
	return nil
}

// MintTo creates amount new tokens in account. signer must be the mint authority.
func (t *Txn) MintTo(mint, account address.PublicKey, amount uint64, signer Signer) error {
	m, err := t.Mint(mint)
	if err != nil {
		return err
	}
	if !signer.authorizes(m.Authority) {
		return ErrUnauthorized
	}
	acct, err := t.TokenAccount(account)
	if err != nil {
		return err
	}
	if acct.Mint != mint {
		return ErrMintMismatch
	}

	supply, overflow := gmath.SafeAdd(m.Supply, amount)
	if overflow {
		return ErrOverflow
	}
	balance, overflow := gmath.SafeAdd(acct.Amount, amount)
	if overflow {
		return ErrOverflow
	}

	m.Supply = supply
	acct.Amount = balance
	t.mints[mint] = m
	t.accounts[account] = acct
	return nil
}

// PoolSigner returns the delegated authority of pool after checking that its
// seed and bump derive the pool's address under this ledger's program id,
// and that the LP bump derives its LP mint from that address.
func (t *Txn) PoolSigner(pool model.Pool) (Signer, error) {
	derived, err := address.ConfigAddress(t.ledger.programID, pool.Seed, pool.ConfigBump)
	if err != nil || derived != pool.Address {
		return Signer{}, ErrInvalidPoolSigner
	}
	lpMint, err := address.LPMintAddress(t.ledger.programID, derived, pool.LPBump)
	if err != nil || lpMint != pool.MintLP {
		return Signer{}, ErrInvalidPoolSigner
	}
	return Signer{key: derived, valid: true}, nil
}

func (t *Txn) observe(key address.PublicKey) {
	if _, ok := t.reads[key]; !ok {
		t.reads[key] = t.ledger.versions[key]
	}
}

func (t *Txn) exists(key address.PublicKey) (bool, error) {
	if _, ok := t.pools[key]; ok {
		return true, nil
	}
	if _, ok := t.mints[key]; ok {
		return true, nil
	}
	if _, ok := t.accounts[key]; ok {
		return true, nil
	}
	l := t.ledger
	for _, load := range []func(address.PublicKey) error{l.faultPool, l.faultMint, l.faultAccount} {
		if err := load(key); err != nil {
			return false, err
		}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	t.observe(key)
	if _, ok := l.pools[key]; ok {
		return true, nil
	}
	if _, ok := l.mints[key]; ok {
		return true, nil
	}
	_, ok := l.accounts[key]
	return ok, nil
}

func (t *Txn) changeSet() ChangeSet {
	var cs ChangeSet
	for _, p := range t.pools {
		cs.Pools = append(cs.Pools, p)
	}
	for _, m := range t.mints {
		cs.Mints = append(cs.Mints, m)
	}
	for _, a := range t.accounts {
		cs.Accounts = append(cs.Accounts, a)
	}
	sort.Slice(cs.Pools, func(i, j int) bool { return less(cs.Pools[i].Address, cs.Pools[j].Address) })
	sort.Slice(cs.Mints, func(i, j int) bool { return less(cs.Mints[i].Address, cs.Mints[j].Address) })
	sort.Slice(cs.Accounts, func(i, j int) bool { return less(cs.Accounts[i].Address, cs.Accounts[j].Address) })
	return cs
}
