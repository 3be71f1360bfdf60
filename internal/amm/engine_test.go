package amm

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammLedger/internal/address"
	"ammLedger/internal/ledger"
	"ammLedger/internal/model"
	"ammLedger/internal/observability"
)

type fixture struct {
	engine *Engine
	ledger *ledger.Ledger
	mintX  address.PublicKey
	mintY  address.PublicKey
	admin  address.PublicKey
	lp     address.PublicKey
	trader address.PublicKey
	pool   address.PublicKey
}

func newKey(t *testing.T) address.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	key, err := address.FromBytes(pub)
	require.NoError(t, err)
	return key
}

// newFixture creates mints X and Y, funds lp and trader, and initializes a pool
// with the given fee. admin is the pool authority and the mint authority.
func newFixture(t *testing.T, feeBps uint16) *fixture {
	t.Helper()
	l := ledger.New(address.DefaultProgramID, nil, nil)
	f := &fixture{
		engine: NewEngine(l, observability.NewMetrics("test"), nil),
		ledger: l,
		mintX:  address.FromLabel("mint-x"),
		mintY:  address.FromLabel("mint-y"),
		admin:  newKey(t),
		lp:     newKey(t),
		trader: newKey(t),
	}

	adminSigner, err := ledger.UserSigner(f.admin)
	require.NoError(t, err)
	err = l.Execute(context.Background(), f.admin, func(tx *ledger.Txn) error {
		for _, mint := range []address.PublicKey{f.mintX, f.mintY} {
			if _, err := tx.CreateMint(mint, f.admin, 6); err != nil {
				return err
			}
			for _, owner := range []address.PublicKey{f.lp, f.trader} {
				acct, err := tx.EnsureAssociatedAccount(owner, mint)
				if err != nil {
					return err
				}
				if err := tx.MintTo(mint, acct, 1_000_000, adminSigner); err != nil {
					return err
				}
			}
		}
		return nil
	})
	require.NoError(t, err)

	admin := f.admin
	state, err := f.engine.Initialize(context.Background(), InitializeRequest{
		Initializer: f.admin,
		Seed:        7,
		FeeBps:      feeBps,
		Authority:   &admin,
		MintX:       f.mintX,
		MintY:       f.mintY,
	})
	require.NoError(t, err)
	f.pool = state.Pool.Address
	return f
}

func (f *fixture) seed(t *testing.T, lpAmount, x, y uint64) {
	t.Helper()
	_, err := f.engine.Deposit(context.Background(), DepositRequest{Pool: f.pool, User: f.lp, Amount: lpAmount, MaxX: x, MaxY: y})
	require.NoError(t, err)
}

func (f *fixture) state(t *testing.T) model.PoolState {
	t.Helper()
	state, err := f.ledger.PoolState(f.pool)
	require.NoError(t, err)
	return state
}

func TestInitializeDerivesAddresses(t *testing.T) {
	f := newFixture(t, 30)
	state := f.state(t)

	config, bump, err := address.FindConfigAddress(address.DefaultProgramID, 7)
	require.NoError(t, err)
	assert.Equal(t, config, state.Pool.Address)
	assert.Equal(t, bump, state.Pool.ConfigBump)
	assert.False(t, state.Pool.Address.IsOnCurve())

	lpMint, err := address.LPMintAddress(address.DefaultProgramID, config, state.Pool.LPBump)
	require.NoError(t, err)
	assert.Equal(t, lpMint, state.Pool.MintLP)

	mint, err := f.ledger.Mint(lpMint)
	require.NoError(t, err)
	assert.Equal(t, config, mint.Authority)
	assert.Equal(t, uint8(LPDecimals), mint.Decimals)

	vault, err := f.ledger.TokenAccount(state.Pool.VaultX())
	require.NoError(t, err)
	assert.Equal(t, config, vault.Owner)
	assert.Zero(t, state.VaultX)
	assert.Zero(t, state.LPSupply)
}

func TestInitializeRejections(t *testing.T) {
	f := newFixture(t, 30)
	cases := []struct {
		name string
		req  InitializeRequest
		want *Error
	}{
		{name: "fee above 100%", req: InitializeRequest{Initializer: f.admin, Seed: 8, FeeBps: 10001, MintX: f.mintX, MintY: f.mintY}, want: ErrInvalidFee},
		{name: "identical mints", req: InitializeRequest{Initializer: f.admin, Seed: 8, FeeBps: 30, MintX: f.mintX, MintY: f.mintX}, want: ErrIdenticalMints},
		{name: "seed in use", req: InitializeRequest{Initializer: f.admin, Seed: 7, FeeBps: 30, MintX: f.mintX, MintY: f.mintY}, want: ErrPoolExists},
		{name: "off-curve initializer", req: InitializeRequest{Initializer: f.pool, Seed: 8, FeeBps: 30, MintX: f.mintX, MintY: f.mintY}, want: ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Initialize(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestFirstDepositUsesMaxAmounts(t *testing.T) {
	f := newFixture(t, 30)
	f.seed(t, 1000, 1000, 2000)

	state := f.state(t)
	assert.Equal(t, uint64(1000), state.VaultX)
	assert.Equal(t, uint64(2000), state.VaultY)
	assert.Equal(t, uint64(1000), state.LPSupply)
	assert.Equal(t, uint64(1000), f.ledger.Balance(f.lp, state.Pool.MintLP))
	assert.Equal(t, uint64(999_000), f.ledger.Balance(f.lp, f.mintX))
}

func TestDepositProRata(t *testing.T) {
	f := newFixture(t, 30)
	f.seed(t, 1000, 1000, 2000)

	res, err := f.engine.Deposit(context.Background(), DepositRequest{Pool: f.pool, User: f.trader, Amount: 10, MaxX: 10, MaxY: 20})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), res.AmountX)
	assert.Equal(t, uint64(20), res.AmountY)
	assert.Equal(t, uint64(1010), res.State.LPSupply)

	_, err = f.engine.Deposit(context.Background(), DepositRequest{Pool: f.pool, User: f.trader, Amount: 10, MaxX: 10, MaxY: 19})
	assert.ErrorIs(t, err, ErrSlippageExceeded)
}

func TestSwapScenario(t *testing.T) {
	f := newFixture(t, 100)
	f.seed(t, 1000, 1000, 1000)
	before := f.state(t)

	res, err := f.engine.Swap(context.Background(), SwapRequest{Pool: f.pool, User: f.trader, IsX: true, AmountIn: 100, MinAmountOut: 90})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Fee)
	assert.Equal(t, uint64(90), res.AmountOut)

	after := f.state(t)
	assert.Equal(t, before.VaultX+100, after.VaultX)
	assert.Equal(t, before.VaultY-90, after.VaultY)
	assert.Equal(t, before.LPSupply, after.LPSupply)
	assert.Equal(t, before.Pool, after.Pool)
	assert.Equal(t, uint64(1_000_000-100), f.ledger.Balance(f.trader, f.mintX))
	assert.Equal(t, uint64(1_000_000+90), f.ledger.Balance(f.trader, f.mintY))
	assert.False(t, Invariant(after.VaultX, after.VaultY).Lt(Invariant(before.VaultX, before.VaultY)))
	assert.Equal(t, after, res.State)
}

func TestSwapYForX(t *testing.T) {
	f := newFixture(t, 0)
	f.seed(t, 1000, 2000, 5000)

	res, err := f.engine.Swap(context.Background(), SwapRequest{Pool: f.pool, User: f.trader, IsX: false, AmountIn: 1000})
	require.NoError(t, err)
	assert.Equal(t, uint64(334), res.AmountOut)

	after := f.state(t)
	assert.Equal(t, uint64(6000), after.VaultY)
	assert.Equal(t, uint64(2000-334), after.VaultX)
}

func TestSwapCreatesOutputAccount(t *testing.T) {
	f := newFixture(t, 30)
	f.seed(t, 1000, 1000, 1000)

	// a user holding only X receives Y in a freshly provisioned account
	fresh := newKey(t)
	adminSigner, err := ledger.UserSigner(f.admin)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Execute(context.Background(), f.mintX, func(tx *ledger.Txn) error {
		acct, err := tx.EnsureAssociatedAccount(fresh, f.mintX)
		if err != nil {
			return err
		}
		return tx.MintTo(f.mintX, acct, 50, adminSigner)
	}))
	_, err = f.ledger.TokenAccount(address.AssociatedTokenAddress(fresh, f.mintY))
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)

	res, err := f.engine.Swap(context.Background(), SwapRequest{Pool: f.pool, User: fresh, IsX: true, AmountIn: 50})
	require.NoError(t, err)
	assert.Equal(t, res.AmountOut, f.ledger.Balance(fresh, f.mintY))
}

func TestSwapRejectionsChangeNothing(t *testing.T) {
	f := newFixture(t, 100)
	f.seed(t, 1000, 1000, 1000)
	snapshot := f.ledger.Snapshot()

	cases := []struct {
		name string
		req  SwapRequest
		want *Error
	}{
		{name: "zero input", req: SwapRequest{Pool: f.pool, User: f.trader, IsX: true, AmountIn: 0}, want: ErrInvalidAmount},
		{name: "slippage floor", req: SwapRequest{Pool: f.pool, User: f.trader, IsX: true, AmountIn: 100, MinAmountOut: 91}, want: ErrSlippageExceeded},
		{name: "input above balance", req: SwapRequest{Pool: f.pool, User: f.trader, IsX: true, AmountIn: 2_000_000}, want: ErrInsufficientBalance},
		{name: "unknown pool", req: SwapRequest{Pool: address.FromLabel("nope"), User: f.trader, IsX: true, AmountIn: 1}, want: ErrPoolNotFound},
		{name: "pool address cannot sign", req: SwapRequest{Pool: f.pool, User: f.pool, IsX: true, AmountIn: 1}, want: ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Swap(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, snapshot, f.ledger.Snapshot())
		})
	}
}

func TestLockedPool(t *testing.T) {
	f := newFixture(t, 100)
	f.seed(t, 1000, 1000, 1000)

	_, err := f.engine.SetLocked(context.Background(), f.pool, f.admin, true)
	require.NoError(t, err)
	snapshot := f.ledger.Snapshot()

	_, err = f.engine.Swap(context.Background(), SwapRequest{Pool: f.pool, User: f.trader, IsX: true, AmountIn: 100})
	assert.ErrorIs(t, err, ErrPoolLocked)
	_, err = f.engine.Swap(context.Background(), SwapRequest{Pool: f.pool, User: f.trader, IsX: true, AmountIn: 0})
	assert.ErrorIs(t, err, ErrPoolLocked, "locked is checked before the amount")
	_, err = f.engine.Deposit(context.Background(), DepositRequest{Pool: f.pool, User: f.trader, Amount: 1, MaxX: 10, MaxY: 10})
	assert.ErrorIs(t, err, ErrPoolLocked)
	assert.Equal(t, snapshot, f.ledger.Snapshot())

	// withdraw ignores the lock
	_, err = f.engine.Withdraw(context.Background(), WithdrawRequest{Pool: f.pool, User: f.lp, Amount: 10})
	require.NoError(t, err)

	_, err = f.engine.SetLocked(context.Background(), f.pool, f.admin, false)
	require.NoError(t, err)
	_, err = f.engine.Swap(context.Background(), SwapRequest{Pool: f.pool, User: f.trader, IsX: true, AmountIn: 100})
	require.NoError(t, err)
}

func TestSetLockedRequiresAuthority(t *testing.T) {
	f := newFixture(t, 30)
	_, err := f.engine.SetLocked(context.Background(), f.pool, f.trader, true)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// a pool without an authority can never be locked
	state, err := f.engine.Initialize(context.Background(), InitializeRequest{Initializer: f.admin, Seed: 99, FeeBps: 30, MintX: f.mintX, MintY: f.mintY})
	require.NoError(t, err)
	_, err = f.engine.SetLocked(context.Background(), state.Pool.Address, f.admin, true)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestWithdrawScenario(t *testing.T) {
	f := newFixture(t, 30)
	f.seed(t, 1000, 1000, 2000)

	res, err := f.engine.Withdraw(context.Background(), WithdrawRequest{Pool: f.pool, User: f.lp, Amount: 50})
	require.NoError(t, err)
	assert.Equal(t, uint64(50), res.AmountX)
	assert.Equal(t, uint64(100), res.AmountY)

	after := f.state(t)
	assert.Equal(t, uint64(950), after.VaultX)
	assert.Equal(t, uint64(1900), after.VaultY)
	assert.Equal(t, uint64(950), after.LPSupply)
	assert.Equal(t, uint64(950), f.ledger.Balance(f.lp, after.Pool.MintLP))
	assert.Equal(t, uint64(1_000_000-1000+50), f.ledger.Balance(f.lp, f.mintX))
	assert.Equal(t, uint64(1_000_000-2000+100), f.ledger.Balance(f.lp, f.mintY))
}

func TestWithdrawProRataExactness(t *testing.T) {
	f := newFixture(t, 100)
	f.seed(t, 1000, 1000, 1000)
	for i := 0; i < 5; i++ {
		_, err := f.engine.Swap(context.Background(), SwapRequest{Pool: f.pool, User: f.trader, IsX: i%2 == 0, AmountIn: 37})
		require.NoError(t, err)
	}
	before := f.state(t)

	res, err := f.engine.Withdraw(context.Background(), WithdrawRequest{Pool: f.pool, User: f.lp, Amount: 333})
	require.NoError(t, err)
	assert.Equal(t, 333*before.VaultX/before.LPSupply, res.AmountX)
	assert.Equal(t, 333*before.VaultY/before.LPSupply, res.AmountY)
}

func TestWithdrawRejectionsChangeNothing(t *testing.T) {
	f := newFixture(t, 30)
	f.seed(t, 1000, 1000, 2000)
	snapshot := f.ledger.Snapshot()

	cases := []struct {
		name string
		req  WithdrawRequest
		want *Error
	}{
		{name: "zero amount", req: WithdrawRequest{Pool: f.pool, User: f.lp, Amount: 0}, want: ErrZeroBalance},
		{name: "above lp balance", req: WithdrawRequest{Pool: f.pool, User: f.lp, Amount: 1001}, want: ErrInsufficientBalance},
		{name: "no lp account", req: WithdrawRequest{Pool: f.pool, User: f.trader, Amount: 1}, want: ErrInsufficientBalance},
		{name: "slippage on x", req: WithdrawRequest{Pool: f.pool, User: f.lp, Amount: 50, MinX: 51}, want: ErrSlippageExceeded},
		{name: "slippage on y", req: WithdrawRequest{Pool: f.pool, User: f.lp, Amount: 50, MinY: 101}, want: ErrSlippageExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Withdraw(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, snapshot, f.ledger.Snapshot())
		})
	}
}

func TestWithdrawZeroSupply(t *testing.T) {
	f := newFixture(t, 30)
	f.seed(t, 1000, 1000, 2000)

	// a host whose LP supply disagrees with the holder's balance
	snap := f.ledger.Snapshot()
	lpMint := f.state(t).Pool.MintLP
	for i := range snap.Mints {
		if snap.Mints[i].Address == lpMint {
			snap.Mints[i].Supply = 0
		}
	}
	f.ledger.Load(snap)

	_, err := f.engine.Withdraw(context.Background(), WithdrawRequest{Pool: f.pool, User: f.lp, Amount: 50})
	assert.ErrorIs(t, err, ErrUnderflow)
	assert.Equal(t, snap, f.ledger.Snapshot())
}

func TestApplyJournalsAndPublishes(t *testing.T) {
	f := newFixture(t, 100)
	f.seed(t, 1000, 1000, 1000)

	ch := make(chan model.JournalRecord, 2)
	sub := f.engine.Subscribe(ch)
	defer sub.Unsubscribe()

	ok := f.engine.Apply(context.Background(), model.Instruction{Seq: 1, Kind: model.KindSwap, Pool: f.pool, User: f.trader, IsX: true, Amount: 100, Timestamp: 1700000000})
	require.True(t, ok.Succeeded())
	require.NotNil(t, ok.Swap)
	assert.Equal(t, uint64(90), ok.Swap.AmountOut)
	assert.Equal(t, uint64(1700000000), ok.Timestamp)
	require.NotNil(t, ok.State)
	assert.Equal(t, uint64(1100), ok.State.VaultX)

	bad := f.engine.Apply(context.Background(), model.Instruction{Seq: 2, Kind: model.KindSwap, Pool: f.pool, User: f.trader, IsX: true, Amount: 0})
	assert.False(t, bad.Succeeded())
	assert.Equal(t, ErrInvalidAmount.Code, bad.ErrorCode)
	assert.Equal(t, "InvalidAmount", bad.Error)
	assert.Nil(t, bad.State)

	assert.Equal(t, ok, <-ch)
	assert.Equal(t, bad, <-ch)
}

func TestApplyInitializeAndUnknownKind(t *testing.T) {
	f := newFixture(t, 30)

	rec := f.engine.Apply(context.Background(), model.Instruction{Kind: model.KindInitialize, User: f.admin, Seed: 11, FeeBps: 25, MintX: f.mintX, MintY: f.mintY})
	require.True(t, rec.Succeeded(), rec.Error)
	want, err := f.engine.PoolAddress(11)
	require.NoError(t, err)
	assert.Equal(t, want, rec.Pool)
	assert.Equal(t, uint16(25), rec.Initialize.FeeBps)

	rec = f.engine.Apply(context.Background(), model.Instruction{Kind: "burn-everything"})
	assert.False(t, rec.Succeeded())
	assert.Zero(t, rec.ErrorCode)
}

func TestApplyPassesLimits(t *testing.T) {
	f := newFixture(t, 100)
	f.seed(t, 1000, 1000, 1000)

	deposit := model.Instruction{Kind: model.KindDeposit, Pool: f.pool, User: f.lp, Amount: 100, LimitA: 100, LimitB: 100}
	rec := f.engine.Apply(context.Background(), deposit)
	require.True(t, rec.Succeeded(), rec.Error)
	assert.Equal(t, uint64(100), rec.Deposit.MaxX)
	assert.Equal(t, uint64(100), rec.Deposit.AmountX)

	// deposit limits are ceilings
	deposit.LimitA = 99
	rec = f.engine.Apply(context.Background(), deposit)
	assert.Equal(t, ErrSlippageExceeded.Code, rec.ErrorCode)

	// withdraw limits are floors
	withdraw := model.Instruction{Kind: model.KindWithdraw, Pool: f.pool, User: f.lp, Amount: 100, LimitA: 101}
	rec = f.engine.Apply(context.Background(), withdraw)
	assert.Equal(t, ErrSlippageExceeded.Code, rec.ErrorCode)
	withdraw.LimitA = 100
	rec = f.engine.Apply(context.Background(), withdraw)
	require.True(t, rec.Succeeded(), rec.Error)
	assert.Equal(t, uint64(100), rec.Withdraw.MinX)

	swap := model.Instruction{Kind: model.KindSwap, Pool: f.pool, User: f.trader, IsX: true, Amount: 100, LimitA: 1000}
	rec = f.engine.Apply(context.Background(), swap)
	assert.Equal(t, ErrSlippageExceeded.Code, rec.ErrorCode)
	assert.Equal(t, uint64(1000), rec.Swap.MinAmountOut)
}
