package amm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ammLedger/internal/address"
	"ammLedger/internal/ledger"
	"ammLedger/internal/model"
)

// InitializeRequest creates a pool for the pair (MintX, MintY). Authority, if
// set, may lock and unlock the pool.
type InitializeRequest struct {
	Initializer address.PublicKey
	Seed        uint64
	FeeBps      uint16
	Authority   *address.PublicKey
	MintX       address.PublicKey
	MintY       address.PublicKey
}

// Initialize derives the pool's config and LP mint addresses from Seed,
// creates the LP mint with the config as mint authority, and opens both vaults.
func (e *Engine) Initialize(ctx context.Context, req InitializeRequest) (model.PoolState, error) {
	start := time.Now()
	state, err := e.initialize(ctx, req)
	e.observe(model.KindInitialize, state.Pool.Address, req.Initializer, start, err,
		zap.Uint64("seed", req.Seed),
		zap.Uint16("fee_bps", req.FeeBps),
		zap.Stringer("mint_x", req.MintX),
		zap.Stringer("mint_y", req.MintY),
	)
	return state, err
}

func (e *Engine) initialize(ctx context.Context, req InitializeRequest) (model.PoolState, error) {
	if req.FeeBps > model.FeeDenominator {
		return model.PoolState{}, ErrInvalidFee
	}
	if req.MintX == req.MintY {
		return model.PoolState{}, ErrIdenticalMints
	}
	if _, err := ledger.UserSigner(req.Initializer); err != nil {
		return model.PoolState{}, ledgerError(err)
	}

	programID := e.ledger.ProgramID()
	config, configBump, err := address.FindConfigAddress(programID, req.Seed)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("derive config address: %w", err)
	}
	lpMint, lpBump, err := address.FindLPMintAddress(programID, config)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("derive lp mint address: %w", err)
	}

	pool := model.Pool{
		Address:    config,
		Seed:       req.Seed,
		Authority:  req.Authority,
		MintX:      req.MintX,
		MintY:      req.MintY,
		MintLP:     lpMint,
		FeeBps:     req.FeeBps,
		ConfigBump: configBump,
		LPBump:     lpBump,
	}

	var state model.PoolState
	err = e.ledger.Execute(ctx, config, func(tx *ledger.Txn) error {
		if _, err := tx.Pool(config); err == nil {
			return ErrPoolExists
		} else if !errors.Is(err, ledger.ErrPoolNotFound) {
			return err
		}
		if _, err := tx.CreateMint(lpMint, config, LPDecimals); err != nil {
			if errors.Is(err, ledger.ErrAccountExists) {
				return ErrPoolExists
			}
			return err
		}
		if _, err := tx.CreateAssociatedAccount(config, req.MintX); err != nil {
			return fmt.Errorf("open vault x: %w", err)
		}
		if _, err := tx.CreateAssociatedAccount(config, req.MintY); err != nil {
			return fmt.Errorf("open vault y: %w", err)
		}
		tx.PutPool(pool)

		state, err = tx.PoolState(config)
		return err
	})
	if err != nil {
		return model.PoolState{Pool: model.Pool{Address: config}}, err
	}
	return state, nil
}
