package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammLedger/internal/model"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for the journal, pools and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// PutJournalBatch inserts journal records, ignoring sequence numbers already stored.
func (s *Store) PutJournalBatch(ctx context.Context, records []model.JournalRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		var vaultX, vaultY, lpSupply *string
		if r.State != nil {
			vaultX, vaultY, lpSupply = numeric(r.State.VaultX), numeric(r.State.VaultY), numeric(r.State.LPSupply)
		}
		amountIn, amountOut, fee, amountX, amountY := journalAmounts(r)
		batch.Queue(`
			INSERT INTO journal (
				seq, kind, pool_address, user_address, ts, amount_in, amount_out, fee,
				amount_x, amount_y, vault_x, vault_y, lp_supply, error_code, error, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now())
			ON CONFLICT (seq) DO NOTHING
		`,
			int64(r.Seq),
			r.Kind,
			r.Pool.String(),
			r.User.String(),
			int64(r.Timestamp),
			amountIn,
			amountOut,
			fee,
			amountX,
			amountY,
			vaultX,
			vaultY,
			lpSupply,
			int64(r.ErrorCode),
			r.Error,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPools inserts or updates pool configuration.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		var authority *string
		if pool.Authority != nil {
			a := pool.Authority.String()
			authority = &a
		}
		batch.Queue(`
			INSERT INTO pools (
				pool_address, seed, mint_x, mint_y, mint_lp, fee_bps, authority, locked, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				fee_bps = EXCLUDED.fee_bps,
				authority = EXCLUDED.authority,
				locked = EXCLUDED.locked,
				updated_at = now()
		`,
			pool.Address.String(),
			numericSeed(pool.Seed),
			pool.MintX.String(),
			pool.MintY.String(),
			pool.MintLP.String(),
			int32(pool.FeeBps),
			authority,
			pool.Locked,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, deposit_count, withdraw_count,
				volume_in_x, volume_in_y, volume_out_x, volume_out_y, fee_x, fee_y,
				vault_x, vault_y, lp_supply, fee_rate_x, fee_rate_y, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now(),now())
			ON CONFLICT (pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				deposit_count = EXCLUDED.deposit_count,
				withdraw_count = EXCLUDED.withdraw_count,
				volume_in_x = EXCLUDED.volume_in_x,
				volume_in_y = EXCLUDED.volume_in_y,
				volume_out_x = EXCLUDED.volume_out_x,
				volume_out_y = EXCLUDED.volume_out_y,
				fee_x = EXCLUDED.fee_x,
				fee_y = EXCLUDED.fee_y,
				vault_x = EXCLUDED.vault_x,
				vault_y = EXCLUDED.vault_y,
				lp_supply = EXCLUDED.lp_supply,
				fee_rate_x = EXCLUDED.fee_rate_x,
				fee_rate_y = EXCLUDED.fee_rate_y,
				updated_at = now()
		`,
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.DepositCount),
			int64(m.WithdrawCount),
			m.VolumeInX,
			m.VolumeInY,
			m.VolumeOutX,
			m.VolumeOutY,
			m.FeeX,
			m.FeeY,
			m.VaultX,
			m.VaultY,
			m.LPSupply,
			m.FeeRateX,
			m.FeeRateY,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var last int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed FROM job_state WHERE name=$1`, name)
	if err := row.Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(last), true, nil
}

// SaveState upserts last_processed for a name.
func (s *Store) SaveState(ctx context.Context, name string, last uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_state (name, last_processed, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed = EXCLUDED.last_processed, updated_at = now()
	`, name, int64(last))
	return err
}
