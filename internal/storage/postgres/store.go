package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolScout/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS discovered_pools (
	pool_id        TEXT PRIMARY KEY,
	asset0         TEXT NOT NULL,
	asset1         TEXT NOT NULL,
	fee            INTEGER NOT NULL,
	tick_spacing   INTEGER NOT NULL,
	hook           TEXT NOT NULL,
	sqrt_price_x96 NUMERIC NOT NULL,
	tick           INTEGER NOT NULL,
	block_number   BIGINT NOT NULL,
	tx_hash        TEXT NOT NULL,
	created_at_ms  BIGINT NOT NULL,
	inserted_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS pool_subscription_links (
	pool_id         TEXT NOT NULL REFERENCES discovered_pools (pool_id),
	subscription_id TEXT NOT NULL,
	variable_type   TEXT NOT NULL,
	linked_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pool_id, subscription_id)
);
CREATE TABLE IF NOT EXISTS indexer_state (
	name                 TEXT PRIMARY KEY,
	last_processed_block BIGINT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store persists matched pools and their subscription links.
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
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutMatches upserts each matched pool and inserts its links in one batch.
// Replayed matches leave existing rows untouched.
func (s *Store) PutMatches(ctx context.Context, matches []model.MatchResult) error {
	if len(matches) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range matches {
		p := m.Pool
		batch.Queue(`
			INSERT INTO discovered_pools (
				pool_id, asset0, asset1, fee, tick_spacing, hook, sqrt_price_x96, tick, block_number, tx_hash, created_at_ms
			) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11)
			ON CONFLICT (pool_id) DO NOTHING
		`,
			p.ID,
			p.Pair.Asset0,
			p.Pair.Asset1,
			p.Fee,
			p.TickSpacing,
			p.Hook,
			p.SqrtPriceX96,
			p.Tick,
			int64(p.BlockNumber),
			p.TxHash,
			p.CreatedAtMs,
		)
		for _, sub := range m.Subscriptions {
			batch.Queue(`
				INSERT INTO pool_subscription_links (pool_id, subscription_id, variable_type)
				VALUES ($1, $2, $3)
				ON CONFLICT (pool_id, subscription_id) DO NOTHING
			`, p.ID, sub.ID, sub.VariableType)
		}
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("store matches: %w", err)
		}
	}
	return nil
}

// LoadState returns the last processed block recorded under name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last processed block for name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}

// Checkpoint adapts the indexer_state table to the indexer's checkpoint interface.
type Checkpoint struct {
	Store *Store
	Name  string
}

func (c Checkpoint) Load(ctx context.Context) (uint64, bool, error) {
	return c.Store.LoadState(ctx, c.Name)
}

func (c Checkpoint) Save(ctx context.Context, block uint64) error {
	return c.Store.SaveState(ctx, c.Name, block)
}
