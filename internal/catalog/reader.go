// Package catalog reads the synced market catalog out of Postgres.
package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"og-mm-bot/internal/config"
)

type Reader struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.DatabaseConfig) (*Reader, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Reader{pool: pool}, nil
}

func (r *Reader) Close() {
	r.pool.Close()
}

const listEligibleQuery = `
SELECT id, condition_id, question, clob_token_ids, outcome_prices,
       COALESCE(onchain_market_id, ''), volume
FROM markets
WHERE active AND NOT closed AND accepting_orders
  AND cardinality(clob_token_ids) > 0
ORDER BY volume DESC
LIMIT $1`

// ListEligibleMarkets returns the top markets by volume that are active,
// not closed, accepting orders and carry venue token ids.
func (r *Reader) ListEligibleMarkets(ctx context.Context, limit int) ([]Market, error) {
	rows, err := r.pool.Query(ctx, listEligibleQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("list eligible markets: %w", err)
	}
	defer rows.Close()

	var markets []Market
	for rows.Next() {
		m := Market{Active: true, AcceptingOrders: true}
		if err := rows.Scan(
			&m.ID,
			&m.ConditionID,
			&m.Question,
			&m.ClobTokenIDs,
			&m.OutcomePrices,
			&m.OnchainMarketID,
			&m.Volume,
		); err != nil {
			return nil, fmt.Errorf("scan market row: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market rows: %w", err)
	}
	return markets, nil
}
