package configs

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

// PostgresCCS answers CCS lookups from a Postgres table, grounded on the
// teacher's pgxpool-backed storage layer (storage/postgres.go). The table
// is a flat path->value map:
//
//	CREATE TABLE gulm_ccs (path TEXT PRIMARY KEY, value TEXT NOT NULL)
type PostgresCCS struct {
	ctx  context.Context
	pool *pgxpool.Pool
}

// DialPostgresCCS connects to dsn and prepares repeated single-row lookups
// against gulm_ccs. It never creates the table: CCS is a read-only
// boundary from gulmd's perspective.
func DialPostgresCCS(ctx context.Context, dsn string) (*PostgresCCS, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresCCS{ctx: ctx, pool: pool}, nil
}

func (c *PostgresCCS) Get(path string) (string, bool) {
	row := c.pool.QueryRow(c.ctx, "SELECT value FROM gulm_ccs WHERE path = $1", path)
	var value string
	if err := row.Scan(&value); err != nil {
		return "", false
	}
	return value, true
}

// Close releases the pool's connections.
func (c *PostgresCCS) Close() {
	c.pool.Close()
}
