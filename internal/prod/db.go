package prod

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

type Config struct {
	ConnString string
}

// DB is the authoritative production store. Its schema is owned by the
// production system; this service only reads tracked device rows and writes
// derived status text back.
type DB struct {
	pool *pgxpool.Pool
}

func Init(ctx context.Context, cfg Config) (*DB, error) {
	pool, err := pgxpool.Connect(ctx, cfg.ConnString)
	if err != nil {
		return nil, err
	}
	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}
