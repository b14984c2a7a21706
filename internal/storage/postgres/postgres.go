package postgres

import (
	"context"
	"fmt"

	"github.com/FranksOps/gleaner/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	topic TEXT NOT NULL,
	url TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	strategy TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS posts_topic_idx ON posts (topic);
CREATE INDEX IF NOT EXISTS posts_run_idx ON posts (run_id);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, row *storage.Row) error {
	query := `
	INSERT INTO posts (
		id, run_id, topic, url, title, content, strategy, language, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := b.pool.Exec(ctx, query,
		row.ID,
		row.RunID,
		row.Topic,
		row.Address,
		row.Title,
		row.Content,
		row.Strategy,
		row.Language,
		row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Row, error) {
	query := `SELECT id, run_id, topic, url, title, content, strategy, language, created_at FROM posts WHERE 1=1`
	args := []any{}
	paramCount := 1

	add := func(clause string, v any) {
		query += fmt.Sprintf(clause, paramCount)
		args = append(args, v)
		paramCount++
	}

	if filter.Topic != "" {
		add(` AND topic = $%d`, filter.Topic)
	}
	if filter.RunID != "" {
		add(` AND run_id = $%d`, filter.RunID)
	}
	if filter.Address != "" {
		add(` AND url = $%d`, filter.Address)
	}
	if filter.Since != nil {
		add(` AND created_at >= $%d`, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		add(` LIMIT $%d`, filter.Limit)
	}
	if filter.Offset > 0 {
		add(` OFFSET $%d`, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	var results []*storage.Row
	for rows.Next() {
		var r storage.Row
		err := rows.Scan(
			&r.ID, &r.RunID, &r.Topic, &r.Address, &r.Title,
			&r.Content, &r.Strategy, &r.Language, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
