package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dunamismax/pixelgate/internal/domain"
	_ "github.com/lib/pq"
)

const renditionSchemaSQL = `
CREATE TABLE IF NOT EXISTS renditions (
	variant_key TEXT PRIMARY KEY,
	source_key TEXT NOT NULL,
	operations TEXT NOT NULL,
	format TEXT NOT NULL,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	bytes BIGINT NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	trigger_source TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

type PostgresRenditionStore struct {
	db *sql.DB
}

func NewPostgresRenditionStore(ctx context.Context, dsn string) (*PostgresRenditionStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresRenditionStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresRenditionStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, renditionSchemaSQL); err != nil {
		return fmt.Errorf("ensure renditions schema: %w", err)
	}
	return nil
}

func (s *PostgresRenditionStore) Close() error {
	return s.db.Close()
}

func (s *PostgresRenditionStore) Record(ctx context.Context, rendition domain.Rendition) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO renditions (variant_key, source_key, operations, format, width, height, bytes, duration_ms, trigger_source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (variant_key) DO UPDATE SET
			source_key = EXCLUDED.source_key,
			operations = EXCLUDED.operations,
			format = EXCLUDED.format,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			bytes = EXCLUDED.bytes,
			duration_ms = EXCLUDED.duration_ms,
			trigger_source = EXCLUDED.trigger_source,
			created_at = EXCLUDED.created_at`,
		rendition.VariantKey,
		rendition.SourceKey,
		rendition.Operations,
		rendition.Format,
		rendition.Width,
		rendition.Height,
		rendition.Bytes,
		rendition.DurationMS,
		rendition.Trigger,
		rendition.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rendition: %w", err)
	}
	return nil
}

func (s *PostgresRenditionStore) Recent(ctx context.Context, limit int) ([]domain.Rendition, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT variant_key, source_key, operations, format, width, height, bytes, duration_ms, trigger_source, created_at
		 FROM renditions
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query renditions: %w", err)
	}
	defer rows.Close()

	renditions := make([]domain.Rendition, 0, limit)
	for rows.Next() {
		var rendition domain.Rendition
		if err := rows.Scan(
			&rendition.VariantKey,
			&rendition.SourceKey,
			&rendition.Operations,
			&rendition.Format,
			&rendition.Width,
			&rendition.Height,
			&rendition.Bytes,
			&rendition.DurationMS,
			&rendition.Trigger,
			&rendition.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rendition: %w", err)
		}
		renditions = append(renditions, rendition)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate renditions: %w", err)
	}

	return renditions, nil
}
