package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"cohere/internal/domain"
)

// PostgresStore persists records as JSONB documents in a single table:
//
//	CREATE TABLE IF NOT EXISTS records (
//	    collection TEXT NOT NULL,
//	    id         TEXT NOT NULL,
//	    doc        JSONB NOT NULL,
//	    PRIMARY KEY (collection, id)
//	);
//
// The open field set makes a document column the honest schema; lifecycle
// visibility is applied after decode so all three store implementations share
// one contract.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the records table if missing. Called once at startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			doc        JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure records schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string, opts ReadOptions) (*domain.Record, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM records WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s/%s: %w", collection, id, err)
	}
	var record domain.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode record %s/%s: %w", collection, id, err)
	}
	if !Visible(&record, opts) {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *PostgresStore) Put(ctx context.Context, collection string, record *domain.Record) (*domain.Record, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record %s/%s: %w", collection, record.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (collection, id, doc) VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc
	`, collection, record.ID, raw)
	if err != nil {
		return nil, fmt.Errorf("postgres put %s/%s: %w", collection, record.ID, err)
	}
	return record.Clone(), nil
}

func (s *PostgresStore) GetAll(ctx context.Context, collection string, opts ReadOptions) ([]*domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM records WHERE collection = $1 ORDER BY id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres getAll %s: %w", collection, err)
	}
	defer rows.Close()

	var records []*domain.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres scan %s: %w", collection, err)
		}
		var record domain.Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("decode record in %s: %w", collection, err)
		}
		if Visible(&record, opts) {
			records = append(records, &record)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres getAll %s: %w", collection, err)
	}
	return records, nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("postgres delete %s/%s: %w", collection, id, err)
	}
	return nil
}
