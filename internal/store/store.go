// Package store persists analysis artifacts to the relational store, keyed
// by (operation, fingerprint), for audit and cache-miss recovery.
package store

import (
	"context"
	"database/sql"
	"time"

	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS analysis_results (
	operation   TEXT        NOT NULL,
	fingerprint TEXT        NOT NULL,
	grant_id    TEXT,
	result      JSONB       NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (operation, fingerprint)
);
CREATE INDEX IF NOT EXISTS analysis_results_grant_idx
	ON analysis_results (operation, grant_id, created_at DESC);
`

type Store struct {
	db  *sql.DB
	log logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:  db,
		log: log.WithFields(map[string]interface{}{"component": "analysis-store"}),
	}
}

// EnsureSchema creates the artifact table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.NewStoreWriteFailedError(err)
	}
	return nil
}

// Save upserts one analysis result. GrantID may be empty for operations that
// are not grant-scoped.
func (s *Store) Save(ctx context.Context, operation, fingerprint, grantID string, result []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_results (operation, fingerprint, grant_id, result, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NOW())
		ON CONFLICT (operation, fingerprint)
		DO UPDATE SET result = EXCLUDED.result, grant_id = EXCLUDED.grant_id, created_at = NOW()`,
		operation, fingerprint, grantID, result)
	if err != nil {
		return errors.NewStoreWriteFailedError(err)
	}
	return nil
}

// Load returns the stored result for (operation, fingerprint), or nil when
// none exists.
func (s *Store) Load(ctx context.Context, operation, fingerprint string) ([]byte, time.Time, error) {
	var result []byte
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT result, created_at FROM analysis_results
		WHERE operation = $1 AND fingerprint = $2`,
		operation, fingerprint).Scan(&result, &createdAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, errors.NewStoreReadFailedError(err)
	}
	return result, createdAt, nil
}

// LoadLatestForGrant returns the most recent stored result of an operation
// for one grant, or nil when the grant was never analyzed.
func (s *Store) LoadLatestForGrant(ctx context.Context, operation, grantID string) ([]byte, error) {
	var result []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT result FROM analysis_results
		WHERE operation = $1 AND grant_id = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		operation, grantID).Scan(&result)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreReadFailedError(err)
	}
	return result, nil
}
