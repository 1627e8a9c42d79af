package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CakeLotto/purchase_layer/internal/app/domain/purchase"
	"github.com/CakeLotto/purchase_layer/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.PurchaseStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema is the DDL for the purchase journal. Idempotent, applied at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS purchase_attempts (
	id               TEXT PRIMARY KEY,
	account          TEXT NOT NULL,
	round_id         TEXT NOT NULL,
	quantity         INTEGER NOT NULL,
	state            TEXT NOT NULL,
	last_error       TEXT NOT NULL DEFAULT '',
	approve_tx_hash  TEXT NOT NULL DEFAULT '',
	purchase_tx_hash TEXT NOT NULL DEFAULT '',
	tickets          JSONB,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS purchase_attempts_account_idx ON purchase_attempts (account);
`

func (s *Store) CreateAttempt(ctx context.Context, attempt purchase.Attempt) (purchase.Attempt, error) {
	if attempt.Account == "" {
		return purchase.Attempt{}, errors.New("account required")
	}
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	attempt.CreatedAt = now
	attempt.UpdatedAt = now

	ticketsJSON, err := json.Marshal(attempt.Tickets)
	if err != nil {
		return purchase.Attempt{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO purchase_attempts (id, account, round_id, quantity, state, last_error, approve_tx_hash, purchase_tx_hash, tickets, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, attempt.ID, attempt.Account, attempt.RoundID, attempt.Quantity, attempt.State, attempt.LastError,
		attempt.ApproveTxHash, attempt.PurchaseTxHash, ticketsJSON, attempt.CreatedAt, attempt.UpdatedAt)
	if err != nil {
		return purchase.Attempt{}, err
	}
	return attempt, nil
}

func (s *Store) UpdateAttempt(ctx context.Context, attempt purchase.Attempt) (purchase.Attempt, error) {
	existing, err := s.GetAttempt(ctx, attempt.ID)
	if err != nil {
		return purchase.Attempt{}, err
	}

	attempt.Account = existing.Account
	attempt.CreatedAt = existing.CreatedAt
	attempt.UpdatedAt = time.Now().UTC()

	ticketsJSON, err := json.Marshal(attempt.Tickets)
	if err != nil {
		return purchase.Attempt{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE purchase_attempts
		SET round_id = $2, quantity = $3, state = $4, last_error = $5, approve_tx_hash = $6, purchase_tx_hash = $7, tickets = $8, updated_at = $9
		WHERE id = $1
	`, attempt.ID, attempt.RoundID, attempt.Quantity, attempt.State, attempt.LastError,
		attempt.ApproveTxHash, attempt.PurchaseTxHash, ticketsJSON, attempt.UpdatedAt)
	if err != nil {
		return purchase.Attempt{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return purchase.Attempt{}, fmt.Errorf("attempt %s: %w", attempt.ID, storage.ErrNotFound)
	}
	return attempt, nil
}

func (s *Store) GetAttempt(ctx context.Context, id string) (purchase.Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account, round_id, quantity, state, last_error, approve_tx_hash, purchase_tx_hash, tickets, created_at, updated_at
		FROM purchase_attempts
		WHERE id = $1
	`, id)

	attempt, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return purchase.Attempt{}, fmt.Errorf("attempt %s: %w", id, storage.ErrNotFound)
	}
	return attempt, err
}

func (s *Store) ListAttempts(ctx context.Context, account string) ([]purchase.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account, round_id, quantity, state, last_error, approve_tx_hash, purchase_tx_hash, tickets, created_at, updated_at
		FROM purchase_attempts
		WHERE $1 = '' OR account = $1
		ORDER BY created_at
	`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAttempts(rows)
}

func (s *Store) ListUnfinishedAttempts(ctx context.Context) ([]purchase.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account, round_id, quantity, state, last_error, approve_tx_hash, purchase_tx_hash, tickets, created_at, updated_at
		FROM purchase_attempts
		WHERE state <> $1
		ORDER BY created_at
	`, purchase.StateConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAttempts(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row rowScanner) (purchase.Attempt, error) {
	var (
		attempt    purchase.Attempt
		ticketsRaw []byte
	)
	if err := row.Scan(&attempt.ID, &attempt.Account, &attempt.RoundID, &attempt.Quantity, &attempt.State,
		&attempt.LastError, &attempt.ApproveTxHash, &attempt.PurchaseTxHash, &ticketsRaw,
		&attempt.CreatedAt, &attempt.UpdatedAt); err != nil {
		return purchase.Attempt{}, err
	}
	if len(ticketsRaw) > 0 {
		_ = json.Unmarshal(ticketsRaw, &attempt.Tickets)
	}
	return attempt, nil
}

func collectAttempts(rows *sql.Rows) ([]purchase.Attempt, error) {
	var result []purchase.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, attempt)
	}
	return result, rows.Err()
}
