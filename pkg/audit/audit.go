// Package audit persists the outcome of every terminated round to
// Postgres, giving operators a queryable trail independent of the
// replicated chain state itself.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/google/uuid"
)

// Store persists round results with connection pooling over
// database/sql, driven by lib/pq.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger overrides the default stderr logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithPool sets the connection pool limits; zero values leave
// database/sql's defaults in place.
func WithPool(maxOpen, maxIdle int, connMaxLifetime time.Duration) Option {
	return func(s *Store) {
		if maxOpen > 0 {
			s.db.SetMaxOpenConns(maxOpen)
		}
		if maxIdle > 0 {
			s.db.SetMaxIdleConns(maxIdle)
		}
		if connMaxLifetime > 0 {
			s.db.SetConnMaxLifetime(connMaxLifetime)
		}
	}
}

// Open connects to the Postgres instance at databaseURL and verifies
// the connection with a ping before returning.
func Open(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("audit: database URL cannot be empty")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}

	s := &Store{
		db:     db,
		logger: log.New(log.Writer(), "[audit] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping: %w", err)
	}

	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// RoundRecord is one terminated round's audit trail entry.
type RoundRecord struct {
	EntryID            uuid.UUID
	RoundID            string
	Height             int64
	SignerCount        int
	RequiredCount      int64
	AggregateSignature []byte
	Result             json.RawMessage
	CompletedAt        time.Time
}

// NewRoundRecord is the input to RecordRound; EntryID and CompletedAt
// are assigned by the store.
type NewRoundRecord struct {
	RoundID            string
	Height             int64
	SignerCount        int
	RequiredCount      int64
	AggregateSignature []byte
	Result             interface{}
}

// RecordRound inserts a new audit entry, or updates the existing entry
// for round_id if one is already present (a round may be re-attested
// as stragglers' signatures arrive).
func (s *Store) RecordRound(ctx context.Context, input NewRoundRecord) (*RoundRecord, error) {
	resultJSON, err := json.Marshal(input.Result)
	if err != nil {
		return nil, fmt.Errorf("audit: marshal result: %w", err)
	}

	record := &RoundRecord{
		EntryID:            uuid.New(),
		RoundID:            input.RoundID,
		Height:             input.Height,
		SignerCount:        input.SignerCount,
		RequiredCount:      input.RequiredCount,
		AggregateSignature: input.AggregateSignature,
		Result:             resultJSON,
		CompletedAt:        time.Now(),
	}

	query := `
		INSERT INTO round_audit_entries (
			entry_id, round_id, height, signer_count, required_count,
			aggregate_signature, result_json, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (round_id) DO UPDATE SET
			signer_count = EXCLUDED.signer_count,
			aggregate_signature = EXCLUDED.aggregate_signature,
			result_json = EXCLUDED.result_json,
			completed_at = EXCLUDED.completed_at
		RETURNING entry_id, completed_at`

	err = s.db.QueryRowContext(ctx, query,
		record.EntryID, record.RoundID, record.Height, record.SignerCount,
		record.RequiredCount, record.AggregateSignature, []byte(record.Result), record.CompletedAt,
	).Scan(&record.EntryID, &record.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("audit: record round: %w", err)
	}

	return record, nil
}

// GetRound retrieves the audit entry for roundID, or nil if none
// exists.
func (s *Store) GetRound(ctx context.Context, roundID string) (*RoundRecord, error) {
	query := `
		SELECT entry_id, round_id, height, signer_count, required_count,
			aggregate_signature, result_json, completed_at
		FROM round_audit_entries
		WHERE round_id = $1`

	record := &RoundRecord{}
	err := s.db.QueryRowContext(ctx, query, roundID).Scan(
		&record.EntryID, &record.RoundID, &record.Height, &record.SignerCount,
		&record.RequiredCount, &record.AggregateSignature, &record.Result, &record.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: get round: %w", err)
	}
	return record, nil
}

// ListSince returns every round recorded at or after since, ordered by
// completion time ascending.
func (s *Store) ListSince(ctx context.Context, since time.Time) ([]*RoundRecord, error) {
	query := `
		SELECT entry_id, round_id, height, signer_count, required_count,
			aggregate_signature, result_json, completed_at
		FROM round_audit_entries
		WHERE completed_at >= $1
		ORDER BY completed_at ASC`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("audit: list since: %w", err)
	}
	defer rows.Close()

	var records []*RoundRecord
	for rows.Next() {
		record := &RoundRecord{}
		if err := rows.Scan(
			&record.EntryID, &record.RoundID, &record.Height, &record.SignerCount,
			&record.RequiredCount, &record.AggregateSignature, &record.Result, &record.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("audit: scan round: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
