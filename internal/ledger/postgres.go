package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/Haik11kashiyani/news-auto/internal/domain"
	"github.com/Haik11kashiyani/news-auto/internal/ports"
)

// PostgresLedger stores entries in a processed_items table, for deployments
// where a shared database is preferable to a local file. Postgres serializes
// the row upserts, so no extra write queue is needed.
type PostgresLedger struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.Ledger = (*PostgresLedger)(nil)

// NewPostgres wires a sql.DB implementation.
func NewPostgres(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// OpenPostgres connects via DSN and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, &domain.StorageError{Op: "ping", Err: err}
	}
	return NewPostgres(db), nil
}

// Has reports whether the fingerprint exists in the table.
func (l *PostgresLedger) Has(ctx context.Context, fingerprint string) (bool, error) {
	_, ok, err := l.Get(ctx, fingerprint)
	return ok, err
}

// Get loads one entry by fingerprint.
func (l *PostgresLedger) Get(ctx context.Context, fingerprint string) (domain.LedgerEntry, bool, error) {
	query, args, err := l.builder.
		Select("fingerprint", "status", "stage", "reason", "last_attempt_at", "attempt_count", "artifact_ref").
		From("processed_items").
		Where(sq.Eq{"fingerprint": fingerprint}).
		ToSql()
	if err != nil {
		return domain.LedgerEntry{}, false, &domain.StorageError{Op: "build query", Err: err}
	}

	var entry domain.LedgerEntry
	row := l.db.QueryRowContext(ctx, query, args...)
	err = row.Scan(&entry.Fingerprint, &entry.Status, &entry.Stage, &entry.Reason,
		&entry.LastAttemptAt, &entry.AttemptCount, &entry.ArtifactRef)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerEntry{}, false, nil
	}
	if err != nil {
		return domain.LedgerEntry{}, false, &domain.StorageError{Op: "query", Err: err}
	}
	return entry, true, nil
}

// Record upserts the entry. The succeeded status is terminal; the upsert
// predicate refuses to overwrite it with anything else.
func (l *PostgresLedger) Record(ctx context.Context, entry domain.LedgerEntry) error {
	if entry.Fingerprint == "" {
		return &domain.StorageError{Op: "record", Err: fmt.Errorf("empty fingerprint")}
	}

	query, args, err := l.builder.
		Insert("processed_items").
		Columns("fingerprint", "status", "stage", "reason", "last_attempt_at", "attempt_count", "artifact_ref").
		Values(entry.Fingerprint, entry.Status, entry.Stage, entry.Reason,
			entry.LastAttemptAt, entry.AttemptCount, entry.ArtifactRef).
		Suffix(`ON CONFLICT (fingerprint) DO UPDATE
            SET status = EXCLUDED.status,
                stage = EXCLUDED.stage,
                reason = EXCLUDED.reason,
                last_attempt_at = EXCLUDED.last_attempt_at,
                attempt_count = EXCLUDED.attempt_count,
                artifact_ref = EXCLUDED.artifact_ref
            WHERE processed_items.status <> 'succeeded' OR EXCLUDED.status = 'succeeded'`).
		ToSql()
	if err != nil {
		return &domain.StorageError{Op: "build upsert", Err: err}
	}

	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return &domain.StorageError{Op: "upsert", Err: err}
	}
	return nil
}
