package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"farewatch/internal/fraud"
)

const uniqueViolation = "23505"

const (
	insertTransactionSQL = `INSERT INTO ticket_transactions (
        id,
        ticket_id,
        timestamp,
        station,
        amount,
        fraud_score,
        status,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    RETURNING created_at;`

	selectTransactionColumns = `SELECT
        id,
        ticket_id,
        timestamp,
        station,
        amount,
        fraud_score,
        status,
        created_at
    FROM ticket_transactions`

	listRecentTransactionsSQL = selectTransactionColumns + `
    ORDER BY timestamp DESC, created_at DESC
    LIMIT $1;`

	listTransactionsBetweenSQL = selectTransactionColumns + `
    WHERE timestamp >= $1
      AND timestamp <= $2
    ORDER BY timestamp, created_at;`

	getTransactionSQL = selectTransactionColumns + `
    WHERE ticket_id = $1;`

	updateTransactionStatusSQL = `UPDATE ticket_transactions
    SET status = $2
    WHERE ticket_id = $1;`

	countByStatusSQL = `SELECT status, COUNT(*) FROM ticket_transactions GROUP BY status;`
)

// TransactionStore is the persistence boundary the analyzer depends on.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, rec Record) (Record, error)
	ListRecentTransactions(ctx context.Context, limit int) ([]Record, error)
	UpdateTransactionStatus(ctx context.Context, ticketID string, status fraud.Status) error
}

// TransactionReader exposes lookups used by the detail view, stats and export.
type TransactionReader interface {
	GetTransaction(ctx context.Context, ticketID string) (Record, error)
	ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]Record, error)
	CountByStatus(ctx context.Context) (StatusCounts, error)
}

// Backend is implemented by every store driver.
type Backend interface {
	TransactionStore
	TransactionReader
	Close()
}

// Store is the PostgreSQL backend.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Pool exposes the pool for migrations.
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertTransaction persists a newly scored transaction.
func (s *Store) InsertTransaction(ctx context.Context, rec Record) (Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return Record{}, err
	}
	if !rec.Status.Valid() {
		return Record{}, ErrInvalidStatus
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	row := pool.QueryRow(ctx, insertTransactionSQL,
		rec.ID,
		rec.TicketID,
		rec.Timestamp,
		rec.Station,
		rec.Amount.String(),
		formatScore(rec.FraudScore),
		string(rec.Status),
		rec.CreatedAt,
	)
	if scanErr := row.Scan(&rec.CreatedAt); scanErr != nil {
		var pgErr *pgconn.PgError
		if errors.As(scanErr, &pgErr) && pgErr.Code == uniqueViolation {
			return Record{}, ErrDuplicateKey
		}
		return Record{}, writeErr("insert transaction", scanErr)
	}
	return rec, nil
}

// ListRecentTransactions lists the newest transactions first.
func (s *Store) ListRecentTransactions(ctx context.Context, limit int) ([]Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []Record{}, nil
	}

	rows, queryErr := pool.Query(ctx, listRecentTransactionsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent transactions: %w", queryErr)
	}
	return collectRecords(rows, limit)
}

// ListTransactionsBetween lists transactions with from <= timestamp <= to, oldest first.
func (s *Store) ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listTransactionsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list transactions between: %w", queryErr)
	}
	return collectRecords(rows, 0)
}

// GetTransaction loads one transaction by ticket id.
func (s *Store) GetTransaction(ctx context.Context, ticketID string) (Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return Record{}, err
	}

	rows, queryErr := pool.Query(ctx, getTransactionSQL, ticketID)
	if queryErr != nil {
		return Record{}, fmt.Errorf("get transaction: %w", queryErr)
	}
	records, err := collectRecords(rows, 1)
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, ErrNotFound
	}
	return records[0], nil
}

// UpdateTransactionStatus overwrites the status of an existing transaction.
func (s *Store) UpdateTransactionStatus(ctx context.Context, ticketID string, status fraud.Status) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if !status.Valid() {
		return ErrInvalidStatus
	}

	cmdTag, execErr := pool.Exec(ctx, updateTransactionStatusSQL, ticketID, string(status))
	if execErr != nil {
		return writeErr("update transaction status", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus tallies stored transactions per status.
func (s *Store) CountByStatus(ctx context.Context) (StatusCounts, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, countByStatusSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("count by status: %w", queryErr)
	}
	defer rows.Close()

	counts := StatusCounts{}
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[fraud.Status(status)] = count
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return counts, nil
}

func collectRecords(rows pgx.Rows, capacity int) ([]Record, error) {
	defer rows.Close()

	records := make([]Record, 0, capacity)
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanRecord(rows pgx.Rows) (Record, error) {
	var (
		id        uuid.UUID
		ticketID  string
		timestamp time.Time
		station   string
		amountStr string
		scoreStr  string
		status    string
		createdAt time.Time
	)

	if err := rows.Scan(
		&id,
		&ticketID,
		&timestamp,
		&station,
		&amountStr,
		&scoreStr,
		&status,
		&createdAt,
	); err != nil {
		return Record{}, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return Record{}, fmt.Errorf("parse amount: %w", err)
	}
	score, err := decimal.NewFromString(scoreStr)
	if err != nil {
		return Record{}, fmt.Errorf("parse fraud score: %w", err)
	}

	return Record{
		ID:         id,
		TicketID:   ticketID,
		Timestamp:  timestamp,
		Station:    station,
		Amount:     amount,
		FraudScore: score.InexactFloat64(),
		Status:     fraud.Status(status),
		CreatedAt:  createdAt,
	}, nil
}

func formatScore(score float64) string {
	return decimal.NewFromFloat(score).StringFixed(3)
}

var (
	_ Backend = (*Store)(nil)
)
