// Package audit indexes money transactions in SQLite so they can be paged
// and filtered without parsing money.csv.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/townyadvanced/townylog/internal/money"
)

// timeLayout has fixed precision so stored timestamps sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Page size bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ErrNilTransaction is returned by Create when given no transaction.
var ErrNilTransaction = errors.New("audit: nil transaction")

// Filter controls which transactions List returns. Zero fields match all.
type Filter struct {
	Kind   money.Kind // matches either side of the transfer
	Party  string     // matches either side's name
	Reason string
	Since  time.Time
	Until  time.Time
	Limit  int // default 50, max 200
	Offset int
}

// ListResult is one page of transactions, newest first.
type ListResult struct {
	Transactions []money.Transaction `json:"transactions"`
	Total        int                 `json:"total"`
	Limit        int                 `json:"limit"`
	Offset       int                 `json:"offset"`
}

// Repository defines the money index operations.
type Repository interface {
	Create(ctx context.Context, txn *money.Transaction) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores transactions in the money_transactions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a transaction. The ID and Time are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, txn *money.Transaction) error {
	if txn == nil {
		return ErrNilTransaction
	}
	if txn.ID == "" {
		txn.ID = money.NewID()
	}
	if txn.Time.IsZero() {
		txn.Time = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO money_transactions
		 (id, occurred_at, reason, source_kind, source_name, amount, destination_kind, destination_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.Time.UTC().Format(timeLayout), txn.Reason,
		string(txn.Source.Kind), txn.Source.Name,
		txn.Amount,
		string(txn.Destination.Kind), txn.Destination.Name,
	)
	if err != nil {
		return fmt.Errorf("inserting money transaction: %w", err)
	}
	return nil
}

// List returns transactions matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where, args := filter.where()

	countQuery := "SELECT COUNT(*) FROM money_transactions" + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting money transactions: %w", err)
	}

	query := "SELECT id, occurred_at, reason, source_kind, source_name, amount, destination_kind, destination_name" + //nolint:gosec // WHERE built from parameterised conditions
		" FROM money_transactions" + where + " ORDER BY occurred_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying money transactions: %w", err)
	}
	defer rows.Close()

	txns := []money.Transaction{}
	for rows.Next() {
		var txn money.Transaction
		var occurredAt, srcKind, dstKind string
		if err := rows.Scan(&txn.ID, &occurredAt, &txn.Reason,
			&srcKind, &txn.Source.Name, &txn.Amount,
			&dstKind, &txn.Destination.Name); err != nil {
			return nil, fmt.Errorf("scanning money transaction: %w", err)
		}
		txn.Source.Kind = money.Kind(srcKind)
		txn.Destination.Kind = money.Kind(dstKind)

		txn.Time, err = time.Parse(timeLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing transaction timestamp %q: %w", occurredAt, err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating money transactions: %w", err)
	}

	return &ListResult{
		Transactions: txns,
		Total:        total,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}, nil
}

// where renders the filter as a WHERE clause with placeholders.
func (f Filter) where() (string, []any) {
	var conds []string
	var args []any

	if f.Kind != "" {
		conds = append(conds, "(source_kind = ? OR destination_kind = ?)")
		args = append(args, string(f.Kind), string(f.Kind))
	}
	if f.Party != "" {
		conds = append(conds, "(source_name = ? OR destination_name = ?)")
		args = append(args, f.Party, f.Party)
	}
	if f.Reason != "" {
		conds = append(conds, "reason = ?")
		args = append(args, f.Reason)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	if !f.Until.IsZero() {
		conds = append(conds, "occurred_at < ?")
		args = append(args, f.Until.UTC().Format(timeLayout))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
