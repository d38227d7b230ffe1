package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrAccountNotFound is returned when the referenced account does not exist.
var ErrAccountNotFound = errors.New("account not found")

// TradeStore records closed trades and serves trade history. Recording a
// trade also settles it against the owning account in the same transaction.
type TradeStore interface {
	RecordTrade(ctx context.Context, trade *TradeRecord) error
	ListTrades(ctx context.Context, accountID string, limit int) ([]TradeRecord, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	EnsureAccount(ctx context.Context, accountID string, startingBalance float64) error
}

// Repository is the Postgres TradeStore.
type Repository struct {
	db *DB
}

// NewRepository creates a repository over the given DB.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck pings the underlying database.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// EnsureAccount creates the account if it does not exist.
func (r *Repository) EnsureAccount(ctx context.Context, accountID string, startingBalance float64) error {
	query := `
		INSERT INTO accounts (id, balance)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Pool.Exec(ctx, query, accountID, startingBalance)
	if err != nil {
		return fmt.Errorf("ensuring account %s: %w", accountID, err)
	}
	return nil
}

// RecordTrade inserts the trade and updates the account balance and
// win/loss counters in one transaction. Either both land or neither does.
func (r *Repository) RecordTrade(ctx context.Context, trade *TradeRecord) error {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning trade transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO trades (id, account_id, symbol, side, pattern_id, quantity,
			entry_price, exit_price, entry_time, exit_time, exit_reason,
			gross_pnl, slippage_cost, fees, net_pnl)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, insert,
		trade.ID, trade.AccountID, trade.Symbol, trade.Side, trade.PatternID,
		trade.Quantity, trade.EntryPrice, trade.ExitPrice, trade.EntryTime,
		trade.ExitTime, trade.ExitReason, trade.GrossPnL, trade.SlippageCost,
		trade.Fees, trade.NetPnL,
	).Scan(&trade.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting trade: %w", err)
	}

	winInc, lossInc := 0, 0
	if trade.NetPnL > 0 {
		winInc = 1
	} else if trade.NetPnL < 0 {
		lossInc = 1
	}
	update := `
		UPDATE accounts
		SET balance = balance + $2, wins = wins + $3, losses = losses + $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, update, trade.AccountID, trade.NetPnL, winInc, lossInc)
	if err != nil {
		return fmt.Errorf("updating account %s: %w", trade.AccountID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return tx.Commit(ctx)
}

// ListTrades returns the most recent trades for an account, newest first.
func (r *Repository) ListTrades(ctx context.Context, accountID string, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, account_id, symbol, side, pattern_id, quantity,
			entry_price, exit_price, entry_time, exit_time, exit_reason,
			gross_pnl, slippage_cost, fees, net_pnl, created_at
		FROM trades
		WHERE account_id = $1
		ORDER BY exit_time DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		err := rows.Scan(&t.ID, &t.AccountID, &t.Symbol, &t.Side, &t.PatternID,
			&t.Quantity, &t.EntryPrice, &t.ExitPrice, &t.EntryTime, &t.ExitTime,
			&t.ExitReason, &t.GrossPnL, &t.SlippageCost, &t.Fees, &t.NetPnL,
			&t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetAccount loads an account by ID.
func (r *Repository) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	query := `
		SELECT id, balance, wins, losses, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	var a Account
	err := r.db.Pool.QueryRow(ctx, query, accountID).Scan(
		&a.ID, &a.Balance, &a.Wins, &a.Losses, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading account %s: %w", accountID, err)
	}
	return &a, nil
}
