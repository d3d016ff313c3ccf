package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
	"saldo/internal/worker"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable ledger store. Amounts are persisted as
// decimal strings so nothing is lost to float conversion; transactions
// without a usable date carry a NULL tx_date.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetWallet implements ledger.WalletReader
func (r *SQLiteRepository) GetWallet(ctx context.Context) (*core.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, currency, initial_balance, created_at
		 FROM wallets WHERE active = 1 LIMIT 1`)

	var w core.Wallet
	var balance string
	if err := row.Scan(&w.ID, &w.Name, &w.Currency, &balance, &w.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNoActiveWallet
		}
		return nil, fmt.Errorf("query wallet: %w", err)
	}

	initial, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse wallet balance %q: %w", balance, err)
	}
	w.InitialBalance = initial

	return &w, nil
}

// CreateWallet implements ledger.WalletWriter. The new wallet replaces the
// active one; prior wallets stay in the table for audit but lose the flag.
func (r *SQLiteRepository) CreateWallet(ctx context.Context, w core.Wallet) (string, error) {
	if err := w.Validate(); err != nil {
		return "", err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE wallets SET active = 0 WHERE active = 1`); err != nil {
		return "", fmt.Errorf("deactivate prior wallet: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallets (id, name, currency, initial_balance, created_at, active)
		 VALUES (?, ?, ?, ?, ?, 1)`,
		w.ID, w.Name, w.Currency, w.InitialBalance.String(), w.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert wallet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit wallet: %w", err)
	}

	slog.InfoContext(ctx, "Wallet saved to SQLite",
		applog.FieldWalletID, w.ID,
		"name", w.Name,
		"currency", w.Currency)

	return w.ID, nil
}

// ListTransactions implements ledger.TransactionLister. Rows come back in
// append order; the filter applies in memory since the whole data set is
// one household ledger.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f ledger.Filter) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, amount, category, description, tx_date, tx_type
		 FROM transactions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var amount string
		var date sql.NullTime
		if err := rows.Scan(&t.ID, &amount, &t.Category, &t.Description, &date, &t.Type); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse transaction amount %q: %w", amount, err)
		}
		if date.Valid {
			t.Date = date.Time
		}

		if f.Matches(t) {
			txs = append(txs, t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return txs, nil
}

// AppendTransaction implements ledger.TransactionWriter
func (r *SQLiteRepository) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	var date sql.NullTime
	if t.HasValidDate() {
		date = sql.NullTime{Time: t.Date, Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, amount, category, description, tx_date, tx_type)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Amount.String(), t.Category, t.Description, date, string(t.Type))
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("transaction sequence: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		applog.FieldTxID, t.ID,
		applog.FieldTxType, t.Type,
		applog.FieldCategory, t.Category,
		applog.FieldAmount, t.Amount.String())

	return "sqlite:" + strconv.FormatInt(seq, 10), nil
}

// GetLimit implements ledger.LimitStore
func (r *SQLiteRepository) GetLimit(ctx context.Context) (*core.SpendingLimit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT amount, category_id, category_name, category_source, period, start_date, set_at
		 FROM spending_limit WHERE id = 1`)

	var l core.SpendingLimit
	var amount, source string
	var startDate sql.NullTime
	err := row.Scan(&amount, &l.Category.ID, &l.Category.Name, &source, &l.Period, &startDate, &l.SetAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNoLimit
		}
		return nil, fmt.Errorf("query spending limit: %w", err)
	}

	l.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse limit amount %q: %w", amount, err)
	}
	l.Category.Source = core.CategorySource(source)
	if startDate.Valid {
		l.StartDate = startDate.Time
	}

	return &l, nil
}

// SaveLimit implements ledger.LimitStore. The limit is a single row that
// each save replaces wholesale.
func (r *SQLiteRepository) SaveLimit(ctx context.Context, l core.SpendingLimit) error {
	if err := l.Validate(); err != nil {
		return err
	}

	var startDate sql.NullTime
	if !l.StartDate.IsZero() {
		startDate = sql.NullTime{Time: l.StartDate, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO spending_limit (id, amount, category_id, category_name, category_source, period, start_date, set_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     amount = excluded.amount,
		     category_id = excluded.category_id,
		     category_name = excluded.category_name,
		     category_source = excluded.category_source,
		     period = excluded.period,
		     start_date = excluded.start_date,
		     set_at = excluded.set_at`,
		l.Amount.String(), l.Category.ID, l.Category.Name, string(l.Category.Source),
		string(l.Period), startDate, l.SetAt)
	if err != nil {
		return fmt.Errorf("save spending limit: %w", err)
	}

	slog.InfoContext(ctx, "Spending limit saved to SQLite",
		applog.FieldAmount, l.Amount.String(),
		applog.FieldCategory, l.Category.Name,
		applog.FieldPeriod, l.Period)

	return nil
}

// ListCategories implements ledger.CategoryRegistry
func (r *SQLiteRepository) ListCategories(ctx context.Context, typ core.TransactionType) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, source FROM categories
		 WHERE tx_type = ? ORDER BY source, position`,
		string(typ))
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		var source string
		if err := rows.Scan(&c.ID, &c.Name, &source); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Source = core.CategorySource(source)
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return cats, nil
}

// AddCategory implements ledger.CategoryRegistry. Names are matched case
// insensitively; adding an existing name returns the stored entry.
func (r *SQLiteRepository) AddCategory(ctx context.Context, typ core.TransactionType, name string) (core.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Category{}, core.ErrMissingCategory
	}

	var existing core.Category
	var source string
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, source FROM categories
		 WHERE tx_type = ? AND name = ? COLLATE NOCASE`,
		string(typ), name)
	err := row.Scan(&existing.ID, &existing.Name, &source)
	if err == nil {
		existing.Source = core.CategorySource(source)
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("query category: %w", err)
	}

	cat := core.Category{
		ID:     uuid.NewString(),
		Name:   name,
		Source: core.SourceCustom,
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO categories (id, tx_type, name, source, position)
		 SELECT ?, ?, ?, ?, COALESCE(MAX(position), -1) + 1
		 FROM categories WHERE tx_type = ? AND source = 'custom'`,
		cat.ID, string(typ), cat.Name, string(cat.Source), string(typ))
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}

	slog.InfoContext(ctx, "Category saved to SQLite",
		applog.FieldCategory, cat.Name,
		applog.FieldTxType, typ)

	return cat, nil
}

// AppendNotification implements worker.Journal
func (r *SQLiteRepository) AppendNotification(ctx context.Context, rec worker.NotificationRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, kind, title, detail, occurred_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, string(rec.Kind), rec.Title, rec.Detail, rec.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// PruneNotifications implements worker.Journal
func (r *SQLiteRepository) PruneNotifications(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE occurred_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return res.RowsAffected()
}
