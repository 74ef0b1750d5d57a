// Package storage implements the ledger store ports on SQLite.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"moneta/internal/core"
	"moneta/internal/ledger"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// civilTime is the storage form of occurred_at: local civil time with no
// zone marker, so exports and re-imports see the same wall clock.
const civilTime = "2006-01-02 15:04:05"

var _ ledger.Store = (*SQLiteRepository)(nil)

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

	repo := &SQLiteRepository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return repo, nil
}

// migrate brings the embedded schema up to date on the repository's
// own connection pool.
func (r *SQLiteRepository) migrate() error {
	driver, err := migratesqlite.WithInstance(r.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return source.Close()
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const txColumns = `id, kind, occurred_at, amount, currency, main_category, sub_category,
	counterparty, note, source_text, attachment,
	is_installment, group_id, period_index, period_count, annual_rate, total_principal`

func (r *SQLiteRepository) Insert(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO transactions (`+txColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txArgs(tx)...)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved",
		"id", tx.ID,
		"kind", tx.Kind,
		"amount", tx.Amount,
		"main_category", tx.MainCategory)
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET
		kind = ?, occurred_at = ?, amount = ?, currency = ?,
		main_category = ?, sub_category = ?, counterparty = ?, note = ?,
		source_text = ?, attachment = ?,
		is_installment = ?, group_id = ?, period_index = ?, period_count = ?,
		annual_rate = ?, total_principal = ?
		WHERE id = ?`,
		append(txArgs(tx)[1:], tx.ID)...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTx(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.Transaction, error) {
	return r.queryTxs(ctx, `SELECT `+txColumns+` FROM transactions ORDER BY occurred_at, id`)
}

func (r *SQLiteRepository) ListByGroup(ctx context.Context, groupID string) ([]core.Transaction, error) {
	return r.queryTxs(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE group_id = ? ORDER BY period_index`, groupID)
}

func (r *SQLiteRepository) ListBetween(ctx context.Context, kind core.Kind, from, to time.Time) ([]core.Transaction, error) {
	return r.queryTxs(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE kind = ? AND occurred_at BETWEEN ? AND ?
		ORDER BY occurred_at`,
		string(kind), from.Format(civilTime), to.Format(civilTime))
}

func (r *SQLiteRepository) queryTxs(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTx(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Find(ctx context.Context, kind core.Kind, main, sub string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT kind, main_category, sub_category, usage_count, created_at
		FROM categories WHERE kind = ? AND main_category = ? AND sub_category = ?`,
		string(kind), main, sub)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO categories (kind, main_category, sub_category, usage_count, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind, main_category, sub_category) DO NOTHING`,
		string(c.Kind), c.Main, c.Sub, c.UsageCount, c.CreatedAt.Format(civilTime))
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) IncrementUsage(ctx context.Context, kind core.Kind, main, sub string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE categories SET usage_count = usage_count + 1
		WHERE kind = ? AND main_category = ? AND sub_category = ?`,
		string(kind), main, sub)
	if err != nil {
		return fmt.Errorf("increment category usage: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SQLiteRepository) List(ctx context.Context, kind core.Kind) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, main_category, sub_category, usage_count, created_at
		FROM categories WHERE kind = ?
		ORDER BY usage_count DESC, main_category, sub_category`,
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, kind core.Kind, main, sub string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories
		WHERE kind = ? AND main_category = ? AND sub_category = ?`,
		string(kind), main, sub)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func txArgs(tx core.Transaction) []any {
	var (
		isInstallment              int
		groupID                    string
		periodIndex, periodCount   int
		annualRate, totalPrincipal float64
	)
	if ins := tx.Installment; ins != nil {
		isInstallment = 1
		groupID = ins.GroupID
		periodIndex = ins.PeriodIndex
		periodCount = ins.PeriodCount
		annualRate = ins.AnnualRatePercent
		totalPrincipal = ins.TotalPrincipal
	}
	return []any{
		tx.ID, string(tx.Kind), tx.OccurredAt.Format(civilTime), tx.Amount, tx.Currency,
		tx.MainCategory, tx.SubCategory, tx.Counterparty, tx.Note, tx.SourceText, tx.Attachment,
		isInstallment, groupID, periodIndex, periodCount, annualRate, totalPrincipal,
	}
}

func scanTx(s scanner) (core.Transaction, error) {
	var (
		tx                         core.Transaction
		kind, occurredAt           string
		isInstallment              int
		groupID                    string
		periodIndex, periodCount   int
		annualRate, totalPrincipal float64
	)
	err := s.Scan(&tx.ID, &kind, &occurredAt, &tx.Amount, &tx.Currency,
		&tx.MainCategory, &tx.SubCategory, &tx.Counterparty, &tx.Note, &tx.SourceText, &tx.Attachment,
		&isInstallment, &groupID, &periodIndex, &periodCount, &annualRate, &totalPrincipal)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.Kind(kind)
	tx.OccurredAt, err = time.ParseInLocation(civilTime, occurredAt, time.Local)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse occurred_at %q: %w", occurredAt, err)
	}
	if isInstallment != 0 {
		tx.Installment = &core.Installment{
			GroupID:           groupID,
			PeriodIndex:       periodIndex,
			PeriodCount:       periodCount,
			AnnualRatePercent: annualRate,
			TotalPrincipal:    totalPrincipal,
		}
	}
	return tx, nil
}

func scanCategory(s scanner) (core.Category, error) {
	var (
		c               core.Category
		kind, createdAt string
	)
	if err := s.Scan(&kind, &c.Main, &c.Sub, &c.UsageCount, &createdAt); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.Kind(kind)
	if t, err := time.ParseInLocation(civilTime, createdAt, time.Local); err == nil {
		c.CreatedAt = t
	}
	return c, nil
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}
