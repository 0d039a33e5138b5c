// Package sqlite implements the ledger Store on modernc.org/sqlite with
// hand-written SQL and embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	"github.com/Pehalba/AdmFinanceira/internal/store"
)

type Repository struct {
	db *sql.DB
}

var _ store.Store = (*Repository)(nil)

func New(dbPath string) (*Repository, error) {
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

	slog.Info("SQLite ledger store ready", "path", dbPath)
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Accounts() store.Accounts         { return accountsRepo{r.db} }
func (r *Repository) Categories() store.Categories     { return categoriesRepo{r.db} }
func (r *Repository) Transactions() store.Transactions { return transactionsRepo{r.db} }
func (r *Repository) Templates() store.Templates       { return templatesRepo{r.db} }
func (r *Repository) Statuses() store.Statuses         { return statusesRepo{r.db} }
func (r *Repository) Summaries() store.Summaries       { return summariesRepo{r.db} }
func (r *Repository) Users() store.Users               { return usersRepo{r.db} }
func (r *Repository) Meta() store.Meta                 { return metaRepo{r.db} }

// Timestamps are stored as RFC3339Nano strings; the offset keeps month keys
// derived from local-calendar dates round-trippable.
func encodeTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- accounts ---

type accountsRepo struct{ db *sql.DB }

func (r accountsRepo) Create(ctx context.Context, a core.Account) (core.Account, error) {
	a.ID = uuid.NewString()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, uid, name, type, balance_cents, is_primary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UID, a.Name, string(a.Type), a.Balance.Cents, boolToInt(a.IsPrimary), encodeTime(a.CreatedAt))
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}

func scanAccount(row *sql.Row) (core.Account, error) {
	var a core.Account
	var typ, createdAt string
	var isPrimary int
	err := row.Scan(&a.ID, &a.UID, &a.Name, &typ, &a.Balance.Cents, &isPrimary, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, store.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Type = core.AccountType(typ)
	a.IsPrimary = isPrimary != 0
	a.CreatedAt = decodeTime(createdAt)
	return a, nil
}

func (r accountsRepo) GetByID(ctx context.Context, uid, id string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, uid, name, type, balance_cents, is_primary, created_at
		 FROM accounts WHERE id = ? AND uid = ?`, id, uid)
	return scanAccount(row)
}

func (r accountsRepo) Update(ctx context.Context, a core.Account) (core.Account, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, type = ?, balance_cents = ?, is_primary = ?
		 WHERE id = ? AND uid = ?`,
		a.Name, string(a.Type), a.Balance.Cents, boolToInt(a.IsPrimary), a.ID, a.UID)
	if err != nil {
		return core.Account{}, fmt.Errorf("update account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (r accountsRepo) Delete(ctx context.Context, uid, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ? AND uid = ?`, id, uid)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r accountsRepo) ListByUser(ctx context.Context, uid string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, uid, name, type, balance_cents, is_primary, created_at
		 FROM accounts WHERE uid = ? ORDER BY name`, uid)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		var typ, createdAt string
		var isPrimary int
		if err := rows.Scan(&a.ID, &a.UID, &a.Name, &typ, &a.Balance.Cents, &isPrimary, &createdAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Type = core.AccountType(typ)
		a.IsPrimary = isPrimary != 0
		a.CreatedAt = decodeTime(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- categories ---

type categoriesRepo struct{ db *sql.DB }

func (r categoriesRepo) Create(ctx context.Context, c core.Category) (core.Category, error) {
	c.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, uid, name, type, color) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UID, c.Name, string(c.Type), c.Color)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (r categoriesRepo) GetByID(ctx context.Context, uid, id string) (core.Category, error) {
	var c core.Category
	var typ string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, uid, name, type, color FROM categories WHERE id = ? AND uid = ?`, id, uid).
		Scan(&c.ID, &c.UID, &c.Name, &typ, &c.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, store.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("scan category: %w", err)
	}
	c.Type = core.TransactionType(typ)
	return c, nil
}

func (r categoriesRepo) Update(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ?, color = ? WHERE id = ? AND uid = ?`,
		c.Name, string(c.Type), c.Color, c.ID, c.UID)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Category{}, store.ErrNotFound
	}
	return c, nil
}

func (r categoriesRepo) Delete(ctx context.Context, uid, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND uid = ?`, id, uid)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r categoriesRepo) ListByUser(ctx context.Context, uid string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, uid, name, type, color FROM categories WHERE uid = ? ORDER BY name`, uid)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var typ string
		if err := rows.Scan(&c.ID, &c.UID, &c.Name, &typ, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.TransactionType(typ)
		out = append(out, c)
	}
	return out, rows.Err()
}
