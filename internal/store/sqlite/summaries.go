package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	"github.com/Pehalba/AdmFinanceira/internal/store"
)

// --- monthly summaries ---

type summariesRepo struct{ db *sql.DB }

func encodeTotals(m map[string]core.CategoryTotal) (string, error) {
	if m == nil {
		m = map[string]core.CategoryTotal{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeTotals(raw string) (map[string]core.CategoryTotal, error) {
	m := map[string]core.CategoryTotal{}
	if raw == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r summariesRepo) Get(ctx context.Context, uid string, monthKey core.MonthKey) (core.MonthlySummary, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT uid, month_key, total_income_cents, total_expense_cents, balance_cents,
		        transaction_count, by_category, by_category_income, by_category_expense
		 FROM monthly_summaries WHERE uid = ? AND month_key = ?`, uid, string(monthKey))

	var s core.MonthlySummary
	var mk, byCat, byCatIncome, byCatExpense string
	err := row.Scan(&s.UID, &mk, &s.TotalIncome.Cents, &s.TotalExpense.Cents, &s.Balance.Cents,
		&s.TransactionCount, &byCat, &byCatIncome, &byCatExpense)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlySummary{}, store.ErrNotFound
	}
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("scan monthly summary: %w", err)
	}
	s.MonthKey = core.MonthKey(mk)
	if s.ByCategory, err = decodeTotals(byCat); err != nil {
		return core.MonthlySummary{}, fmt.Errorf("decode category totals: %w", err)
	}
	if s.ByCategoryIncome, err = decodeTotals(byCatIncome); err != nil {
		return core.MonthlySummary{}, fmt.Errorf("decode income totals: %w", err)
	}
	if s.ByCategoryExpense, err = decodeTotals(byCatExpense); err != nil {
		return core.MonthlySummary{}, fmt.Errorf("decode expense totals: %w", err)
	}
	return s, nil
}

func (r summariesRepo) Upsert(ctx context.Context, s core.MonthlySummary) error {
	byCat, err := encodeTotals(s.ByCategory)
	if err != nil {
		return fmt.Errorf("encode category totals: %w", err)
	}
	byCatIncome, err := encodeTotals(s.ByCategoryIncome)
	if err != nil {
		return fmt.Errorf("encode income totals: %w", err)
	}
	byCatExpense, err := encodeTotals(s.ByCategoryExpense)
	if err != nil {
		return fmt.Errorf("encode expense totals: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO monthly_summaries
		   (uid, month_key, total_income_cents, total_expense_cents, balance_cents,
		    transaction_count, by_category, by_category_income, by_category_expense)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(uid, month_key) DO UPDATE SET
		   total_income_cents = excluded.total_income_cents,
		   total_expense_cents = excluded.total_expense_cents,
		   balance_cents = excluded.balance_cents,
		   transaction_count = excluded.transaction_count,
		   by_category = excluded.by_category,
		   by_category_income = excluded.by_category_income,
		   by_category_expense = excluded.by_category_expense`,
		s.UID, string(s.MonthKey), s.TotalIncome.Cents, s.TotalExpense.Cents, s.Balance.Cents,
		s.TransactionCount, byCat, byCatIncome, byCatExpense)
	if err != nil {
		return fmt.Errorf("upsert monthly summary: %w", err)
	}
	return nil
}

// --- users ---

type usersRepo struct{ db *sql.DB }

func (r usersRepo) Create(ctx context.Context, u core.User) (core.User, error) {
	u.ID = uuid.NewString()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, encodeTime(u.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.User{}, store.ErrAlreadyExists
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func scanUserRow(scan func(dest ...any) error) (core.User, error) {
	var u core.User
	var createdAt string
	if err := scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &createdAt); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = decodeTime(createdAt)
	return u, nil
}

func (r usersRepo) GetByID(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE id = ?`, id)
	u, err := scanUserRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, store.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r usersRepo) GetByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`, email)
	u, err := scanUserRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, store.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// --- user meta ---

type metaRepo struct{ db *sql.DB }

func (r metaRepo) Get(ctx context.Context, uid string) (core.UserMeta, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT uid, accounts_version, categories_version FROM user_meta WHERE uid = ?`, uid)
	var m core.UserMeta
	err := row.Scan(&m.UID, &m.AccountsVersion, &m.CategoriesVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserMeta{UID: uid}, nil
	}
	if err != nil {
		return core.UserMeta{}, fmt.Errorf("scan user meta: %w", err)
	}
	return m, nil
}

func (r metaRepo) Put(ctx context.Context, m core.UserMeta) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_meta (uid, accounts_version, categories_version) VALUES (?, ?, ?)
		 ON CONFLICT(uid) DO UPDATE SET
		   accounts_version = excluded.accounts_version,
		   categories_version = excluded.categories_version`,
		m.UID, m.AccountsVersion, m.CategoriesVersion)
	if err != nil {
		return fmt.Errorf("upsert user meta: %w", err)
	}
	return nil
}
