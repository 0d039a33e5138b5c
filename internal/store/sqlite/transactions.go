package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	"github.com/Pehalba/AdmFinanceira/internal/store"
)

type transactionsRepo struct{ db *sql.DB }

const transactionColumns = `id, uid, account_id, category_id, type, amount_cents, description,
	date, month_key, account_name, category_name, auto_created, linked_payable_status_id, created_at`

func (r transactionsRepo) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = uuid.NewString()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UID, t.AccountID, t.CategoryID, string(t.Type), t.Amount.Cents, t.Description,
		encodeTime(t.Date), string(t.MonthKey), t.AccountName, t.CategoryName,
		boolToInt(t.AutoCreated), t.LinkedPayableStatusID, encodeTime(t.CreatedAt))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

func scanTransactionRow(scan func(dest ...any) error) (core.Transaction, error) {
	var t core.Transaction
	var typ, date, monthKey, createdAt string
	var autoCreated int
	err := scan(&t.ID, &t.UID, &t.AccountID, &t.CategoryID, &typ, &t.Amount.Cents, &t.Description,
		&date, &monthKey, &t.AccountName, &t.CategoryName, &autoCreated, &t.LinkedPayableStatusID, &createdAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Date = decodeTime(date)
	t.MonthKey = core.MonthKey(monthKey)
	t.AutoCreated = autoCreated != 0
	t.CreatedAt = decodeTime(createdAt)
	return t, nil
}

func (r transactionsRepo) GetByID(ctx context.Context, uid, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND uid = ?`, id, uid)
	t, err := scanTransactionRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, store.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

func (r transactionsRepo) Update(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET account_id = ?, category_id = ?, type = ?, amount_cents = ?,
		 description = ?, date = ?, month_key = ?, account_name = ?, category_name = ?,
		 auto_created = ?, linked_payable_status_id = ?
		 WHERE id = ? AND uid = ?`,
		t.AccountID, t.CategoryID, string(t.Type), t.Amount.Cents,
		t.Description, encodeTime(t.Date), string(t.MonthKey), t.AccountName, t.CategoryName,
		boolToInt(t.AutoCreated), t.LinkedPayableStatusID,
		t.ID, t.UID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, store.ErrNotFound
	}
	return t, nil
}

func (r transactionsRepo) Delete(ctx context.Context, uid, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND uid = ?`, id, uid)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r transactionsRepo) list(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransactionRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r transactionsRepo) ListByMonth(ctx context.Context, uid string, monthKey core.MonthKey, limit int, startAfter string) ([]core.Transaction, error) {
	if limit <= 0 || limit > store.MaxMonthScan {
		limit = store.MaxMonthScan
	}
	if startAfter == "" {
		return r.list(ctx,
			`SELECT `+transactionColumns+` FROM transactions
			 WHERE uid = ? AND month_key = ?
			 ORDER BY date DESC, id DESC LIMIT ?`,
			uid, string(monthKey), limit)
	}
	// Cursor: everything strictly after the (date, id) of the startAfter row
	// in descending order.
	return r.list(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE uid = ? AND month_key = ?
		   AND (date, id) < (SELECT date, id FROM transactions WHERE id = ?)
		 ORDER BY date DESC, id DESC LIMIT ?`,
		uid, string(monthKey), startAfter, limit)
}

func (r transactionsRepo) ListRecent(ctx context.Context, uid string, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.list(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE uid = ? ORDER BY date DESC, id DESC LIMIT ?`, uid, limit)
}

func (r transactionsRepo) ListByUser(ctx context.Context, uid string) ([]core.Transaction, error) {
	return r.list(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE uid = ?`, uid)
}

func (r transactionsRepo) CountByCategory(ctx context.Context, uid, categoryID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE uid = ? AND category_id = ?`, uid, categoryID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions by category: %w", err)
	}
	return n, nil
}
