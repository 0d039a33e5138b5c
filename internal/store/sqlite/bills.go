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

// --- bill templates ---

type templatesRepo struct{ db *sql.DB }

const templateColumns = `id, uid, title, amount_cents, due_day, category_id, category_name, notes, active, created_at`

func (r templatesRepo) Create(ctx context.Context, t core.BillTemplate) (core.BillTemplate, error) {
	t.ID = uuid.NewString()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bill_templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UID, t.Title, t.Amount.Cents, t.DueDay, t.CategoryID, t.CategoryName,
		t.Notes, boolToInt(t.Active), encodeTime(t.CreatedAt))
	if err != nil {
		return core.BillTemplate{}, fmt.Errorf("insert bill template: %w", err)
	}
	return t, nil
}

func scanTemplateRow(scan func(dest ...any) error) (core.BillTemplate, error) {
	var t core.BillTemplate
	var active int
	var createdAt string
	err := scan(&t.ID, &t.UID, &t.Title, &t.Amount.Cents, &t.DueDay, &t.CategoryID,
		&t.CategoryName, &t.Notes, &active, &createdAt)
	if err != nil {
		return core.BillTemplate{}, err
	}
	t.Active = active != 0
	t.CreatedAt = decodeTime(createdAt)
	return t, nil
}

func (r templatesRepo) GetByID(ctx context.Context, uid, id string) (core.BillTemplate, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM bill_templates WHERE id = ? AND uid = ?`, id, uid)
	t, err := scanTemplateRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BillTemplate{}, store.ErrNotFound
	}
	if err != nil {
		return core.BillTemplate{}, fmt.Errorf("scan bill template: %w", err)
	}
	return t, nil
}

func (r templatesRepo) Update(ctx context.Context, t core.BillTemplate) (core.BillTemplate, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bill_templates SET title = ?, amount_cents = ?, due_day = ?, category_id = ?,
		 category_name = ?, notes = ?, active = ? WHERE id = ? AND uid = ?`,
		t.Title, t.Amount.Cents, t.DueDay, t.CategoryID, t.CategoryName, t.Notes,
		boolToInt(t.Active), t.ID, t.UID)
	if err != nil {
		return core.BillTemplate{}, fmt.Errorf("update bill template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.BillTemplate{}, store.ErrNotFound
	}
	return t, nil
}

func (r templatesRepo) Delete(ctx context.Context, uid, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bill_templates WHERE id = ? AND uid = ?`, id, uid)
	if err != nil {
		return fmt.Errorf("delete bill template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r templatesRepo) listTemplates(ctx context.Context, query string, args ...any) ([]core.BillTemplate, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bill templates: %w", err)
	}
	defer rows.Close()

	var out []core.BillTemplate
	for rows.Next() {
		t, err := scanTemplateRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan bill template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r templatesRepo) ListActive(ctx context.Context, uid string, limit int) ([]core.BillTemplate, error) {
	if limit <= 0 {
		limit = store.MaxMonthScan
	}
	return r.listTemplates(ctx,
		`SELECT `+templateColumns+` FROM bill_templates
		 WHERE uid = ? AND active = 1 ORDER BY due_day, id LIMIT ?`, uid, limit)
}

func (r templatesRepo) ListByUser(ctx context.Context, uid string, limit int) ([]core.BillTemplate, error) {
	if limit <= 0 {
		limit = store.MaxMonthScan
	}
	return r.listTemplates(ctx,
		`SELECT `+templateColumns+` FROM bill_templates
		 WHERE uid = ? ORDER BY due_day, id LIMIT ?`, uid, limit)
}

// --- bill statuses ---

type statusesRepo struct{ db *sql.DB }

const statusColumns = `id, uid, template_id, month_key, status, paid_at, linked_transaction_id, amount_override_cents`

func (r statusesRepo) Ensure(ctx context.Context, st core.BillStatus) (core.BillStatus, error) {
	st.ID = uuid.NewString()
	// UNIQUE(template_id, month_key) makes the first writer win; the losing
	// insert is a no-op and the re-select returns the winner's record.
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bill_statuses (`+statusColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(template_id, month_key) DO NOTHING`,
		st.ID, st.UID, st.TemplateID, string(st.MonthKey), string(st.State),
		encodeNullableTime(st.PaidAt), st.LinkedTransactionID, encodeNullableCents(st.AmountOverride))
	if err != nil {
		return core.BillStatus{}, fmt.Errorf("ensure bill status: %w", err)
	}
	return r.GetByTemplateAndMonth(ctx, st.UID, st.TemplateID, st.MonthKey)
}

func encodeNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func encodeNullableCents(m *core.Money) any {
	if m == nil {
		return nil
	}
	return m.Cents
}

func scanStatusRow(scan func(dest ...any) error) (core.BillStatus, error) {
	var st core.BillStatus
	var monthKey, state string
	var paidAt sql.NullString
	var override sql.NullInt64
	err := scan(&st.ID, &st.UID, &st.TemplateID, &monthKey, &state, &paidAt,
		&st.LinkedTransactionID, &override)
	if err != nil {
		return core.BillStatus{}, err
	}
	st.MonthKey = core.MonthKey(monthKey)
	st.State = core.BillState(state)
	if paidAt.Valid {
		t := decodeTime(paidAt.String)
		st.PaidAt = &t
	}
	if override.Valid {
		st.AmountOverride = &core.Money{Cents: override.Int64}
	}
	return st, nil
}

func (r statusesRepo) GetByID(ctx context.Context, uid, id string) (core.BillStatus, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+statusColumns+` FROM bill_statuses WHERE id = ? AND uid = ?`, id, uid)
	st, err := scanStatusRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BillStatus{}, store.ErrNotFound
	}
	if err != nil {
		return core.BillStatus{}, fmt.Errorf("scan bill status: %w", err)
	}
	return st, nil
}

func (r statusesRepo) GetByTemplateAndMonth(ctx context.Context, uid, templateID string, monthKey core.MonthKey) (core.BillStatus, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+statusColumns+` FROM bill_statuses
		 WHERE uid = ? AND template_id = ? AND month_key = ?`, uid, templateID, string(monthKey))
	st, err := scanStatusRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BillStatus{}, store.ErrNotFound
	}
	if err != nil {
		return core.BillStatus{}, fmt.Errorf("scan bill status: %w", err)
	}
	return st, nil
}

func (r statusesRepo) Update(ctx context.Context, st core.BillStatus) (core.BillStatus, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bill_statuses SET status = ?, paid_at = ?, linked_transaction_id = ?, amount_override_cents = ?
		 WHERE id = ? AND uid = ?`,
		string(st.State), encodeNullableTime(st.PaidAt), st.LinkedTransactionID,
		encodeNullableCents(st.AmountOverride), st.ID, st.UID)
	if err != nil {
		return core.BillStatus{}, fmt.Errorf("update bill status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.BillStatus{}, store.ErrNotFound
	}
	return st, nil
}

func (r statusesRepo) ListByMonth(ctx context.Context, uid string, monthKey core.MonthKey) ([]core.BillStatus, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+statusColumns+` FROM bill_statuses WHERE uid = ? AND month_key = ? ORDER BY id`,
		uid, string(monthKey))
	if err != nil {
		return nil, fmt.Errorf("query bill statuses: %w", err)
	}
	defer rows.Close()

	var out []core.BillStatus
	for rows.Next() {
		st, err := scanStatusRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan bill status: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r statusesRepo) DeleteByTemplate(ctx context.Context, uid, templateID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM bill_statuses WHERE uid = ? AND template_id = ?`, uid, templateID)
	if err != nil {
		return fmt.Errorf("delete bill statuses by template: %w", err)
	}
	return nil
}
