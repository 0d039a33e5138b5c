package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Checking   AccountType = "checking"
	Savings    AccountType = "savings"
	Investment AccountType = "investment"
	Credit     AccountType = "credit"
	OtherAcct  AccountType = "other"

	StatusOpen BillState = "open"
	StatusPaid BillState = "paid"
)

type (
	TransactionType string
	AccountType     string
	BillState       string

	// Account is a bank or cash account. Balance is mutated exclusively by
	// the balance reconciler.
	Account struct {
		ID        string      `json:"id"`
		UID       string      `json:"uid"`
		Name      string      `json:"name"`
		Type      AccountType `json:"type"`
		Balance   Money       `json:"balance"`
		IsPrimary bool        `json:"isPrimary"`
		CreatedAt time.Time   `json:"createdAt"`
	}

	// Category labels transactions as income or expense buckets.
	Category struct {
		ID    string          `json:"id"`
		UID   string          `json:"uid"`
		Name  string          `json:"name"`
		Type  TransactionType `json:"type"`
		Color string          `json:"color"`
	}

	// Transaction is a single ledger entry. Amount is an unsigned magnitude;
	// the signed effect on a balance comes from SignedDelta.
	Transaction struct {
		ID          string          `json:"id"`
		UID         string          `json:"uid"`
		AccountID   string          `json:"accountId,omitempty"`
		CategoryID  string          `json:"categoryId"`
		Type        TransactionType `json:"type"`
		Amount      Money           `json:"amount"`
		Description string          `json:"description"`
		Date        time.Time       `json:"date"`
		MonthKey    MonthKey        `json:"monthKey"`

		// Display caches refreshed on write; may go stale after renames.
		AccountName  string `json:"accountName,omitempty"`
		CategoryName string `json:"categoryName,omitempty"`

		// Set when the bill scheduler created this entry.
		AutoCreated           bool   `json:"autoCreated,omitempty"`
		LinkedPayableStatusID string `json:"linkedPayableStatusId,omitempty"`

		CreatedAt time.Time `json:"createdAt"`
	}

	// BillTemplate is a recurring monthly obligation independent of any
	// specific month.
	BillTemplate struct {
		ID           string    `json:"id"`
		UID          string    `json:"uid"`
		Title        string    `json:"title"`
		Amount       Money     `json:"amount"`
		DueDay       int       `json:"dueDay"`
		CategoryID   string    `json:"categoryId"`
		CategoryName string    `json:"categoryName,omitempty"`
		Notes        string    `json:"notes,omitempty"`
		Active       bool      `json:"active"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// BillStatus is the per-month state of a template: open or paid, with an
	// optional per-month amount override and a back-reference to the
	// auto-created transaction while paid.
	BillStatus struct {
		ID                  string     `json:"id"`
		UID                 string     `json:"uid"`
		TemplateID          string     `json:"templateId"`
		MonthKey            MonthKey   `json:"monthKey"`
		State               BillState  `json:"status"`
		PaidAt              *time.Time `json:"paidAtISO,omitempty"`
		LinkedTransactionID string     `json:"linkedTransactionId,omitempty"`
		AmountOverride      *Money     `json:"amountOverride,omitempty"`
	}

	// CategoryTotal is one row of a summary breakdown.
	CategoryTotal struct {
		CategoryID   string `json:"categoryId"`
		CategoryName string `json:"categoryName"`
		Total        Money  `json:"total"`
		Count        int    `json:"count"`
	}

	// MonthlySummary is a materialized view of one month's transactions.
	// It is never a source of truth; Recompute rebuilds it at any time.
	MonthlySummary struct {
		UID               string                   `json:"uid"`
		MonthKey          MonthKey                 `json:"monthKey"`
		TotalIncome       Money                    `json:"totalIncome"`
		TotalExpense      Money                    `json:"totalExpense"`
		Balance           Money                    `json:"balance"`
		TransactionCount  int                      `json:"transactionCount"`
		ByCategory        map[string]CategoryTotal `json:"byCategory"`
		ByCategoryIncome  map[string]CategoryTotal `json:"byCategoryIncome"`
		ByCategoryExpense map[string]CategoryTotal `json:"byCategoryExpense"`
	}

	// User owns all other records.
	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		Name         string    `json:"name"`
		PasswordHash []byte    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// UserMeta carries per-user cache version counters so clients can drop
	// local caches after a mutation.
	UserMeta struct {
		UID               string `json:"uid"`
		AccountsVersion   int64  `json:"accountsVersion"`
		CategoriesVersion int64  `json:"categoriesVersion"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidMonthKey    = errors.New("invalid month key")
	ErrInvalidDueDay      = errors.New("invalid due day")
	ErrInvalidType        = errors.New("invalid type")
	ErrEmptyTitle         = errors.New("empty title")
	ErrEmptyName          = errors.New("empty name")
	ErrMissingUser        = errors.New("missing owning user id")
	ErrMissingTemplate    = errors.New("missing template id")
	ErrZeroDate           = errors.New("date cannot be zero")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrTitleTooLong       = errors.New("title too long (max 200 characters)")
)

// SignedDelta is the transaction's effect on its account balance: income
// contributes positively, expense negatively. The stored amount is always a
// magnitude, so the result depends only on the type.
func (t Transaction) SignedDelta() Money {
	magnitude := t.Amount.Abs()
	if t.Type == Income {
		return magnitude
	}
	return magnitude.Neg()
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (a AccountType) Valid() bool {
	switch a {
	case Checking, Savings, Investment, Credit, OtherAcct:
		return true
	}
	return false
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.UID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.UID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UID) == "" {
		return ErrMissingUser
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if err := t.MonthKey.Validate(); err != nil {
		return err
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

func (b BillTemplate) Validate() error {
	if strings.TrimSpace(b.UID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(b.Title) == "" {
		return ErrEmptyTitle
	}
	if len(b.Title) > 200 {
		return ErrTitleTooLong
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if b.DueDay < 1 || b.DueDay > 31 {
		return ErrInvalidDueDay
	}
	return nil
}

func (s BillStatus) Validate() error {
	if strings.TrimSpace(s.UID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(s.TemplateID) == "" {
		return ErrMissingTemplate
	}
	if err := s.MonthKey.Validate(); err != nil {
		return err
	}
	if s.State != StatusOpen && s.State != StatusPaid {
		return ErrInvalidType
	}
	if s.AmountOverride != nil && s.AmountOverride.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// EffectiveAmount resolves a bill's amount for one month: the status
// override when present, the template default otherwise.
func (s BillStatus) EffectiveAmount(tpl BillTemplate) Money {
	if s.AmountOverride != nil {
		return *s.AmountOverride
	}
	return tpl.Amount
}
