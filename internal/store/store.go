// Package store defines the durable ledger storage contract consumed by the
// services. Implementations live in store/memory and store/sqlite and are
// selected through the backend factory, never by editing imports.
package store

import (
	"context"
	"errors"

	"github.com/Pehalba/AdmFinanceira/internal/core"
)

// ErrNotFound is returned when a referenced record does not exist (or belongs
// to another user, which callers cannot distinguish).
var (
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned by uniqueness-constrained creates
	// (currently only user email).
	ErrAlreadyExists = errors.New("record already exists")
)

// MaxMonthScan caps month-scoped transaction scans. Summaries fold over at
// most this many records per month.
const MaxMonthScan = 1000

// Store bundles the per-collection repositories. Every read and write is
// scoped by the owning user id.
type Store interface {
	Accounts() Accounts
	Categories() Categories
	Transactions() Transactions
	Templates() Templates
	Statuses() Statuses
	Summaries() Summaries
	Users() Users
	Meta() Meta
	Close() error
}

type Accounts interface {
	Create(ctx context.Context, a core.Account) (core.Account, error)
	GetByID(ctx context.Context, uid, id string) (core.Account, error)
	Update(ctx context.Context, a core.Account) (core.Account, error)
	Delete(ctx context.Context, uid, id string) error
	ListByUser(ctx context.Context, uid string) ([]core.Account, error)
}

type Categories interface {
	Create(ctx context.Context, c core.Category) (core.Category, error)
	GetByID(ctx context.Context, uid, id string) (core.Category, error)
	Update(ctx context.Context, c core.Category) (core.Category, error)
	Delete(ctx context.Context, uid, id string) error
	ListByUser(ctx context.Context, uid string) ([]core.Category, error)
}

type Transactions interface {
	Create(ctx context.Context, t core.Transaction) (core.Transaction, error)
	GetByID(ctx context.Context, uid, id string) (core.Transaction, error)
	Update(ctx context.Context, t core.Transaction) (core.Transaction, error)
	Delete(ctx context.Context, uid, id string) error

	// ListByMonth returns the month's transactions newest first, capped at
	// limit. startAfter is the id of the last record of the previous page;
	// empty starts from the top.
	ListByMonth(ctx context.Context, uid string, monthKey core.MonthKey, limit int, startAfter string) ([]core.Transaction, error)
	ListRecent(ctx context.Context, uid string, limit int) ([]core.Transaction, error)
	// ListByUser returns every transaction of the user, any order. Used by
	// the full balance recompute.
	ListByUser(ctx context.Context, uid string) ([]core.Transaction, error)
	CountByCategory(ctx context.Context, uid, categoryID string) (int, error)
}

type Templates interface {
	Create(ctx context.Context, t core.BillTemplate) (core.BillTemplate, error)
	GetByID(ctx context.Context, uid, id string) (core.BillTemplate, error)
	Update(ctx context.Context, t core.BillTemplate) (core.BillTemplate, error)
	Delete(ctx context.Context, uid, id string) error
	ListActive(ctx context.Context, uid string, limit int) ([]core.BillTemplate, error)
	ListByUser(ctx context.Context, uid string, limit int) ([]core.BillTemplate, error)
}

type Statuses interface {
	// Ensure creates the status if no record exists for its (templateId,
	// monthKey) pair and returns the stored record either way. First writer
	// wins; repeated calls are safe.
	Ensure(ctx context.Context, s core.BillStatus) (core.BillStatus, error)
	GetByID(ctx context.Context, uid, id string) (core.BillStatus, error)
	GetByTemplateAndMonth(ctx context.Context, uid, templateID string, monthKey core.MonthKey) (core.BillStatus, error)
	Update(ctx context.Context, s core.BillStatus) (core.BillStatus, error)
	ListByMonth(ctx context.Context, uid string, monthKey core.MonthKey) ([]core.BillStatus, error)
	DeleteByTemplate(ctx context.Context, uid, templateID string) error
}

type Summaries interface {
	Get(ctx context.Context, uid string, monthKey core.MonthKey) (core.MonthlySummary, error)
	// Upsert fully overwrites the cached summary for (uid, monthKey).
	Upsert(ctx context.Context, s core.MonthlySummary) error
}

type Users interface {
	Create(ctx context.Context, u core.User) (core.User, error)
	GetByID(ctx context.Context, id string) (core.User, error)
	GetByEmail(ctx context.Context, email string) (core.User, error)
}

type Meta interface {
	Get(ctx context.Context, uid string) (core.UserMeta, error)
	Put(ctx context.Context, m core.UserMeta) error
}
