package services

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	"github.com/Pehalba/AdmFinanceira/internal/store"
	"github.com/Pehalba/AdmFinanceira/internal/store/memory"
)

type env struct {
	store      *memory.Store
	reconciler *Reconciler
	aggregator *Aggregator

	transactions *TransactionService
	accounts     *AccountService
	categories   *CategoryService
	bills        *BillService
	dashboard    *DashboardService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.New()
	rec := NewReconciler(st)
	agg := NewAggregator(st)
	txs := NewTransactionService(st, rec, agg, nil)
	bills := NewBillService(st, txs)
	return &env{
		store:        st,
		reconciler:   rec,
		aggregator:   agg,
		transactions: txs,
		accounts:     NewAccountService(st, rec),
		categories:   NewCategoryService(st),
		bills:        bills,
		dashboard:    NewDashboardService(st, agg, bills, 7, 10),
	}
}

func (e *env) mustAccount(t *testing.T, uid, name string) core.Account {
	t.Helper()
	a, err := e.accounts.Create(context.Background(), core.Account{
		UID:  uid,
		Name: name,
		Type: core.Checking,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func (e *env) mustCategory(t *testing.T, uid, name string, typ core.TransactionType) core.Category {
	t.Helper()
	c, err := e.categories.Create(context.Background(), core.Category{
		UID:  uid,
		Name: name,
		Type: typ,
	})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return c
}

func (e *env) balance(t *testing.T, uid, accountID string) int64 {
	t.Helper()
	a, err := e.accounts.Get(context.Background(), uid, accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return a.Balance.Cents
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.Local)
}

func TestTransactionCreateAdjustsBalance(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	acct := e.mustAccount(t, uid, "Checking")
	cat := e.mustCategory(t, uid, "Salary", core.Income)

	_, err := e.transactions.Create(ctx, core.Transaction{
		UID:        uid,
		AccountID:  acct.ID,
		CategoryID: cat.ID,
		Type:       core.Income,
		Amount:     core.Money{Cents: 250000},
		Date:       date(2026, time.March, 5),
	})
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	if got := e.balance(t, uid, acct.ID); got != 250000 {
		t.Errorf("balance after income = %d, want 250000", got)
	}

	groceries := e.mustCategory(t, uid, "Groceries", core.Expense)
	_, err = e.transactions.Create(ctx, core.Transaction{
		UID:        uid,
		AccountID:  acct.ID,
		CategoryID: groceries.ID,
		Type:       core.Expense,
		Amount:     core.Money{Cents: 4599},
		Date:       date(2026, time.March, 6),
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if got := e.balance(t, uid, acct.ID); got != 245401 {
		t.Errorf("balance after expense = %d, want 245401", got)
	}
}

func TestTransactionUpdateMovesBalanceBetweenAccounts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	first := e.mustAccount(t, uid, "Checking")
	second := e.mustAccount(t, uid, "Savings")
	cat := e.mustCategory(t, uid, "Rent", core.Expense)

	tx, err := e.transactions.Create(ctx, core.Transaction{
		UID:        uid,
		AccountID:  first.ID,
		CategoryID: cat.ID,
		Type:       core.Expense,
		Amount:     core.Money{Cents: 120000},
		Date:       date(2026, time.March, 1),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tx.AccountID = second.ID
	tx.Amount = core.Money{Cents: 110000}
	if _, err := e.transactions.Update(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}

	if got := e.balance(t, uid, first.ID); got != 0 {
		t.Errorf("old account balance = %d, want 0", got)
	}
	if got := e.balance(t, uid, second.ID); got != -110000 {
		t.Errorf("new account balance = %d, want -110000", got)
	}
}

func TestTransactionDeleteRestoresBalance(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	acct := e.mustAccount(t, uid, "Checking")
	cat := e.mustCategory(t, uid, "Fuel", core.Expense)

	tx, err := e.transactions.Create(ctx, core.Transaction{
		UID:        uid,
		AccountID:  acct.ID,
		CategoryID: cat.ID,
		Type:       core.Expense,
		Amount:     core.Money{Cents: 7800},
		Date:       date(2026, time.March, 10),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := e.transactions.Delete(ctx, uid, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := e.balance(t, uid, acct.ID); got != 0 {
		t.Errorf("balance after delete = %d, want 0", got)
	}
}

func TestMonthKeyDerivedFromDate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	acct := e.mustAccount(t, uid, "Checking")
	cat := e.mustCategory(t, uid, "Misc", core.Expense)

	tx, err := e.transactions.Create(ctx, core.Transaction{
		UID:        uid,
		AccountID:  acct.ID,
		CategoryID: cat.ID,
		Type:       core.Expense,
		Amount:     core.Money{Cents: 100},
		Date:       date(2026, time.January, 31),
		MonthKey:   "2030-12", // caller-supplied value must be ignored
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.MonthKey != "2026-01" {
		t.Errorf("MonthKey = %s, want 2026-01", tx.MonthKey)
	}
}

func TestCrossMonthUpdateRefreshesBothSummaries(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	acct := e.mustAccount(t, uid, "Checking")
	cat := e.mustCategory(t, uid, "Misc", core.Expense)

	tx, err := e.transactions.Create(ctx, core.Transaction{
		UID:        uid,
		AccountID:  acct.ID,
		CategoryID: cat.ID,
		Type:       core.Expense,
		Amount:     core.Money{Cents: 5000},
		Date:       date(2026, time.March, 15),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tx.Date = date(2026, time.April, 2)
	if _, err := e.transactions.Update(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}

	march, err := e.store.Summaries().Get(ctx, uid, "2026-03")
	if err != nil {
		t.Fatalf("get march summary: %v", err)
	}
	if march.TransactionCount != 0 || march.TotalExpense.Cents != 0 {
		t.Errorf("march summary not emptied: count=%d expense=%d", march.TransactionCount, march.TotalExpense.Cents)
	}

	april, err := e.store.Summaries().Get(ctx, uid, "2026-04")
	if err != nil {
		t.Fatalf("get april summary: %v", err)
	}
	if april.TransactionCount != 1 || april.TotalExpense.Cents != 5000 {
		t.Errorf("april summary = count %d expense %d, want 1 / 5000", april.TransactionCount, april.TotalExpense.Cents)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	acct := e.mustAccount(t, uid, "Checking")
	income := e.mustCategory(t, uid, "Salary", core.Income)
	expense := e.mustCategory(t, uid, "Rent", core.Expense)

	for _, tc := range []struct {
		typ   core.TransactionType
		cat   string
		cents int64
	}{
		{core.Income, income.ID, 300000},
		{core.Expense, expense.ID, 120000},
		{core.Expense, expense.ID, 4321},
	} {
		_, err := e.transactions.Create(ctx, core.Transaction{
			UID:        uid,
			AccountID:  acct.ID,
			CategoryID: tc.cat,
			Type:       tc.typ,
			Amount:     core.Money{Cents: tc.cents},
			Date:       date(2026, time.May, 10),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	first, err := e.aggregator.Recompute(ctx, uid, "2026-05")
	if err != nil {
		t.Fatalf("first recompute: %v", err)
	}
	second, err := e.aggregator.Recompute(ctx, uid, "2026-05")
	if err != nil {
		t.Fatalf("second recompute: %v", err)
	}

	if first.TotalIncome != second.TotalIncome ||
		first.TotalExpense != second.TotalExpense ||
		first.Balance != second.Balance ||
		first.TransactionCount != second.TransactionCount {
		t.Errorf("recompute not idempotent: %+v vs %+v", first, second)
	}
	if second.TotalIncome.Cents != 300000 || second.TotalExpense.Cents != 124321 {
		t.Errorf("totals = %d / %d, want 300000 / 124321", second.TotalIncome.Cents, second.TotalExpense.Cents)
	}
	if second.Balance.Cents != 175679 {
		t.Errorf("balance = %d, want 175679", second.Balance.Cents)
	}
	if got := second.ByCategoryExpense[expense.ID]; got.Count != 2 || got.Total.Cents != 124321 {
		t.Errorf("expense breakdown = %+v", got)
	}
	// The combined breakdown carries income and expense categories alike.
	if got := second.ByCategory[income.ID]; got.Count != 1 || got.Total.Cents != 300000 {
		t.Errorf("combined breakdown missing income: %+v", got)
	}
	if got := second.ByCategory[expense.ID]; got.Count != 2 || got.Total.Cents != 124321 {
		t.Errorf("combined breakdown expense = %+v", got)
	}
}

func TestRecalculateAllFixesDrift(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	acct := e.mustAccount(t, uid, "Checking")
	cat := e.mustCategory(t, uid, "Misc", core.Expense)

	for i := 0; i < 3; i++ {
		_, err := e.transactions.Create(ctx, core.Transaction{
			UID:        uid,
			AccountID:  acct.ID,
			CategoryID: cat.ID,
			Type:       core.Expense,
			Amount:     core.Money{Cents: 1000},
			Date:       date(2026, time.June, 1+i),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	// Corrupt the stored balance to simulate drift.
	a, _ := e.store.Accounts().GetByID(ctx, uid, acct.ID)
	a.Balance = core.Money{Cents: 999999}
	if _, err := e.store.Accounts().Update(ctx, a); err != nil {
		t.Fatalf("corrupt balance: %v", err)
	}

	if _, err := e.accounts.RecalculateAll(ctx, uid); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := e.balance(t, uid, acct.ID); got != -3000 {
		t.Errorf("balance after recalc = %d, want -3000", got)
	}

	// A second pass must be a no-op.
	if _, err := e.accounts.RecalculateAll(ctx, uid); err != nil {
		t.Fatalf("second recalculate: %v", err)
	}
	if got := e.balance(t, uid, acct.ID); got != -3000 {
		t.Errorf("balance after second recalc = %d, want -3000", got)
	}
}

func TestFirstAccountBecomesPrimary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"

	first := e.mustAccount(t, uid, "Checking")
	if !first.IsPrimary {
		t.Error("first account should be primary")
	}

	second, err := e.accounts.Create(ctx, core.Account{
		UID:       uid,
		Name:      "Savings",
		Type:      core.Savings,
		IsPrimary: true,
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if !second.IsPrimary {
		t.Error("second account should be primary")
	}

	reloaded, err := e.accounts.Get(ctx, uid, first.ID)
	if err != nil {
		t.Fatalf("reload first: %v", err)
	}
	if reloaded.IsPrimary {
		t.Error("first account should have been demoted")
	}
}

func TestCategoryTypeFrozenOnceReferenced(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	acct := e.mustAccount(t, uid, "Checking")
	cat := e.mustCategory(t, uid, "Side gig", core.Income)

	// Renaming is fine before and after references exist.
	cat.Name = "Freelance"
	updated, err := e.categories.Update(ctx, cat)
	if err != nil {
		t.Fatalf("rename: %v", err)
	}

	_, err = e.transactions.Create(ctx, core.Transaction{
		UID:        uid,
		AccountID:  acct.ID,
		CategoryID: cat.ID,
		Type:       core.Income,
		Amount:     core.Money{Cents: 50000},
		Date:       date(2026, time.July, 3),
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	updated.Type = core.Expense
	if _, err := e.categories.Update(ctx, updated); err != ErrCategoryInUse {
		t.Errorf("Update() error = %v, want ErrCategoryInUse", err)
	}
}

func TestBalanceInvariantUnderRandomOps(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	rng := rand.New(rand.NewSource(42))

	accounts := []core.Account{
		e.mustAccount(t, uid, "Checking"),
		e.mustAccount(t, uid, "Savings"),
	}
	cat := e.mustCategory(t, uid, "Misc", core.Expense)

	randomTransaction := func() core.Transaction {
		typ := core.Expense
		if rng.Intn(2) == 0 {
			typ = core.Income
		}
		return core.Transaction{
			UID:        uid,
			AccountID:  accounts[rng.Intn(len(accounts))].ID,
			CategoryID: cat.ID,
			Type:       typ,
			Amount:     core.Money{Cents: int64(rng.Intn(100000) + 1)},
			Date:       date(2026, time.Month(rng.Intn(12)+1), rng.Intn(28)+1),
		}
	}

	var live []core.Transaction
	for i := 0; i < 200; i++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(live) == 0: // create
			created, err := e.transactions.Create(ctx, randomTransaction())
			if err != nil {
				t.Fatalf("op %d create: %v", i, err)
			}
			live = append(live, created)
		case op == 1: // update
			idx := rng.Intn(len(live))
			next := randomTransaction()
			next.ID = live[idx].ID
			updated, err := e.transactions.Update(ctx, next)
			if err != nil {
				t.Fatalf("op %d update: %v", i, err)
			}
			live[idx] = updated
		default: // delete
			idx := rng.Intn(len(live))
			if err := e.transactions.Delete(ctx, uid, live[idx].ID); err != nil {
				t.Fatalf("op %d delete: %v", i, err)
			}
			live = append(live[:idx], live[idx+1:]...)
		}
	}

	want := map[string]int64{}
	for _, tx := range live {
		want[tx.AccountID] += tx.SignedDelta().Cents
	}
	for _, acct := range accounts {
		if got := e.balance(t, uid, acct.ID); got != want[acct.ID] {
			t.Errorf("account %s balance = %d, want sum of signed deltas %d", acct.Name, got, want[acct.ID])
		}
	}

	// A full rebuild must agree with the incrementally maintained balances.
	if err := e.reconciler.RecalculateAll(ctx, uid); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	for _, acct := range accounts {
		if got := e.balance(t, uid, acct.ID); got != want[acct.ID] {
			t.Errorf("account %s balance after rebuild = %d, want %d", acct.Name, got, want[acct.ID])
		}
	}
}

// brokenBalanceStore refuses account rewrites, so balance adjustments fail
// after the ledger write already went through.
type brokenBalanceStore struct {
	*memory.Store
}

func (s brokenBalanceStore) Accounts() store.Accounts {
	return brokenBalanceAccounts{s.Store.Accounts()}
}

type brokenBalanceAccounts struct {
	store.Accounts
}

func (a brokenBalanceAccounts) Update(ctx context.Context, _ core.Account) (core.Account, error) {
	return core.Account{}, errors.New("storage unavailable")
}

func TestCreateSurvivesBalanceWriteFailure(t *testing.T) {
	mem := memory.New()
	st := brokenBalanceStore{mem}
	rec := NewReconciler(st)
	agg := NewAggregator(st)
	txs := NewTransactionService(st, rec, agg, nil)
	ctx := context.Background()
	uid := "u1"

	acct, err := mem.Accounts().Create(ctx, core.Account{UID: uid, Name: "Checking", Type: core.Checking})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	created, err := txs.Create(ctx, core.Transaction{
		UID:       uid,
		AccountID: acct.ID,
		Type:      core.Expense,
		Amount:    core.Money{Cents: 4500},
		Date:      date(2026, time.August, 10),
	})
	if err != nil {
		t.Fatalf("create with failing balance write: %v", err)
	}

	if _, err := st.Transactions().GetByID(ctx, uid, created.ID); err != nil {
		t.Errorf("ledger entry not stored: %v", err)
	}
	a, err := mem.Accounts().GetByID(ctx, uid, acct.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if a.Balance.Cents != 0 {
		t.Errorf("balance = %d, want 0 (adjustment could not be written)", a.Balance.Cents)
	}

	summary, err := st.Summaries().Get(ctx, uid, created.MonthKey)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if summary.TotalExpense.Cents != 4500 {
		t.Errorf("summary expense = %d, want 4500", summary.TotalExpense.Cents)
	}
}
