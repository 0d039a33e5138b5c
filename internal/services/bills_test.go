package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	"github.com/Pehalba/AdmFinanceira/internal/store"
)

func (e *env) mustTemplate(t *testing.T, uid, title string, cents int64, dueDay int, categoryID string) core.BillTemplate {
	t.Helper()
	tpl, err := e.bills.CreateTemplate(context.Background(), core.BillTemplate{
		UID:        uid,
		Title:      title,
		Amount:     core.Money{Cents: cents},
		DueDay:     dueDay,
		CategoryID: categoryID,
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	return tpl
}

func TestListForMonthCreatesStatusesLazily(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	cat := e.mustCategory(t, uid, "Housing", core.Expense)
	e.mustTemplate(t, uid, "Rent", 120000, 1, cat.ID)
	e.mustTemplate(t, uid, "Internet", 8900, 15, cat.ID)

	bills, err := e.bills.ListForMonth(ctx, uid, "2026-08")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bills) != 2 {
		t.Fatalf("got %d bills, want 2", len(bills))
	}
	if bills[0].Template.Title != "Rent" || bills[1].Template.Title != "Internet" {
		t.Errorf("bills not ordered by due day: %s, %s", bills[0].Template.Title, bills[1].Template.Title)
	}
	for _, b := range bills {
		if b.Status.State != core.StatusOpen {
			t.Errorf("%s status = %s, want open", b.Template.Title, b.Status.State)
		}
		if b.Status.MonthKey != "2026-08" {
			t.Errorf("%s month = %s", b.Template.Title, b.Status.MonthKey)
		}
	}

	statuses, err := e.store.Statuses().ListByMonth(ctx, uid, "2026-08")
	if err != nil {
		t.Fatalf("list statuses: %v", err)
	}
	if len(statuses) != 2 {
		t.Errorf("stored %d statuses, want 2", len(statuses))
	}
}

func TestEnsureStatusConcurrentCallersConverge(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	cat := e.mustCategory(t, uid, "Housing", core.Expense)
	tpl := e.mustTemplate(t, uid, "Rent", 120000, 5, cat.ID)

	const callers = 16
	results := make([]core.BillStatus, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := e.bills.EnsureStatusForMonth(ctx, uid, tpl.ID, "2026-09")
			if err != nil {
				t.Errorf("ensure: %v", err)
				return
			}
			results[i] = st
		}()
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if results[i].ID != results[0].ID {
			t.Fatalf("caller %d saw status %s, caller 0 saw %s", i, results[i].ID, results[0].ID)
		}
	}

	statuses, _ := e.store.Statuses().ListByMonth(ctx, uid, "2026-09")
	if len(statuses) != 1 {
		t.Errorf("stored %d statuses, want exactly 1", len(statuses))
	}
}

func TestMarkPaidCreatesLinkedTransaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	acct := e.mustAccount(t, uid, "Checking")
	cat := e.mustCategory(t, uid, "Housing", core.Expense)
	tpl := e.mustTemplate(t, uid, "Rent", 120000, 1, cat.ID)

	status, err := e.bills.EnsureStatusForMonth(ctx, uid, tpl.ID, "2026-08")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	now := date(2026, time.August, 1)
	paid, err := e.bills.MarkPaid(ctx, uid, status.ID, acct.ID, now)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.State != core.StatusPaid || paid.PaidAt == nil || paid.LinkedTransactionID == "" {
		t.Fatalf("paid status incomplete: %+v", paid)
	}

	tx, err := e.transactions.Get(ctx, uid, paid.LinkedTransactionID)
	if err != nil {
		t.Fatalf("load payment transaction: %v", err)
	}
	if !tx.AutoCreated || tx.LinkedPayableStatusID != paid.ID {
		t.Errorf("payment not linked back: %+v", tx)
	}
	if tx.Amount.Cents != 120000 || tx.Type != core.Expense {
		t.Errorf("payment = %d %s, want 120000 expense", tx.Amount.Cents, tx.Type)
	}
	if got := e.balance(t, uid, acct.ID); got != -120000 {
		t.Errorf("balance = %d, want -120000", got)
	}

	// Paying twice is a no-op: same status back, no second payment booked.
	again, err := e.bills.MarkPaid(ctx, uid, paid.ID, acct.ID, now)
	if err != nil {
		t.Fatalf("second MarkPaid: %v", err)
	}
	if again.LinkedTransactionID != paid.LinkedTransactionID {
		t.Errorf("second MarkPaid linked %s, want %s", again.LinkedTransactionID, paid.LinkedTransactionID)
	}
	if got := e.balance(t, uid, acct.ID); got != -120000 {
		t.Errorf("balance after double pay = %d, want -120000", got)
	}
}

func TestMarkPaidBooksRetroactivePaymentIntoBillMonth(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	acct := e.mustAccount(t, uid, "Checking")
	cat := e.mustCategory(t, uid, "Housing", core.Expense)
	tpl := e.mustTemplate(t, uid, "Rent", 120000, 5, cat.ID)

	status, err := e.bills.EnsureStatusForMonth(ctx, uid, tpl.ID, "2026-05")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	// Paying in late August settles the May bill.
	now := date(2026, time.August, 30)
	paid, err := e.bills.MarkPaid(ctx, uid, status.ID, acct.ID, now)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.PaidAt == nil || !paid.PaidAt.Equal(now) {
		t.Errorf("paidAt = %v, want %v", paid.PaidAt, now)
	}

	tx, err := e.transactions.Get(ctx, uid, paid.LinkedTransactionID)
	if err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if tx.MonthKey != "2026-05" {
		t.Errorf("payment month = %s, want 2026-05", tx.MonthKey)
	}
	if tx.Date.Year() != 2026 || tx.Date.Month() != time.May || tx.Date.Day() != 5 {
		t.Errorf("payment date = %v, want the due date 2026-05-05", tx.Date)
	}

	may, err := e.store.Summaries().Get(ctx, uid, "2026-05")
	if err != nil {
		t.Fatalf("get may summary: %v", err)
	}
	if may.TotalExpense.Cents != 120000 {
		t.Errorf("may expense = %d, want 120000", may.TotalExpense.Cents)
	}
	if august, err := e.store.Summaries().Get(ctx, uid, "2026-08"); err == nil && august.TotalExpense.Cents != 0 {
		t.Errorf("august expense = %d, want 0", august.TotalExpense.Cents)
	}
}

func TestMarkOpenWithoutLinkedTransactionRecomputesSummary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	cat := e.mustCategory(t, uid, "Housing", core.Expense)
	tpl := e.mustTemplate(t, uid, "Rent", 120000, 5, cat.ID)

	status, err := e.bills.EnsureStatusForMonth(ctx, uid, tpl.ID, "2026-05")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	// A paid status without a payment link, as left behind by a partial
	// failure or a manual data edit.
	paidAt := date(2026, time.May, 5)
	status.State = core.StatusPaid
	status.PaidAt = &paidAt
	if _, err := e.store.Statuses().Update(ctx, status); err != nil {
		t.Fatalf("force paid status: %v", err)
	}

	reopened, err := e.bills.MarkOpen(ctx, uid, status.ID)
	if err != nil {
		t.Fatalf("mark open: %v", err)
	}
	if reopened.State != core.StatusOpen || reopened.PaidAt != nil {
		t.Errorf("reopened status incomplete: %+v", reopened)
	}

	summary, err := e.store.Summaries().Get(ctx, uid, "2026-05")
	if err != nil {
		t.Fatalf("summary was not recomputed: %v", err)
	}
	if summary.TransactionCount != 0 {
		t.Errorf("summary count = %d, want 0", summary.TransactionCount)
	}
}

func TestMarkOpenRestoresLedgerState(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	acct := e.mustAccount(t, uid, "Checking")
	cat := e.mustCategory(t, uid, "Housing", core.Expense)
	tpl := e.mustTemplate(t, uid, "Rent", 120000, 1, cat.ID)

	status, _ := e.bills.EnsureStatusForMonth(ctx, uid, tpl.ID, "2026-08")
	now := date(2026, time.August, 1)
	paid, err := e.bills.MarkPaid(ctx, uid, status.ID, acct.ID, now)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	linkedID := paid.LinkedTransactionID

	reopened, err := e.bills.MarkOpen(ctx, uid, paid.ID)
	if err != nil {
		t.Fatalf("mark open: %v", err)
	}
	if reopened.State != core.StatusOpen || reopened.PaidAt != nil || reopened.LinkedTransactionID != "" {
		t.Errorf("reopened status incomplete: %+v", reopened)
	}

	if _, err := e.transactions.Get(ctx, uid, linkedID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("payment transaction should be gone, got err = %v", err)
	}
	if got := e.balance(t, uid, acct.ID); got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}

	summary, err := e.store.Summaries().Get(ctx, uid, "2026-08")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if summary.TransactionCount != 0 || summary.TotalExpense.Cents != 0 {
		t.Errorf("summary not restored: count=%d expense=%d", summary.TransactionCount, summary.TotalExpense.Cents)
	}

	// Reopening again is a no-op.
	again, err := e.bills.MarkOpen(ctx, uid, paid.ID)
	if err != nil {
		t.Fatalf("second mark open: %v", err)
	}
	if again.State != core.StatusOpen {
		t.Errorf("state = %s, want open", again.State)
	}
}

func TestDeletingPaymentTransactionReopensBill(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	acct := e.mustAccount(t, uid, "Checking")
	cat := e.mustCategory(t, uid, "Housing", core.Expense)
	tpl := e.mustTemplate(t, uid, "Rent", 120000, 1, cat.ID)

	status, _ := e.bills.EnsureStatusForMonth(ctx, uid, tpl.ID, "2026-08")
	paid, err := e.bills.MarkPaid(ctx, uid, status.ID, acct.ID, date(2026, time.August, 1))
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	if err := e.transactions.Delete(ctx, uid, paid.LinkedTransactionID); err != nil {
		t.Fatalf("delete payment: %v", err)
	}

	reopened, err := e.store.Statuses().GetByID(ctx, uid, paid.ID)
	if err != nil {
		t.Fatalf("reload status: %v", err)
	}
	if reopened.State != core.StatusOpen || reopened.LinkedTransactionID != "" {
		t.Errorf("status not reopened: %+v", reopened)
	}
}

func TestAmountOverridePropagatesToPaidTransaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	acct := e.mustAccount(t, uid, "Checking")
	cat := e.mustCategory(t, uid, "Utilities", core.Expense)
	tpl := e.mustTemplate(t, uid, "Electricity", 10000, 20, cat.ID)

	status, _ := e.bills.EnsureStatusForMonth(ctx, uid, tpl.ID, "2026-08")

	// Override while open only changes the effective amount.
	override := core.Money{Cents: 13550}
	updated, err := e.bills.SetAmountOverride(ctx, uid, status.ID, &override)
	if err != nil {
		t.Fatalf("set override: %v", err)
	}
	if got := updated.EffectiveAmount(tpl); got.Cents != 13550 {
		t.Errorf("effective amount = %d, want 13550", got.Cents)
	}

	paid, err := e.bills.MarkPaid(ctx, uid, status.ID, acct.ID, date(2026, time.August, 20))
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if got := e.balance(t, uid, acct.ID); got != -13550 {
		t.Errorf("balance = %d, want -13550", got)
	}

	// Changing the override while paid rewrites the payment.
	newOverride := core.Money{Cents: 9000}
	if _, err := e.bills.SetAmountOverride(ctx, uid, paid.ID, &newOverride); err != nil {
		t.Fatalf("second override: %v", err)
	}
	tx, err := e.transactions.Get(ctx, uid, paid.LinkedTransactionID)
	if err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if tx.Amount.Cents != 9000 {
		t.Errorf("payment amount = %d, want 9000", tx.Amount.Cents)
	}
	if got := e.balance(t, uid, acct.ID); got != -9000 {
		t.Errorf("balance = %d, want -9000", got)
	}

	// Clearing the override falls back to the template amount.
	cleared, err := e.bills.SetAmountOverride(ctx, uid, paid.ID, nil)
	if err != nil {
		t.Fatalf("clear override: %v", err)
	}
	if got := cleared.EffectiveAmount(tpl); got.Cents != 10000 {
		t.Errorf("effective amount after clear = %d, want 10000", got.Cents)
	}
}

func TestDeleteTemplateCascadesStatusesKeepsTransactions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	acct := e.mustAccount(t, uid, "Checking")
	cat := e.mustCategory(t, uid, "Housing", core.Expense)
	tpl := e.mustTemplate(t, uid, "Rent", 120000, 1, cat.ID)

	status, _ := e.bills.EnsureStatusForMonth(ctx, uid, tpl.ID, "2026-08")
	paid, err := e.bills.MarkPaid(ctx, uid, status.ID, acct.ID, date(2026, time.August, 1))
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	if err := e.bills.DeleteTemplate(ctx, uid, tpl.ID); err != nil {
		t.Fatalf("delete template: %v", err)
	}

	if _, err := e.store.Statuses().GetByID(ctx, uid, paid.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("status should be gone, got err = %v", err)
	}
	// The payment stays as ledger history.
	if _, err := e.transactions.Get(ctx, uid, paid.LinkedTransactionID); err != nil {
		t.Errorf("payment transaction should survive: %v", err)
	}
}

func TestListUpcomingSpansMonthBoundary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	cat := e.mustCategory(t, uid, "Housing", core.Expense)
	e.mustTemplate(t, uid, "Rent", 120000, 1, cat.ID)
	e.mustTemplate(t, uid, "Internet", 8900, 28, cat.ID)
	e.mustTemplate(t, uid, "Gym", 4500, 15, cat.ID)

	// From Aug 27 with a 7 day horizon: Internet (Aug 28) and Rent (Sep 1)
	// are upcoming, Gym (Aug 15, Sep 15) is not.
	now := date(2026, time.August, 27)
	upcoming, err := e.bills.ListUpcoming(ctx, uid, now, 7)
	if err != nil {
		t.Fatalf("list upcoming: %v", err)
	}
	if len(upcoming) != 2 {
		t.Fatalf("got %d upcoming, want 2: %+v", len(upcoming), upcoming)
	}
	if upcoming[0].Template.Title != "Internet" || upcoming[1].Template.Title != "Rent" {
		t.Errorf("order = %s, %s", upcoming[0].Template.Title, upcoming[1].Template.Title)
	}
}

func TestDueDateClampedToShortMonths(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	uid := "u1"
	cat := e.mustCategory(t, uid, "Subscriptions", core.Expense)
	e.mustTemplate(t, uid, "Storage", 999, 31, cat.ID)

	bills, err := e.bills.ListForMonth(ctx, uid, "2026-02")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bills) != 1 {
		t.Fatalf("got %d bills", len(bills))
	}
	due := bills[0].DueDate
	if due.Year() != 2026 || due.Month() != time.February || due.Day() != 28 {
		t.Errorf("due date = %v, want 2026-02-28", due)
	}
}
