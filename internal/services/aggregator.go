package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	"github.com/Pehalba/AdmFinanceira/internal/store"
)

// Aggregator materializes monthly summaries. A summary is always recomputed
// as a full fold over the month's transactions rather than patched
// incrementally, so the cached document can never drift from the ledger.
type Aggregator struct {
	store store.Store
}

func NewAggregator(st store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// Recompute rebuilds the summary for one (user, month) pair and overwrites
// the cached copy. The returned summary reflects exactly the transactions
// visible at fold time.
func (a *Aggregator) Recompute(ctx context.Context, uid string, monthKey core.MonthKey) (core.MonthlySummary, error) {
	if err := monthKey.Validate(); err != nil {
		return core.MonthlySummary{}, err
	}

	summary := core.MonthlySummary{
		UID:               uid,
		MonthKey:          monthKey,
		ByCategory:        map[string]core.CategoryTotal{},
		ByCategoryIncome:  map[string]core.CategoryTotal{},
		ByCategoryExpense: map[string]core.CategoryTotal{},
	}

	startAfter := ""
	for {
		page, err := a.store.Transactions().ListByMonth(ctx, uid, monthKey, store.MaxMonthScan, startAfter)
		if err != nil {
			return core.MonthlySummary{}, fmt.Errorf("list month transactions: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, t := range page {
			fold(&summary, t)
		}

		if len(page) < store.MaxMonthScan {
			break
		}
		startAfter = page[len(page)-1].ID
	}

	summary.Balance = summary.TotalIncome.Add(summary.TotalExpense.Neg())

	if err := a.store.Summaries().Upsert(ctx, summary); err != nil {
		return core.MonthlySummary{}, fmt.Errorf("store summary: %w", err)
	}

	slog.InfoContext(ctx, "Recomputed monthly summary",
		"uid", uid,
		"month_key", string(monthKey),
		"transaction_count", summary.TransactionCount,
		"balance_cents", summary.Balance.Cents)

	return summary, nil
}

// CachedOrRecompute returns the stored summary when one exists and rebuilds
// it otherwise. Callers that just mutated the month should call Recompute
// directly.
func (a *Aggregator) CachedOrRecompute(ctx context.Context, uid string, monthKey core.MonthKey) (core.MonthlySummary, error) {
	summary, err := a.store.Summaries().Get(ctx, uid, monthKey)
	if err == nil {
		return summary, nil
	}
	return a.Recompute(ctx, uid, monthKey)
}

func fold(s *core.MonthlySummary, t core.Transaction) {
	magnitude := t.Amount.Abs()
	s.TransactionCount++

	switch t.Type {
	case core.Income:
		s.TotalIncome = s.TotalIncome.Add(magnitude)
		addTotal(s.ByCategoryIncome, t, magnitude)
	case core.Expense:
		s.TotalExpense = s.TotalExpense.Add(magnitude)
		addTotal(s.ByCategoryExpense, t, magnitude)
	}

	// The combined breakdown counts every transaction regardless of type.
	addTotal(s.ByCategory, t, magnitude)
}

func addTotal(m map[string]core.CategoryTotal, t core.Transaction, magnitude core.Money) {
	key := t.CategoryID
	if key == "" {
		key = "uncategorized"
	}
	entry := m[key]
	entry.CategoryID = t.CategoryID
	if t.CategoryName != "" {
		entry.CategoryName = t.CategoryName
	}
	entry.Total = entry.Total.Add(magnitude)
	entry.Count++
	m[key] = entry
}
