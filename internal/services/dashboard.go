package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	"github.com/Pehalba/AdmFinanceira/internal/store"
)

// Dashboard is the aggregate view rendered on the app's landing screen.
type Dashboard struct {
	MonthKey     core.MonthKey        `json:"monthKey"`
	Summary      core.MonthlySummary  `json:"summary"`
	Accounts     []core.Account       `json:"accounts"`
	TotalBalance core.Money           `json:"totalBalance"`
	Upcoming     []MonthBill          `json:"upcomingBills"`
	Recent       []core.Transaction   `json:"recentTransactions"`
}

// DashboardService assembles the landing view from the other services.
type DashboardService struct {
	store      store.Store
	aggregator *Aggregator
	bills      *BillService

	upcomingDays int
	recentLimit  int
}

func NewDashboardService(st store.Store, agg *Aggregator, bills *BillService, upcomingDays, recentLimit int) *DashboardService {
	if upcomingDays <= 0 {
		upcomingDays = 7
	}
	if recentLimit <= 0 {
		recentLimit = 10
	}
	return &DashboardService{
		store:        st,
		aggregator:   agg,
		bills:        bills,
		upcomingDays: upcomingDays,
		recentLimit:  recentLimit,
	}
}

// Build assembles the dashboard for the month containing now.
func (s *DashboardService) Build(ctx context.Context, uid string, now time.Time) (Dashboard, error) {
	monthKey := core.MonthKeyOf(now)

	summary, err := s.aggregator.CachedOrRecompute(ctx, uid, monthKey)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load summary: %w", err)
	}

	accounts, err := s.store.Accounts().ListByUser(ctx, uid)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list accounts: %w", err)
	}
	var total core.Money
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}

	upcoming, err := s.bills.ListUpcoming(ctx, uid, now, s.upcomingDays)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list upcoming bills: %w", err)
	}

	recent, err := s.store.Transactions().ListRecent(ctx, uid, s.recentLimit)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list recent transactions: %w", err)
	}

	return Dashboard{
		MonthKey:     monthKey,
		Summary:      summary,
		Accounts:     accounts,
		TotalBalance: total,
		Upcoming:     upcoming,
		Recent:       recent,
	}, nil
}
