package core

import (
	"testing"
	"time"
)

func TestSignedDelta(t *testing.T) {
	cases := []struct {
		name string
		tx   Transaction
		want int64
	}{
		{"income is positive", Transaction{Type: Income, Amount: Money{Cents: 1500}}, 1500},
		{"expense is negative", Transaction{Type: Expense, Amount: Money{Cents: 1500}}, -1500},
		{"stored sign is ignored", Transaction{Type: Expense, Amount: Money{Cents: -1500}}, -1500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tx.SignedDelta().Cents; got != tc.want {
				t.Fatalf("SignedDelta() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		UID:      "u1",
		Type:     Expense,
		Amount:   Money{Cents: 100},
		Date:     time.Date(2024, 3, 5, 0, 0, 0, 0, time.Local),
		MonthKey: "2024-03",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Type: Expense, Amount: Money{Cents: 100}, Date: good.Date, MonthKey: "2024-03"},            // no uid
		{UID: "u1", Type: "transfer", Amount: Money{Cents: 100}, Date: good.Date, MonthKey: "2024-03"}, // bad type
		{UID: "u1", Type: Expense, Amount: Money{Cents: 0}, Date: good.Date, MonthKey: "2024-03"},   // zero amount
		{UID: "u1", Type: Expense, Amount: Money{Cents: 100}, MonthKey: "2024-03"},                  // zero date
		{UID: "u1", Type: Expense, Amount: Money{Cents: 100}, Date: good.Date, MonthKey: "2024-3"},  // bad key
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestBillTemplateValidate(t *testing.T) {
	good := BillTemplate{UID: "u1", Title: "Rent", Amount: Money{Cents: 120000}, DueDay: 5}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []BillTemplate{
		{UID: "u1", Title: "", Amount: Money{Cents: 100}, DueDay: 5},
		{UID: "u1", Title: "Rent", Amount: Money{Cents: 0}, DueDay: 5},
		{UID: "u1", Title: "Rent", Amount: Money{Cents: 100}, DueDay: 0},
		{UID: "u1", Title: "Rent", Amount: Money{Cents: 100}, DueDay: 32},
		{Title: "Rent", Amount: Money{Cents: 100}, DueDay: 5},
	}
	for i, tpl := range bads {
		if err := tpl.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestBillStatusEffectiveAmount(t *testing.T) {
	tpl := BillTemplate{Amount: Money{Cents: 120000}}

	noOverride := BillStatus{}
	if got := noOverride.EffectiveAmount(tpl); got.Cents != 120000 {
		t.Fatalf("expected template default, got %d", got.Cents)
	}

	override := Money{Cents: 99000}
	withOverride := BillStatus{AmountOverride: &override}
	if got := withOverride.EffectiveAmount(tpl); got.Cents != 99000 {
		t.Fatalf("expected override, got %d", got.Cents)
	}
}
