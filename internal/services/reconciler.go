package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	"github.com/Pehalba/AdmFinanceira/internal/store"
)

// Reconciler keeps account balances consistent with the ledger. Every
// transaction write routes through one of its Apply methods, which serialize
// per account so concurrent writes against the same account cannot interleave
// their read-modify-write cycles.
type Reconciler struct {
	store store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewReconciler(st store.Store) *Reconciler {
	return &Reconciler{
		store: st,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockAccount returns the mutex guarding one account, creating it on first
// use. Lock granularity is the account id, so writes to different accounts
// never block each other.
func (r *Reconciler) lockAccount(accountID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[accountID] = l
	}
	return l
}

func (r *Reconciler) adjust(ctx context.Context, uid, accountID string, delta core.Money) error {
	if accountID == "" || delta.Cents == 0 {
		return nil
	}

	l := r.lockAccount(accountID)
	l.Lock()
	defer l.Unlock()

	account, err := r.store.Accounts().GetByID(ctx, uid, accountID)
	if errors.Is(err, store.ErrNotFound) {
		// The account was deleted out from under the transaction. The ledger
		// entry stays valid; there is simply no balance left to adjust.
		slog.WarnContext(ctx, "Skipping balance adjustment for missing account",
			"uid", uid, "account_id", accountID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	account.Balance = account.Balance.Add(delta)
	if _, err := r.store.Accounts().Update(ctx, account); err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	return nil
}

// ApplyCreate applies a new transaction's signed delta to its account.
func (r *Reconciler) ApplyCreate(ctx context.Context, t core.Transaction) error {
	return r.adjust(ctx, t.UID, t.AccountID, t.SignedDelta())
}

// ApplyDelete reverses a deleted transaction's effect on its account.
func (r *Reconciler) ApplyDelete(ctx context.Context, t core.Transaction) error {
	return r.adjust(ctx, t.UID, t.AccountID, t.SignedDelta().Neg())
}

// ApplyUpdate transitions balances from the old version of a transaction to
// the new one. When the account changed, the old account gets the reversal
// and the new account the fresh delta; when it stayed the same, a single net
// adjustment is applied.
func (r *Reconciler) ApplyUpdate(ctx context.Context, oldT, newT core.Transaction) error {
	if oldT.AccountID == newT.AccountID {
		net := newT.SignedDelta().Add(oldT.SignedDelta().Neg())
		return r.adjust(ctx, newT.UID, newT.AccountID, net)
	}
	if err := r.adjust(ctx, oldT.UID, oldT.AccountID, oldT.SignedDelta().Neg()); err != nil {
		return err
	}
	return r.adjust(ctx, newT.UID, newT.AccountID, newT.SignedDelta())
}

// RecalculateAll rebuilds every account balance of one user from scratch by
// folding the full ledger. Incremental drift, whatever its cause, is erased;
// running it twice in a row is a no-op.
func (r *Reconciler) RecalculateAll(ctx context.Context, uid string) error {
	accounts, err := r.store.Accounts().ListByUser(ctx, uid)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	transactions, err := r.store.Transactions().ListByUser(ctx, uid)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	balances := make(map[string]core.Money, len(accounts))
	for _, a := range accounts {
		balances[a.ID] = core.Money{}
	}
	for _, t := range transactions {
		if t.AccountID == "" {
			continue
		}
		if _, ok := balances[t.AccountID]; !ok {
			// Transaction points at a deleted account; nothing to rebuild.
			continue
		}
		balances[t.AccountID] = balances[t.AccountID].Add(t.SignedDelta())
	}

	for _, a := range accounts {
		l := r.lockAccount(a.ID)
		l.Lock()
		current, err := r.store.Accounts().GetByID(ctx, uid, a.ID)
		if err != nil {
			l.Unlock()
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return fmt.Errorf("load account %s: %w", a.ID, err)
		}
		current.Balance = balances[a.ID]
		if _, err := r.store.Accounts().Update(ctx, current); err != nil {
			l.Unlock()
			return fmt.Errorf("rewrite account %s balance: %w", a.ID, err)
		}
		l.Unlock()
	}

	slog.InfoContext(ctx, "Recalculated account balances",
		"uid", uid,
		"accounts", len(accounts),
		"transactions", len(transactions))

	return nil
}
