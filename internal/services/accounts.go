package services

import (
	"context"
	"fmt"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	"github.com/Pehalba/AdmFinanceira/internal/store"
)

// AccountService manages bank and cash accounts. Balances are owned by the
// reconciler; this service only touches them through RecalculateAll.
type AccountService struct {
	store      store.Store
	reconciler *Reconciler
}

func NewAccountService(st store.Store, rec *Reconciler) *AccountService {
	return &AccountService{store: st, reconciler: rec}
}

// Create registers a new account. The first account of a user becomes
// primary automatically; a later account marked primary demotes the old one.
func (s *AccountService) Create(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	existing, err := s.store.Accounts().ListByUser(ctx, a.UID)
	if err != nil {
		return core.Account{}, fmt.Errorf("list accounts: %w", err)
	}
	if len(existing) == 0 {
		a.IsPrimary = true
	}

	created, err := s.store.Accounts().Create(ctx, a)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	if created.IsPrimary {
		if err := s.demoteOthers(ctx, created.UID, created.ID, existing); err != nil {
			return core.Account{}, err
		}
	}

	s.bumpVersion(ctx, created.UID)
	return created, nil
}

// Update rewrites an account's name, type, and primary flag. The stored
// balance is preserved regardless of what the caller sent.
func (s *AccountService) Update(ctx context.Context, a core.Account) (core.Account, error) {
	old, err := s.store.Accounts().GetByID(ctx, a.UID, a.ID)
	if err != nil {
		return core.Account{}, err
	}
	a.Balance = old.Balance
	a.CreatedAt = old.CreatedAt
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	updated, err := s.store.Accounts().Update(ctx, a)
	if err != nil {
		return core.Account{}, fmt.Errorf("update account: %w", err)
	}

	if updated.IsPrimary && !old.IsPrimary {
		others, err := s.store.Accounts().ListByUser(ctx, a.UID)
		if err != nil {
			return core.Account{}, fmt.Errorf("list accounts: %w", err)
		}
		if err := s.demoteOthers(ctx, a.UID, a.ID, others); err != nil {
			return core.Account{}, err
		}
	}

	s.bumpVersion(ctx, a.UID)
	return updated, nil
}

// Delete removes an account. Its transactions stay in the ledger; their
// balance effect simply has no account to land on anymore.
func (s *AccountService) Delete(ctx context.Context, uid, id string) error {
	if err := s.store.Accounts().Delete(ctx, uid, id); err != nil {
		return err
	}
	s.bumpVersion(ctx, uid)
	return nil
}

// Get returns one account.
func (s *AccountService) Get(ctx context.Context, uid, id string) (core.Account, error) {
	return s.store.Accounts().GetByID(ctx, uid, id)
}

// List returns the user's accounts.
func (s *AccountService) List(ctx context.Context, uid string) ([]core.Account, error) {
	return s.store.Accounts().ListByUser(ctx, uid)
}

// RecalculateAll rebuilds every balance of the user from the ledger.
func (s *AccountService) RecalculateAll(ctx context.Context, uid string) ([]core.Account, error) {
	if err := s.reconciler.RecalculateAll(ctx, uid); err != nil {
		return nil, err
	}
	return s.store.Accounts().ListByUser(ctx, uid)
}

func (s *AccountService) demoteOthers(ctx context.Context, uid, keepID string, accounts []core.Account) error {
	for _, other := range accounts {
		if other.ID == keepID || !other.IsPrimary {
			continue
		}
		other.IsPrimary = false
		if _, err := s.store.Accounts().Update(ctx, other); err != nil {
			return fmt.Errorf("demote account %s: %w", other.ID, err)
		}
	}
	return nil
}

func (s *AccountService) bumpVersion(ctx context.Context, uid string) {
	meta, err := s.store.Meta().Get(ctx, uid)
	if err != nil {
		return
	}
	meta.AccountsVersion++
	_ = s.store.Meta().Put(ctx, meta)
}
