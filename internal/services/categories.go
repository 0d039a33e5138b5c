package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	"github.com/Pehalba/AdmFinanceira/internal/store"
)

// ErrCategoryInUse is returned when changing the type of a category that
// already labels transactions. Retyping would silently flip the sign of
// every entry that references it.
var ErrCategoryInUse = errors.New("category type cannot change while transactions reference it")

// CategoryService manages income and expense categories.
type CategoryService struct {
	store store.Store
}

func NewCategoryService(st store.Store) *CategoryService {
	return &CategoryService{store: st}
}

// Create registers a new category.
func (s *CategoryService) Create(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.store.Categories().Create(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.bumpVersion(ctx, c.UID)
	return created, nil
}

// Update rewrites a category. The type is frozen once any transaction
// references the category.
func (s *CategoryService) Update(ctx context.Context, c core.Category) (core.Category, error) {
	old, err := s.store.Categories().GetByID(ctx, c.UID, c.ID)
	if err != nil {
		return core.Category{}, err
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	if c.Type != old.Type {
		count, err := s.store.Transactions().CountByCategory(ctx, c.UID, c.ID)
		if err != nil {
			return core.Category{}, fmt.Errorf("count category references: %w", err)
		}
		if count > 0 {
			return core.Category{}, ErrCategoryInUse
		}
	}

	updated, err := s.store.Categories().Update(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	s.bumpVersion(ctx, c.UID)
	return updated, nil
}

// Delete removes a category. Transactions keep their cached category name
// as display history.
func (s *CategoryService) Delete(ctx context.Context, uid, id string) error {
	if err := s.store.Categories().Delete(ctx, uid, id); err != nil {
		return err
	}
	s.bumpVersion(ctx, uid)
	return nil
}

// Get returns one category.
func (s *CategoryService) Get(ctx context.Context, uid, id string) (core.Category, error) {
	return s.store.Categories().GetByID(ctx, uid, id)
}

// List returns the user's categories.
func (s *CategoryService) List(ctx context.Context, uid string) ([]core.Category, error) {
	return s.store.Categories().ListByUser(ctx, uid)
}

func (s *CategoryService) bumpVersion(ctx context.Context, uid string) {
	meta, err := s.store.Meta().Get(ctx, uid)
	if err != nil {
		return
	}
	meta.CategoriesVersion++
	_ = s.store.Meta().Put(ctx, meta)
}
