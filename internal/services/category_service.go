package services

import (
	"context"
	"fmt"
	"strings"

	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/ports"
)

type CategoryService struct {
	store     ports.CategoryStore
	summaries *SummaryService
	logger    *log.Logger
}

func NewCategoryService(store ports.CategoryStore, summaries *SummaryService, logger *log.Logger) *CategoryService {
	if logger == nil {
		logger = log.Discard()
	}
	return &CategoryService{
		store:     store,
		summaries: summaries,
		logger:    logger.WithComponent(log.ComponentCategory),
	}
}

func (s *CategoryService) List(ctx context.Context, ownerID string) ([]core.Category, error) {
	cats, err := s.store.ListCategories(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *CategoryService) Get(ctx context.Context, ownerID, id string) (core.Category, error) {
	return s.store.GetCategory(ctx, ownerID, id)
}

func (s *CategoryService) Create(ctx context.Context, ownerID, name, color string) (core.Category, error) {
	c := core.Category{OwnerID: ownerID, Name: strings.TrimSpace(name), Color: strings.TrimSpace(color)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.summaries.Invalidate(ctx, ownerID)
	s.logger.InfoContext(ctx, "Category created",
		log.FieldOwnerID, ownerID, log.FieldCategoryID, created.ID, log.FieldOperation, log.OpCreate)
	return created, nil
}

// Update renames or recolors a category. Missing or foreign ids return
// core.ErrNotFound.
func (s *CategoryService) Update(ctx context.Context, ownerID, id, name, color string) (core.Category, error) {
	c := core.Category{ID: id, OwnerID: ownerID, Name: strings.TrimSpace(name), Color: strings.TrimSpace(color)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	updated, err := s.store.UpdateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.summaries.Invalidate(ctx, ownerID)
	return updated, nil
}

// Delete removes the category. Its budgets and expenses stay in storage but
// no longer appear in summaries. Deleting an unknown id is a no-op.
func (s *CategoryService) Delete(ctx context.Context, ownerID, id string) error {
	removed, err := s.store.DeleteCategory(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if !removed {
		return nil
	}
	s.summaries.Invalidate(ctx, ownerID)
	s.logger.InfoContext(ctx, "Category deleted",
		log.FieldOwnerID, ownerID, log.FieldCategoryID, id, log.FieldOperation, log.OpDelete)
	return nil
}
