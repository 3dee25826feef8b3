// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"inkpress/internal/apperr"
	"inkpress/internal/authz"
	"inkpress/internal/models"
	"inkpress/internal/slug"
	"inkpress/internal/store"
)

const maxCategoryNameLen = 100

// CategoryService lists and creates categories.
type CategoryService struct {
	categories CategoryStore
	authz      *authz.Authorizer
}

// NewCategoryService creates a CategoryService.
func NewCategoryService(categories CategoryStore, az *authz.Authorizer) *CategoryService {
	return &CategoryService{categories: categories, authz: az}
}

// List returns all categories with post counts, flat and ordered by name,
// or nested when tree is set.
func (s *CategoryService) List(ctx context.Context, tree bool) ([]models.Category, error) {
	var (
		cats []models.Category
		err  error
	)
	if tree {
		cats, err = s.categories.Tree(ctx)
	} else {
		cats, err = s.categories.List(ctx)
	}
	if err != nil {
		return nil, apperr.Internal("Failed to list categories", err)
	}
	return cats, nil
}

// Create adds a category. Admin only.
func (s *CategoryService) Create(ctx context.Context, caller *authz.Identity, in CategoryInput) (*models.Category, error) {
	if _, err := s.authz.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("name", "Name is required")
	}
	if utf8.RuneCountInString(name) > maxCategoryNameLen {
		return nil, apperr.Invalid("name", fmt.Sprintf("Name must be at most %d characters", maxCategoryNameLen))
	}
	catSlug := slug.Generate(name)
	if catSlug == "" {
		return nil, apperr.Invalid("name", "Name must contain letters or digits")
	}
	parentID, err := parseOptionalID("parentId", in.ParentID)
	if err != nil {
		return nil, err
	}

	if parentID != nil {
		parent, err := s.categories.FindByID(ctx, *parentID)
		if err != nil {
			return nil, apperr.Internal("Failed to load parent category", err)
		}
		if parent == nil {
			return nil, apperr.Invalid("parentId", "Parent category not found")
		}
	}

	existing, err := s.categories.FindBySlug(ctx, catSlug)
	if err != nil {
		return nil, apperr.Internal("Failed to check category", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("Category already exists")
	}

	order := 0
	if in.SortOrder != nil {
		order = *in.SortOrder
	} else if order, err = s.categories.NextSortOrder(ctx, parentID); err != nil {
		return nil, apperr.Internal("Failed to compute sort order", err)
	}

	created, err := s.categories.Create(ctx, &models.Category{
		Name:        name,
		Slug:        catSlug,
		Description: strings.TrimSpace(in.Description),
		ParentID:    parentID,
		SortOrder:   order,
	})
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return nil, apperr.Conflict("Category already exists")
	case errors.Is(err, store.ErrInvalidReference):
		return nil, apperr.Invalid("parentId", "Parent category not found")
	case err != nil:
		return nil, apperr.Internal("Failed to create category", err)
	}

	slog.Info("category created", "category_id", created.ID, "slug", created.Slug)
	return created, nil
}

// TagService lists and maintains tags.
type TagService struct {
	tags TagStore
}

// NewTagService creates a TagService.
func NewTagService(tags TagStore) *TagService {
	return &TagService{tags: tags}
}

// List returns all tags with post counts.
func (s *TagService) List(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.tags.List(ctx)
	if err != nil {
		return nil, apperr.Internal("Failed to list tags", err)
	}
	return tags, nil
}

// PruneOrphans deletes tags no post uses any more.
func (s *TagService) PruneOrphans(ctx context.Context) (int64, error) {
	n, err := s.tags.DeleteOrphans(ctx)
	if err != nil {
		return 0, fmt.Errorf("prune tags: %w", err)
	}
	return n, nil
}
