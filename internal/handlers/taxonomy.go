// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"net/http"

	"inkpress/internal/blog"
	"inkpress/internal/cache"
	"inkpress/internal/middleware"
)

// Taxonomy groups the category and tag endpoints.
type Taxonomy struct {
	categories CategoryService
	tags       TagService
	cache      ListCache
}

// NewTaxonomy creates the category and tag handlers. lc may be nil.
func NewTaxonomy(categories CategoryService, tags TagService, lc ListCache) *Taxonomy {
	return &Taxonomy{categories: categories, tags: tags, cache: orNoCache(lc)}
}

// Categories lists categories, nested when ?tree=true.
func (h *Taxonomy) Categories(w http.ResponseWriter, r *http.Request) {
	tree := r.URL.Query().Get("tree") == "true"
	serveCached(w, r, h.cache, cache.ScopeCategories, func(ctx context.Context) (any, error) {
		cats, err := h.categories.List(ctx, tree)
		if err != nil {
			return nil, err
		}
		return cats, nil
	})
}

// CreateCategory adds a category.
func (h *Taxonomy) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in blog.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.categories.Create(r.Context(), middleware.IdentityFromCtx(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), cache.ScopeCategories)
	writeJSON(w, http.StatusCreated, c)
}

// Tags lists all tags.
func (h *Taxonomy) Tags(w http.ResponseWriter, r *http.Request) {
	serveCached(w, r, h.cache, cache.ScopeTags, func(ctx context.Context) (any, error) {
		tags, err := h.tags.List(ctx)
		if err != nil {
			return nil, err
		}
		return tags, nil
	})
}
