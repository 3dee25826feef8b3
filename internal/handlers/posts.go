// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"inkpress/internal/blog"
	"inkpress/internal/cache"
	"inkpress/internal/metrics"
	"inkpress/internal/middleware"
)

// Posts groups the post lifecycle endpoints.
type Posts struct {
	posts   PostService
	cache   ListCache
	metrics *metrics.Metrics
}

// NewPosts creates the post handlers. lc and m may be nil.
func NewPosts(posts PostService, lc ListCache, m *metrics.Metrics) *Posts {
	return &Posts{posts: posts, cache: orNoCache(lc), metrics: m}
}

// postWriteScopes are the cached listings a post write can change: post
// lists, category post counts and the tag list.
var postWriteScopes = []string{cache.ScopePosts, cache.ScopeCategories, cache.ScopeTags}

// List returns one page of posts filtered by the query string.
func (h *Posts) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.IdentityFromCtx(r.Context())
	q := r.URL.Query()
	query := blog.ListQuery{
		Page:     queryInt(r, "page"),
		Limit:    queryInt(r, "limit"),
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
		AuthorID: q.Get("authorId"),
		Search:   q.Get("search"),
	}

	load := func(ctx context.Context) (any, error) {
		return h.posts.List(ctx, caller, query)
	}
	// Signed-in callers may see listings that depend on who they are.
	if caller != nil {
		page, err := load(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
		return
	}
	serveCached(w, r, h.cache, cache.ScopePosts, load)
}

// Search returns published posts matching ?q=.
func (h *Posts) Search(w http.ResponseWriter, r *http.Request) {
	serveCached(w, r, h.cache, cache.ScopePosts, func(ctx context.Context) (any, error) {
		page, err := h.posts.Search(ctx, r.URL.Query().Get("q"), queryInt(r, "page"), queryInt(r, "limit"))
		if err != nil {
			return nil, err
		}
		return page, nil
	})
}

// Get returns a post by id and counts the view.
func (h *Posts) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Post not found")
	if err != nil {
		writeError(w, r, err)
		return
	}
	post, err := h.posts.Get(r.Context(), middleware.IdentityFromCtx(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.PostViewed()
	writeJSON(w, http.StatusOK, post)
}

// GetBySlug returns a post by slug and counts the view.
func (h *Posts) GetBySlug(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.GetBySlug(r.Context(), middleware.IdentityFromCtx(r.Context()), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.PostViewed()
	writeJSON(w, http.StatusOK, post)
}

// Create adds a post owned by the caller.
func (h *Posts) Create(w http.ResponseWriter, r *http.Request) {
	var in blog.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	post, err := h.posts.Create(r.Context(), middleware.IdentityFromCtx(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), postWriteScopes...)
	writeJSON(w, http.StatusCreated, post)
}

// Update replaces a post's fields and associations.
func (h *Posts) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Post not found")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in blog.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	post, err := h.posts.Update(r.Context(), middleware.IdentityFromCtx(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), postWriteScopes...)
	writeJSON(w, http.StatusOK, post)
}

// Delete removes a post with its comments and ledger rows.
func (h *Posts) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Post not found")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.posts.Delete(r.Context(), middleware.IdentityFromCtx(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), postWriteScopes...)
	writeJSON(w, http.StatusOK, messageBody{Message: "Post deleted successfully"})
}

// serveCached answers from the list cache when possible. On a miss it
// calls load, caches the encoded result and writes it. Errors are never
// cached.
func serveCached(w http.ResponseWriter, r *http.Request, lc ListCache, scope string, load func(context.Context) (any, error)) {
	ctx := r.Context()
	key := r.URL.Path + "?" + r.URL.Query().Encode()
	if body, ok := lc.Get(ctx, scope, key); ok {
		w.Header().Set("X-Cache", "HIT")
		writeRaw(w, http.StatusOK, body)
		return
	}

	v, err := load(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body = append(body, '\n')
	lc.Set(ctx, scope, key, body)
	w.Header().Set("X-Cache", "MISS")
	writeRaw(w, http.StatusOK, body)
}
