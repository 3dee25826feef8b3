// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"inkpress/internal/cache"
	"inkpress/internal/metrics"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
)

// Engagement groups the like and bookmark endpoints.
type Engagement struct {
	ledger  LedgerService
	cache   ListCache
	metrics *metrics.Metrics
}

// NewEngagement creates the ledger handlers. lc and m may be nil.
func NewEngagement(ledger LedgerService, lc ListCache, m *metrics.Metrics) *Engagement {
	return &Engagement{ledger: ledger, cache: orNoCache(lc), metrics: m}
}

type likeBody struct {
	Message   string `json:"message"`
	LikeCount int    `json:"likeCount"`
}

type bookmarkBody struct {
	Message       string `json:"message"`
	BookmarkCount int    `json:"bookmarkCount"`
}

// Like records a like by the caller.
func (h *Engagement) Like(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, models.RelationLike, true)
}

// Unlike removes the caller's like.
func (h *Engagement) Unlike(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, models.RelationLike, false)
}

// Bookmark records a bookmark by the caller.
func (h *Engagement) Bookmark(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, models.RelationBookmark, true)
}

// Unbookmark removes the caller's bookmark.
func (h *Engagement) Unbookmark(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, models.RelationBookmark, false)
}

func (h *Engagement) mutate(w http.ResponseWriter, r *http.Request, rel models.Relation, add bool) {
	postID, err := pathID(r, "id", "Post not found")
	if err != nil {
		writeError(w, r, err)
		return
	}
	caller := middleware.IdentityFromCtx(r.Context())

	var (
		count  int
		action = "add"
	)
	if add {
		count, err = h.ledger.Add(r.Context(), caller, rel, postID)
	} else {
		action = "remove"
		count, err = h.ledger.Remove(r.Context(), caller, rel, postID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.LedgerMutation(string(rel), action)

	if rel == models.RelationBookmark {
		msg := "Post bookmarked successfully"
		if !add {
			msg = "Bookmark removed successfully"
		}
		writeJSON(w, http.StatusOK, bookmarkBody{Message: msg, BookmarkCount: count})
		return
	}

	// Like counts appear in post listings.
	h.cache.Invalidate(r.Context(), cache.ScopePosts)
	msg := "Post liked successfully"
	if !add {
		msg = "Post unliked successfully"
	}
	writeJSON(w, http.StatusOK, likeBody{Message: msg, LikeCount: count})
}

// Bookmarks lists the caller's bookmarked posts.
func (h *Engagement) Bookmarks(w http.ResponseWriter, r *http.Request) {
	page, err := h.ledger.Bookmarks(r.Context(), middleware.IdentityFromCtx(r.Context()),
		queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
