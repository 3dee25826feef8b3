// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"inkpress/internal/blog"
	"inkpress/internal/cache"
	"inkpress/internal/middleware"
)

// Comments groups the comment thread endpoints.
type Comments struct {
	comments CommentService
	cache    ListCache
}

// NewComments creates the comment handlers. lc may be nil.
func NewComments(comments CommentService, lc ListCache) *Comments {
	return &Comments{comments: comments, cache: orNoCache(lc)}
}

type commentUpdate struct {
	Content string `json:"content"`
}

// List returns the approved thread of a post.
func (h *Comments) List(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id", "Post not found")
	if err != nil {
		writeError(w, r, err)
		return
	}
	thread, err := h.comments.Thread(r.Context(), middleware.IdentityFromCtx(r.Context()), postID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

// Create adds a comment or reply to a post.
func (h *Comments) Create(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id", "Post not found")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in blog.CommentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.comments.Create(r.Context(), middleware.IdentityFromCtx(r.Context()), postID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), cache.ScopePosts)
	writeJSON(w, http.StatusCreated, c)
}

// Update edits the content of the caller's comment.
func (h *Comments) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Comment not found")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in commentUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.comments.Update(r.Context(), middleware.IdentityFromCtx(r.Context()), id, in.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete removes a comment and its replies.
func (h *Comments) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Comment not found")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.comments.Delete(r.Context(), middleware.IdentityFromCtx(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), cache.ScopePosts)
	writeJSON(w, http.StatusOK, messageBody{Message: "Comment deleted successfully"})
}
