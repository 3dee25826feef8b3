// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/authz"
	"inkpress/internal/models"
	"inkpress/internal/store"
)

// LedgerService records likes and bookmarks.
type LedgerService struct {
	ledger LedgerStore
	posts  PostStore
	authz  *authz.Authorizer
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(ledger LedgerStore, posts PostStore, az *authz.Authorizer) *LedgerService {
	return &LedgerService{ledger: ledger, posts: posts, authz: az}
}

var (
	alreadyMsg = map[models.Relation]string{
		models.RelationLike:     "Post already liked",
		models.RelationBookmark: "Post already bookmarked",
	}
	absentMsg = map[models.Relation]string{
		models.RelationLike:     "Post not liked",
		models.RelationBookmark: "Post not bookmarked",
	}
)

// Add records that the caller likes or bookmarks a post and returns the
// post's new count for that relation.
func (s *LedgerService) Add(ctx context.Context, caller *authz.Identity, rel models.Relation, postID uuid.UUID) (int, error) {
	if !rel.Valid() {
		return 0, apperr.Invalid("kind", "Unknown relation")
	}
	p, err := s.authz.Authenticate(ctx, caller)
	if err != nil {
		return 0, err
	}
	if _, err := visiblePost(ctx, s.posts, s.authz, caller, postID); err != nil {
		return 0, err
	}

	// The unique (user, post) key arbitrates concurrent adds.
	err = s.ledger.Add(ctx, rel, p.ID, postID)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return 0, apperr.Conflict(alreadyMsg[rel])
	case errors.Is(err, store.ErrInvalidReference):
		return 0, apperr.NotFound("Post not found")
	case err != nil:
		return 0, apperr.Internal("Failed to record "+string(rel), err)
	}
	return s.count(ctx, rel, postID)
}

// Remove withdraws the caller's like or bookmark and returns the post's
// new count for that relation.
func (s *LedgerService) Remove(ctx context.Context, caller *authz.Identity, rel models.Relation, postID uuid.UUID) (int, error) {
	if !rel.Valid() {
		return 0, apperr.Invalid("kind", "Unknown relation")
	}
	p, err := s.authz.Authenticate(ctx, caller)
	if err != nil {
		return 0, err
	}
	removed, err := s.ledger.Remove(ctx, rel, p.ID, postID)
	if err != nil {
		return 0, apperr.Internal("Failed to remove "+string(rel), err)
	}
	if !removed {
		return 0, apperr.NotFound(absentMsg[rel])
	}
	return s.count(ctx, rel, postID)
}

func (s *LedgerService) count(ctx context.Context, rel models.Relation, postID uuid.UUID) (int, error) {
	n, err := s.ledger.Count(ctx, rel, postID)
	if err != nil {
		return 0, apperr.Internal("Failed to count "+string(rel)+"s", err)
	}
	return n, nil
}

// Bookmarks returns the caller's bookmarked published posts.
func (s *LedgerService) Bookmarks(ctx context.Context, caller *authz.Identity, page, limit int) (*models.Page[models.Post], error) {
	p, err := s.authz.Authenticate(ctx, caller)
	if err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit)
	published := models.PostStatusPublished

	posts, total, err := s.posts.List(ctx, store.PostFilter{
		Status:       &published,
		BookmarkedBy: &p.ID,
		Offset:       (page - 1) * limit,
		Limit:        limit,
	})
	if err != nil {
		return nil, apperr.Internal("Failed to list bookmarks", err)
	}
	return &models.Page[models.Post]{
		Data:       posts,
		Pagination: models.NewPagination(page, limit, total),
	}, nil
}
