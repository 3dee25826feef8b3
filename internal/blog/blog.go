// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package blog holds the domain services: the post lifecycle, categories
// and tags, the like/bookmark ledger and comment threads. Every operation
// takes the caller's identity explicitly and returns *apperr.Error values
// for failures a client can observe.
package blog

import (
	"context"
	"math"

	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/authz"
	"inkpress/internal/models"
	"inkpress/internal/store"
)

// PostStore is the persistence surface the post services need.
type PostStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	FindBySlug(ctx context.Context, slug string) (*models.Post, error)
	SlugExists(ctx context.Context, slug string, exclude *uuid.UUID) (bool, error)
	Create(ctx context.Context, p *models.Post) (*models.Post, error)
	Update(ctx context.Context, p *models.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementViews(ctx context.Context, id uuid.UUID) (int, bool, error)
	ReplaceCategories(ctx context.Context, postID uuid.UUID, categoryIDs []uuid.UUID) error
	ReplaceTags(ctx context.Context, postID uuid.UUID, tagIDs []uuid.UUID) error
	List(ctx context.Context, f store.PostFilter) ([]models.Post, int, error)
}

// CategoryStore is the persistence surface for categories.
type CategoryStore interface {
	List(ctx context.Context) ([]models.Category, error)
	Tree(ctx context.Context) ([]models.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	FindBySlug(ctx context.Context, slug string) (*models.Category, error)
	MissingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, c *models.Category) (*models.Category, error)
	NextSortOrder(ctx context.Context, parentID *uuid.UUID) (int, error)
}

// TagStore is the persistence surface for tags.
type TagStore interface {
	Upsert(ctx context.Context, name, slug string) (*models.Tag, error)
	List(ctx context.Context) ([]models.Tag, error)
	DeleteOrphans(ctx context.Context) (int64, error)
}

// CommentStore is the persistence surface for comments.
type CommentStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	Create(ctx context.Context, c *models.Comment) (*models.Comment, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content string) (*models.Comment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Thread(ctx context.Context, postID uuid.UUID) ([]models.Comment, error)
}

// LedgerStore is the persistence surface for likes and bookmarks.
type LedgerStore interface {
	Add(ctx context.Context, rel models.Relation, userID, postID uuid.UUID) error
	Remove(ctx context.Context, rel models.Relation, userID, postID uuid.UUID) (bool, error)
	Count(ctx context.Context, rel models.Relation, postID uuid.UUID) (int, error)
}

// Transactor runs fn atomically. Implemented by database.Transactor.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Renderer turns markdown post bodies into HTML.
type Renderer interface {
	ToHTML(source string) (string, error)
}

// Paging defaults for list endpoints.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit within int range.
	MaxPage = math.MaxInt / MaxLimit
)

// normalizePage clamps page and limit to their allowed ranges.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// checkVisible reports a missing or unpublished post as NotFound, unless
// the caller could modify it.
func checkVisible(ctx context.Context, az *authz.Authorizer, caller *authz.Identity, post *models.Post) error {
	if post == nil {
		return apperr.NotFound("Post not found")
	}
	if post.IsPublished() {
		return nil
	}
	p, err := az.Optional(ctx, caller)
	if err != nil {
		return err
	}
	if !authz.CanModifyResource(post.AuthorID, p) {
		return apperr.NotFound("Post not found")
	}
	return nil
}

// visiblePost loads a post and applies checkVisible.
func visiblePost(ctx context.Context, posts PostStore, az *authz.Authorizer, caller *authz.Identity, id uuid.UUID) (*models.Post, error) {
	post, err := posts.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("Failed to load post", err)
	}
	if err := checkVisible(ctx, az, caller, post); err != nil {
		return nil, err
	}
	return post, nil
}
