// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"

	"github.com/google/uuid"

	"inkpress/internal/authz"
	"inkpress/internal/blog"
	"inkpress/internal/models"
)

// PostService is implemented by *blog.PostService.
type PostService interface {
	List(ctx context.Context, caller *authz.Identity, q blog.ListQuery) (*models.Page[models.Post], error)
	Search(ctx context.Context, query string, page, limit int) (*models.Page[models.Post], error)
	Get(ctx context.Context, caller *authz.Identity, id uuid.UUID) (*models.Post, error)
	GetBySlug(ctx context.Context, caller *authz.Identity, slug string) (*models.Post, error)
	Create(ctx context.Context, caller *authz.Identity, in blog.PostInput) (*models.Post, error)
	Update(ctx context.Context, caller *authz.Identity, id uuid.UUID, in blog.PostInput) (*models.Post, error)
	Delete(ctx context.Context, caller *authz.Identity, id uuid.UUID) error
}

// LedgerService is implemented by *blog.LedgerService.
type LedgerService interface {
	Add(ctx context.Context, caller *authz.Identity, rel models.Relation, postID uuid.UUID) (int, error)
	Remove(ctx context.Context, caller *authz.Identity, rel models.Relation, postID uuid.UUID) (int, error)
	Bookmarks(ctx context.Context, caller *authz.Identity, page, limit int) (*models.Page[models.Post], error)
}

// CommentService is implemented by *blog.CommentService.
type CommentService interface {
	Thread(ctx context.Context, caller *authz.Identity, postID uuid.UUID) ([]models.Comment, error)
	Create(ctx context.Context, caller *authz.Identity, postID uuid.UUID, in blog.CommentInput) (*models.Comment, error)
	Update(ctx context.Context, caller *authz.Identity, id uuid.UUID, content string) (*models.Comment, error)
	Delete(ctx context.Context, caller *authz.Identity, id uuid.UUID) error
}

// CategoryService is implemented by *blog.CategoryService.
type CategoryService interface {
	List(ctx context.Context, tree bool) ([]models.Category, error)
	Create(ctx context.Context, caller *authz.Identity, in blog.CategoryInput) (*models.Category, error)
}

// TagService is implemented by *blog.TagService.
type TagService interface {
	List(ctx context.Context) ([]models.Tag, error)
}

// ListCache is implemented by *cache.ListCache.
type ListCache interface {
	Get(ctx context.Context, scope, rawQuery string) ([]byte, bool)
	Set(ctx context.Context, scope, rawQuery string, body []byte)
	Invalidate(ctx context.Context, scopes ...string)
}

// noCache is used when no list cache is configured.
type noCache struct{}

func (noCache) Get(context.Context, string, string) ([]byte, bool) { return nil, false }
func (noCache) Set(context.Context, string, string, []byte)        {}
func (noCache) Invalidate(context.Context, ...string)              {}

func orNoCache(lc ListCache) ListCache {
	if lc == nil {
		return noCache{}
	}
	return lc
}
