// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/authz"
	"inkpress/internal/models"
	"inkpress/internal/readtime"
	"inkpress/internal/slug"
	"inkpress/internal/store"
)

// maxSlugAttempts bounds the insert retries after a concurrent writer
// took the same slug.
const maxSlugAttempts = 3

// StatusAll lists posts of every status.
const StatusAll = "ALL"

// PostService implements the post lifecycle.
type PostService struct {
	posts      PostStore
	categories CategoryStore
	tags       TagStore
	tx         Transactor
	authz      *authz.Authorizer
	renderer   Renderer

	now    func() time.Time
	random func() string
}

// NewPostService wires a PostService. renderer may be nil, in which case
// markdown posts are returned without contentHtml.
func NewPostService(posts PostStore, categories CategoryStore, tags TagStore, tx Transactor, az *authz.Authorizer, renderer Renderer) *PostService {
	return &PostService{
		posts:      posts,
		categories: categories,
		tags:       tags,
		tx:         tx,
		authz:      az,
		renderer:   renderer,
		now:        time.Now,
		random:     randomSuffix,
	}
}

// randomSuffix returns six hex digits. rand.Read never fails since Go 1.24;
// it crashes the program instead of returning an error.
func randomSuffix() string {
	b := make([]byte, 3)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Create stores a new post owned by the caller.
func (s *PostService) Create(ctx context.Context, caller *authz.Identity, in PostInput) (*models.Post, error) {
	p, err := s.authz.RequireAuthor(ctx, caller)
	if err != nil {
		return nil, err
	}
	d, err := in.validate()
	if err != nil {
		return nil, err
	}

	status := d.status
	if status == "" {
		status = models.PostStatusDraft
	}
	if !authz.CanSetStatus(p, status) {
		return nil, apperr.Forbidden(fmt.Sprintf("Insufficient permissions to set status %s", status))
	}
	if err := s.checkCategories(ctx, d.categoryIDs); err != nil {
		return nil, err
	}

	format := d.format
	if format == "" {
		format = models.ContentFormatHTML
	}
	post := &models.Post{
		AuthorID:      p.ID,
		Status:        status,
		ContentFormat: format,
	}
	d.applyTo(post)
	if status == models.PostStatusPublished {
		now := s.now().UTC()
		post.PublishedAt = &now
	}

	base := slug.GenerateOr(d.title, slug.Fallback)
	id, err := s.save(ctx, post, base, nil, d, func(ctx context.Context) (uuid.UUID, error) {
		created, err := s.posts.Create(ctx, post)
		if err != nil {
			return uuid.Nil, err
		}
		return created.ID, nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("post created", "post_id", id, "slug", post.Slug, "author_id", p.ID)
	return s.load(ctx, id)
}

// Update edits a post. Only its owner or an editor/admin may do so.
func (s *PostService) Update(ctx context.Context, caller *authz.Identity, id uuid.UUID, in PostInput) (*models.Post, error) {
	p, err := s.authz.RequireAuthor(ctx, caller)
	if err != nil {
		return nil, err
	}
	existing, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("Failed to load post", err)
	}
	if existing == nil {
		return nil, apperr.NotFound("Post not found")
	}
	if !authz.CanModifyResource(existing.AuthorID, p) {
		return nil, apperr.Forbidden("You do not have permission to modify this post")
	}
	d, err := in.validate()
	if err != nil {
		return nil, err
	}

	status := existing.Status
	if d.status != "" && d.status != existing.Status {
		if !authz.CanSetStatus(p, d.status) {
			return nil, apperr.Forbidden(fmt.Sprintf("Insufficient permissions to set status %s", d.status))
		}
		status = d.status
	}
	if err := s.checkCategories(ctx, d.categoryIDs); err != nil {
		return nil, err
	}

	post := existing
	titleChanged := d.title != existing.Title
	d.applyTo(post)
	post.Status = status
	if d.format != "" {
		post.ContentFormat = d.format
	}
	if status == models.PostStatusPublished && post.PublishedAt == nil {
		now := s.now().UTC()
		post.PublishedAt = &now
	}

	// The slug only follows the title.
	base := existing.Slug
	if titleChanged {
		base = slug.GenerateOr(d.title, slug.Fallback)
	}
	_, err = s.save(ctx, post, base, &id, d, func(ctx context.Context) (uuid.UUID, error) {
		return id, s.posts.Update(ctx, post)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("post updated", "post_id", id, "slug", post.Slug, "by", p.ID)
	return s.load(ctx, id)
}

// save allocates a slug from base and runs write plus the association
// replacement in one transaction. A unique violation on the slug from a
// concurrent writer retries with a fresh suffix.
func (s *PostService) save(ctx context.Context, post *models.Post, base string, self *uuid.UUID, d *postDraft,
	write func(ctx context.Context) (uuid.UUID, error)) (uuid.UUID, error) {

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		candidate, err := s.allocateSlug(ctx, base, self, attempt)
		if err != nil {
			return uuid.Nil, err
		}
		post.Slug = candidate

		var id uuid.UUID
		err = s.tx.InTx(ctx, func(ctx context.Context) error {
			var err error
			if id, err = write(ctx); err != nil {
				return err
			}
			return s.writeAssociations(ctx, id, d)
		})
		switch {
		case err == nil:
			return id, nil
		case errors.Is(err, store.ErrSlugTaken):
			slog.Warn("slug collision, retrying", "slug", candidate, "attempt", attempt+1)
			continue
		case errors.Is(err, store.ErrInvalidReference):
			return uuid.Nil, apperr.Invalid("categoryIds", "One or more categories do not exist")
		default:
			return uuid.Nil, apperr.Internal("Failed to save post", err)
		}
	}
	return uuid.Nil, apperr.Conflict("Could not allocate a unique slug, please retry")
}

// allocateSlug returns base if it is free (ignoring self), otherwise base
// with a millisecond timestamp suffix. Retries add a random component so
// two writers in the same millisecond diverge.
func (s *PostService) allocateSlug(ctx context.Context, base string, self *uuid.UUID, attempt int) (string, error) {
	if attempt == 0 {
		taken, err := s.posts.SlugExists(ctx, base, self)
		if err != nil {
			return "", apperr.Internal("Failed to check slug", err)
		}
		if !taken {
			return base, nil
		}
		return slug.WithSuffix(base, strconv.FormatInt(s.now().UnixMilli(), 10)), nil
	}
	suffix := strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + s.random()
	return slug.WithSuffix(base, suffix), nil
}

// writeAssociations replaces the category and tag sets of a post. Tags
// are found or created by slug first.
func (s *PostService) writeAssociations(ctx context.Context, postID uuid.UUID, d *postDraft) error {
	if err := s.posts.ReplaceCategories(ctx, postID, d.categoryIDs); err != nil {
		return err
	}
	tagIDs := make([]uuid.UUID, 0, len(d.tags))
	for _, t := range d.tags {
		tag, err := s.tags.Upsert(ctx, t.name, t.slug)
		if err != nil {
			return err
		}
		tagIDs = append(tagIDs, tag.ID)
	}
	return s.posts.ReplaceTags(ctx, postID, tagIDs)
}

func (s *PostService) checkCategories(ctx context.Context, ids []uuid.UUID) error {
	missing, err := s.categories.MissingIDs(ctx, ids)
	if err != nil {
		return apperr.Internal("Failed to check categories", err)
	}
	if len(missing) > 0 {
		return apperr.Invalid("categoryIds", fmt.Sprintf("Category not found: %s", missing[0]))
	}
	return nil
}

func (d *postDraft) applyTo(p *models.Post) {
	p.Title = d.title
	p.Content = d.content
	p.Excerpt = d.excerpt
	p.FeaturedImage = d.featuredImage
	p.SEOTitle = d.seoTitle
	p.SEODescription = d.seoDescription
	p.SEOKeywords = d.seoKeywords
	p.ReadingTime = readtime.Minutes(d.content)
}

func (s *PostService) load(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("Failed to load post", err)
	}
	if post == nil {
		return nil, apperr.NotFound("Post not found")
	}
	return post, nil
}

// Get returns a post by id and counts one view.
func (s *PostService) Get(ctx context.Context, caller *authz.Identity, id uuid.UUID) (*models.Post, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("Failed to load post", err)
	}
	return s.view(ctx, caller, post)
}

// GetBySlug returns a post by slug and counts one view.
func (s *PostService) GetBySlug(ctx context.Context, caller *authz.Identity, postSlug string) (*models.Post, error) {
	post, err := s.posts.FindBySlug(ctx, postSlug)
	if err != nil {
		return nil, apperr.Internal("Failed to load post", err)
	}
	return s.view(ctx, caller, post)
}

// view applies visibility rules, increments the view counter and renders
// markdown content. Unpublished posts are reported as missing to callers
// who could not modify them.
func (s *PostService) view(ctx context.Context, caller *authz.Identity, post *models.Post) (*models.Post, error) {
	if err := checkVisible(ctx, s.authz, caller, post); err != nil {
		return nil, err
	}

	views, found, err := s.posts.IncrementViews(ctx, post.ID)
	if err != nil {
		return nil, apperr.Internal("Failed to record view", err)
	}
	if !found {
		return nil, apperr.NotFound("Post not found")
	}
	post.ViewCount = views

	if post.ContentFormat == models.ContentFormatMarkdown && s.renderer != nil {
		html, err := s.renderer.ToHTML(post.Content)
		if err != nil {
			slog.Warn("markdown render failed", "post_id", post.ID, "error", err)
		} else {
			post.ContentHTML = html
		}
	}
	return post, nil
}

// Delete removes a post. Only its owner or an editor/admin may do so.
func (s *PostService) Delete(ctx context.Context, caller *authz.Identity, id uuid.UUID) error {
	p, err := s.authz.RequireAuthor(ctx, caller)
	if err != nil {
		return err
	}
	existing, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return apperr.Internal("Failed to load post", err)
	}
	if existing == nil {
		return apperr.NotFound("Post not found")
	}
	if !authz.CanModifyResource(existing.AuthorID, p) {
		return apperr.Forbidden("You do not have permission to delete this post")
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		return apperr.Internal("Failed to delete post", err)
	}
	slog.Info("post deleted", "post_id", id, "by", p.ID)
	return nil
}

// ListQuery holds the query parameters of a post listing.
type ListQuery struct {
	Page     int
	Limit    int
	Status   string // empty means PUBLISHED; "ALL" means every status
	Category string // category slug
	Tag      string // tag slug
	AuthorID string
	Search   string
}

// List returns one page of posts. Non-published listings require an
// author-tier caller; AUTHORs only see their own posts there.
func (s *PostService) List(ctx context.Context, caller *authz.Identity, q ListQuery) (*models.Page[models.Post], error) {
	page, limit := normalizePage(q.Page, q.Limit)
	f := store.PostFilter{
		CategorySlug: strings.TrimSpace(q.Category),
		TagSlug:      strings.TrimSpace(q.Tag),
		Search:       strings.TrimSpace(q.Search),
		Offset:       (page - 1) * limit,
		Limit:        limit,
	}

	if raw := strings.TrimSpace(q.AuthorID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Invalid("authorId", "Invalid author id")
		}
		f.AuthorID = &id
	}

	status := strings.ToUpper(strings.TrimSpace(q.Status))
	switch status {
	case "", string(models.PostStatusPublished):
		published := models.PostStatusPublished
		f.Status = &published
	default:
		if status != StatusAll {
			st := models.PostStatus(status)
			if !st.Valid() {
				return nil, apperr.Invalid("status", "Invalid status")
			}
			f.Status = &st
		}
		p, err := s.authz.RequireAuthor(ctx, caller)
		if err != nil {
			return nil, err
		}
		if p.Role == models.RoleAuthor {
			f.AuthorID = &p.ID
		}
	}

	posts, total, err := s.posts.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal("Failed to list posts", err)
	}
	return &models.Page[models.Post]{
		Data:       posts,
		Pagination: models.NewPagination(page, limit, total),
	}, nil
}

// Search matches published posts by title, content or excerpt.
func (s *PostService) Search(ctx context.Context, query string, page, limit int) (*models.Page[models.Post], error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, apperr.Invalid("q", "Search query is required")
	}
	page, limit = normalizePage(page, limit)
	published := models.PostStatusPublished

	posts, total, err := s.posts.List(ctx, store.PostFilter{
		Status:        &published,
		Search:        q,
		SearchExcerpt: true,
		Offset:        (page - 1) * limit,
		Limit:         limit,
	})
	if err != nil {
		return nil, apperr.Internal("Failed to search posts", err)
	}
	return &models.Page[models.Post]{
		Query:      q,
		Data:       posts,
		Pagination: models.NewPagination(page, limit, total),
	}, nil
}
