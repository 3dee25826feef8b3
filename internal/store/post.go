// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"inkpress/internal/database"
	"inkpress/internal/models"
)

// PostStore handles posts and their category/tag associations.
type PostStore struct {
	db *sql.DB
}

// NewPostStore creates a new PostStore.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

const postColumns = `p.id, p.title, p.slug, p.content, p.content_format, p.excerpt,
	p.featured_image, p.status, p.view_count, p.reading_time, p.seo_title,
	p.seo_description, p.seo_keywords, p.author_id, p.published_at, p.created_at, p.updated_at`

// postSelect joins the author summary and the comment/like counts.
const postSelect = `SELECT ` + postColumns + `,
	u.username, COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(u.avatar, ''),
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
	(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id)
FROM posts p
JOIN users u ON u.id = p.author_id`

func scanPostRow(sc rowScanner) (*models.Post, error) {
	var p models.Post
	a := &models.AuthorSummary{}
	err := sc.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Content, &p.ContentFormat, &p.Excerpt,
		&p.FeaturedImage, &p.Status, &p.ViewCount, &p.ReadingTime, &p.SEOTitle,
		&p.SEODescription, &p.SEOKeywords, &p.AuthorID, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt,
		&a.Username, &a.FirstName, &a.LastName, &a.Avatar,
		&p.Counts.Comments, &p.Counts.Likes,
	)
	if err != nil {
		return nil, err
	}
	a.ID = p.AuthorID
	p.Author = a
	p.Categories = []models.Category{}
	p.Tags = []models.Tag{}
	return &p, nil
}

// FindByID returns a post with author, categories, tags and counts.
// Returns nil if not found.
func (s *PostStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.findOne(ctx, "p.id = $1", id)
}

// FindBySlug returns a post by its slug. Returns nil if not found.
func (s *PostStore) FindBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.findOne(ctx, "p.slug = $1", slug)
}

func (s *PostStore) findOne(ctx context.Context, where string, arg any) (*models.Post, error) {
	row := database.Conn(ctx, s.db).QueryRowContext(ctx, postSelect+` WHERE `+where, arg)
	p, err := scanPostRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}
	posts := []models.Post{*p}
	if err := s.loadRelations(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// SlugExists reports whether slug is used by any post other than exclude.
func (s *PostStore) SlugExists(ctx context.Context, slug string, exclude *uuid.UUID) (bool, error) {
	var ok bool
	err := database.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE slug = $1 AND id IS DISTINCT FROM $2)`,
		slug, exclude).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("slug exists: %w", err)
	}
	return ok, nil
}

// Create inserts the post row. Associations are written separately with
// ReplaceCategories and ReplaceTags. A slug collision yields ErrSlugTaken.
func (s *PostStore) Create(ctx context.Context, p *models.Post) (*models.Post, error) {
	var id uuid.UUID
	err := database.Conn(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO posts (title, slug, content, content_format, excerpt, featured_image,
			status, reading_time, seo_title, seo_description, seo_keywords, author_id, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, p.Title, p.Slug, p.Content, p.ContentFormat, p.Excerpt, p.FeaturedImage,
		p.Status, p.ReadingTime, p.SEOTitle, p.SEODescription, p.SEOKeywords, p.AuthorID, p.PublishedAt,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", translate(err))
	}
	p.ID = id
	return p, nil
}

// Update overwrites the editable columns of a post. A slug collision
// yields ErrSlugTaken.
func (s *PostStore) Update(ctx context.Context, p *models.Post) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE posts SET
			title = $1, slug = $2, content = $3, content_format = $4, excerpt = $5,
			featured_image = $6, status = $7, reading_time = $8, seo_title = $9,
			seo_description = $10, seo_keywords = $11, published_at = $12, updated_at = NOW()
		WHERE id = $13
	`, p.Title, p.Slug, p.Content, p.ContentFormat, p.Excerpt,
		p.FeaturedImage, p.Status, p.ReadingTime, p.SEOTitle,
		p.SEODescription, p.SEOKeywords, p.PublishedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update post: %w", translate(err))
	}
	return nil
}

// Delete removes a post. Joins, comments, likes and bookmarks cascade.
func (s *PostStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// IncrementViews atomically adds one view and returns the new count.
// found is false when the post no longer exists.
func (s *PostStore) IncrementViews(ctx context.Context, id uuid.UUID) (views int, found bool, err error) {
	err = database.Conn(ctx, s.db).QueryRowContext(ctx,
		`UPDATE posts SET view_count = view_count + 1 WHERE id = $1 RETURNING view_count`,
		id).Scan(&views)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment views: %w", err)
	}
	return views, true, nil
}

// ReplaceCategories makes categoryIDs the exact category set of a post.
func (s *PostStore) ReplaceCategories(ctx context.Context, postID uuid.UUID, categoryIDs []uuid.UUID) error {
	x := database.Conn(ctx, s.db)
	if _, err := x.ExecContext(ctx, `DELETE FROM post_categories WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("clear post categories: %w", err)
	}
	for _, cid := range categoryIDs {
		_, err := x.ExecContext(ctx,
			`INSERT INTO post_categories (post_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			postID, cid)
		if err != nil {
			return fmt.Errorf("link category %s: %w", cid, translate(err))
		}
	}
	return nil
}

// ReplaceTags makes tagIDs the exact tag set of a post.
func (s *PostStore) ReplaceTags(ctx context.Context, postID uuid.UUID, tagIDs []uuid.UUID) error {
	x := database.Conn(ctx, s.db)
	if _, err := x.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("clear post tags: %w", err)
	}
	for _, tid := range tagIDs {
		_, err := x.ExecContext(ctx,
			`INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			postID, tid)
		if err != nil {
			return fmt.Errorf("link tag %s: %w", tid, translate(err))
		}
	}
	return nil
}

// PostFilter narrows a post listing. Zero values mean "no constraint".
type PostFilter struct {
	Status        *models.PostStatus
	CategorySlug  string
	TagSlug       string
	AuthorID      *uuid.UUID
	BookmarkedBy  *uuid.UUID
	Search        string
	SearchExcerpt bool // also match the excerpt column
	Offset        int
	Limit         int
}

// where renders the filter as a SQL predicate and its positional args.
func (f PostFilter) where() (string, []any) {
	var clauses []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != nil {
		clauses = append(clauses, "p.status = "+arg(*f.Status))
	}
	if f.CategorySlug != "" {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM post_categories pc
			JOIN categories c ON c.id = pc.category_id
			WHERE pc.post_id = p.id AND c.slug = `+arg(f.CategorySlug)+`)`)
	}
	if f.TagSlug != "" {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM post_tags pt
			JOIN tags t ON t.id = pt.tag_id
			WHERE pt.post_id = p.id AND t.slug = `+arg(f.TagSlug)+`)`)
	}
	if f.AuthorID != nil {
		clauses = append(clauses, "p.author_id = "+arg(*f.AuthorID))
	}
	if f.BookmarkedBy != nil {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM bookmarks b
			WHERE b.post_id = p.id AND b.user_id = `+arg(*f.BookmarkedBy)+`)`)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		n := arg("%" + escapeLike(q) + "%")
		cols := []string{"p.title", "p.content"}
		if f.SearchExcerpt {
			cols = append(cols, "COALESCE(p.excerpt, '')")
		}
		var ors []string
		for _, c := range cols {
			ors = append(ors, c+` ILIKE `+n+` ESCAPE '\'`)
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns one page of posts matching f, newest publication first,
// plus the total number of matches.
func (s *PostStore) List(ctx context.Context, f PostFilter) ([]models.Post, int, error) {
	where, args := f.where()
	x := database.Conn(ctx, s.db)

	var total int
	if err := x.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	pageArgs := append(args, limit, f.Offset)
	query := postSelect + where + fmt.Sprintf(`
		ORDER BY p.published_at DESC NULLS LAST, p.created_at DESC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	rows, err := x.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPostRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := s.loadRelations(ctx, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// loadRelations fills Categories and Tags for a batch of posts with one
// query per relation.
func (s *PostStore) loadRelations(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	index := make(map[uuid.UUID]int, len(posts))
	ids := make([]string, len(posts))
	for i, p := range posts {
		index[p.ID] = i
		ids[i] = p.ID.String()
	}
	x := database.Conn(ctx, s.db)

	rows, err := x.QueryContext(ctx, `
		SELECT pc.post_id, c.id, c.name, c.slug, COALESCE(c.description, ''),
		       c.parent_id, c.sort_order, c.created_at, c.updated_at
		FROM post_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.post_id = ANY($1::uuid[])
		ORDER BY c.name
	`, ids)
	if err != nil {
		return fmt.Errorf("load post categories: %w", err)
	}
	for rows.Next() {
		var postID uuid.UUID
		var c models.Category
		if err := rows.Scan(&postID, &c.ID, &c.Name, &c.Slug, &c.Description,
			&c.ParentID, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan post category: %w", err)
		}
		i := index[postID]
		posts[i].Categories = append(posts[i].Categories, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = x.QueryContext(ctx, `
		SELECT pt.post_id, t.id, t.name, t.slug, t.created_at
		FROM post_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id = ANY($1::uuid[])
		ORDER BY t.name
	`, ids)
	if err != nil {
		return fmt.Errorf("load post tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var postID uuid.UUID
		var t models.Tag
		if err := rows.Scan(&postID, &t.ID, &t.Name, &t.Slug, &t.CreatedAt); err != nil {
			return fmt.Errorf("scan post tag: %w", err)
		}
		i := index[postID]
		posts[i].Tags = append(posts[i].Tags, t)
	}
	return rows.Err()
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
