// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"inkpress/internal/database"
	"inkpress/internal/models"
)

// CommentStore manages threaded comments.
type CommentStore struct {
	db *sql.DB
}

// NewCommentStore creates a new CommentStore.
func NewCommentStore(db *sql.DB) *CommentStore {
	return &CommentStore{db: db}
}

const commentSelect = `SELECT cm.id, cm.content, cm.status, cm.author_id, cm.post_id, cm.parent_id,
	cm.created_at, cm.updated_at,
	u.username, COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(u.avatar, '')
FROM comments cm
JOIN users u ON u.id = cm.author_id`

func scanComment(sc rowScanner) (*models.Comment, error) {
	var c models.Comment
	a := &models.AuthorSummary{}
	err := sc.Scan(
		&c.ID, &c.Content, &c.Status, &c.AuthorID, &c.PostID, &c.ParentID,
		&c.CreatedAt, &c.UpdatedAt,
		&a.Username, &a.FirstName, &a.LastName, &a.Avatar,
	)
	if err != nil {
		return nil, err
	}
	a.ID = c.AuthorID
	c.Author = a
	return &c, nil
}

// FindByID returns a comment with its author summary. Returns nil if not found.
func (s *CommentStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	row := database.Conn(ctx, s.db).QueryRowContext(ctx, commentSelect+` WHERE cm.id = $1`, id)
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return c, nil
}

// Create inserts a comment and returns it with its author summary. A post
// or parent that vanished meanwhile yields ErrInvalidReference.
func (s *CommentStore) Create(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	var id uuid.UUID
	err := database.Conn(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO comments (content, status, author_id, post_id, parent_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, c.Content, c.Status, c.AuthorID, c.PostID, c.ParentID).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", translate(err))
	}
	return s.FindByID(ctx, id)
}

// UpdateContent replaces a comment's text and returns the updated row.
func (s *CommentStore) UpdateContent(ctx context.Context, id uuid.UUID, content string) (*models.Comment, error) {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE comments SET content = $1, updated_at = NOW() WHERE id = $2`, content, id)
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	return s.FindByID(ctx, id)
}

// Delete removes a comment. Replies cascade.
func (s *CommentStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// Thread returns the approved top-level comments of a post, newest first,
// each carrying its approved direct replies oldest first.
func (s *CommentStore) Thread(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	x := database.Conn(ctx, s.db)

	rows, err := x.QueryContext(ctx, commentSelect+`
		WHERE cm.post_id = $1 AND cm.parent_id IS NULL AND cm.status = $2
		ORDER BY cm.created_at DESC, cm.id
	`, postID, models.CommentStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	top := []models.Comment{}
	index := map[uuid.UUID]int{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.Replies = []models.Comment{}
		index[c.ID] = len(top)
		top = append(top, *c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return top, nil
	}

	rows, err = x.QueryContext(ctx, commentSelect+`
		WHERE cm.post_id = $1 AND cm.parent_id IS NOT NULL AND cm.status = $2
		ORDER BY cm.created_at ASC, cm.id
	`, postID, models.CommentStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		if i, ok := index[*c.ParentID]; ok {
			top[i].Replies = append(top[i].Replies, *c)
		}
	}
	return top, rows.Err()
}
