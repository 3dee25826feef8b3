// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"inkpress/internal/database"
	"inkpress/internal/models"
)

// LedgerStore records likes and bookmarks. Both live in their own table
// with a unique (user_id, post_id) key.
type LedgerStore struct {
	db *sql.DB
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func ledgerTable(rel models.Relation) (string, error) {
	switch rel {
	case models.RelationLike:
		return "likes", nil
	case models.RelationBookmark:
		return "bookmarks", nil
	}
	return "", fmt.Errorf("unknown relation %q", rel)
}

// Add records (user, post). An existing pair yields ErrDuplicate; a
// missing post or user yields ErrInvalidReference.
func (s *LedgerStore) Add(ctx context.Context, rel models.Relation, userID, postID uuid.UUID) error {
	table, err := ledgerTable(rel)
	if err != nil {
		return err
	}
	_, err = database.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO `+table+` (user_id, post_id) VALUES ($1, $2)`, userID, postID)
	if err != nil {
		return fmt.Errorf("add %s: %w", rel, translate(err))
	}
	return nil
}

// Remove deletes (user, post) and reports whether a row existed.
func (s *LedgerStore) Remove(ctx context.Context, rel models.Relation, userID, postID uuid.UUID) (bool, error) {
	table, err := ledgerTable(rel)
	if err != nil {
		return false, err
	}
	res, err := database.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM `+table+` WHERE user_id = $1 AND post_id = $2`, userID, postID)
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", rel, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", rel, err)
	}
	return n > 0, nil
}

// Count returns the number of rows of rel for a post.
func (s *LedgerStore) Count(ctx context.Context, rel models.Relation, postID uuid.UUID) (int, error) {
	table, err := ledgerTable(rel)
	if err != nil {
		return 0, err
	}
	var n int
	err = database.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE post_id = $1`, postID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", rel, err)
	}
	return n, nil
}
