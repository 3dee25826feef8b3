// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"inkpress/internal/database"
	"inkpress/internal/models"
)

// TagStore manages tags. Tags are keyed by slug and created on demand.
type TagStore struct {
	db *sql.DB
}

// NewTagStore returns a new TagStore.
func NewTagStore(db *sql.DB) *TagStore {
	return &TagStore{db: db}
}

// tagPruneLock is the advisory lock key shared by tag upserts and orphan
// pruning. Upserts hold it shared until their transaction ends, so a prune
// never sees a tag whose post link is not committed yet.
const tagPruneLock int64 = 0x696e6b7461677301

// Upsert returns the tag with the given slug, creating it with name if it
// does not exist yet. The existing name is kept on conflict.
func (s *TagStore) Upsert(ctx context.Context, name, slug string) (*models.Tag, error) {
	conn := database.Conn(ctx, s.db)
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_xact_lock_shared($1)`, tagPruneLock); err != nil {
		return nil, fmt.Errorf("lock tags: %w", err)
	}
	var t models.Tag
	err := conn.QueryRowContext(ctx, `
		INSERT INTO tags (name, slug) VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
		RETURNING id, name, slug, created_at
	`, name, slug).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert tag %s: %w", slug, err)
	}
	return &t, nil
}

// List returns all tags ordered by name, with post counts.
func (s *TagStore) List(ctx context.Context) ([]models.Tag, error) {
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT t.id, t.name, t.slug, t.created_at, COUNT(pt.post_id)
		FROM tags t
		LEFT JOIN post_tags pt ON pt.tag_id = t.id
		GROUP BY t.id
		ORDER BY t.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.PostCount); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// DeleteOrphans removes tags no post links to and returns how many were
// deleted. It waits for open transactions that upserted tags to finish.
func (s *TagStore) DeleteOrphans(ctx context.Context) (int64, error) {
	var n int64
	err := database.RunInTx(ctx, s.db, func(ctx context.Context) error {
		conn := database.Conn(ctx, s.db)
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, tagPruneLock); err != nil {
			return fmt.Errorf("lock tags: %w", err)
		}
		res, err := conn.ExecContext(ctx, `
			DELETE FROM tags t
			WHERE NOT EXISTS (SELECT 1 FROM post_tags pt WHERE pt.tag_id = t.id)
		`)
		if err != nil {
			return fmt.Errorf("delete orphan tags: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
