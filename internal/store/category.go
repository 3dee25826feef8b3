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

// CategoryStore manages categories in the database.
type CategoryStore struct {
	db *sql.DB
}

// NewCategoryStore returns a new CategoryStore.
func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

const categoryColumns = `id, name, slug, COALESCE(description, ''), parent_id, sort_order, created_at, updated_at`

func scanCategory(sc rowScanner) (*models.Category, error) {
	var c models.Category
	err := sc.Scan(
		&c.ID, &c.Name, &c.Slug, &c.Description,
		&c.ParentID, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all categories ordered by name, each with the number of
// posts filed under it.
func (s *CategoryStore) List(ctx context.Context) ([]models.Category, error) {
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT c.id, c.name, c.slug, COALESCE(c.description, ''), c.parent_id, c.sort_order,
		       c.created_at, c.updated_at,
		       COUNT(pc.post_id) AS post_count
		FROM categories c
		LEFT JOIN post_categories pc ON pc.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	items := []models.Category{}
	for rows.Next() {
		var c models.Category
		err := rows.Scan(
			&c.ID, &c.Name, &c.Slug, &c.Description,
			&c.ParentID, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt,
			&c.PostCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// Tree returns categories as a nested tree, siblings ordered by
// sort_order then name.
func (s *CategoryStore) Tree(ctx context.Context) ([]models.Category, error) {
	flat, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTree(flat), nil
}

// BuildTree nests a flat category list under its parents. Categories whose
// parent is missing from the list are treated as roots.
func BuildTree(flat []models.Category) []models.Category {
	known := make(map[uuid.UUID]bool, len(flat))
	for _, c := range flat {
		known[c.ID] = true
	}
	roots := make([]models.Category, 0, len(flat))
	for _, c := range flat {
		if c.ParentID == nil || !known[*c.ParentID] {
			roots = append(roots, c)
		}
	}
	sortSiblings(roots)
	for i := range roots {
		attachChildren(flat, &roots[i], 0)
	}
	return roots
}

func attachChildren(flat []models.Category, parent *models.Category, depth int) {
	parent.Depth = depth
	for _, c := range flat {
		if c.ParentID != nil && *c.ParentID == parent.ID {
			parent.Children = append(parent.Children, c)
		}
	}
	sortSiblings(parent.Children)
	for i := range parent.Children {
		attachChildren(flat, &parent.Children[i], depth+1)
	}
}

func sortSiblings(cats []models.Category) {
	// Insertion sort; sibling lists are short.
	for i := 1; i < len(cats); i++ {
		for j := i; j > 0 && lessCategory(cats[j], cats[j-1]); j-- {
			cats[j], cats[j-1] = cats[j-1], cats[j]
		}
	}
}

func lessCategory(a, b models.Category) bool {
	if a.SortOrder != b.SortOrder {
		return a.SortOrder < b.SortOrder
	}
	return a.Name < b.Name
}

// FindByID retrieves a category by ID. Returns nil if not found.
func (s *CategoryStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	row := database.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by id: %w", err)
	}
	return c, nil
}

// FindBySlug retrieves a category by slug. Returns nil if not found.
func (s *CategoryStore) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	row := database.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE slug = $1`, slug)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by slug: %w", err)
	}
	return c, nil
}

// MissingIDs returns the subset of ids that do not name a category.
func (s *CategoryStore) MissingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := database.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT id FROM categories WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("check categories: %w", err)
	}
	defer rows.Close()

	found := make(map[uuid.UUID]bool, len(ids))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan category id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []uuid.UUID
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Create inserts a new category and returns it. A duplicate slug yields
// ErrDuplicate; an unknown parent yields ErrInvalidReference.
func (s *CategoryStore) Create(ctx context.Context, c *models.Category) (*models.Category, error) {
	row := database.Conn(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO categories (name, slug, description, parent_id, sort_order)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING `+categoryColumns,
		c.Name, c.Slug, c.Description, c.ParentID, c.SortOrder,
	)
	result, err := scanCategory(row)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", translate(err))
	}
	return result, nil
}

// NextSortOrder returns the next sort_order value for a given parent.
func (s *CategoryStore) NextSortOrder(ctx context.Context, parentID *uuid.UUID) (int, error) {
	var maxOrder sql.NullInt64
	err := database.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT MAX(sort_order) FROM categories WHERE parent_id IS NOT DISTINCT FROM $1`,
		parentID).Scan(&maxOrder)
	if err != nil {
		return 0, fmt.Errorf("next sort order: %w", err)
	}
	if maxOrder.Valid {
		return int(maxOrder.Int64) + 1, nil
	}
	return 0, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
