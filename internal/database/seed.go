// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// Default development credentials. Seed only runs outside production.
const (
	SeedAdminEmail    = "admin@inkpress.local"
	SeedAdminUsername = "admin"
	SeedAdminPassword = "admin1234"
)

type seedCategory struct {
	name, slug, description string
}

var defaultCategories = []seedCategory{
	{"Technology", "technology", "Latest technology trends and news"},
	{"Web Development", "web-development", "Web development tutorials and tips"},
	{"JavaScript", "javascript", "JavaScript programming and frameworks"},
	{"Next.js", "nextjs", "Next.js framework tutorials and guides"},
	{"React", "react", "React library and ecosystem"},
	{"TypeScript", "typescript", "TypeScript programming language"},
	{"DevOps", "devops", "DevOps practices and tools"},
	{"Database", "database", "Database design and management"},
}

// Seed populates the database with initial development data: a default
// admin account when no users exist, and the default categories. It is
// safe to call repeatedly.
func Seed(ctx context.Context, db *sql.DB) error {
	return RunInTx(ctx, db, func(ctx context.Context) error {
		if err := seedAdmin(ctx, db); err != nil {
			return err
		}
		return seedCategories(ctx, db)
	})
}

func seedAdmin(ctx context.Context, db *sql.DB) error {
	x := Conn(ctx, db)

	var count int
	if err := x.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}
	if count > 0 {
		slog.Info("users already present, skipping admin seed")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(SeedAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	_, err = x.ExecContext(ctx, `
		INSERT INTO users (email, username, password_hash, first_name, last_name, role)
		VALUES ($1, $2, $3, 'Admin', 'User', 'ADMIN')
	`, SeedAdminEmail, SeedAdminUsername, string(hash))
	if err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	slog.Info("database seeded with default admin user",
		"email", SeedAdminEmail,
		"password", SeedAdminPassword,
	)
	return nil
}

func seedCategories(ctx context.Context, db *sql.DB) error {
	x := Conn(ctx, db)
	for i, c := range defaultCategories {
		_, err := x.ExecContext(ctx, `
			INSERT INTO categories (name, slug, description, sort_order)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (slug) DO NOTHING
		`, c.name, c.slug, c.description, i)
		if err != nil {
			return fmt.Errorf("seed category %s: %w", c.slug, err)
		}
	}
	return nil
}
