// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors translated from PostgreSQL constraint violations.
var (
	// ErrSlugTaken is returned when a post insert or update collides on
	// the posts_slug_key unique constraint.
	ErrSlugTaken = errors.New("slug already taken")
	// ErrDuplicate is returned for any other unique violation.
	ErrDuplicate = errors.New("duplicate key")
	// ErrInvalidReference is returned when a foreign key points nowhere.
	ErrInvalidReference = errors.New("invalid reference")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	postsSlugConstraint = "posts_slug_key"
)

// translate maps constraint violations onto the sentinels above. Other
// errors are returned unchanged.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == postsSlugConstraint {
			return ErrSlugTaken
		}
		return ErrDuplicate
	case pgForeignKeyViolation:
		return ErrInvalidReference
	}
	return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
