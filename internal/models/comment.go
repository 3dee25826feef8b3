// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// CommentStatus models the moderation state of a comment. New comments are
// currently approved on creation.
type CommentStatus string

const (
	CommentStatusPending  CommentStatus = "PENDING"
	CommentStatusApproved CommentStatus = "APPROVED"
	CommentStatusRejected CommentStatus = "REJECTED"
	CommentStatusSpam     CommentStatus = "SPAM"
)

// Comment is a reader comment on a post, optionally replying to another
// comment on the same post.
type Comment struct {
	ID        uuid.UUID     `json:"id"`
	Content   string        `json:"content"`
	Status    CommentStatus `json:"status"`
	AuthorID  uuid.UUID     `json:"authorId"`
	PostID    uuid.UUID     `json:"postId"`
	ParentID  *uuid.UUID    `json:"parentId"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`

	Author  *AuthorSummary `json:"author,omitempty"`
	Replies []Comment      `json:"replies,omitempty"`
}

// Relation is a kind of per-user boolean link to a post in the
// engagement ledger.
type Relation string

const (
	RelationLike     Relation = "like"
	RelationBookmark Relation = "bookmark"
)

// Valid reports whether r is a known ledger relation.
func (r Relation) Valid() bool {
	return r == RelationLike || r == RelationBookmark
}
