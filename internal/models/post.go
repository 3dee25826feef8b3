// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// PostStatus represents the publishing state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "DRAFT"
	PostStatusPending   PostStatus = "PENDING"
	PostStatusPublished PostStatus = "PUBLISHED"
	PostStatusArchived  PostStatus = "ARCHIVED"
)

// Valid reports whether s is one of the known statuses.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusPending, PostStatusPublished, PostStatusArchived:
		return true
	}
	return false
}

// ContentFormat tells how a post body is stored.
type ContentFormat string

const (
	ContentFormatHTML     ContentFormat = "html"
	ContentFormatMarkdown ContentFormat = "markdown"
)

// Post is a blog article. The slug is unique across all posts and the
// author never changes after creation.
type Post struct {
	ID             uuid.UUID     `json:"id"`
	Title          string        `json:"title"`
	Slug           string        `json:"slug"`
	Content        string        `json:"content"`
	ContentFormat  ContentFormat `json:"contentFormat"`
	ContentHTML    string        `json:"contentHtml,omitempty"`
	Excerpt        *string       `json:"excerpt"`
	FeaturedImage  *string       `json:"featuredImage"`
	Status         PostStatus    `json:"status"`
	ViewCount      int           `json:"viewCount"`
	ReadingTime    int           `json:"readingTime"`
	SEOTitle       *string       `json:"seoTitle"`
	SEODescription *string       `json:"seoDescription"`
	SEOKeywords    *string       `json:"seoKeywords"`
	AuthorID       uuid.UUID     `json:"authorId"`
	PublishedAt    *time.Time    `json:"publishedAt"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`

	// Relations populated by store reads.
	Author     *AuthorSummary `json:"author,omitempty"`
	Categories []Category     `json:"categories"`
	Tags       []Tag          `json:"tags"`
	Counts     PostCounts     `json:"_count"`
}

// PostCounts holds the aggregate counters shown with a post.
type PostCounts struct {
	Comments int `json:"comments"`
	Likes    int `json:"likes"`
}

// IsPublished returns true if the post is in published status.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}
