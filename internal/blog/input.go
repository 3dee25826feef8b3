// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/models"
	"inkpress/internal/slug"
)

// Field limits of the post input schema.
const (
	maxTitleLen          = 200
	maxExcerptLen        = 500
	maxSEOTitleLen       = 60
	maxSEODescriptionLen = 160
	maxTagNameLen        = 100
)

// PostInput is the body of a post create or update request.
type PostInput struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Excerpt        *string  `json:"excerpt"`
	FeaturedImage  *string  `json:"featuredImage"`
	CategoryIDs    []string `json:"categoryIds"`
	TagNames       []string `json:"tagNames"`
	SEOTitle       *string  `json:"seoTitle"`
	SEODescription *string  `json:"seoDescription"`
	SEOKeywords    *string  `json:"seoKeywords"`

	// Optional. Empty means DRAFT on create and "unchanged" on update.
	Status        models.PostStatus    `json:"status"`
	ContentFormat models.ContentFormat `json:"contentFormat"`
}

type tagRef struct {
	name, slug string
}

// postDraft is a validated and normalized PostInput.
type postDraft struct {
	title          string
	content        string
	excerpt        *string
	featuredImage  *string
	categoryIDs    []uuid.UUID
	tags           []tagRef
	seoTitle       *string
	seoDescription *string
	seoKeywords    *string
	status         models.PostStatus
	format         models.ContentFormat
}

// validate checks the input against the post schema and returns the
// normalized draft. All field errors are reported together.
func (in PostInput) validate() (*postDraft, error) {
	v := apperr.Validation{}
	d := &postDraft{}

	d.title = strings.TrimSpace(in.Title)
	switch n := utf8.RuneCountInString(d.title); {
	case n == 0:
		v.Add("title", "Title is required")
	case n > maxTitleLen:
		v.Add("title", fmt.Sprintf("Title must be at most %d characters", maxTitleLen))
	}

	d.content = in.Content
	if strings.TrimSpace(d.content) == "" {
		v.Add("content", "Content is required")
	}

	d.excerpt = optional(in.Excerpt)
	if d.excerpt != nil && utf8.RuneCountInString(*d.excerpt) > maxExcerptLen {
		v.Add("excerpt", fmt.Sprintf("Excerpt must be at most %d characters", maxExcerptLen))
	}

	d.featuredImage = optional(in.FeaturedImage)
	if d.featuredImage != nil && !validURL(*d.featuredImage) {
		v.Add("featuredImage", "Featured image must be a valid URL")
	}

	if len(in.CategoryIDs) == 0 {
		v.Add("categoryIds", "At least one category is required")
	}
	seenCat := map[uuid.UUID]bool{}
	for _, raw := range in.CategoryIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			v.Add("categoryIds", fmt.Sprintf("Invalid category id %q", raw))
			continue
		}
		if !seenCat[id] {
			seenCat[id] = true
			d.categoryIDs = append(d.categoryIDs, id)
		}
	}

	seenTag := map[string]bool{}
	for _, raw := range in.TagNames {
		name := strings.TrimSpace(raw)
		s := slug.Generate(name)
		if s == "" || utf8.RuneCountInString(name) > maxTagNameLen {
			v.Add("tagNames", fmt.Sprintf("Invalid tag name %q", raw))
			continue
		}
		if !seenTag[s] {
			seenTag[s] = true
			d.tags = append(d.tags, tagRef{name: name, slug: s})
		}
	}

	d.seoTitle = optional(in.SEOTitle)
	if d.seoTitle != nil && utf8.RuneCountInString(*d.seoTitle) > maxSEOTitleLen {
		v.Add("seoTitle", fmt.Sprintf("SEO title must be at most %d characters", maxSEOTitleLen))
	}
	d.seoDescription = optional(in.SEODescription)
	if d.seoDescription != nil && utf8.RuneCountInString(*d.seoDescription) > maxSEODescriptionLen {
		v.Add("seoDescription", fmt.Sprintf("SEO description must be at most %d characters", maxSEODescriptionLen))
	}
	d.seoKeywords = optional(in.SEOKeywords)

	d.status = in.Status
	if d.status != "" && !d.status.Valid() {
		v.Add("status", "Invalid status")
	}
	d.format = in.ContentFormat
	if d.format != "" && d.format != models.ContentFormatHTML && d.format != models.ContentFormatMarkdown {
		v.Add("contentFormat", "Content format must be html or markdown")
	}

	if err := v.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// optional maps nil and blank strings to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CategoryInput is the body of a category create request.
type CategoryInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ParentID    *string `json:"parentId"`
	SortOrder   *int    `json:"sortOrder"`
}

// CommentInput is the body of a comment create request.
type CommentInput struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parentId"`
}

// parseOptionalID parses an optional id field, treating blank as absent.
func parseOptionalID(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, apperr.Invalid(field, "Invalid id")
	}
	return &id, nil
}
