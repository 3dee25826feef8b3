// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/authz"
	"inkpress/internal/models"
	"inkpress/internal/store"
)

// CommentService manages comment threads.
type CommentService struct {
	comments CommentStore
	posts    PostStore
	authz    *authz.Authorizer
}

// NewCommentService creates a CommentService.
func NewCommentService(comments CommentStore, posts PostStore, az *authz.Authorizer) *CommentService {
	return &CommentService{comments: comments, posts: posts, authz: az}
}

// Thread returns the approved comments of a post with their direct replies.
func (s *CommentService) Thread(ctx context.Context, caller *authz.Identity, postID uuid.UUID) ([]models.Comment, error) {
	if _, err := visiblePost(ctx, s.posts, s.authz, caller, postID); err != nil {
		return nil, err
	}
	thread, err := s.comments.Thread(ctx, postID)
	if err != nil {
		return nil, apperr.Internal("Failed to load comments", err)
	}
	return thread, nil
}

// Create adds a comment, optionally as a reply. New comments are approved
// immediately.
func (s *CommentService) Create(ctx context.Context, caller *authz.Identity, postID uuid.UUID, in CommentInput) (*models.Comment, error) {
	p, err := s.authz.Authenticate(ctx, caller)
	if err != nil {
		return nil, err
	}
	content, err := commentContent(in.Content)
	if err != nil {
		return nil, err
	}
	parentID, err := parseOptionalID("parentId", in.ParentID)
	if err != nil {
		return nil, err
	}

	if _, err := visiblePost(ctx, s.posts, s.authz, caller, postID); err != nil {
		return nil, err
	}
	if parentID != nil {
		parent, err := s.comments.FindByID(ctx, *parentID)
		if err != nil {
			return nil, apperr.Internal("Failed to load parent comment", err)
		}
		if parent == nil {
			return nil, apperr.NotFound("Parent comment not found")
		}
		if parent.PostID != postID {
			return nil, apperr.Invalid("parentId", "Parent comment belongs to another post")
		}
	}

	created, err := s.comments.Create(ctx, &models.Comment{
		Content:  content,
		Status:   models.CommentStatusApproved,
		AuthorID: p.ID,
		PostID:   postID,
		ParentID: parentID,
	})
	if errors.Is(err, store.ErrInvalidReference) {
		return nil, apperr.NotFound("Post not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to create comment", err)
	}
	return created, nil
}

// Update replaces the text of the caller's own comment.
func (s *CommentService) Update(ctx context.Context, caller *authz.Identity, id uuid.UUID, rawContent string) (*models.Comment, error) {
	p, err := s.authz.Authenticate(ctx, caller)
	if err != nil {
		return nil, err
	}
	content, err := commentContent(rawContent)
	if err != nil {
		return nil, err
	}
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanEditComment(c.AuthorID, p) {
		return nil, apperr.Forbidden("You can only edit your own comments")
	}
	updated, err := s.comments.UpdateContent(ctx, id, content)
	if err != nil {
		return nil, apperr.Internal("Failed to update comment", err)
	}
	if updated == nil {
		return nil, apperr.NotFound("Comment not found")
	}
	return updated, nil
}

// Delete removes a comment and its replies. Allowed for the author and
// admins.
func (s *CommentService) Delete(ctx context.Context, caller *authz.Identity, id uuid.UUID) error {
	p, err := s.authz.Authenticate(ctx, caller)
	if err != nil {
		return err
	}
	c, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !authz.CanDeleteComment(c.AuthorID, p) {
		return apperr.Forbidden("You can only delete your own comments")
	}
	if err := s.comments.Delete(ctx, id); err != nil {
		return apperr.Internal("Failed to delete comment", err)
	}
	return nil
}

func (s *CommentService) find(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	c, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("Failed to load comment", err)
	}
	if c == nil {
		return nil, apperr.NotFound("Comment not found")
	}
	return c, nil
}

func commentContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", apperr.Invalid("content", "Comment content is required")
	}
	return content, nil
}
