// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package authz decides who may do what. A session only proves an
// Identity; role and activation status are re-read from the user store on
// every check, so a demotion or deactivation takes effect on the very next
// request.
package authz

import (
	"context"

	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/models"
)

// Identity is what an authenticated session asserts. A nil *Identity is
// an anonymous caller.
type Identity struct {
	UserID uuid.UUID
}

// Principal is the freshly loaded view of the caller used for decisions.
type Principal struct {
	ID       uuid.UUID
	Email    string
	Username string
	Role     models.Role
	IsActive bool
}

// Tier is a minimum role requirement.
type Tier int

const (
	TierMember Tier = iota // any active user
	TierAuthor             // AUTHOR, EDITOR or ADMIN
	TierEditor             // EDITOR or ADMIN
	TierAdmin              // ADMIN only
)

// Allows reports whether role satisfies the tier.
func (t Tier) Allows(role models.Role) bool {
	switch t {
	case TierMember:
		return role.Valid()
	case TierAuthor:
		return role == models.RoleAuthor || role == models.RoleEditor || role == models.RoleAdmin
	case TierEditor:
		return role == models.RoleEditor || role == models.RoleAdmin
	case TierAdmin:
		return role == models.RoleAdmin
	}
	return false
}

// UserFinder loads users by id. Implemented by store.UserStore.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Authorizer checks callers against the live user table.
type Authorizer struct {
	users UserFinder
}

// New creates an Authorizer backed by users.
func New(users UserFinder) *Authorizer {
	return &Authorizer{users: users}
}

// Authorize resolves id to a Principal and checks it against tier.
// Checks run in order: authenticated, exists, active, role.
func (a *Authorizer) Authorize(ctx context.Context, id *Identity, tier Tier) (*Principal, error) {
	if id == nil {
		return nil, apperr.Unauthenticated("Not authenticated")
	}
	u, err := a.users.FindByID(ctx, id.UserID)
	if err != nil {
		return nil, apperr.Internal("Failed to load user", err)
	}
	if u == nil {
		return nil, apperr.NotFound("User not found")
	}
	if !u.IsActive {
		return nil, apperr.New(apperr.KindAccountDeactivated, "Account is deactivated")
	}
	if !tier.Allows(u.Role) {
		return nil, apperr.Forbidden("Insufficient permissions")
	}
	return principalOf(u), nil
}

// Authenticate requires any active user.
func (a *Authorizer) Authenticate(ctx context.Context, id *Identity) (*Principal, error) {
	return a.Authorize(ctx, id, TierMember)
}

// RequireAuthor requires AUTHOR, EDITOR or ADMIN.
func (a *Authorizer) RequireAuthor(ctx context.Context, id *Identity) (*Principal, error) {
	return a.Authorize(ctx, id, TierAuthor)
}

// RequireAdmin requires ADMIN.
func (a *Authorizer) RequireAdmin(ctx context.Context, id *Identity) (*Principal, error) {
	return a.Authorize(ctx, id, TierAdmin)
}

// Optional resolves a caller for public reads. Anonymous, vanished and
// deactivated callers all yield a nil principal; only store failures are
// returned as errors.
func (a *Authorizer) Optional(ctx context.Context, id *Identity) (*Principal, error) {
	if id == nil {
		return nil, nil
	}
	u, err := a.users.FindByID(ctx, id.UserID)
	if err != nil {
		return nil, apperr.Internal("Failed to load user", err)
	}
	if u == nil || !u.IsActive {
		return nil, nil
	}
	return principalOf(u), nil
}

func principalOf(u *models.User) *Principal {
	return &Principal{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}

// CanModifyResource reports whether p may edit or delete something owned
// by ownerID: the owner, or any EDITOR or ADMIN.
func CanModifyResource(ownerID uuid.UUID, p *Principal) bool {
	if p == nil {
		return false
	}
	return p.ID == ownerID || TierEditor.Allows(p.Role)
}

// CanEditComment reports whether p may change a comment's text. Only the
// comment's author may.
func CanEditComment(authorID uuid.UUID, p *Principal) bool {
	return p != nil && p.ID == authorID
}

// CanDeleteComment reports whether p may delete a comment: its author or
// an ADMIN.
func CanDeleteComment(authorID uuid.UUID, p *Principal) bool {
	return p != nil && (p.ID == authorID || p.Role == models.RoleAdmin)
}

// CanSetStatus reports whether p may put a post into status. Drafting and
// submitting for review are open to authors; publishing and archiving
// need an editor.
func CanSetStatus(p *Principal, status models.PostStatus) bool {
	if p == nil {
		return false
	}
	switch status {
	case models.PostStatusDraft, models.PostStatusPending:
		return TierAuthor.Allows(p.Role)
	case models.PostStatusPublished, models.PostStatusArchived:
		return TierEditor.Allows(p.Role)
	}
	return false
}
