// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/authz"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
)

// Users groups the admin user-management endpoints.
type Users struct {
	authz *authz.Authorizer
	users UserStore
}

// NewUsers creates the user-management handlers.
func NewUsers(az *authz.Authorizer, users UserStore) *Users {
	return &Users{authz: az, users: users}
}

type roleUpdate struct {
	Role models.Role `json:"role"`
}

type statusUpdate struct {
	IsActive *bool `json:"isActive"`
}

// List returns every account.
func (h *Users) List(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authz.RequireAdmin(r.Context(), middleware.IdentityFromCtx(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to list users", err))
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// SetRole changes a user's role. The change applies to the user's next
// request without a new login.
func (h *Users) SetRole(w http.ResponseWriter, r *http.Request) {
	var in roleUpdate
	target, admin, ok := h.prepare(w, r, &in)
	if !ok {
		return
	}
	if !in.Role.Valid() {
		writeError(w, r, apperr.Invalid("role", "Invalid role"))
		return
	}
	if target.ID == admin.ID && in.Role != models.RoleAdmin {
		writeError(w, r, apperr.Forbidden("You cannot change your own role"))
		return
	}
	if err := h.users.SetRole(r.Context(), target.ID, in.Role); err != nil {
		writeError(w, r, apperr.Internal("Failed to update role", err))
		return
	}
	slog.Info("user role changed", "user_id", target.ID, "role", in.Role, "by", admin.ID)
	target.Role = in.Role
	writeJSON(w, http.StatusOK, target)
}

// SetStatus activates or deactivates a user. A deactivated user's
// sessions stop authorizing immediately.
func (h *Users) SetStatus(w http.ResponseWriter, r *http.Request) {
	var in statusUpdate
	target, admin, ok := h.prepare(w, r, &in)
	if !ok {
		return
	}
	if in.IsActive == nil {
		writeError(w, r, apperr.Invalid("isActive", "isActive is required"))
		return
	}
	if target.ID == admin.ID && !*in.IsActive {
		writeError(w, r, apperr.Forbidden("You cannot deactivate your own account"))
		return
	}
	if err := h.users.SetActive(r.Context(), target.ID, *in.IsActive); err != nil {
		writeError(w, r, apperr.Internal("Failed to update status", err))
		return
	}
	slog.Info("user status changed", "user_id", target.ID, "active", *in.IsActive, "by", admin.ID)
	target.IsActive = *in.IsActive
	writeJSON(w, http.StatusOK, target)
}

// prepare authorizes an admin, loads the target user and decodes the body.
func (h *Users) prepare(w http.ResponseWriter, r *http.Request, body any) (*models.User, *authz.Principal, bool) {
	admin, err := h.authz.RequireAdmin(r.Context(), middleware.IdentityFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return nil, nil, false
	}
	id, err := pathID(r, "id", "User not found")
	if err != nil {
		writeError(w, r, err)
		return nil, nil, false
	}
	if err := decodeJSON(w, r, body); err != nil {
		writeError(w, r, err)
		return nil, nil, false
	}
	target, err := h.findUser(r, id)
	if err != nil {
		writeError(w, r, err)
		return nil, nil, false
	}
	return target, admin, true
}

func (h *Users) findUser(r *http.Request, id uuid.UUID) (*models.User, error) {
	u, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		return nil, apperr.Internal("Failed to load user", err)
	}
	if u == nil {
		return nil, apperr.NotFound("User not found")
	}
	return u, nil
}
