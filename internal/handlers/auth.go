package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"inkpress/internal/apperr"
	"inkpress/internal/authz"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
	"inkpress/internal/store"
)

// totpIssuer names the account in authenticator apps.
const totpIssuer = "Inkpress"

// UserStore is implemented by *store.UserStore.
type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, in store.NewUser) (*models.User, error)
	SetRole(ctx context.Context, userID uuid.UUID, role models.Role) error
	SetActive(ctx context.Context, userID uuid.UUID, active bool) error
	SetTOTPSecret(ctx context.Context, userID uuid.UUID, secret string) error
	EnableTOTP(ctx context.Context, userID uuid.UUID) error
	CheckPassword(user *models.User, password string) bool
}

// SessionStore is implemented by *session.Store.
type SessionStore interface {
	Create(ctx context.Context, w http.ResponseWriter, userID uuid.UUID) (string, error)
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Auth groups all authentication-related HTTP handlers.
type Auth struct {
	authz    *authz.Authorizer
	sessions SessionStore
	users    UserStore
}

// NewAuth creates a new Auth handler group.
func NewAuth(az *authz.Authorizer, sessions SessionStore, users UserStore) *Auth {
	return &Auth{authz: az, sessions: sessions, users: users}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type totpSetupResponse struct {
	Secret string `json:"secret"`
	QRCode string `json:"qrCode"`
}

type totpCode struct {
	Code string `json:"code"`
}

// Register creates a READER account.
func (a *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var in registration
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.normalize()
	if err := validateRegistration(in); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := a.users.Create(r.Context(), store.NewUser{
		Email:     in.Email,
		Username:  in.Username,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      models.RoleReader,
	})
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, r, apperr.Conflict("Email or username is already taken"))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to create account", err))
		return
	}
	slog.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

// Login checks credentials and the second factor, then starts a session.
// The session id is returned as token for bearer clients and also set as
// the session cookie.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		writeError(w, r, apperr.Invalid("email", "Email and password are required"))
		return
	}

	user, err := a.users.FindByEmail(r.Context(), email)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to look up user", err))
		return
	}
	if user == nil || !a.users.CheckPassword(user, in.Password) {
		slog.Warn("failed login", "email", email, "remote", r.RemoteAddr)
		writeError(w, r, apperr.Unauthenticated("Invalid email or password"))
		return
	}
	if !user.IsActive {
		writeError(w, r, apperr.New(apperr.KindAccountDeactivated, "Account is deactivated"))
		return
	}

	if user.TOTPEnabled && user.TOTPSecret != nil {
		code := strings.TrimSpace(in.Code)
		if code == "" {
			writeError(w, r, apperr.Invalid("code", "Two-factor code is required"))
			return
		}
		if !totp.Validate(code, *user.TOTPSecret) {
			slog.Warn("invalid 2fa code", "user_id", user.ID)
			writeError(w, r, apperr.Unauthenticated("Invalid two-factor code"))
			return
		}
	}

	token, err := a.sessions.Create(r.Context(), w, user.ID)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to start session", err))
		return
	}
	slog.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// Logout ends the current session.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Error("session destroy failed", "error", err)
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Logged out"})
}

// Me returns the caller's account as currently stored.
func (a *Auth) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// TwoFASetup generates a new TOTP secret for the caller and returns it
// with a QR code. 2FA is not active until confirmed with TwoFAEnable.
func (a *Auth) TwoFASetup(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	if user.TOTPEnabled {
		writeError(w, r, apperr.Conflict("Two-factor authentication is already enabled"))
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to generate secret", err))
		return
	}
	if err := a.users.SetTOTPSecret(r.Context(), user.ID, key.Secret()); err != nil {
		writeError(w, r, apperr.Internal("Failed to save secret", err))
		return
	}

	qrPNG, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to generate QR code", err))
		return
	}
	writeJSON(w, http.StatusOK, totpSetupResponse{
		Secret: key.Secret(),
		QRCode: base64.StdEncoding.EncodeToString(qrPNG),
	})
}

// TwoFAEnable confirms the pending secret with a code and turns 2FA on.
func (a *Auth) TwoFAEnable(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	var in totpCode
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if user.TOTPSecret == nil {
		writeError(w, r, apperr.Invalid("code", "Run two-factor setup first"))
		return
	}
	if !totp.Validate(strings.TrimSpace(in.Code), *user.TOTPSecret) {
		writeError(w, r, apperr.Invalid("code", "Invalid code"))
		return
	}
	if err := a.users.EnableTOTP(r.Context(), user.ID); err != nil {
		writeError(w, r, apperr.Internal("Failed to enable two-factor authentication", err))
		return
	}
	slog.Info("2fa enabled", "user_id", user.ID)
	writeJSON(w, http.StatusOK, messageBody{Message: "Two-factor authentication enabled"})
}

// currentUser authenticates the caller and loads the full user row.
func (a *Auth) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	p, err := a.authz.Authenticate(r.Context(), middleware.IdentityFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	user, err := a.users.FindByID(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to load user", err))
		return nil, false
	}
	if user == nil {
		writeError(w, r, apperr.NotFound("User not found"))
		return nil, false
	}
	return user, true
}
