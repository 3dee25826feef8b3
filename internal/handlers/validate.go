package handlers

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"inkpress/internal/apperr"
)

// Validation limits for account fields.
const (
	maxEmailLen    = 255
	minUsernameLen = 3
	maxUsernameLen = 30
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores bytes past 72
	maxNameLen     = 100
)

// registration is the body of a register request.
type registration struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// normalize trims the free-text fields and lower-cases the email.
func (in *registration) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

// validateRegistration checks a normalized registration and reports every
// failing field.
func validateRegistration(in registration) error {
	v := apperr.Validation{}

	switch {
	case in.Email == "":
		v.Add("email", "Email is required")
	case len(in.Email) > maxEmailLen:
		v.Add("email", "Email is too long (max 255 characters)")
	default:
		if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
			v.Add("email", "Invalid email address")
		}
	}

	switch n := utf8.RuneCountInString(in.Username); {
	case n == 0:
		v.Add("username", "Username is required")
	case n < minUsernameLen || n > maxUsernameLen:
		v.Add("username", "Username must be between 3 and 30 characters")
	case !validUsername(in.Username):
		v.Add("username", "Username may only contain letters, digits, '-' and '_'")
	}

	switch {
	case len(in.Password) < minPasswordLen:
		v.Add("password", "Password must be at least 8 characters")
	case len(in.Password) > maxPasswordLen:
		v.Add("password", "Password is too long (max 72 bytes)")
	}

	if utf8.RuneCountInString(in.FirstName) > maxNameLen {
		v.Add("firstName", "First name is too long (max 100 characters)")
	}
	if utf8.RuneCountInString(in.LastName) > maxNameLen {
		v.Add("lastName", "Last name is too long (max 100 characters)")
	}
	return v.Err()
}

func validUsername(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
