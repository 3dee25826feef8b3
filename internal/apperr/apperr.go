// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package apperr defines the error taxonomy shared by the domain services
// and the HTTP layer. Every failure a caller can observe carries a stable
// Kind and a human-readable message; internal causes are kept for logging
// and never serialized.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Kind is the machine-readable class of a failure.
type Kind string

const (
	KindUnauthenticated    Kind = "Unauthenticated"
	KindAccountDeactivated Kind = "AccountDeactivated"
	KindForbidden          Kind = "Forbidden"
	KindNotFound           Kind = "NotFound"
	KindValidation         Kind = "ValidationFailed"
	KindConflict           Kind = "Conflict"
	KindInternal           Kind = "InternalFailure"
)

// HTTPStatus maps a kind to the response status used by the API.
// Conflicts answer 400, matching the published contract for duplicate
// slugs, likes and bookmarks.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAccountDeactivated, KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string // per-field messages for KindValidation
	Err     error             // underlying cause, for logs only
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Unauthenticated reports a missing or invalid session.
func Unauthenticated(msg string) *Error { return New(KindUnauthenticated, msg) }

// Forbidden reports an authenticated caller lacking role or ownership.
func Forbidden(msg string) *Error { return New(KindForbidden, msg) }

// NotFound reports an absent entity.
func NotFound(msg string) *Error { return New(KindNotFound, msg) }

// Conflict reports a duplicate unique key.
func Conflict(msg string) *Error { return New(KindConflict, msg) }

// Invalid reports a single-field validation failure.
func Invalid(field, msg string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "Validation failed",
		Fields:  map[string]string{field: msg},
	}
}

// Internal wraps an unexpected failure. The cause is kept for logging.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// Validation accumulates field errors before a write.
type Validation map[string]string

// Add records msg for field unless the field already has a message.
func (v Validation) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// Err returns nil when no field failed, otherwise a KindValidation error.
func (v Validation) Err() error {
	if len(v) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, Message: "Validation failed", Fields: v}
}

// KindOf returns the kind of err, treating unclassified errors as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// From returns err as an *Error, wrapping unclassified errors as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("Internal server error", err)
}

// Body is the JSON shape of an error response.
type Body struct {
	Error   string            `json:"error"`
	Kind    Kind              `json:"kind,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Write answers the request with err classified, logging internal causes.
// The cause itself never reaches the client.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	e := From(err)
	status := e.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	WriteBody(w, status, Body{Error: e.Message, Kind: e.Kind, Details: e.Fields})
}

// WriteBody writes an error body with the given status.
func WriteBody(w http.ResponseWriter, status int, b Body) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(b); err != nil {
		slog.Warn("write error body", "error", err)
	}
}
