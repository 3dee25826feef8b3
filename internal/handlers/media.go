// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/authz"
	"inkpress/internal/imaging"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
)

// maxUploadSize is the largest accepted featured image.
const maxUploadSize = 10 << 20

// ObjectStore is implemented by *storage.Client.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	FileURL(key string) string
}

// MediaStore is implemented by *store.MediaStore.
type MediaStore interface {
	Create(ctx context.Context, m *models.Media) (*models.Media, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Media, error)
	Delete(ctx context.Context, id uuid.UUID) (*models.Media, error)
}

// Media handles featured-image uploads.
type Media struct {
	authz   *authz.Authorizer
	media   MediaStore
	objects ObjectStore
}

// NewMedia creates the media handlers. objects is nil when object storage
// is not configured; uploads then answer 503.
func NewMedia(az *authz.Authorizer, media MediaStore, objects ObjectStore) *Media {
	return &Media{authz: az, media: media, objects: objects}
}

// mediaBody is the JSON view of an uploaded file.
type mediaBody struct {
	ID           uuid.UUID `json:"id"`
	URL          string    `json:"url"`
	ThumbURL     string    `json:"thumbUrl"`
	OriginalName string    `json:"originalName"`
	ContentType  string    `json:"contentType"`
	SizeBytes    int64     `json:"sizeBytes"`
	UploaderID   uuid.UUID `json:"uploaderId"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (h *Media) body(m *models.Media) mediaBody {
	b := mediaBody{
		ID:           m.ID,
		URL:          h.objects.FileURL(m.S3Key),
		OriginalName: m.OriginalName,
		ContentType:  m.ContentType,
		SizeBytes:    m.SizeBytes,
		UploaderID:   m.UploaderID,
		CreatedAt:    m.CreatedAt,
	}
	b.ThumbURL = b.URL
	if m.ThumbS3Key != nil {
		b.ThumbURL = h.objects.FileURL(*m.ThumbS3Key)
	}
	return b
}

func (h *Media) unavailable(w http.ResponseWriter) bool {
	if h.objects != nil {
		return false
	}
	apperr.WriteBody(w, http.StatusServiceUnavailable, apperr.Body{Error: "Media storage is not configured"})
	return true
}

// Upload stores a multipart "file" and its thumbnail.
func (h *Media) Upload(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}
	p, err := h.authz.RequireAuthor(r.Context(), middleware.IdentityFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, r, apperr.Invalid("file", "File is too large (max 10 MB)"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperr.Invalid("file", "File is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to read upload", err))
		return
	}
	if len(data) > maxUploadSize {
		writeError(w, r, apperr.Invalid("file", "File is too large (max 10 MB)"))
		return
	}
	contentType, ext, err := imaging.Sniff(data)
	if err != nil {
		writeError(w, r, apperr.Invalid("file", "Only JPEG, PNG, GIF and WebP images are allowed"))
		return
	}

	ctx := r.Context()
	name := uuid.New().String()
	key := "media/" + name + ext
	if err := h.objects.Upload(ctx, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		writeError(w, r, apperr.Internal("Failed to store file", err))
		return
	}
	uploaded := []string{key}

	var thumbKey *string
	thumb, err := imaging.Thumbnail(data, imaging.ThumbMaxWidth)
	switch {
	case err != nil:
		// The original is still usable; serve it as its own thumbnail.
		slog.Warn("thumbnail generation failed", "key", key, "error", err)
	case thumb != nil:
		tk := "media/thumbs/" + name + ".jpg"
		if err := h.objects.Upload(ctx, tk, "image/jpeg", bytes.NewReader(thumb), int64(len(thumb))); err != nil {
			h.cleanup(ctx, uploaded)
			writeError(w, r, apperr.Internal("Failed to store thumbnail", err))
			return
		}
		thumbKey = &tk
		uploaded = append(uploaded, tk)
	}

	m, err := h.media.Create(ctx, &models.Media{
		Filename:     name + ext,
		OriginalName: filepath.Base(header.Filename),
		ContentType:  contentType,
		SizeBytes:    int64(len(data)),
		S3Key:        key,
		ThumbS3Key:   thumbKey,
		UploaderID:   p.ID,
	})
	if err != nil {
		h.cleanup(ctx, uploaded)
		writeError(w, r, apperr.Internal("Failed to record upload", err))
		return
	}
	slog.Info("media uploaded", "media_id", m.ID, "key", key, "size", m.SizeBytes)
	writeJSON(w, http.StatusCreated, h.body(m))
}

// Get returns the metadata and URLs of an uploaded file.
func (h *Media) Get(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}
	id, err := pathID(r, "id", "Media not found")
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.media.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to load media", err))
		return
	}
	if m == nil {
		writeError(w, r, apperr.NotFound("Media not found"))
		return
	}
	writeJSON(w, http.StatusOK, h.body(m))
}

// Delete removes an upload. Allowed for its uploader and for editors and
// admins.
func (h *Media) Delete(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}
	id, err := pathID(r, "id", "Media not found")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	p, err := h.authz.RequireAuthor(ctx, middleware.IdentityFromCtx(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.media.FindByID(ctx, id)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to load media", err))
		return
	}
	if m == nil {
		writeError(w, r, apperr.NotFound("Media not found"))
		return
	}
	if !authz.CanModifyResource(m.UploaderID, p) {
		writeError(w, r, apperr.Forbidden("You can only delete your own uploads"))
		return
	}

	if _, err := h.media.Delete(ctx, id); err != nil {
		writeError(w, r, apperr.Internal("Failed to delete media", err))
		return
	}
	keys := []string{m.S3Key}
	if m.ThumbS3Key != nil {
		keys = append(keys, *m.ThumbS3Key)
	}
	h.cleanup(ctx, keys)
	writeJSON(w, http.StatusOK, messageBody{Message: "Media deleted successfully"})
}

// cleanup removes stored objects, logging failures.
func (h *Media) cleanup(ctx context.Context, keys []string) {
	for _, k := range keys {
		if err := h.objects.Delete(ctx, k); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("delete stored object", "key", k, "error", err)
		}
	}
}
