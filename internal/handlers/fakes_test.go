package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/authz"
	"inkpress/internal/blog"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
	"inkpress/internal/store"
)

// call describes one request against a single mounted handler.
type call struct {
	method  string
	pattern string // chi route pattern the handler is mounted on
	path    string
	body    any // encoded as JSON unless it is an io.Reader
	caller  *authz.Identity
	header  http.Header
}

// serve mounts h on a fresh chi router and performs the call.
func serve(t *testing.T, h http.HandlerFunc, c call) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(c.method, c.pattern, h)

	var body io.Reader
	switch b := c.body.(type) {
	case nil:
	case io.Reader:
		body = b
	case string:
		body = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(c.method, c.path, body)
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.caller != nil {
		req = req.WithContext(middleware.WithIdentity(req.Context(), c.caller))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals the response body into a value of type T.
func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// wantError asserts the status and kind of an error response.
func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind apperr.Kind) apperr.Body {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	b := decode[apperr.Body](t, rec)
	if b.Kind != kind {
		t.Errorf("kind = %q, want %q", b.Kind, kind)
	}
	return b
}

func identity(u *models.User) *authz.Identity {
	return &authz.Identity{UserID: u.ID}
}

// --- users ---

// memUsers is an in-memory UserStore. Passwords are stored as
// "plain:<password>" so CheckPassword needs no bcrypt.
type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
	err   error
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[uuid.UUID]*models.User{}}
}

func (m *memUsers) add(username string, role models.Role) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{
		ID:           uuid.New(),
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "plain:password123",
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	return u
}

func (m *memUsers) get(id uuid.UUID) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *m.users[id]
	return &u
}

func (m *memUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) List(context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, m.err
}

func (m *memUsers) Create(_ context.Context, in store.NewUser) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, in.Email) || u.Username == in.Username {
			return nil, store.ErrDuplicate
		}
	}
	u := &models.User{
		ID:           uuid.New(),
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: "plain:" + in.Password,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		IsActive:     true,
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) update(id uuid.UUID, fn func(u *models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if u, ok := m.users[id]; ok {
		fn(u)
	}
	return nil
}

func (m *memUsers) SetRole(_ context.Context, id uuid.UUID, role models.Role) error {
	return m.update(id, func(u *models.User) { u.Role = role })
}

func (m *memUsers) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	return m.update(id, func(u *models.User) { u.IsActive = active })
}

func (m *memUsers) SetTOTPSecret(_ context.Context, id uuid.UUID, secret string) error {
	return m.update(id, func(u *models.User) { u.TOTPSecret = &secret })
}

func (m *memUsers) EnableTOTP(_ context.Context, id uuid.UUID) error {
	return m.update(id, func(u *models.User) { u.TOTPEnabled = true })
}

func (m *memUsers) CheckPassword(u *models.User, password string) bool {
	return u.PasswordHash == "plain:"+password
}

// --- sessions ---

type fakeSessions struct {
	created   []uuid.UUID
	destroyed int
	err       error
}

func (f *fakeSessions) Create(_ context.Context, w http.ResponseWriter, userID uuid.UUID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, userID)
	http.SetCookie(w, &http.Cookie{Name: "ip_session", Value: "tok-" + userID.String()})
	return "tok-" + userID.String(), nil
}

func (f *fakeSessions) Destroy(context.Context, http.ResponseWriter, *http.Request) error {
	f.destroyed++
	return f.err
}

// --- list cache ---

type memCache struct {
	entries     map[string][]byte
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, scope, rawQuery string) ([]byte, bool) {
	b, ok := c.entries[scope+"|"+rawQuery]
	return b, ok
}

func (c *memCache) Set(_ context.Context, scope, rawQuery string, body []byte) {
	c.entries[scope+"|"+rawQuery] = body
}

func (c *memCache) Invalidate(_ context.Context, scopes ...string) {
	c.invalidated = append(c.invalidated, scopes...)
	for _, s := range scopes {
		for k := range c.entries {
			if strings.HasPrefix(k, s+"|") {
				delete(c.entries, k)
			}
		}
	}
}

// --- domain services ---

// stubPosts records the last call and returns canned results.
type stubPosts struct {
	post  *models.Post
	page  *models.Page[models.Post]
	err   error
	calls int

	caller *authz.Identity
	query  blog.ListQuery
	search string
	input  blog.PostInput
	id     uuid.UUID
	slug   string
}

func (s *stubPosts) record(caller *authz.Identity) {
	s.calls++
	s.caller = caller
}

func (s *stubPosts) List(_ context.Context, caller *authz.Identity, q blog.ListQuery) (*models.Page[models.Post], error) {
	s.record(caller)
	s.query = q
	return s.page, s.err
}

func (s *stubPosts) Search(_ context.Context, query string, page, limit int) (*models.Page[models.Post], error) {
	s.record(nil)
	s.search = query
	s.query = blog.ListQuery{Page: page, Limit: limit}
	if s.err != nil {
		return nil, s.err
	}
	p := *s.page
	p.Query = query
	return &p, nil
}

func (s *stubPosts) Get(_ context.Context, caller *authz.Identity, id uuid.UUID) (*models.Post, error) {
	s.record(caller)
	s.id = id
	return s.post, s.err
}

func (s *stubPosts) GetBySlug(_ context.Context, caller *authz.Identity, slug string) (*models.Post, error) {
	s.record(caller)
	s.slug = slug
	return s.post, s.err
}

func (s *stubPosts) Create(_ context.Context, caller *authz.Identity, in blog.PostInput) (*models.Post, error) {
	s.record(caller)
	s.input = in
	return s.post, s.err
}

func (s *stubPosts) Update(_ context.Context, caller *authz.Identity, id uuid.UUID, in blog.PostInput) (*models.Post, error) {
	s.record(caller)
	s.id = id
	s.input = in
	return s.post, s.err
}

func (s *stubPosts) Delete(_ context.Context, caller *authz.Identity, id uuid.UUID) error {
	s.record(caller)
	s.id = id
	return s.err
}

type stubLedger struct {
	count  int
	page   *models.Page[models.Post]
	err    error
	caller *authz.Identity
	rel    models.Relation
	postID uuid.UUID
	op     string
}

func (s *stubLedger) Add(_ context.Context, caller *authz.Identity, rel models.Relation, postID uuid.UUID) (int, error) {
	s.caller, s.rel, s.postID, s.op = caller, rel, postID, "add"
	return s.count, s.err
}

func (s *stubLedger) Remove(_ context.Context, caller *authz.Identity, rel models.Relation, postID uuid.UUID) (int, error) {
	s.caller, s.rel, s.postID, s.op = caller, rel, postID, "remove"
	return s.count, s.err
}

func (s *stubLedger) Bookmarks(_ context.Context, caller *authz.Identity, page, limit int) (*models.Page[models.Post], error) {
	s.caller, s.op = caller, "bookmarks"
	return s.page, s.err
}

type stubComments struct {
	comment *models.Comment
	thread  []models.Comment
	err     error
	caller  *authz.Identity
	postID  uuid.UUID
	id      uuid.UUID
	input   blog.CommentInput
	content string
	calls   int
}

func (s *stubComments) Thread(_ context.Context, _ *authz.Identity, postID uuid.UUID) ([]models.Comment, error) {
	s.calls++
	s.postID = postID
	return s.thread, s.err
}

func (s *stubComments) Create(_ context.Context, caller *authz.Identity, postID uuid.UUID, in blog.CommentInput) (*models.Comment, error) {
	s.calls++
	s.caller, s.postID, s.input = caller, postID, in
	return s.comment, s.err
}

func (s *stubComments) Update(_ context.Context, caller *authz.Identity, id uuid.UUID, content string) (*models.Comment, error) {
	s.calls++
	s.caller, s.id, s.content = caller, id, content
	return s.comment, s.err
}

func (s *stubComments) Delete(_ context.Context, caller *authz.Identity, id uuid.UUID) error {
	s.calls++
	s.caller, s.id = caller, id
	return s.err
}

type stubCategories struct {
	cats  []models.Category
	cat   *models.Category
	err   error
	tree  bool
	input blog.CategoryInput
	calls int
}

func (s *stubCategories) List(_ context.Context, tree bool) ([]models.Category, error) {
	s.calls++
	s.tree = tree
	return s.cats, s.err
}

func (s *stubCategories) Create(_ context.Context, _ *authz.Identity, in blog.CategoryInput) (*models.Category, error) {
	s.calls++
	s.input = in
	return s.cat, s.err
}

type stubTags struct {
	tags  []models.Tag
	calls int
}

func (s *stubTags) List(context.Context) ([]models.Tag, error) {
	s.calls++
	return s.tags, nil
}

// --- media ---

type memObjects struct {
	objects   map[string][]byte
	deleted   []string
	uploadErr error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}}
}

func (o *memObjects) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	if o.uploadErr != nil {
		return o.uploadErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	o.objects[key] = b
	return nil
}

func (o *memObjects) Delete(_ context.Context, key string) error {
	o.deleted = append(o.deleted, key)
	delete(o.objects, key)
	return nil
}

func (o *memObjects) FileURL(key string) string {
	return "https://cdn.example.com/" + key
}

type memMedia struct {
	items map[uuid.UUID]*models.Media
	err   error
}

func newMemMedia() *memMedia {
	return &memMedia{items: map[uuid.UUID]*models.Media{}}
}

func (m *memMedia) Create(_ context.Context, in *models.Media) (*models.Media, error) {
	if m.err != nil {
		return nil, m.err
	}
	cp := *in
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	m.items[cp.ID] = &cp
	return &cp, nil
}

func (m *memMedia) FindByID(_ context.Context, id uuid.UUID) (*models.Media, error) {
	if it, ok := m.items[id]; ok {
		cp := *it
		return &cp, nil
	}
	return nil, nil
}

func (m *memMedia) Delete(_ context.Context, id uuid.UUID) (*models.Media, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	delete(m.items, id)
	return it, nil
}

var errBoom = errors.New("boom")

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errBoom }
