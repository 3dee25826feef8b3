package blog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"inkpress/internal/authz"
	"inkpress/internal/models"
	"inkpress/internal/store"
)

// memDB is an in-memory stand-in for the PostgreSQL stores. InTx takes a
// snapshot and restores it when fn fails, so atomicity is observable.
type memDB struct {
	users      map[uuid.UUID]models.User
	posts      map[uuid.UUID]models.Post
	postCats   map[uuid.UUID][]uuid.UUID
	postTags   map[uuid.UUID][]uuid.UUID
	categories map[uuid.UUID]models.Category
	tags       map[uuid.UUID]models.Tag
	comments   map[uuid.UUID]models.Comment
	likes      map[[2]uuid.UUID]bool
	bookmarks  map[[2]uuid.UUID]bool

	clock time.Time

	// Fault injection.
	slugRaces    int   // Create/Update report ErrSlugTaken this many times
	failTagLinks error // returned by ReplaceTags
	txCount      int
}

func newMemDB() *memDB {
	return &memDB{
		users:      map[uuid.UUID]models.User{},
		posts:      map[uuid.UUID]models.Post{},
		postCats:   map[uuid.UUID][]uuid.UUID{},
		postTags:   map[uuid.UUID][]uuid.UUID{},
		categories: map[uuid.UUID]models.Category{},
		tags:       map[uuid.UUID]models.Tag{},
		comments:   map[uuid.UUID]models.Comment{},
		likes:      map[[2]uuid.UUID]bool{},
		bookmarks:  map[[2]uuid.UUID]bool{},
		clock:      time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memDB) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	out := make(map[K]V, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func cloneIDs(src map[uuid.UUID][]uuid.UUID) map[uuid.UUID][]uuid.UUID {
	out := make(map[uuid.UUID][]uuid.UUID, len(src))
	for k, v := range src {
		out[k] = append([]uuid.UUID(nil), v...)
	}
	return out
}

func (m *memDB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txCount++
	posts, cats, tags := cloneMap(m.posts), cloneIDs(m.postCats), cloneIDs(m.postTags)
	tagRows := cloneMap(m.tags)
	if err := fn(ctx); err != nil {
		m.posts, m.postCats, m.postTags, m.tags = posts, cats, tags, tagRows
		return err
	}
	return nil
}

// --- users ---

type memUsers struct{ *memDB }

func (m memUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memDB) addUser(role models.Role) *authz.Identity {
	id := uuid.New()
	m.users[id] = models.User{
		ID: id, Email: id.String()[:8] + "@test.local", Username: "u" + id.String()[:8],
		Role: role, IsActive: true,
	}
	return &authz.Identity{UserID: id}
}

// --- posts ---

type memPosts struct{ *memDB }

func (m memPosts) hydrate(p models.Post) models.Post {
	if u, ok := m.users[p.AuthorID]; ok {
		s := u.Summary()
		p.Author = &s
	}
	p.Categories = []models.Category{}
	for _, cid := range m.postCats[p.ID] {
		p.Categories = append(p.Categories, m.categories[cid])
	}
	p.Tags = []models.Tag{}
	for _, tid := range m.postTags[p.ID] {
		p.Tags = append(p.Tags, m.tags[tid])
	}
	p.Counts = models.PostCounts{}
	for _, c := range m.comments {
		if c.PostID == p.ID {
			p.Counts.Comments++
		}
	}
	for k := range m.likes {
		if k[1] == p.ID {
			p.Counts.Likes++
		}
	}
	return p
}

func (m memPosts) FindByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	h := m.hydrate(p)
	return &h, nil
}

func (m memPosts) FindBySlug(_ context.Context, slug string) (*models.Post, error) {
	for _, p := range m.posts {
		if p.Slug == slug {
			h := m.hydrate(p)
			return &h, nil
		}
	}
	return nil, nil
}

func (m memPosts) SlugExists(_ context.Context, slug string, exclude *uuid.UUID) (bool, error) {
	for _, p := range m.posts {
		if p.Slug == slug && (exclude == nil || p.ID != *exclude) {
			return true, nil
		}
	}
	return false, nil
}

func (m memPosts) slugConflict(slug string, self uuid.UUID) bool {
	if m.slugRaces > 0 {
		m.slugRaces--
		return true
	}
	for _, p := range m.posts {
		if p.Slug == slug && p.ID != self {
			return true
		}
	}
	return false
}

func (m memPosts) Create(_ context.Context, p *models.Post) (*models.Post, error) {
	if m.slugConflict(p.Slug, uuid.Nil) {
		return nil, store.ErrSlugTaken
	}
	row := *p
	row.ID = uuid.New()
	row.CreatedAt = m.tick()
	row.UpdatedAt = row.CreatedAt
	row.Author, row.Categories, row.Tags = nil, nil, nil
	m.posts[row.ID] = row
	p.ID = row.ID
	return p, nil
}

func (m memPosts) Update(_ context.Context, p *models.Post) error {
	if m.slugConflict(p.Slug, p.ID) {
		return store.ErrSlugTaken
	}
	row := *p
	row.UpdatedAt = m.tick()
	row.ViewCount = m.posts[p.ID].ViewCount
	row.Author, row.Categories, row.Tags = nil, nil, nil
	m.posts[p.ID] = row
	return nil
}

func (m memPosts) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.posts, id)
	delete(m.postCats, id)
	delete(m.postTags, id)
	for cid, c := range m.comments {
		if c.PostID == id {
			delete(m.comments, cid)
		}
	}
	for k := range m.likes {
		if k[1] == id {
			delete(m.likes, k)
		}
	}
	for k := range m.bookmarks {
		if k[1] == id {
			delete(m.bookmarks, k)
		}
	}
	return nil
}

func (m memPosts) IncrementViews(_ context.Context, id uuid.UUID) (int, bool, error) {
	p, ok := m.posts[id]
	if !ok {
		return 0, false, nil
	}
	p.ViewCount++
	m.posts[id] = p
	return p.ViewCount, true, nil
}

func (m memPosts) ReplaceCategories(_ context.Context, postID uuid.UUID, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, ok := m.categories[id]; !ok {
			return store.ErrInvalidReference
		}
	}
	m.postCats[postID] = append([]uuid.UUID(nil), ids...)
	return nil
}

func (m memPosts) ReplaceTags(_ context.Context, postID uuid.UUID, ids []uuid.UUID) error {
	if m.failTagLinks != nil {
		return m.failTagLinks
	}
	m.postTags[postID] = append([]uuid.UUID(nil), ids...)
	return nil
}

func (m memPosts) List(_ context.Context, f store.PostFilter) ([]models.Post, int, error) {
	if f.Offset < 0 || f.Limit < 0 {
		return nil, 0, fmt.Errorf("negative offset %d or limit %d", f.Offset, f.Limit)
	}
	var matched []models.Post
	for _, p := range m.posts {
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		if f.AuthorID != nil && p.AuthorID != *f.AuthorID {
			continue
		}
		h := m.hydrate(p)
		if f.CategorySlug != "" && !hasCategory(h, f.CategorySlug) {
			continue
		}
		if f.TagSlug != "" && !hasTag(h, f.TagSlug) {
			continue
		}
		if f.BookmarkedBy != nil && !m.bookmarks[[2]uuid.UUID{*f.BookmarkedBy, p.ID}] {
			continue
		}
		if f.Search != "" {
			q := strings.ToLower(f.Search)
			hit := strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Content), q)
			if f.SearchExcerpt && p.Excerpt != nil {
				hit = hit || strings.Contains(strings.ToLower(*p.Excerpt), q)
			}
			if !hit {
				continue
			}
		}
		matched = append(matched, h)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if (a.PublishedAt == nil) != (b.PublishedAt == nil) {
			return a.PublishedAt != nil
		}
		if a.PublishedAt != nil && !a.PublishedAt.Equal(*b.PublishedAt) {
			return a.PublishedAt.After(*b.PublishedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	total := len(matched)
	start := min(f.Offset, total)
	end := min(start+f.Limit, total)
	return append([]models.Post{}, matched[start:end]...), total, nil
}

func hasCategory(p models.Post, slug string) bool {
	for _, c := range p.Categories {
		if c.Slug == slug {
			return true
		}
	}
	return false
}

func hasTag(p models.Post, slug string) bool {
	for _, t := range p.Tags {
		if t.Slug == slug {
			return true
		}
	}
	return false
}

// --- categories ---

type memCategories struct{ *memDB }

func (m *memDB) addCategory(name, slug string) uuid.UUID {
	id := uuid.New()
	m.categories[id] = models.Category{ID: id, Name: name, Slug: slug, CreatedAt: m.tick()}
	return id
}

func (m memCategories) List(_ context.Context) ([]models.Category, error) {
	out := []models.Category{}
	for _, c := range m.categories {
		for _, ids := range m.postCats {
			for _, id := range ids {
				if id == c.ID {
					c.PostCount++
				}
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m memCategories) Tree(ctx context.Context) ([]models.Category, error) {
	flat, _ := m.List(ctx)
	return store.BuildTree(flat), nil
}

func (m memCategories) FindByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m memCategories) FindBySlug(_ context.Context, slug string) (*models.Category, error) {
	for _, c := range m.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, nil
}

func (m memCategories) MissingIDs(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := m.categories[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (m memCategories) Create(_ context.Context, c *models.Category) (*models.Category, error) {
	for _, existing := range m.categories {
		if existing.Slug == c.Slug {
			return nil, store.ErrDuplicate
		}
	}
	row := *c
	row.ID = uuid.New()
	row.CreatedAt = m.tick()
	m.categories[row.ID] = row
	return &row, nil
}

func (m memCategories) NextSortOrder(_ context.Context, parentID *uuid.UUID) (int, error) {
	next := 0
	for _, c := range m.categories {
		same := (c.ParentID == nil && parentID == nil) ||
			(c.ParentID != nil && parentID != nil && *c.ParentID == *parentID)
		if same && c.SortOrder >= next {
			next = c.SortOrder + 1
		}
	}
	return next, nil
}

// --- tags ---

type memTags struct{ *memDB }

func (m memTags) Upsert(_ context.Context, name, slug string) (*models.Tag, error) {
	for _, t := range m.tags {
		if t.Slug == slug {
			return &t, nil
		}
	}
	t := models.Tag{ID: uuid.New(), Name: name, Slug: slug, CreatedAt: m.tick()}
	m.tags[t.ID] = t
	return &t, nil
}

func (m memTags) List(_ context.Context) ([]models.Tag, error) {
	out := []models.Tag{}
	for _, t := range m.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m memTags) DeleteOrphans(_ context.Context) (int64, error) {
	used := map[uuid.UUID]bool{}
	for _, ids := range m.postTags {
		for _, id := range ids {
			used[id] = true
		}
	}
	var n int64
	for id := range m.tags {
		if !used[id] {
			delete(m.tags, id)
			n++
		}
	}
	return n, nil
}

// --- comments ---

type memComments struct{ *memDB }

func (m memComments) withAuthor(c models.Comment) models.Comment {
	if u, ok := m.users[c.AuthorID]; ok {
		s := u.Summary()
		c.Author = &s
	}
	return c
}

func (m memComments) FindByID(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, nil
	}
	c = m.withAuthor(c)
	return &c, nil
}

func (m memComments) Create(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	if _, ok := m.posts[c.PostID]; !ok {
		return nil, store.ErrInvalidReference
	}
	row := *c
	row.ID = uuid.New()
	row.CreatedAt = m.tick()
	row.UpdatedAt = row.CreatedAt
	m.comments[row.ID] = row
	return m.FindByID(ctx, row.ID)
}

func (m memComments) UpdateContent(ctx context.Context, id uuid.UUID, content string) (*models.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, nil
	}
	c.Content = content
	c.UpdatedAt = m.tick()
	m.comments[id] = c
	return m.FindByID(ctx, id)
}

func (m memComments) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.comments, id)
	for cid, c := range m.comments {
		if c.ParentID != nil && *c.ParentID == id {
			delete(m.comments, cid)
		}
	}
	return nil
}

func (m memComments) Thread(_ context.Context, postID uuid.UUID) ([]models.Comment, error) {
	top := []models.Comment{}
	for _, c := range m.comments {
		if c.PostID == postID && c.ParentID == nil && c.Status == models.CommentStatusApproved {
			c = m.withAuthor(c)
			c.Replies = []models.Comment{}
			for _, r := range m.comments {
				if r.ParentID != nil && *r.ParentID == c.ID && r.Status == models.CommentStatusApproved {
					c.Replies = append(c.Replies, m.withAuthor(r))
				}
			}
			sort.Slice(c.Replies, func(i, j int) bool { return c.Replies[i].CreatedAt.Before(c.Replies[j].CreatedAt) })
			top = append(top, c)
		}
	}
	sort.Slice(top, func(i, j int) bool { return top[i].CreatedAt.After(top[j].CreatedAt) })
	return top, nil
}

// --- ledger ---

type memLedger struct{ *memDB }

func (m memLedger) table(rel models.Relation) (map[[2]uuid.UUID]bool, error) {
	switch rel {
	case models.RelationLike:
		return m.likes, nil
	case models.RelationBookmark:
		return m.bookmarks, nil
	}
	return nil, errors.New("unknown relation")
}

func (m memLedger) Add(_ context.Context, rel models.Relation, userID, postID uuid.UUID) error {
	t, err := m.table(rel)
	if err != nil {
		return err
	}
	if _, ok := m.posts[postID]; !ok {
		return store.ErrInvalidReference
	}
	key := [2]uuid.UUID{userID, postID}
	if t[key] {
		return store.ErrDuplicate
	}
	t[key] = true
	return nil
}

func (m memLedger) Remove(_ context.Context, rel models.Relation, userID, postID uuid.UUID) (bool, error) {
	t, err := m.table(rel)
	if err != nil {
		return false, err
	}
	key := [2]uuid.UUID{userID, postID}
	if !t[key] {
		return false, nil
	}
	delete(t, key)
	return true, nil
}

func (m memLedger) Count(_ context.Context, rel models.Relation, postID uuid.UUID) (int, error) {
	t, err := m.table(rel)
	if err != nil {
		return 0, err
	}
	n := 0
	for k := range t {
		if k[1] == postID {
			n++
		}
	}
	return n, nil
}

// --- environment ---

type env struct {
	db       *memDB
	posts    *PostService
	cats     *CategoryService
	tags     *TagService
	ledger   *LedgerService
	comments *CommentService

	admin, editor, author, author2, reader *authz.Identity
	catTech, catGo                         uuid.UUID
}

func newEnv() *env {
	db := newMemDB()
	az := authz.New(memUsers{db})
	e := &env{
		db:       db,
		posts:    NewPostService(memPosts{db}, memCategories{db}, memTags{db}, db, az, nil),
		cats:     NewCategoryService(memCategories{db}, az),
		tags:     NewTagService(memTags{db}),
		ledger:   NewLedgerService(memLedger{db}, memPosts{db}, az),
		comments: NewCommentService(memComments{db}, memPosts{db}, az),
		admin:    db.addUser(models.RoleAdmin),
		editor:   db.addUser(models.RoleEditor),
		author:   db.addUser(models.RoleAuthor),
		author2:  db.addUser(models.RoleAuthor),
		reader:   db.addUser(models.RoleReader),
		catTech:  db.addCategory("Technology", "technology"),
		catGo:    db.addCategory("Go", "go"),
	}
	e.posts.now = func() time.Time { return db.clock }
	return e
}

func (e *env) input(title string, cats ...uuid.UUID) PostInput {
	if len(cats) == 0 {
		cats = []uuid.UUID{e.catTech}
	}
	ids := make([]string, len(cats))
	for i, c := range cats {
		ids[i] = c.String()
	}
	return PostInput{Title: title, Content: "Some body text for the post.", CategoryIDs: ids}
}
