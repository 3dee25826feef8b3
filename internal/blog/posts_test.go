package blog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"inkpress/internal/apperr"
	"inkpress/internal/authz"
	"inkpress/internal/models"
	"inkpress/internal/readtime"
)

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if got := apperr.KindOf(err); err == nil || got != kind {
		t.Fatalf("err = %v (kind %q), want kind %q", err, got, kind)
	}
}

func TestCreate_SlugFromTitle(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	first, err := e.posts.Create(ctx, e.author, e.input("Hello, World!"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.Slug != "hello-world" {
		t.Errorf("slug = %q, want hello-world", first.Slug)
	}
	if first.Status != models.PostStatusDraft {
		t.Errorf("default status = %q, want DRAFT", first.Status)
	}
	if first.Author == nil || first.Author.ID != e.author.UserID {
		t.Error("created post should carry its author")
	}

	second, err := e.posts.Create(ctx, e.author, e.input("Hello, World!"))
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if second.Slug == first.Slug {
		t.Fatalf("duplicate title produced the same slug %q", second.Slug)
	}
	if !strings.HasPrefix(second.Slug, "hello-world-") {
		t.Errorf("disambiguated slug = %q, want hello-world-<suffix>", second.Slug)
	}

	// Both stay independently fetchable.
	for _, p := range []*models.Post{first, second} {
		got, err := e.posts.GetBySlug(ctx, e.author, p.Slug)
		if err != nil || got.ID != p.ID {
			t.Errorf("GetBySlug(%q) = %v, %v", p.Slug, got, err)
		}
	}
}

func TestCreate_SlugRaceRetries(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	// A concurrent writer wins the first insert.
	e.db.slugRaces = 1
	p, err := e.posts.Create(ctx, e.author, e.input("Race Condition"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Slug == "race-condition" || !strings.HasPrefix(p.Slug, "race-condition-") {
		t.Errorf("retried slug = %q", p.Slug)
	}

	// Persistent collisions give up with Conflict and leave nothing behind.
	e.db.slugRaces = maxSlugAttempts
	before := len(e.db.posts)
	_, err = e.posts.Create(ctx, e.author, e.input("Race Condition"))
	wantKind(t, err, apperr.KindConflict)
	if len(e.db.posts) != before {
		t.Error("failed create left a post behind")
	}
}

func TestCreate_Authorization(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	_, err := e.posts.Create(ctx, nil, e.input("Anon"))
	wantKind(t, err, apperr.KindUnauthenticated)

	_, err = e.posts.Create(ctx, e.reader, e.input("Reader"))
	wantKind(t, err, apperr.KindForbidden)

	in := e.input("Straight to press")
	in.Status = models.PostStatusPublished
	_, err = e.posts.Create(ctx, e.author, in)
	wantKind(t, err, apperr.KindForbidden)

	p, err := e.posts.Create(ctx, e.editor, in)
	if err != nil {
		t.Fatalf("editor publish: %v", err)
	}
	if p.PublishedAt == nil {
		t.Error("publishing should stamp publishedAt")
	}
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	bad := "not a url"
	long := strings.Repeat("x", 61)

	tests := []struct {
		name  string
		mut   func(*PostInput)
		field string
	}{
		{"missing title", func(in *PostInput) { in.Title = "  " }, "title"},
		{"title too long", func(in *PostInput) { in.Title = strings.Repeat("t", 201) }, "title"},
		{"blank content", func(in *PostInput) { in.Content = "\n\t" }, "content"},
		{"no categories", func(in *PostInput) { in.CategoryIDs = nil }, "categoryIds"},
		{"malformed category", func(in *PostInput) { in.CategoryIDs = []string{"nope"} }, "categoryIds"},
		{"bad featured image", func(in *PostInput) { in.FeaturedImage = &bad }, "featuredImage"},
		{"seo title too long", func(in *PostInput) { in.SEOTitle = &long }, "seoTitle"},
		{"unknown status", func(in *PostInput) { in.Status = "LIVE" }, "status"},
		{"unsluggable tag", func(in *PostInput) { in.TagNames = []string{"!!!"} }, "tagNames"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := e.input("Valid title")
			tt.mut(&in)
			_, err := e.posts.Create(ctx, e.author, in)
			wantKind(t, err, apperr.KindValidation)
			if _, ok := apperr.From(err).Fields[tt.field]; !ok {
				t.Errorf("fields = %v, want entry for %q", apperr.From(err).Fields, tt.field)
			}
		})
	}
	if len(e.db.posts) != 0 {
		t.Error("validation failures must not write")
	}
}

func TestCreate_EmptyFeaturedImageAllowed(t *testing.T) {
	e := newEnv()
	empty := ""
	in := e.input("No image")
	in.FeaturedImage = &empty
	p, err := e.posts.Create(context.Background(), e.author, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.FeaturedImage != nil {
		t.Errorf("featuredImage = %v, want nil", *p.FeaturedImage)
	}
}

func TestCreate_UnknownCategoryWritesNothing(t *testing.T) {
	e := newEnv()
	in := e.input("Orphan", e.catTech, uuid.New())
	_, err := e.posts.Create(context.Background(), e.author, in)
	wantKind(t, err, apperr.KindValidation)
	if len(e.db.posts) != 0 || len(e.db.tags) != 0 {
		t.Error("nothing may be written when a category is invalid")
	}
}

func TestCreate_AtomicOnAssociationFailure(t *testing.T) {
	e := newEnv()
	e.db.failTagLinks = errors.New("connection reset")

	in := e.input("Half written")
	in.TagNames = []string{"Go", "Databases"}
	_, err := e.posts.Create(context.Background(), e.author, in)
	wantKind(t, err, apperr.KindInternal)

	if len(e.db.posts) != 0 || len(e.db.postCats) != 0 || len(e.db.tags) != 0 {
		t.Errorf("partial state survived: posts=%d links=%d tags=%d",
			len(e.db.posts), len(e.db.postCats), len(e.db.tags))
	}
}

func TestCreate_TagsUpsertedBySlug(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	in := e.input("Tagged")
	in.TagNames = []string{"Go Lang", "go-lang", "  Testing "}
	p, err := e.posts.Create(ctx, e.author, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(p.Tags) != 2 {
		t.Fatalf("got %d tags, want 2 (duplicates by slug collapse)", len(p.Tags))
	}

	in2 := e.input("Tagged again")
	in2.TagNames = []string{"GO LANG"}
	p2, err := e.posts.Create(ctx, e.author, in2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p2.Tags[0].ID != p.Tags[0].ID && p2.Tags[0].ID != p.Tags[1].ID {
		t.Error("existing tag should be reused by slug")
	}
	if len(e.db.tags) != 2 {
		t.Errorf("tag rows = %d, want 2", len(e.db.tags))
	}
}

func TestReadingTime(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	for _, words := range []int{1, 199, 200, 201, 950} {
		in := e.input("Length test")
		in.Content = strings.TrimSpace(strings.Repeat("lorem ", words))
		p, err := e.posts.Create(ctx, e.author, in)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		want := max(1, (words+199)/200)
		if p.ReadingTime != want || p.ReadingTime != readtime.Minutes(in.Content) {
			t.Errorf("%d words: readingTime = %d, want %d", words, p.ReadingTime, want)
		}
	}
}

func TestUpdate_ReplacesAssociations(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	in := e.input("Assoc", e.catTech)
	in.TagNames = []string{"old-a", "old-b"}
	p, err := e.posts.Create(ctx, e.author, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	up := e.input("Assoc", e.catGo)
	up.TagNames = []string{"new"}
	got, err := e.posts.Update(ctx, e.author, p.ID, up)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(got.Categories) != 1 || got.Categories[0].ID != e.catGo {
		t.Errorf("categories = %+v, want exactly [go]", got.Categories)
	}
	if len(got.Tags) != 1 || got.Tags[0].Slug != "new" {
		t.Errorf("tags = %+v, want exactly [new]", got.Tags)
	}
	if got.Slug != p.Slug {
		t.Errorf("slug changed without a title change: %q -> %q", p.Slug, got.Slug)
	}
}

func TestUpdate_SlugFollowsTitle(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	a, _ := e.posts.Create(ctx, e.author, e.input("Alpha"))
	b, _ := e.posts.Create(ctx, e.author, e.input("Beta"))

	// Renaming to its own title keeps the slug (own id excluded).
	same, err := e.posts.Update(ctx, e.author, a.ID, e.input("ALPHA!"))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if same.Slug != "alpha" {
		t.Errorf("slug = %q, want alpha", same.Slug)
	}

	// Renaming onto another post's slug disambiguates.
	clash, err := e.posts.Update(ctx, e.author, b.ID, e.input("Alpha"))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if clash.Slug == "alpha" || !strings.HasPrefix(clash.Slug, "alpha-") {
		t.Errorf("slug = %q, want alpha-<suffix>", clash.Slug)
	}
}

func TestUpdate_RecomputesReadingTime(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	p, _ := e.posts.Create(ctx, e.author, e.input("Grows"))
	row := e.db.posts[p.ID]
	row.ReadingTime = 42
	e.db.posts[p.ID] = row

	got, err := e.posts.Update(ctx, e.author, p.ID, e.input("Grows"))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.ReadingTime != 1 {
		t.Errorf("readingTime = %d, want recomputed 1", got.ReadingTime)
	}
}

func TestUpdate_Permissions(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	p, _ := e.posts.Create(ctx, e.author, e.input("Owned"))

	_, err := e.posts.Update(ctx, e.author2, p.ID, e.input("Hijack"))
	wantKind(t, err, apperr.KindForbidden)

	_, err = e.posts.Update(ctx, e.author, uuid.New(), e.input("Ghost"))
	wantKind(t, err, apperr.KindNotFound)

	in := e.input("Owned")
	in.Status = models.PostStatusPublished
	_, err = e.posts.Update(ctx, e.author, p.ID, in)
	wantKind(t, err, apperr.KindForbidden)

	got, err := e.posts.Update(ctx, e.editor, p.ID, in)
	if err != nil {
		t.Fatalf("editor update: %v", err)
	}
	if got.AuthorID != e.author.UserID {
		t.Error("owner must never change")
	}
	if got.PublishedAt == nil {
		t.Error("first publish should stamp publishedAt")
	}
	stamp := *got.PublishedAt

	// The owner may keep editing a published post without touching status.
	again, err := e.posts.Update(ctx, e.author, p.ID, e.input("Owned, revised"))
	if err != nil {
		t.Fatalf("owner edit of published post: %v", err)
	}
	if again.Status != models.PostStatusPublished || !again.PublishedAt.Equal(stamp) {
		t.Error("status and publishedAt should be preserved")
	}
}

func TestDelete_Permissions(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	p, _ := e.posts.Create(ctx, e.author, e.input("Target"))

	wantKind(t, e.posts.Delete(ctx, e.author2, p.ID), apperr.KindForbidden)
	wantKind(t, e.posts.Delete(ctx, e.reader, p.ID), apperr.KindForbidden)
	wantKind(t, e.posts.Delete(ctx, nil, p.ID), apperr.KindUnauthenticated)

	if err := e.posts.Delete(ctx, e.admin, p.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	wantKind(t, e.posts.Delete(ctx, e.admin, p.ID), apperr.KindNotFound)
}

func TestDeactivatedUserLosesAccessImmediately(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	p, err := e.posts.Create(ctx, e.author, e.input("Before"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	u := e.db.users[e.author.UserID]
	u.IsActive = false
	e.db.users[u.ID] = u

	_, err = e.posts.Update(ctx, e.author, p.ID, e.input("After"))
	wantKind(t, err, apperr.KindAccountDeactivated)
	_, err = e.ledger.Add(ctx, e.author, models.RelationLike, p.ID)
	wantKind(t, err, apperr.KindAccountDeactivated)
}

func TestGet_CountsViews(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	in := e.input("Popular")
	in.Status = models.PostStatusPublished
	p, _ := e.posts.Create(ctx, e.editor, in)

	const n = 5
	for i := 1; i <= n; i++ {
		got, err := e.posts.Get(ctx, nil, p.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ViewCount != i {
			t.Errorf("fetch %d: viewCount = %d", i, got.ViewCount)
		}
	}

	if _, err := e.posts.List(ctx, nil, ListQuery{}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if v := e.db.posts[p.ID].ViewCount; v != n {
		t.Errorf("viewCount after list = %d, want %d", v, n)
	}

	_, err := e.posts.Get(ctx, nil, uuid.New())
	wantKind(t, err, apperr.KindNotFound)
}

func TestGet_DraftVisibility(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	p, _ := e.posts.Create(ctx, e.author, e.input("Secret draft"))

	hidden := map[string]*authz.Identity{"anonymous": nil, "reader": e.reader, "other author": e.author2}
	for name, caller := range hidden {
		_, err := e.posts.Get(ctx, caller, p.ID)
		if apperr.KindOf(err) != apperr.KindNotFound {
			t.Errorf("%s: err = %v, want NotFound", name, err)
		}
	}
	if _, err := e.posts.Get(ctx, e.author, p.ID); err != nil {
		t.Errorf("owner: %v", err)
	}
	if _, err := e.posts.Get(ctx, e.editor, p.ID); err != nil {
		t.Errorf("editor: %v", err)
	}
	if e.db.posts[p.ID].ViewCount != 2 {
		t.Errorf("hidden fetches must not count views: %d", e.db.posts[p.ID].ViewCount)
	}
}

func TestGet_RendersMarkdown(t *testing.T) {
	e := newEnv()
	e.posts.renderer = upperRenderer{}
	in := e.input("Markdown")
	in.ContentFormat = models.ContentFormatMarkdown
	in.Status = models.PostStatusPublished
	p, _ := e.posts.Create(context.Background(), e.editor, in)

	got, err := e.posts.Get(context.Background(), nil, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ContentHTML != strings.ToUpper(in.Content) {
		t.Errorf("contentHtml = %q", got.ContentHTML)
	}
}

type upperRenderer struct{}

func (upperRenderer) ToHTML(s string) (string, error) { return strings.ToUpper(s), nil }

func TestList_FiltersAndPaging(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	publish := func(title string, cat uuid.UUID, tags ...string) {
		in := e.input(title, cat)
		in.Status = models.PostStatusPublished
		in.TagNames = tags
		if _, err := e.posts.Create(ctx, e.editor, in); err != nil {
			t.Fatalf("Create %q: %v", title, err)
		}
	}
	publish("Go generics", e.catGo, "generics")
	publish("Go channels", e.catGo)
	publish("Kubernetes", e.catTech, "generics")
	if _, err := e.posts.Create(ctx, e.author, e.input("Draft about Go", e.catGo)); err != nil {
		t.Fatal(err)
	}

	page, err := e.posts.List(ctx, nil, ListQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Pagination.Total != 3 {
		t.Errorf("default list total = %d, want 3 published", page.Pagination.Total)
	}
	if page.Pagination.Page != 1 || page.Pagination.Limit != 10 {
		t.Errorf("defaults: %+v", page.Pagination)
	}
	if page.Data[0].Title != "Kubernetes" {
		t.Errorf("newest first: got %q", page.Data[0].Title)
	}

	tests := []struct {
		name string
		q    ListQuery
		want int
	}{
		{"by category", ListQuery{Category: "go"}, 2},
		{"by tag", ListQuery{Tag: "generics"}, 2},
		{"search is case-insensitive", ListQuery{Search: "GO"}, 2},
		{"by author", ListQuery{AuthorID: e.editor.UserID.String()}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.posts.List(ctx, nil, tt.q)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if got.Pagination.Total != tt.want {
				t.Errorf("total = %d, want %d", got.Pagination.Total, tt.want)
			}
		})
	}

	paged, _ := e.posts.List(ctx, nil, ListQuery{Page: 2, Limit: 2})
	if len(paged.Data) != 1 || paged.Pagination.TotalPages != 2 {
		t.Errorf("page 2/limit 2: len=%d pages=%d", len(paged.Data), paged.Pagination.TotalPages)
	}
	big, _ := e.posts.List(ctx, nil, ListQuery{Limit: 1000})
	if big.Pagination.Limit != MaxLimit {
		t.Errorf("limit clamp = %d, want %d", big.Pagination.Limit, MaxLimit)
	}
}

func TestList_NonPublishedRequiresAuthor(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	e.posts.Create(ctx, e.author, e.input("Mine"))
	e.posts.Create(ctx, e.author2, e.input("Theirs"))

	_, err := e.posts.List(ctx, nil, ListQuery{Status: "DRAFT"})
	wantKind(t, err, apperr.KindUnauthenticated)
	_, err = e.posts.List(ctx, e.reader, ListQuery{Status: "DRAFT"})
	wantKind(t, err, apperr.KindForbidden)
	_, err = e.posts.List(ctx, e.author, ListQuery{Status: "BOGUS"})
	wantKind(t, err, apperr.KindValidation)

	own, err := e.posts.List(ctx, e.author, ListQuery{Status: "DRAFT"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if own.Pagination.Total != 1 || own.Data[0].AuthorID != e.author.UserID {
		t.Errorf("authors only see their own drafts: %+v", own.Data)
	}

	all, err := e.posts.List(ctx, e.editor, ListQuery{Status: StatusAll})
	if err != nil {
		t.Fatalf("List ALL: %v", err)
	}
	if all.Pagination.Total != 2 {
		t.Errorf("editor ALL total = %d, want 2", all.Pagination.Total)
	}
}

func TestSearch(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := e.posts.Search(ctx, q, 1, 10)
		wantKind(t, err, apperr.KindValidation)
	}

	excerpt := "A deep dive into pgx"
	in := e.input("Databases")
	in.Excerpt = &excerpt
	in.Status = models.PostStatusPublished
	e.posts.Create(ctx, e.editor, in)
	e.posts.Create(ctx, e.author, e.input("pgx draft"))

	res, err := e.posts.Search(ctx, " PGX ", 1, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Query != "PGX" {
		t.Errorf("query echo = %q", res.Query)
	}
	if res.Pagination.Total != 1 || res.Data[0].Title != "Databases" {
		t.Errorf("search should match published excerpts only: %+v", res.Data)
	}
}

func TestRandomSuffix(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		s := randomSuffix()
		if len(s) != 6 || strings.Trim(s, "0123456789abcdef") != "" {
			t.Fatalf("suffix %q is not six hex digits", s)
		}
		seen[s] = true
	}
	if len(seen) < 45 {
		t.Errorf("only %d distinct suffixes in 50 draws", len(seen))
	}
}
