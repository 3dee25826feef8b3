// store_test.go provides a shared test database helper for all store
// integration tests. Tests are skipped if PostgreSQL is not available.
package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"inkpress/internal/database"
	"inkpress/internal/models"
)

// testDSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "inkpress")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "inkpress")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test database and runs migrations.
// If the database is unavailable, the test is skipped.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("pgx", testDSN())
	if err != nil {
		t.Skipf("skipping integration test: cannot open DB: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}

	if err := database.Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Reset goose global state.
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// cleanUsers removes test users by email. Call in t.Cleanup().
func cleanUsers(t *testing.T, db *sql.DB, emails ...string) {
	t.Helper()
	for _, email := range emails {
		db.Exec("DELETE FROM posts WHERE author_id IN (SELECT id FROM users WHERE email = $1)", email)
		db.Exec("DELETE FROM users WHERE email = $1", email)
	}
}

// cleanCategories removes test categories by slug. Call in t.Cleanup().
func cleanCategories(t *testing.T, db *sql.DB, slugs ...string) {
	t.Helper()
	for _, slug := range slugs {
		db.Exec("DELETE FROM categories WHERE slug = $1", slug)
	}
}

// cleanTags removes test tags by slug. Call in t.Cleanup().
func cleanTags(t *testing.T, db *sql.DB, slugs ...string) {
	t.Helper()
	for _, slug := range slugs {
		db.Exec("DELETE FROM tags WHERE slug = $1", slug)
	}
}

// fixture creates a user and a category that tests can hang posts on.
type fixture struct {
	user     *models.User
	category *models.Category
}

func newFixture(t *testing.T, db *sql.DB, name string) fixture {
	t.Helper()
	ctx := context.Background()

	email := name + "@store-test.local"
	catSlug := "store-test-" + name
	t.Cleanup(func() {
		cleanUsers(t, db, email)
		cleanCategories(t, db, catSlug)
	})

	user, err := NewUserStore(db).Create(ctx, NewUser{
		Email: email, Username: "st_" + name, Password: "password123", Role: models.RoleAuthor,
	})
	if err != nil {
		t.Fatalf("create fixture user: %v", err)
	}
	cat, err := NewCategoryStore(db).Create(ctx, &models.Category{Name: "Store Test " + name, Slug: catSlug})
	if err != nil {
		t.Fatalf("create fixture category: %v", err)
	}
	return fixture{user: user, category: cat}
}

// createPost inserts a post with one category link.
func (f fixture) createPost(t *testing.T, db *sql.DB, title, slug string, status models.PostStatus) *models.Post {
	t.Helper()
	ctx := context.Background()
	ps := NewPostStore(db)
	p, err := ps.Create(ctx, &models.Post{
		Title: title, Slug: slug, Content: "body text", ContentFormat: models.ContentFormatHTML,
		Status: status, ReadingTime: 1, AuthorID: f.user.ID,
	})
	if err != nil {
		t.Fatalf("create post %s: %v", slug, err)
	}
	if err := ps.ReplaceCategories(ctx, p.ID, []uuid.UUID{f.category.ID}); err != nil {
		t.Fatalf("link category: %v", err)
	}
	return p
}
