// Package main is the entry point for the Inkpress API server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkpress/internal/authz"
	"inkpress/internal/blog"
	"inkpress/internal/cache"
	"inkpress/internal/config"
	"inkpress/internal/database"
	"inkpress/internal/handlers"
	"inkpress/internal/jobs"
	"inkpress/internal/markdown"
	"inkpress/internal/metrics"
	"inkpress/internal/middleware"
	"inkpress/internal/router"
	"inkpress/internal/session"
	"inkpress/internal/storage"
	"inkpress/internal/store"
)

func main() {
	// Load configuration from .env and environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: JSON in production, text in development.
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
	)

	ctx := context.Background()

	// Connect to PostgreSQL.
	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(ctx, db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(ctx, db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (sessions + list cache).
	valkeyClient, err := cache.ConnectValkey(ctx, cfg.ValkeyAddr(), cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// Outside development, mark cookies as Secure (HTTPS-only).
	secureCookies := !cfg.IsDev()
	sessionStore := session.NewStore(valkeyClient, secureCookies)
	listCache := cache.NewListCache(valkeyClient, cfg.ListCacheTTL)

	// Initialize data stores.
	userStore := store.NewUserStore(db)
	postStore := store.NewPostStore(db)
	categoryStore := store.NewCategoryStore(db)
	tagStore := store.NewTagStore(db)
	commentStore := store.NewCommentStore(db)
	ledgerStore := store.NewLedgerStore(db)
	mediaStore := store.NewMediaStore(db)

	// Connect to S3-compatible object storage (optional; uploads answer 503 without it).
	var objects handlers.ObjectStore
	storageClient, err := storage.New(storage.Options{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		PublicURL: cfg.S3PublicURL,
	})
	switch {
	case err != nil:
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	case storageClient != nil:
		objects = storageClient
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	default:
		slog.Warn("s3 storage not configured, media uploads disabled")
	}

	// Domain services.
	az := authz.New(userStore)
	posts := blog.NewPostService(postStore, categoryStore, tagStore, database.Transactor{DB: db}, az, markdown.New(""))
	ledger := blog.NewLedgerService(ledgerStore, postStore, az)
	comments := blog.NewCommentService(commentStore, postStore, az)
	categories := blog.NewCategoryService(categoryStore, az)
	tags := blog.NewTagService(tagStore)

	// Background jobs.
	scheduler := jobs.NewScheduler()
	if err := scheduler.AddTagPrune(cfg.TagPruneSchedule, tags); err != nil {
		slog.Error("failed to schedule tag pruning", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	m := metrics.New()
	loginLimiter := middleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
	defer loginLimiter.Stop()

	// Set up the Chi router with all middleware and routes.
	r := router.New(router.Handlers{
		Posts:      handlers.NewPosts(posts, listCache, m),
		Engagement: handlers.NewEngagement(ledger, listCache, m),
		Comments:   handlers.NewComments(comments, listCache),
		Taxonomy:   handlers.NewTaxonomy(categories, tags, listCache),
		Media:      handlers.NewMedia(az, mediaStore, objects),
		Auth:       handlers.NewAuth(az, sessionStore, userStore),
		Users:      handlers.NewUsers(az, userStore),
	}, router.Options{
		Sessions:      sessionStore,
		Metrics:       m,
		LoginLimiter:  loginLimiter,
		DB:            db,
		SecureCookies: secureCookies,
	})

	// Create the HTTP server with sensible timeouts. Uploads of up to
	// 10 MB need a longer read timeout than plain JSON.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests and running jobs up to 30 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
