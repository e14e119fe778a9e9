// Command reviewsync runs the review status synchronization engine: it
// drains the document store's change feed and reconciles review status,
// unresolved-thread counts, and the GitHub-side review mirror.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/codeapprove/reviewsync/internal/adapter/driven/github"
	sqliteadapter "github.com/codeapprove/reviewsync/internal/adapter/driven/sqlite"
	"github.com/codeapprove/reviewsync/internal/application"
	"github.com/codeapprove/reviewsync/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
		"invoke_timeout", cfg.InvokeTimeout,
		"max_attempts", cfg.MaxAttempts,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters and reconcilers.
	reviewStore := sqliteadapter.NewReviewRepo(db)
	threadStore := sqliteadapter.NewThreadRepo(db)
	feed := sqliteadapter.NewChangeLog(db, cfg.MaxAttempts, cfg.RetryDelay)
	host := githubadapter.NewClient(cfg.GitHubToken)

	syncer := application.NewSyncer(host)
	reviewReconciler := application.NewReviewReconciler(reviewStore, threadStore, syncer)
	threadReconciler := application.NewThreadReconciler(reviewStore)

	dispatcher := application.NewDispatcher(
		feed,
		reviewReconciler,
		threadReconciler,
		cfg.PollInterval,
		cfg.InvokeTimeout,
	)

	// 6. Run the dispatch loop until shutdown.
	slog.Info("reviewsync started")
	dispatcher.Start(ctx)

	slog.Info("shutdown complete")
	return nil
}
