package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/brainblog/internal/api"
	"github.com/brainblog/internal/blobstore"
	"github.com/brainblog/internal/config"
	"github.com/brainblog/internal/database"
	"github.com/brainblog/internal/repository"
	"github.com/brainblog/internal/service"
	"github.com/brainblog/pkg/logger"
	"github.com/rs/zerolog"
)

func main() {
	// Initialize logger
	log := logger.New()
	log.Info().Msg("Starting BrainBlog server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize record store
	repos, closeStore := openStore(cfg, log)
	defer closeStore()

	// Initialize blob storage
	blobs, err := blobstore.NewLocal(cfg.Blob.Dir, cfg.Blob.PublicPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize blob storage")
	}

	// Initialize services
	services := service.NewServices(repos, blobs, cfg, log)

	// Start background blob cleanup
	go services.Cleanup.StartProcessor(context.Background())

	// Initialize router
	router := api.NewRouter(services, cfg, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("store", cfg.Store.Backend).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop cleanup after in-flight requests had their chance to queue deletions
	services.Cleanup.StopProcessor()

	log.Info().Msg("Server exited gracefully")
}

// openStore connects the configured backend and returns its repositories
func openStore(cfg *config.Config, log zerolog.Logger) (*repository.Repositories, func()) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		client, err := database.NewRedis(&cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		return repository.NewRedis(client), func() { client.Close() }

	default:
		db, err := database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}

		// Run migrations
		if err := db.RunMigrations(cfg.Store.MigrationsPath); err != nil {
			db.Close()
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}

		return repository.New(db), func() { db.Close() }
	}
}
