package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/crmimport/internal/catalog"
	"github.com/rpattn/crmimport/internal/config"
	"github.com/rpattn/crmimport/internal/db"
	"github.com/rpattn/crmimport/internal/importer"
	"github.com/rpattn/crmimport/internal/middleware"
	"github.com/rpattn/crmimport/internal/repository"
)

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			logrus.Warnf("Failed to load .env file: %v", err)
		}
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(".")
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(ctx, conn.Pool, "./migrations"); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	contactRepo := repository.NewContactRepository(conn.Pool)
	dealRepo := repository.NewDealRepository(conn.Pool)
	stageRepo := repository.NewPipelineStageRepository(conn.Pool)
	fieldRepo := repository.NewCustomFieldRepository(conn.Pool)
	jobRepo := repository.NewImportJobRepository(conn)

	catalogService := catalog.NewService(fieldRepo, stageRepo)
	importService := importer.NewService(
		contactRepo,
		dealRepo,
		jobRepo,
		catalogService,
		importer.WithImportDirectory(cfg.Import.Directory),
		importer.WithChunkSize(cfg.Import.ChunkSize),
		importer.WithAsyncThresholds(cfg.Import.AsyncThresholdContacts, cfg.Import.AsyncThresholdDeals),
		importer.WithMaxUploadBytes(cfg.Import.MaxUploadBytes),
		importer.WithJobTimeout(time.Duration(cfg.Import.JobTimeoutMinutes)*time.Minute),
		importer.WithLogger(logger),
	)

	mux := http.NewServeMux()
	mux.Handle("/api/import/", importer.NewHTTPHandler(importService))
	mux.Handle("/api/fields", catalog.NewHTTPHandler(catalogService))
	mux.Handle("/api/pipeline/stages", catalog.NewHTTPHandler(catalogService))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	handler := corsHandler.Handler(
		middleware.LoggingMiddleware(logger)(
			middleware.OrganizationScopeMiddleware(mux),
		),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Starting import API server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	// Interrupt in-flight import workers; they mark their jobs failed before
	// the pool goes away.
	importService.Close()

	logger.Info("Server exited")
}
