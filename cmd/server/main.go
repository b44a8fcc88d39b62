package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/clinicbase/medrec-backend/internal/api"
	"github.com/clinicbase/medrec-backend/internal/backup"
	"github.com/clinicbase/medrec-backend/internal/config"
	"github.com/clinicbase/medrec-backend/internal/database"
	"github.com/clinicbase/medrec-backend/internal/logger"
	"github.com/clinicbase/medrec-backend/internal/models"
	"github.com/clinicbase/medrec-backend/internal/storage"
	ws "github.com/clinicbase/medrec-backend/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(log)

	log.Info("starting medical records backend")
	cfg.LogConfig(log)

	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create data directories: %w", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	fileStores, err := buildFileStores(cfg)
	if err != nil {
		return err
	}

	backupManager, err := backup.NewManager(backup.Options{
		DatabaseURL:     cfg.DatabaseURL,
		BackupDir:       cfg.BackupPath,
		ToolTimeout:     cfg.BackupToolTimeout,
		DockerContainer: cfg.BackupDockerContainer,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize backup manager: %w", err)
	}

	hub := ws.NewHub(log)
	go hub.Run()

	e := api.NewRouter(&api.RouterConfig{
		DB:                db,
		FileStores:        fileStores,
		Backups:           backupManager,
		Hub:               hub,
		Logger:            log,
		SecLog:            logger.NewSecurityLogger(),
		APIKey:            cfg.APIKey,
		AdminPasswordHash: cfg.AdminPasswordHash,
		AllowedOrigins:    splitOrigins(cfg.AllowedOrigins),
		EnableAuth:        cfg.APIKey != "",
	})

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped", "error", err)
		}
	}()
	log.Info("http server listening", "addr", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func buildFileStores(cfg *config.Config) (map[models.OwnerKind]storage.FileStore, error) {
	roots := map[models.OwnerKind]string{
		models.OwnerPatient:      cfg.PatientFilesPath,
		models.OwnerConsultation: cfg.ConsultationFilesPath,
		models.OwnerStudy:        cfg.StudyFilesPath,
	}

	stores := make(map[models.OwnerKind]storage.FileStore, len(roots))
	for kind, root := range roots {
		store, err := storage.NewLocalStore(root)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s file storage: %w", kind, err)
		}
		stores[kind] = store
	}
	return stores, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitOrigins(origins string) []string {
	if origins == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
