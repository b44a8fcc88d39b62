package api

import (
	"log/slog"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/clinicbase/medrec-backend/internal/api/handlers"
	"github.com/clinicbase/medrec-backend/internal/api/middleware"
	"github.com/clinicbase/medrec-backend/internal/attachments"
	"github.com/clinicbase/medrec-backend/internal/backup"
	"github.com/clinicbase/medrec-backend/internal/logger"
	"github.com/clinicbase/medrec-backend/internal/models"
	"github.com/clinicbase/medrec-backend/internal/reports"
	"github.com/clinicbase/medrec-backend/internal/repository"
	"github.com/clinicbase/medrec-backend/internal/storage"
	ws "github.com/clinicbase/medrec-backend/internal/websocket"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB         *gorm.DB
	FileStores map[models.OwnerKind]storage.FileStore
	Backups    *backup.Manager
	Hub        *ws.Hub
	Logger     *slog.Logger
	SecLog     *logger.SecurityLogger
	// Security configuration
	APIKey            string   // API key for authentication (empty = disabled)
	AdminPasswordHash string   // Argon2id hash the login endpoint verifies against
	AllowedOrigins    []string // Allowed CORS origins
	RateLimit         int      // Requests per second (0 = use env default)
	RateBurst         int      // Burst size for rate limiter
	EnableAuth        bool     // Enable API key authentication
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Security Middleware (applied in correct order)
	// 1. Recover from panics
	e.Use(middleware.Recover())

	// 2. Security headers (applied to all responses)
	e.Use(middleware.SecureHeaders())

	// 3. CORS - Set environment variable if origins provided in config
	if len(cfg.AllowedOrigins) > 0 {
		os.Setenv("ALLOWED_ORIGINS", strings.Join(cfg.AllowedOrigins, ","))
	}
	e.Use(middleware.SecureCORS())

	// 4. Rate limiting - use RateLimiterWithConfig if custom values provided
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(float64(cfg.RateLimit), cfg.RateBurst, cfg.Logger))
	} else {
		e.Use(middleware.RateLimiter(cfg.Logger))
	}

	// 5. Request logging
	if cfg.Logger != nil {
		e.Use(middleware.RequestLogger(cfg.Logger))
	}

	// Initialize repositories
	patientRepo := repository.NewPatientRepository(cfg.DB)
	consultationRepo := repository.NewConsultationRepository(cfg.DB)
	studyRepo := repository.NewStudyRepository(cfg.DB)
	attachmentRepo := repository.NewAttachmentRepository(cfg.DB)

	attachmentStore := attachments.NewStore(attachmentRepo, cfg.FileStores, map[models.OwnerKind]attachments.OwnerLookup{
		models.OwnerPatient:      patientRepo.Exists,
		models.OwnerConsultation: consultationRepo.Exists,
		models.OwnerStudy:        studyRepo.Exists,
	})
	reportGen := reports.NewGenerator(patientRepo, consultationRepo, studyRepo)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB)
	authHandler := handlers.NewAuthHandler(cfg.AdminPasswordHash, cfg.APIKey, cfg.SecLog)
	patientHandler := handlers.NewPatientHandler(patientRepo)
	consultationHandler := handlers.NewConsultationHandler(consultationRepo, patientRepo)
	studyHandler := handlers.NewStudyHandler(studyRepo, patientRepo, consultationRepo)
	attachmentHandler := handlers.NewAttachmentHandler(attachmentStore, cfg.SecLog, cfg.Hub)
	reportHandler := handlers.NewReportHandler(reportGen)

	// Health routes (no auth required)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	// Login is the one API surface reachable without the key
	e.POST("/api/auth/login", authHandler.Login)

	// WebSocket endpoint for live record events
	if cfg.Hub != nil {
		wsHandler := handlers.NewWSHandler(cfg.Hub, cfg.Logger)
		e.GET("/ws", wsHandler.Serve)
	}

	// API routes
	api := e.Group("/api")

	// Set API_KEY env var if provided in config
	if cfg.EnableAuth && cfg.APIKey != "" {
		os.Setenv("API_KEY", cfg.APIKey)
	}
	api.Use(middleware.APIKeyAuth(cfg.Logger))

	// Patient routes
	patients := api.Group("/patients")
	patients.POST("", patientHandler.Create)
	patients.GET("", patientHandler.List)
	patients.GET("/:id", patientHandler.Get)
	patients.PUT("/:id", patientHandler.Update)
	patients.PATCH("/:id/deactivate", patientHandler.Deactivate)
	patients.DELETE("/:id", patientHandler.Delete)

	// Consultation routes (nested under patients)
	patients.POST("/:patient_id/consultations", consultationHandler.Create)
	patients.GET("/:patient_id/consultations", consultationHandler.ListByPatient)

	// Consultation routes (standalone)
	consultations := api.Group("/consultations")
	consultations.GET("/:id", consultationHandler.Get)
	consultations.PUT("/:id", consultationHandler.Update)
	consultations.DELETE("/:id", consultationHandler.Delete)

	// Medical study routes (nested under patients)
	patients.POST("/:patient_id/studies", studyHandler.Create)
	patients.GET("/:patient_id/studies", studyHandler.ListByPatient)

	// Medical study routes (standalone)
	studies := api.Group("/studies")
	studies.GET("/:id", studyHandler.Get)
	studies.PUT("/:id", studyHandler.Update)
	studies.DELETE("/:id", studyHandler.Delete)

	// Attachment routes, nested per owner kind (:kind is patient,
	// consultation or study)
	api.POST("/:kind/:owner_id/attachments", attachmentHandler.Upload)
	api.GET("/:kind/:owner_id/attachments", attachmentHandler.List)
	api.GET("/:kind/:owner_id/attachments/size", attachmentHandler.OwnerSize)

	// Attachment routes (standalone)
	attachmentGroup := api.Group("/attachments")
	attachmentGroup.GET("/size", attachmentHandler.TotalSize)
	attachmentGroup.GET("/:id", attachmentHandler.Get)
	attachmentGroup.GET("/:id/download", attachmentHandler.Download)
	attachmentGroup.PATCH("/:id", attachmentHandler.UpdateMetadata)
	attachmentGroup.DELETE("/:id", attachmentHandler.Delete)

	// Backup routes
	if cfg.Backups != nil {
		backupHandler := handlers.NewBackupHandler(cfg.Backups, cfg.SecLog, cfg.Hub)
		backups := api.Group("/backups")
		backups.POST("", backupHandler.Create)
		backups.GET("", backupHandler.List)
		backups.GET("/stats", backupHandler.Stats)
		backups.POST("/:filename/restore", backupHandler.Restore)
		backups.DELETE("/:filename", backupHandler.Delete)
	}

	// Report routes
	reportGroup := api.Group("/reports")
	reportGroup.GET("/patients", reportHandler.PatientsExcel)
	reportGroup.GET("/patients/:patient_id/history", reportHandler.PatientHistory)
	reportGroup.GET("/consultations", reportHandler.ConsultationsExcel)

	return e
}
