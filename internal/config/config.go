package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Server
	APIPort int

	// Storage roots, one per attachment owner kind
	PatientFilesPath      string
	StudyFilesPath        string
	ConsultationFilesPath string

	// Backups
	BackupPath            string
	BackupToolTimeout     time.Duration
	BackupDockerContainer string

	// Logging
	LogLevel string

	// Security
	APIKey            string
	AdminPasswordHash string
	AllowedOrigins    string
	AppEnv            string

	// Rate Limiting
	RateLimitRequests float64
	RateLimitBurst    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// Required: DATABASE_URL
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	// API_PORT (default: 8080)
	apiPort := os.Getenv("API_PORT")
	if apiPort == "" {
		cfg.APIPort = 8080
	} else {
		port, err := strconv.Atoi(apiPort)
		if err != nil {
			return nil, fmt.Errorf("API_PORT must be a valid integer: %w", err)
		}
		cfg.APIPort = port
	}

	// Storage roots (default: subdirectories of STORAGE_PATH, itself ./storage)
	storageRoot := os.Getenv("STORAGE_PATH")
	if storageRoot == "" {
		storageRoot = "./storage"
	}
	cfg.PatientFilesPath = envOrDefault("PATIENT_FILES_PATH", filepath.Join(storageRoot, "patients"))
	cfg.StudyFilesPath = envOrDefault("STUDY_FILES_PATH", filepath.Join(storageRoot, "studies"))
	cfg.ConsultationFilesPath = envOrDefault("CONSULTATION_FILES_PATH", filepath.Join(storageRoot, "consultations"))

	// BACKUP_PATH (default: ./backups)
	cfg.BackupPath = envOrDefault("BACKUP_PATH", "./backups")

	// BACKUP_TOOL_TIMEOUT (default: 5m)
	if raw := os.Getenv("BACKUP_TOOL_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("BACKUP_TOOL_TIMEOUT must be a valid duration: %w", err)
		}
		cfg.BackupToolTimeout = d
	} else {
		cfg.BackupToolTimeout = 5 * time.Minute
	}

	// BACKUP_DOCKER_CONTAINER: when set and the database host is local, dump and
	// restore run through `docker exec` in the named container
	cfg.BackupDockerContainer = os.Getenv("BACKUP_DOCKER_CONTAINER")

	// LOG_LEVEL (default: info)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", "info")

	// Security configuration
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.AdminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.AppEnv = envOrDefault("APP_ENV", "development")

	// Rate limiting configuration
	if rps := os.Getenv("RATE_LIMIT_REQUESTS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.RateLimitRequests = v
		}
	} else {
		cfg.RateLimitRequests = 10.0
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			cfg.RateLimitBurst = v
		}
	} else {
		cfg.RateLimitBurst = 20
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Production-specific validation
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.PatientFilesPath == "" || c.StudyFilesPath == "" || c.ConsultationFilesPath == "" {
		return fmt.Errorf("storage paths cannot be empty")
	}
	if c.BackupPath == "" {
		return fmt.Errorf("BackupPath cannot be empty")
	}
	if c.BackupToolTimeout <= 0 {
		return fmt.Errorf("BackupToolTimeout must be positive")
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required in production")
	}

	if c.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD_HASH is required in production")
	}

	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	// Check for wildcard in production
	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	// Check for sslmode=disable in database URL
	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	return nil
}

// EnsureDirs creates the storage and backup directories if they do not exist.
// Called once at startup; attachment and backup code assumes the roots exist.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.PatientFilesPath,
		c.StudyFilesPath,
		c.ConsultationFilesPath,
		c.BackupPath,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.String("patient_files_path", c.PatientFilesPath),
		slog.String("study_files_path", c.StudyFilesPath),
		slog.String("consultation_files_path", c.ConsultationFilesPath),
		slog.String("backup_path", c.BackupPath),
		slog.Duration("backup_tool_timeout", c.BackupToolTimeout),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Bool("admin_password_set", c.AdminPasswordHash != ""),
		slog.Bool("allowed_origins_set", c.AllowedOrigins != ""),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
	)
}
