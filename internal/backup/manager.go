// Package backup creates, restores and manages database backup archives.
// Every archive is a zip carrying a single payload: a copy of the sqlite
// database file for embedded deployments, or a pg_dump custom-format dump
// for client-server deployments.
package backup

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/clinicbase/medrec-backend/internal/database"
	apperrors "github.com/clinicbase/medrec-backend/internal/errors"
)

// timestampLayout names archives and safety snapshots
const timestampLayout = "20060102_150405"

const (
	archivePrefix  = "backup_"
	archiveSuffix  = ".zip"
	snapshotPrefix = "pre_restore_"
)

// Result reports the outcome of a create or restore operation.
type Result struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Filename  string `json:"filename,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// Info describes one backup archive on disk.
type Info struct {
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats summarizes the backup directory.
type Stats struct {
	Count          int    `json:"count"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	Dir            string `json:"dir"`
}

// variant abstracts the database engine behind dump, snapshot and restore.
// The manager picks one at construction time from the database URL scheme.
type variant interface {
	// dump writes the database payload into dir and returns its path.
	dump(ctx context.Context, dir, timestamp string) (string, error)
	// snapshot writes a pre-restore safety copy into dir and returns its
	// path, or "" when no live database exists to snapshot.
	snapshot(ctx context.Context, dir, timestamp string) (string, error)
	// restore replaces the live database with the extracted payload.
	restore(ctx context.Context, payloadPath string) error
	// payloadExt is the file extension dump produces (".db" or ".sql").
	payloadExt() string
}

// Options configures a Manager.
type Options struct {
	DatabaseURL     string
	BackupDir       string
	ToolTimeout     time.Duration
	DockerContainer string
	Logger          *slog.Logger
}

// Manager serializes all backup operations behind one mutex: concurrent
// dumps and restores against the same database are never safe.
type Manager struct {
	mu      sync.Mutex
	dir     string
	variant variant
	logger  *slog.Logger
}

// NewManager builds a Manager for the given database URL. Postgres URLs get
// the client-server variant; everything else is treated as an embedded
// sqlite file.
func NewManager(opts Options) (*Manager, error) {
	if opts.BackupDir == "" {
		return nil, fmt.Errorf("%w: backup directory not configured", apperrors.ErrInvalidInput)
	}
	if err := os.MkdirAll(opts.BackupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	timeout := opts.ToolTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var v variant
	if database.IsPostgres(opts.DatabaseURL) {
		cs, err := newClientServerVariant(opts.DatabaseURL, opts.DockerContainer, timeout)
		if err != nil {
			return nil, err
		}
		v = cs
	} else {
		v = &embeddedVariant{dbPath: database.SQLitePath(opts.DatabaseURL)}
	}

	return &Manager{dir: opts.BackupDir, variant: v, logger: logger}, nil
}

// Create produces a new backup archive. The payload is written first and the
// archive last, so an interrupted run never leaves a partial zip behind.
func (m *Manager) Create(ctx context.Context) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	timestamp := time.Now().Format(timestampLayout)
	m.logger.Info("backup started", slog.String("timestamp", timestamp))

	payload, err := m.variant.dump(ctx, m.dir, timestamp)
	if err != nil {
		m.logger.Error("backup dump failed", slog.String("error", err.Error()))
		return nil, err
	}
	defer os.Remove(payload)

	filename := archivePrefix + timestamp + archiveSuffix
	archivePath := filepath.Join(m.dir, filename)
	if err := writeArchive(archivePath, payload); err != nil {
		return nil, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup archive: %w", err)
	}

	m.logger.Info("backup created",
		slog.String("filename", filename),
		slog.Int64("size_bytes", info.Size()))

	return &Result{
		Success:   true,
		Message:   fmt.Sprintf("Backup created: %s", filename),
		Filename:  filename,
		SizeBytes: info.Size(),
	}, nil
}

// Restore replaces the live database with the contents of the named archive.
// A pre_restore safety snapshot is taken first whenever a live database
// exists, regardless of variant.
func (m *Manager) Restore(ctx context.Context, filename string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	archivePath, err := m.archivePath(filename)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(archivePath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrBackupNotFound, filename)
		}
		return nil, fmt.Errorf("failed to stat backup archive: %w", err)
	}

	timestamp := time.Now().Format(timestampLayout)
	snapshot, err := m.variant.snapshot(ctx, m.dir, timestamp)
	if err != nil {
		m.logger.Error("pre-restore snapshot failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("pre-restore snapshot failed: %w", err)
	}
	if snapshot != "" {
		m.logger.Info("pre-restore snapshot written", slog.String("path", snapshot))
	}

	tempDir, err := os.MkdirTemp("", "medrec-restore-")
	if err != nil {
		return nil, fmt.Errorf("failed to create restore workspace: %w", err)
	}
	defer os.RemoveAll(tempDir)

	payload, err := extractPayload(archivePath, tempDir, m.variant.payloadExt())
	if err != nil {
		return nil, err
	}

	if err := m.variant.restore(ctx, payload); err != nil {
		m.logger.Error("restore failed",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		return nil, err
	}

	m.logger.Info("backup restored", slog.String("filename", filename))
	return &Result{
		Success:  true,
		Message:  fmt.Sprintf("Restored from %s. Restart the application to reload the database.", filename),
		Filename: filename,
	}, nil
}

// List returns all backup archives, newest first. Archives whose name does
// not carry a parseable timestamp sort last with a zero CreatedAt.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Filename:  name,
			SizeBytes: fi.Size(),
			CreatedAt: parseArchiveTime(name),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].Filename > infos[j].Filename
	})
	return infos, nil
}

// Delete removes the named archive. A missing archive returns (false, nil).
func (m *Manager) Delete(ctx context.Context, filename string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	archivePath, err := m.archivePath(filename)
	if err != nil {
		return false, err
	}
	if err := os.Remove(archivePath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete backup archive: %w", err)
	}
	m.logger.Info("backup deleted", slog.String("filename", filename))
	return true, nil
}

// Stats reports how many archives exist and their combined size.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	stats := &Stats{Dir: m.dir}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		stats.Count++
		stats.TotalSizeBytes += fi.Size()
	}
	return stats, nil
}

// archivePath validates that filename is a bare archive name and maps it
// into the backup directory. Names carrying path separators are rejected.
func (m *Manager) archivePath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		return "", fmt.Errorf("%w: invalid backup filename %q", apperrors.ErrInvalidInput, filename)
	}
	if !strings.HasPrefix(filename, archivePrefix) || !strings.HasSuffix(filename, archiveSuffix) {
		return "", fmt.Errorf("%w: invalid backup filename %q", apperrors.ErrInvalidInput, filename)
	}
	return filepath.Join(m.dir, filename), nil
}

// parseArchiveTime extracts the creation time from an archive filename.
func parseArchiveTime(name string) time.Time {
	raw := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	t, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// writeArchive zips the payload into archivePath. The zip is written to a
// temporary name and renamed into place so readers never see a partial
// archive.
func writeArchive(archivePath, payloadPath string) error {
	tmp := archivePath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create backup archive: %w", err)
	}

	zw := zip.NewWriter(out)
	if err := addToArchive(zw, payloadPath); err != nil {
		zw.Close()
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize backup archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close backup archive: %w", err)
	}
	if err := os.Rename(tmp, archivePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move backup archive into place: %w", err)
	}
	return nil
}

func addToArchive(zw *zip.Writer, payloadPath string) error {
	in, err := os.Open(payloadPath)
	if err != nil {
		return fmt.Errorf("failed to open backup payload: %w", err)
	}
	defer in.Close()

	w, err := zw.Create(filepath.Base(payloadPath))
	if err != nil {
		return fmt.Errorf("failed to add payload to archive: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to write payload to archive: %w", err)
	}
	return nil
}

// extractPayload pulls the single recognizable database payload out of the
// archive into destDir. Archives without one such member are rejected.
func extractPayload(archivePath, destDir, wantExt string) (string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open backup archive: %w", err)
	}
	defer zr.Close()

	var member *zip.File
	for _, f := range zr.File {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".db" && ext != ".sql" {
			continue
		}
		if member != nil {
			return "", fmt.Errorf("%w: archive contains more than one database payload", apperrors.ErrInvalidInput)
		}
		member = f
	}
	if member == nil {
		return "", fmt.Errorf("%w: archive contains no database payload", apperrors.ErrInvalidInput)
	}
	if ext := strings.ToLower(filepath.Ext(member.Name)); ext != wantExt {
		return "", fmt.Errorf("%w: archive payload %s does not match this database engine", apperrors.ErrInvalidInput, member.Name)
	}

	dest := filepath.Join(destDir, filepath.Base(member.Name))
	in, err := member.Open()
	if err != nil {
		return "", fmt.Errorf("failed to read archive payload: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to extract archive payload: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to extract archive payload: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to extract archive payload: %w", err)
	}
	return dest, nil
}

// copyFile copies src to dst, creating parent directories as needed.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: database file %s", apperrors.ErrNotFound, src)
		}
		return 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return 0, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", dst, err)
	}
	return n, nil
}
