package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Security errors
var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrFileNotFound  = errors.New("file not found")
	ErrFileTooLarge  = errors.New("file exceeds size limit")
	ErrBlockedExt    = errors.New("file extension is blocked")
)

// MaxFileSize is the maximum allowed file size (50 MB)
const MaxFileSize = 50 * 1024 * 1024

// BlockedExtensions contains file extensions that are not allowed
var BlockedExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".com": true,
	".pif": true, ".scr": true, ".vbs": true, ".js": true,
	".jar": true, ".ps1": true, ".sh": true, ".bash": true,
	".msi": true, ".dll": true, ".sys": true,
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// FileStore defines the interface for file storage operations beneath a
// fixed root directory. Callers address content by relative path only.
type FileStore interface {
	Save(relPath string, content io.Reader) (int64, error)
	Open(relPath string) (io.ReadCloser, error)
	Delete(relPath string) error
	Exists(relPath string) (bool, error)
	AbsolutePath(relPath string) (string, error)
}

// localStore implements FileStore using the local filesystem
type localStore struct {
	basePath string
}

// NewLocalStore creates a new localStore instance rooted at basePath
func NewLocalStore(basePath string) (FileStore, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &localStore{basePath: basePath}, nil
}

// validatePath ensures path is within basePath (prevents traversal)
func (s *localStore) validatePath(relPath string) (string, error) {
	// Clean the path
	cleanPath := filepath.Clean(relPath)

	// Prevent absolute paths
	if filepath.IsAbs(cleanPath) {
		return "", ErrPathTraversal
	}

	// Prevent path traversal
	if strings.Contains(cleanPath, "..") {
		return "", ErrPathTraversal
	}

	// Build full path
	fullPath := filepath.Join(s.basePath, cleanPath)

	// Get absolute paths for comparison
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	// Security check: ensure file is within allowed directory
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) &&
		absPath != absBase {
		return "", ErrPathTraversal
	}

	return absPath, nil
}

// SanitizeFilename makes an uploader-supplied filename safe for embedding in
// a storage path: whitespace becomes underscores, path separators and parent
// directory segments are stripped. The original name is attacker-controlled,
// so this runs before any path construction.
func SanitizeFilename(name string) string {
	name = whitespaceRe.ReplaceAllString(strings.TrimSpace(name), "_")
	name = strings.ReplaceAll(name, "\\", "/")
	// Keep only the final path element
	name = name[strings.LastIndex(name, "/")+1:]
	name = strings.ReplaceAll(name, "..", "")
	if name == "" || name == "." {
		return "file"
	}
	return name
}

// ValidateFile checks file extension and size
func ValidateFile(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))

	if BlockedExtensions[ext] {
		return ErrBlockedExt
	}

	if size > MaxFileSize {
		return ErrFileTooLarge
	}

	return nil
}

// Save writes content at the given relative path, creating parent
// directories as needed, and returns the number of bytes written
func (s *localStore) Save(relPath string, content io.Reader) (int64, error) {
	fullPath, err := s.validatePath(relPath)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create subdirectory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, content)
	if err != nil {
		// Clean up on error
		os.Remove(fullPath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	return written, nil
}

// Open retrieves a file by its relative path
func (s *localStore) Open(relPath string) (io.ReadCloser, error) {
	fullPath, err := s.validatePath(relPath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes a file by its relative path. Deleting a file that does
// not exist is not an error.
func (s *localStore) Delete(relPath string) error {
	fullPath, err := s.validatePath(relPath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			// File already doesn't exist, not an error
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// Exists reports whether a file is present at the relative path
func (s *localStore) Exists(relPath string) (bool, error) {
	fullPath, err := s.validatePath(relPath)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

// AbsolutePath resolves a relative path against the storage root
func (s *localStore) AbsolutePath(relPath string) (string, error) {
	return s.validatePath(relPath)
}
