package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// embeddedVariant backs up an embedded sqlite database by copying its file.
type embeddedVariant struct {
	dbPath string
}

func (v *embeddedVariant) payloadExt() string { return ".db" }

// payloadName derives the payload filename from the live database file so a
// restored archive is recognizable on inspection.
func (v *embeddedVariant) payloadName(timestamp string) string {
	base := strings.TrimSuffix(filepath.Base(v.dbPath), filepath.Ext(v.dbPath))
	if base == "" {
		base = "database"
	}
	return fmt.Sprintf("%s_%s.db", base, timestamp)
}

func (v *embeddedVariant) dump(ctx context.Context, dir, timestamp string) (string, error) {
	dest := filepath.Join(dir, v.payloadName(timestamp))
	if _, err := copyFile(v.dbPath, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (v *embeddedVariant) snapshot(ctx context.Context, dir, timestamp string) (string, error) {
	if _, err := os.Stat(v.dbPath); err != nil {
		if os.IsNotExist(err) {
			// Nothing to protect yet
			return "", nil
		}
		return "", fmt.Errorf("failed to stat database file: %w", err)
	}
	dest := filepath.Join(dir, snapshotPrefix+timestamp+".db")
	if _, err := copyFile(v.dbPath, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// restore swaps the payload in over the live database file. The payload is
// staged next to the live file first so the final rename is atomic on the
// same filesystem.
func (v *embeddedVariant) restore(ctx context.Context, payloadPath string) error {
	if err := os.MkdirAll(filepath.Dir(v.dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	staged := v.dbPath + ".restore"
	if _, err := copyFile(payloadPath, staged); err != nil {
		return err
	}
	if err := os.Rename(staged, v.dbPath); err != nil {
		os.Remove(staged)
		return fmt.Errorf("failed to replace database file: %w", err)
	}
	return nil
}
