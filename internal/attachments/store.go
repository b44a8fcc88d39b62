// Package attachments orchestrates file persistence for patient,
// consultation and study records: path construction, byte storage and the
// metadata rows that index the stored files.
package attachments

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/clinicbase/medrec-backend/internal/errors"
	"github.com/clinicbase/medrec-backend/internal/models"
	"github.com/clinicbase/medrec-backend/internal/repository"
	"github.com/clinicbase/medrec-backend/internal/storage"
)

// timestampLayout is embedded in every stored filename so the upload moment
// survives even if the metadata table is lost.
const timestampLayout = "20060102_150405"

// OwnerLookup reports whether the owning record for an attachment exists.
type OwnerLookup func(ctx context.Context, id uint) (bool, error)

// Store saves, resolves and deletes files attached to medical records. All
// filesystem writes happen beneath a per-kind root directory; metadata rows
// are only inserted after the bytes are on disk.
type Store struct {
	repo    repository.AttachmentRepository
	files   map[models.OwnerKind]storage.FileStore
	lookups map[models.OwnerKind]OwnerLookup
	now     func() time.Time
}

// NewStore creates a Store. Each owner kind gets its own FileStore root and a
// lookup against the owning table.
func NewStore(
	repo repository.AttachmentRepository,
	files map[models.OwnerKind]storage.FileStore,
	lookups map[models.OwnerKind]OwnerLookup,
) *Store {
	return &Store{
		repo:    repo,
		files:   files,
		lookups: lookups,
		now:     time.Now,
	}
}

func (s *Store) fileStore(kind models.OwnerKind) (storage.FileStore, error) {
	fs, ok := s.files[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown owner kind %q", apperrors.ErrInvalidInput, kind)
	}
	return fs, nil
}

// buildRelativePath constructs the storage location for a new upload:
// {kind}_{id}/{kind}_{id}_{timestamp}_{token}_{sanitized name}. The token
// closes the collision window between two uploads of the same name within
// the same second.
func (s *Store) buildRelativePath(kind models.OwnerKind, ownerID uint, originalName string) string {
	prefix := fmt.Sprintf("%s_%d", kind, ownerID)
	ts := s.now().Format(timestampLayout)
	token := strings.Split(uuid.NewString(), "-")[0]
	name := storage.SanitizeFilename(originalName)
	return path.Join(prefix, fmt.Sprintf("%s_%s_%s_%s", prefix, ts, token, name))
}

// Save stores the uploaded content and records its metadata. The owning
// record is checked before any filesystem mutation; bytes are written before
// the metadata row so a crash never leaves a row pointing at nothing.
func (s *Store) Save(ctx context.Context, kind models.OwnerKind, ownerID uint, content io.Reader, originalName, contentType, category, description string) (*models.Attachment, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown owner kind %q", apperrors.ErrInvalidInput, kind)
	}
	fs, err := s.fileStore(kind)
	if err != nil {
		return nil, err
	}

	lookup, ok := s.lookups[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no owner lookup for kind %q", apperrors.ErrInvalidInput, kind)
	}
	exists, err := lookup(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check owner existence: %w", err)
	}
	if !exists {
		return nil, ownerNotFound(kind)
	}

	if category == "" {
		category = models.CategoryOther
	}

	relPath := s.buildRelativePath(kind, ownerID, originalName)
	written, err := fs.Save(relPath, content)
	if err != nil {
		return nil, fmt.Errorf("failed to store attachment content: %w", err)
	}

	attachment := &models.Attachment{
		OwnerKind:    kind,
		OwnerID:      ownerID,
		Category:     category,
		RelativePath: relPath,
		OriginalName: originalName,
		ContentType:  contentType,
		SizeBytes:    written,
		Description:  description,
	}
	if err := s.repo.Create(ctx, attachment); err != nil {
		// Roll the bytes back so failed inserts leave no orphan files.
		_ = fs.Delete(relPath)
		return nil, fmt.Errorf("failed to record attachment: %w", err)
	}
	return attachment, nil
}

// Get returns the metadata record for an attachment.
func (s *Store) Get(ctx context.Context, id uint) (*models.Attachment, error) {
	attachment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrAttachmentNotFound
		}
		return nil, err
	}
	return attachment, nil
}

// Resolve maps an attachment ID to the absolute path of its content and the
// name it should be served under. A record whose file has gone missing is
// reported as ErrContentMissing, never as ErrNotFound.
func (s *Store) Resolve(ctx context.Context, id uint) (string, string, error) {
	attachment, err := s.Get(ctx, id)
	if err != nil {
		return "", "", err
	}
	fs, err := s.fileStore(attachment.OwnerKind)
	if err != nil {
		return "", "", err
	}
	exists, err := fs.Exists(attachment.RelativePath)
	if err != nil {
		return "", "", fmt.Errorf("failed to check attachment content: %w", err)
	}
	if !exists {
		return "", "", fmt.Errorf("%w: %s", apperrors.ErrContentMissing, attachment.RelativePath)
	}
	abs, err := fs.AbsolutePath(attachment.RelativePath)
	if err != nil {
		return "", "", err
	}
	return abs, attachment.OriginalName, nil
}

// Open returns a reader over the attachment content plus its metadata.
func (s *Store) Open(ctx context.Context, id uint) (io.ReadCloser, *models.Attachment, error) {
	attachment, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	fs, err := s.fileStore(attachment.OwnerKind)
	if err != nil {
		return nil, nil, err
	}
	reader, err := fs.Open(attachment.RelativePath)
	if err != nil {
		if stderrors.Is(err, storage.ErrFileNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", apperrors.ErrContentMissing, attachment.RelativePath)
		}
		return nil, nil, err
	}
	return reader, attachment, nil
}

// Delete removes the stored file, then the metadata row. A missing record
// returns (false, nil); a missing file is ignored so deletion stays
// idempotent after partial failures.
func (s *Store) Delete(ctx context.Context, id uint) (bool, error) {
	attachment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	fs, err := s.fileStore(attachment.OwnerKind)
	if err != nil {
		return false, err
	}
	if err := fs.Delete(attachment.RelativePath); err != nil {
		return false, fmt.Errorf("failed to remove attachment content: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListByOwner returns an owner's attachments, oldest upload first.
func (s *Store) ListByOwner(ctx context.Context, kind models.OwnerKind, ownerID uint) ([]models.Attachment, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown owner kind %q", apperrors.ErrInvalidInput, kind)
	}
	return s.repo.ListByOwner(ctx, kind, ownerID)
}

// ListByCategory groups an owner's attachments by category, preserving the
// upload order within each group.
func (s *Store) ListByCategory(ctx context.Context, kind models.OwnerKind, ownerID uint) (map[string][]models.Attachment, error) {
	attachments, err := s.ListByOwner(ctx, kind, ownerID)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]models.Attachment)
	for _, a := range attachments {
		grouped[a.Category] = append(grouped[a.Category], a)
	}
	return grouped, nil
}

// AggregateSize sums the stored bytes of one owner's attachments. Computed
// fresh on every call.
func (s *Store) AggregateSize(ctx context.Context, kind models.OwnerKind, ownerID uint) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: unknown owner kind %q", apperrors.ErrInvalidInput, kind)
	}
	return s.repo.SumSizeByOwner(ctx, kind, ownerID)
}

// AggregateSizeAll sums the stored bytes of every attachment.
func (s *Store) AggregateSizeAll(ctx context.Context) (int64, error) {
	return s.repo.SumSizeAll(ctx)
}

// UpdateMetadata changes the category and description of an attachment. The
// stored path and content never change after upload.
func (s *Store) UpdateMetadata(ctx context.Context, id uint, category, description string) (*models.Attachment, error) {
	if err := s.repo.UpdateMetadata(ctx, id, category, description); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrAttachmentNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

func ownerNotFound(kind models.OwnerKind) error {
	switch kind {
	case models.OwnerPatient:
		return apperrors.ErrPatientNotFound
	case models.OwnerConsultation:
		return apperrors.ErrConsultationNotFound
	case models.OwnerStudy:
		return apperrors.ErrStudyNotFound
	default:
		return apperrors.ErrNotFound
	}
}
