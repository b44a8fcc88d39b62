package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinicbase/medrec-backend/internal/models"
	"gorm.io/gorm"
)

// AttachmentRepository defines the interface for attachment metadata access.
// File bytes live on disk; this repository only manages the records.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *models.Attachment) error
	GetByID(ctx context.Context, id uint) (*models.Attachment, error)
	UpdateMetadata(ctx context.Context, id uint, category, description string) error
	Delete(ctx context.Context, id uint) error
	ListByOwner(ctx context.Context, kind models.OwnerKind, ownerID uint) ([]models.Attachment, error)
	SumSizeByOwner(ctx context.Context, kind models.OwnerKind, ownerID uint) (int64, error)
	SumSizeAll(ctx context.Context) (int64, error)
}

// attachmentRepository implements AttachmentRepository using GORM
type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates a new AttachmentRepository instance
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

// Create creates a new attachment record
func (r *attachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	result := r.db.WithContext(ctx).Create(attachment)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create attachment: %w", result.Error)
	}
	return nil
}

// GetByID retrieves an attachment by its ID
func (r *attachmentRepository) GetByID(ctx context.Context, id uint) (*models.Attachment, error) {
	var attachment models.Attachment
	result := r.db.WithContext(ctx).First(&attachment, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attachment by ID: %w", result.Error)
	}
	return &attachment, nil
}

// UpdateMetadata updates the mutable metadata fields. The stored path and
// binary content are immutable after creation.
func (r *attachmentRepository) UpdateMetadata(ctx context.Context, id uint, category, description string) error {
	result := r.db.WithContext(ctx).Model(&models.Attachment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"category":    category,
		"description": description,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update attachment metadata: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an attachment record by its ID
func (r *attachmentRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Attachment{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete attachment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByOwner retrieves all attachments for an owner, oldest upload first
func (r *attachmentRepository) ListByOwner(ctx context.Context, kind models.OwnerKind, ownerID uint) ([]models.Attachment, error) {
	var attachments []models.Attachment
	result := r.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ?", kind, ownerID).
		Order("uploaded_at ASC, id ASC").
		Find(&attachments)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", result.Error)
	}
	return attachments, nil
}

// SumSizeByOwner sums stored byte sizes for one owner
func (r *attachmentRepository) SumSizeByOwner(ctx context.Context, kind models.OwnerKind, ownerID uint) (int64, error) {
	var total int64
	result := r.db.WithContext(ctx).Model(&models.Attachment{}).
		Where("owner_kind = ? AND owner_id = ?", kind, ownerID).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sum attachment sizes: %w", result.Error)
	}
	return total, nil
}

// SumSizeAll sums stored byte sizes across all attachments
func (r *attachmentRepository) SumSizeAll(ctx context.Context) (int64, error) {
	var total int64
	result := r.db.WithContext(ctx).Model(&models.Attachment{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sum attachment sizes: %w", result.Error)
	}
	return total, nil
}
