package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinicbase/medrec-backend/internal/models"
	"gorm.io/gorm"
)

// ConsultationRepository defines the interface for consultation data access
type ConsultationRepository interface {
	Create(ctx context.Context, consultation *models.Consultation) error
	GetByID(ctx context.Context, id uint) (*models.Consultation, error)
	Update(ctx context.Context, consultation *models.Consultation) error
	Delete(ctx context.Context, id uint) error
	Exists(ctx context.Context, id uint) (bool, error)
	ListByPatient(ctx context.Context, patientID uint, limit, offset int) ([]models.Consultation, int64, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Consultation, error)
}

// consultationRepository implements ConsultationRepository using GORM
type consultationRepository struct {
	db *gorm.DB
}

// NewConsultationRepository creates a new ConsultationRepository instance
func NewConsultationRepository(db *gorm.DB) ConsultationRepository {
	return &consultationRepository{db: db}
}

// Create creates a new consultation record
func (r *consultationRepository) Create(ctx context.Context, consultation *models.Consultation) error {
	result := r.db.WithContext(ctx).Create(consultation)
	if result.Error != nil {
		return fmt.Errorf("failed to create consultation: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a consultation by its ID
func (r *consultationRepository) GetByID(ctx context.Context, id uint) (*models.Consultation, error) {
	var consultation models.Consultation
	result := r.db.WithContext(ctx).First(&consultation, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get consultation by ID: %w", result.Error)
	}
	return &consultation, nil
}

// Update saves all fields of an existing consultation
func (r *consultationRepository) Update(ctx context.Context, consultation *models.Consultation) error {
	result := r.db.WithContext(ctx).Save(consultation)
	if result.Error != nil {
		return fmt.Errorf("failed to update consultation: %w", result.Error)
	}
	return nil
}

// Delete removes a consultation by its ID
func (r *consultationRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Consultation{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete consultation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Exists reports whether a consultation with the given ID exists
func (r *consultationRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Consultation{}).Where("id = ?", id).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check consultation existence: %w", result.Error)
	}
	return count > 0, nil
}

// ListByPatient retrieves a patient's consultations, newest first
func (r *consultationRepository) ListByPatient(ctx context.Context, patientID uint, limit, offset int) ([]models.Consultation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Consultation{}).Where("patient_id = ?", patientID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count consultations: %w", err)
	}

	var consultations []models.Consultation
	result := query.Order("consultation_date DESC").Limit(limit).Offset(offset).Find(&consultations)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list consultations: %w", result.Error)
	}

	return consultations, total, nil
}

// ListByDateRange retrieves all consultations within [from, to], oldest
// first, with the owning patient preloaded for reporting.
func (r *consultationRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Consultation, error) {
	var consultations []models.Consultation
	result := r.db.WithContext(ctx).
		Preload("Patient").
		Where("consultation_date >= ? AND consultation_date <= ?", from, to).
		Order("consultation_date ASC").
		Find(&consultations)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list consultations by date range: %w", result.Error)
	}
	return consultations, nil
}
