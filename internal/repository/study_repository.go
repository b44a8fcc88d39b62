package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinicbase/medrec-backend/internal/models"
	"gorm.io/gorm"
)

// StudyRepository defines the interface for medical study data access
type StudyRepository interface {
	Create(ctx context.Context, study *models.MedicalStudy) error
	GetByID(ctx context.Context, id uint) (*models.MedicalStudy, error)
	Update(ctx context.Context, study *models.MedicalStudy) error
	Delete(ctx context.Context, id uint) error
	Exists(ctx context.Context, id uint) (bool, error)
	ListByPatient(ctx context.Context, patientID uint, studyType string, limit, offset int) ([]models.MedicalStudy, int64, error)
	ListByConsultation(ctx context.Context, consultationID uint) ([]models.MedicalStudy, error)
}

// studyRepository implements StudyRepository using GORM
type studyRepository struct {
	db *gorm.DB
}

// NewStudyRepository creates a new StudyRepository instance
func NewStudyRepository(db *gorm.DB) StudyRepository {
	return &studyRepository{db: db}
}

// Create creates a new medical study record
func (r *studyRepository) Create(ctx context.Context, study *models.MedicalStudy) error {
	result := r.db.WithContext(ctx).Create(study)
	if result.Error != nil {
		return fmt.Errorf("failed to create study: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a medical study by its ID
func (r *studyRepository) GetByID(ctx context.Context, id uint) (*models.MedicalStudy, error) {
	var study models.MedicalStudy
	result := r.db.WithContext(ctx).First(&study, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get study by ID: %w", result.Error)
	}
	return &study, nil
}

// Update saves all fields of an existing medical study
func (r *studyRepository) Update(ctx context.Context, study *models.MedicalStudy) error {
	result := r.db.WithContext(ctx).Save(study)
	if result.Error != nil {
		return fmt.Errorf("failed to update study: %w", result.Error)
	}
	return nil
}

// Delete removes a medical study by its ID
func (r *studyRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.MedicalStudy{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete study: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Exists reports whether a medical study with the given ID exists
func (r *studyRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.MedicalStudy{}).Where("id = ?", id).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check study existence: %w", result.Error)
	}
	return count > 0, nil
}

// ListByPatient retrieves a patient's studies, newest first, optionally filtered by type
func (r *studyRepository) ListByPatient(ctx context.Context, patientID uint, studyType string, limit, offset int) ([]models.MedicalStudy, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.MedicalStudy{}).Where("patient_id = ?", patientID)
	if studyType != "" {
		query = query.Where("study_type = ?", studyType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count studies: %w", err)
	}

	var studies []models.MedicalStudy
	result := query.Order("study_date DESC").Limit(limit).Offset(offset).Find(&studies)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list studies: %w", result.Error)
	}

	return studies, total, nil
}

// ListByConsultation retrieves the studies linked to a consultation
func (r *studyRepository) ListByConsultation(ctx context.Context, consultationID uint) ([]models.MedicalStudy, error) {
	var studies []models.MedicalStudy
	result := r.db.WithContext(ctx).
		Where("consultation_id = ?", consultationID).
		Order("study_date DESC").
		Find(&studies)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list studies by consultation: %w", result.Error)
	}
	return studies, nil
}
