package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clinicbase/medrec-backend/internal/models"
	"github.com/clinicbase/medrec-backend/internal/validator"
	"gorm.io/gorm"
)

// PatientRepository defines the interface for patient data access
type PatientRepository interface {
	Create(ctx context.Context, patient *models.Patient) error
	GetByID(ctx context.Context, id uint) (*models.Patient, error)
	GetByDNI(ctx context.Context, dni string) (*models.Patient, error)
	Update(ctx context.Context, patient *models.Patient) error
	Deactivate(ctx context.Context, id uint) error
	Delete(ctx context.Context, id uint) error
	Exists(ctx context.Context, id uint) (bool, error)
	List(ctx context.Context, search string, includeInactive bool, limit, offset int) ([]models.Patient, int64, error)
}

// patientRepository implements PatientRepository using GORM
type patientRepository struct {
	db *gorm.DB
}

// NewPatientRepository creates a new PatientRepository instance
func NewPatientRepository(db *gorm.DB) PatientRepository {
	return &patientRepository{db: db}
}

// Create creates a new patient record
func (r *patientRepository) Create(ctx context.Context, patient *models.Patient) error {
	result := r.db.WithContext(ctx).Create(patient)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create patient: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a patient by its ID
func (r *patientRepository) GetByID(ctx context.Context, id uint) (*models.Patient, error) {
	var patient models.Patient
	result := r.db.WithContext(ctx).First(&patient, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get patient by ID: %w", result.Error)
	}
	return &patient, nil
}

// GetByDNI retrieves a patient by its normalized document number
func (r *patientRepository) GetByDNI(ctx context.Context, dni string) (*models.Patient, error) {
	var patient models.Patient
	result := r.db.WithContext(ctx).Where("dni = ?", dni).First(&patient)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get patient by DNI: %w", result.Error)
	}
	return &patient, nil
}

// Update saves all fields of an existing patient
func (r *patientRepository) Update(ctx context.Context, patient *models.Patient) error {
	result := r.db.WithContext(ctx).Save(patient)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("failed to update patient: %w", result.Error)
	}
	return nil
}

// Deactivate marks a patient inactive without removing the record
func (r *patientRepository) Deactivate(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.Patient{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate patient: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete permanently removes a patient record
func (r *patientRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Patient{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete patient: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Exists reports whether a patient with the given ID exists
func (r *patientRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Patient{}).Where("id = ?", id).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check patient existence: %w", result.Error)
	}
	return count > 0, nil
}

// List retrieves patients matching an optional search term, with pagination.
// Matching is accent- and case-insensitive against name and DNI, so the
// candidate rows are filtered in memory after normalization; SQL LIKE alone
// cannot fold accents.
func (r *patientRepository) List(ctx context.Context, search string, includeInactive bool, limit, offset int) ([]models.Patient, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Patient{})

	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	if search == "" {
		var total int64
		if err := query.Count(&total).Error; err != nil {
			return nil, 0, fmt.Errorf("failed to count patients: %w", err)
		}

		var patients []models.Patient
		result := query.Order("last_name ASC, first_name ASC").Limit(limit).Offset(offset).Find(&patients)
		if result.Error != nil {
			return nil, 0, fmt.Errorf("failed to list patients: %w", result.Error)
		}
		return patients, total, nil
	}

	var candidates []models.Patient
	result := query.Order("last_name ASC, first_name ASC").Find(&candidates)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", result.Error)
	}

	term := validator.NormalizeSearchTerm(search)
	matched := make([]models.Patient, 0, len(candidates))
	for _, p := range candidates {
		name := validator.NormalizeSearchTerm(p.FirstName + " " + p.LastName)
		if strings.Contains(name, term) || strings.Contains(p.DNI, term) {
			matched = append(matched, p)
		}
	}

	total := int64(len(matched))
	if offset >= len(matched) {
		return []models.Patient{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}
