package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicbase/medrec-backend/internal/api/response"
	"github.com/clinicbase/medrec-backend/internal/models"
	"github.com/clinicbase/medrec-backend/internal/repository"
	"github.com/clinicbase/medrec-backend/internal/validator"
)

const dateLayout = "2006-01-02"

// PatientHandler handles patient-related HTTP requests
type PatientHandler struct {
	patientRepo repository.PatientRepository
}

// NewPatientHandler creates a new PatientHandler
func NewPatientHandler(patientRepo repository.PatientRepository) *PatientHandler {
	return &PatientHandler{patientRepo: patientRepo}
}

// PatientRequest represents the request body for creating or updating a patient
type PatientRequest struct {
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	DNI               string `json:"dni"`
	BirthDate         string `json:"birth_date"`
	Gender            string `json:"gender"`
	BloodType         string `json:"blood_type"`
	Phone             string `json:"phone"`
	Email             string `json:"email"`
	Address           string `json:"address"`
	Allergies         string `json:"allergies"`
	ChronicConditions string `json:"chronic_conditions"`
	FamilyHistory     string `json:"family_history"`
	Notes             string `json:"notes"`
}

// validate normalizes identifiers and checks required fields, returning the
// parsed birth date.
func (r *PatientRequest) validate() (time.Time, string) {
	if r.FirstName == "" {
		return time.Time{}, "first_name is required"
	}
	if r.LastName == "" {
		return time.Time{}, "last_name is required"
	}
	if err := validator.ValidateDNI(r.DNI); err != nil {
		return time.Time{}, "invalid DNI"
	}
	if err := validator.ValidatePhone(r.Phone); err != nil {
		return time.Time{}, "invalid phone"
	}
	if err := validator.ValidateEmail(r.Email); err != nil {
		return time.Time{}, "invalid email"
	}
	birthDate, err := time.Parse(dateLayout, r.BirthDate)
	if err != nil {
		return time.Time{}, "birth_date must be YYYY-MM-DD"
	}
	if birthDate.After(time.Now()) {
		return time.Time{}, "birth_date cannot be in the future"
	}
	return birthDate, ""
}

func (r *PatientRequest) apply(patient *models.Patient, birthDate time.Time) {
	patient.FirstName = r.FirstName
	patient.LastName = r.LastName
	patient.DNI = validator.NormalizeDNI(r.DNI)
	patient.BirthDate = birthDate
	patient.Gender = r.Gender
	patient.BloodType = r.BloodType
	patient.Phone = validator.NormalizePhone(r.Phone)
	patient.Email = r.Email
	patient.Address = r.Address
	patient.Allergies = r.Allergies
	patient.ChronicConditions = r.ChronicConditions
	patient.FamilyHistory = r.FamilyHistory
	patient.Notes = r.Notes
}

// Create handles POST /api/patients
func (h *PatientHandler) Create(c echo.Context) error {
	var req PatientRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	birthDate, msg := req.validate()
	if msg != "" {
		return response.BadRequest(c, msg)
	}

	patient := &models.Patient{IsActive: true}
	req.apply(patient, birthDate)

	if err := h.patientRepo.Create(c.Request().Context(), patient); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return response.Conflict(c, "a patient with this DNI already exists")
		}
		return response.InternalError(c, "failed to create patient")
	}

	return response.Created(c, patient)
}

// List handles GET /api/patients
func (h *PatientHandler) List(c echo.Context) error {
	search := validator.NormalizeSearchTerm(c.QueryParam("search"))
	includeInactive := c.QueryParam("include_inactive") == "true"
	limit, offset := paginationParams(c)

	patients, total, err := h.patientRepo.List(c.Request().Context(), search, includeInactive, limit, offset)
	if err != nil {
		return response.InternalError(c, "failed to list patients")
	}

	items := make([]models.PatientListItem, len(patients))
	for i, p := range patients {
		items[i] = models.PatientListItem{
			ID:        p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			DNI:       p.DNI,
			BirthDate: p.BirthDate,
			Gender:    p.Gender,
			Phone:     p.Phone,
			IsActive:  p.IsActive,
		}
	}

	return response.Paginated(c, items, total, limit, offset)
}

// Get handles GET /api/patients/:id
func (h *PatientHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid patient ID")
	}

	patient, err := h.patientRepo.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "patient not found")
		}
		return response.InternalError(c, "failed to get patient")
	}

	return response.Success(c, patient)
}

// Update handles PUT /api/patients/:id
func (h *PatientHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid patient ID")
	}

	var req PatientRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	birthDate, msg := req.validate()
	if msg != "" {
		return response.BadRequest(c, msg)
	}

	patient, err := h.patientRepo.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "patient not found")
		}
		return response.InternalError(c, "failed to get patient")
	}

	req.apply(patient, birthDate)

	if err := h.patientRepo.Update(c.Request().Context(), patient); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return response.Conflict(c, "a patient with this DNI already exists")
		}
		return response.InternalError(c, "failed to update patient")
	}

	return response.Success(c, patient)
}

// Deactivate handles PATCH /api/patients/:id/deactivate
func (h *PatientHandler) Deactivate(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid patient ID")
	}

	if err := h.patientRepo.Deactivate(c.Request().Context(), uint(id)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "patient not found")
		}
		return response.InternalError(c, "failed to deactivate patient")
	}

	return response.SuccessWithMessage(c, nil, "patient deactivated")
}

// Delete handles DELETE /api/patients/:id
func (h *PatientHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid patient ID")
	}

	if err := h.patientRepo.Delete(c.Request().Context(), uint(id)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "patient not found")
		}
		return response.InternalError(c, "failed to delete patient")
	}

	return response.NoContent(c)
}

// paginationParams reads limit/offset query parameters with sane defaults
func paginationParams(c echo.Context) (int, int) {
	limit := 50
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
