package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicbase/medrec-backend/internal/api/response"
	"github.com/clinicbase/medrec-backend/internal/models"
	"github.com/clinicbase/medrec-backend/internal/repository"
)

// ConsultationHandler handles consultation-related HTTP requests
type ConsultationHandler struct {
	consultationRepo repository.ConsultationRepository
	patientRepo      repository.PatientRepository
}

// NewConsultationHandler creates a new ConsultationHandler
func NewConsultationHandler(consultationRepo repository.ConsultationRepository, patientRepo repository.PatientRepository) *ConsultationHandler {
	return &ConsultationHandler{
		consultationRepo: consultationRepo,
		patientRepo:      patientRepo,
	}
}

// ConsultationRequest represents the request body for creating or updating a consultation
type ConsultationRequest struct {
	ConsultationDate string   `json:"consultation_date"`
	Reason           string   `json:"reason"`
	Symptoms         string   `json:"symptoms"`
	Diagnosis        string   `json:"diagnosis"`
	Treatment        string   `json:"treatment"`
	Notes            string   `json:"notes"`
	BloodPressure    string   `json:"blood_pressure"`
	HeartRate        *int     `json:"heart_rate"`
	Temperature      *float64 `json:"temperature"`
	Weight           *float64 `json:"weight"`
	Height           *float64 `json:"height"`
	NextVisit        string   `json:"next_visit"`
}

func (r *ConsultationRequest) validate() (time.Time, *time.Time, string) {
	if r.Reason == "" {
		return time.Time{}, nil, "reason is required"
	}
	date, err := time.Parse(dateLayout, r.ConsultationDate)
	if err != nil {
		return time.Time{}, nil, "consultation_date must be YYYY-MM-DD"
	}
	var nextVisit *time.Time
	if r.NextVisit != "" {
		nv, err := time.Parse(dateLayout, r.NextVisit)
		if err != nil {
			return time.Time{}, nil, "next_visit must be YYYY-MM-DD"
		}
		nextVisit = &nv
	}
	return date, nextVisit, ""
}

func (r *ConsultationRequest) apply(consultation *models.Consultation, date time.Time, nextVisit *time.Time) {
	consultation.ConsultationDate = date
	consultation.Reason = r.Reason
	consultation.Symptoms = r.Symptoms
	consultation.Diagnosis = r.Diagnosis
	consultation.Treatment = r.Treatment
	consultation.Notes = r.Notes
	consultation.BloodPressure = r.BloodPressure
	consultation.HeartRate = r.HeartRate
	consultation.Temperature = r.Temperature
	consultation.Weight = r.Weight
	consultation.Height = r.Height
	consultation.NextVisit = nextVisit
}

// Create handles POST /api/patients/:patient_id/consultations
func (h *ConsultationHandler) Create(c echo.Context) error {
	patientID, err := strconv.ParseUint(c.Param("patient_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid patient ID")
	}

	var req ConsultationRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	date, nextVisit, msg := req.validate()
	if msg != "" {
		return response.BadRequest(c, msg)
	}

	exists, err := h.patientRepo.Exists(c.Request().Context(), uint(patientID))
	if err != nil {
		return response.InternalError(c, "failed to check patient")
	}
	if !exists {
		return response.NotFound(c, "patient not found")
	}

	consultation := &models.Consultation{PatientID: uint(patientID)}
	req.apply(consultation, date, nextVisit)

	if err := h.consultationRepo.Create(c.Request().Context(), consultation); err != nil {
		return response.InternalError(c, "failed to create consultation")
	}

	return response.Created(c, consultation)
}

// ListByPatient handles GET /api/patients/:patient_id/consultations
func (h *ConsultationHandler) ListByPatient(c echo.Context) error {
	patientID, err := strconv.ParseUint(c.Param("patient_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid patient ID")
	}

	exists, err := h.patientRepo.Exists(c.Request().Context(), uint(patientID))
	if err != nil {
		return response.InternalError(c, "failed to check patient")
	}
	if !exists {
		return response.NotFound(c, "patient not found")
	}

	limit, offset := paginationParams(c)
	consultations, total, err := h.consultationRepo.ListByPatient(c.Request().Context(), uint(patientID), limit, offset)
	if err != nil {
		return response.InternalError(c, "failed to list consultations")
	}

	return response.Paginated(c, consultations, total, limit, offset)
}

// Get handles GET /api/consultations/:id
func (h *ConsultationHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid consultation ID")
	}

	consultation, err := h.consultationRepo.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "consultation not found")
		}
		return response.InternalError(c, "failed to get consultation")
	}

	return response.Success(c, consultation)
}

// Update handles PUT /api/consultations/:id
func (h *ConsultationHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid consultation ID")
	}

	var req ConsultationRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	date, nextVisit, msg := req.validate()
	if msg != "" {
		return response.BadRequest(c, msg)
	}

	consultation, err := h.consultationRepo.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "consultation not found")
		}
		return response.InternalError(c, "failed to get consultation")
	}

	req.apply(consultation, date, nextVisit)

	if err := h.consultationRepo.Update(c.Request().Context(), consultation); err != nil {
		return response.InternalError(c, "failed to update consultation")
	}

	return response.Success(c, consultation)
}

// Delete handles DELETE /api/consultations/:id
func (h *ConsultationHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid consultation ID")
	}

	if err := h.consultationRepo.Delete(c.Request().Context(), uint(id)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "consultation not found")
		}
		return response.InternalError(c, "failed to delete consultation")
	}

	return response.NoContent(c)
}
