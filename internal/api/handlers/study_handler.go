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

// StudyHandler handles medical-study HTTP requests
type StudyHandler struct {
	studyRepo        repository.StudyRepository
	patientRepo      repository.PatientRepository
	consultationRepo repository.ConsultationRepository
}

// NewStudyHandler creates a new StudyHandler
func NewStudyHandler(studyRepo repository.StudyRepository, patientRepo repository.PatientRepository, consultationRepo repository.ConsultationRepository) *StudyHandler {
	return &StudyHandler{
		studyRepo:        studyRepo,
		patientRepo:      patientRepo,
		consultationRepo: consultationRepo,
	}
}

// StudyRequest represents the request body for creating or updating a medical study
type StudyRequest struct {
	ConsultationID   *uint  `json:"consultation_id"`
	StudyType        string `json:"study_type"`
	StudyName        string `json:"study_name"`
	StudyDate        string `json:"study_date"`
	Institution      string `json:"institution"`
	RequestingDoctor string `json:"requesting_doctor"`
	Results          string `json:"results"`
	Observations     string `json:"observations"`
	Diagnosis        string `json:"diagnosis"`
}

func (r *StudyRequest) validate() (time.Time, string) {
	if r.StudyType == "" {
		return time.Time{}, "study_type is required"
	}
	if r.StudyName == "" {
		return time.Time{}, "study_name is required"
	}
	date, err := time.Parse(dateLayout, r.StudyDate)
	if err != nil {
		return time.Time{}, "study_date must be YYYY-MM-DD"
	}
	return date, ""
}

func (r *StudyRequest) apply(study *models.MedicalStudy, date time.Time) {
	study.ConsultationID = r.ConsultationID
	study.StudyType = r.StudyType
	study.StudyName = r.StudyName
	study.StudyDate = date
	study.Institution = r.Institution
	study.RequestingDoctor = r.RequestingDoctor
	study.Results = r.Results
	study.Observations = r.Observations
	study.Diagnosis = r.Diagnosis
}

// Create handles POST /api/patients/:patient_id/studies
func (h *StudyHandler) Create(c echo.Context) error {
	patientID, err := strconv.ParseUint(c.Param("patient_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid patient ID")
	}

	var req StudyRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	date, msg := req.validate()
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

	if req.ConsultationID != nil {
		exists, err := h.consultationRepo.Exists(c.Request().Context(), *req.ConsultationID)
		if err != nil {
			return response.InternalError(c, "failed to check consultation")
		}
		if !exists {
			return response.NotFound(c, "consultation not found")
		}
	}

	study := &models.MedicalStudy{PatientID: uint(patientID)}
	req.apply(study, date)

	if err := h.studyRepo.Create(c.Request().Context(), study); err != nil {
		return response.InternalError(c, "failed to create study")
	}

	return response.Created(c, study)
}

// ListByPatient handles GET /api/patients/:patient_id/studies
func (h *StudyHandler) ListByPatient(c echo.Context) error {
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

	studyType := c.QueryParam("study_type")
	limit, offset := paginationParams(c)
	studies, total, err := h.studyRepo.ListByPatient(c.Request().Context(), uint(patientID), studyType, limit, offset)
	if err != nil {
		return response.InternalError(c, "failed to list studies")
	}

	return response.Paginated(c, studies, total, limit, offset)
}

// Get handles GET /api/studies/:id
func (h *StudyHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid study ID")
	}

	study, err := h.studyRepo.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "study not found")
		}
		return response.InternalError(c, "failed to get study")
	}

	return response.Success(c, study)
}

// Update handles PUT /api/studies/:id
func (h *StudyHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid study ID")
	}

	var req StudyRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	date, msg := req.validate()
	if msg != "" {
		return response.BadRequest(c, msg)
	}

	study, err := h.studyRepo.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "study not found")
		}
		return response.InternalError(c, "failed to get study")
	}

	req.apply(study, date)

	if err := h.studyRepo.Update(c.Request().Context(), study); err != nil {
		return response.InternalError(c, "failed to update study")
	}

	return response.Success(c, study)
}

// Delete handles DELETE /api/studies/:id
func (h *StudyHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid study ID")
	}

	if err := h.studyRepo.Delete(c.Request().Context(), uint(id)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "study not found")
		}
		return response.InternalError(c, "failed to delete study")
	}

	return response.NoContent(c)
}
