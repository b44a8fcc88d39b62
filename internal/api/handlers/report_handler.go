package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicbase/medrec-backend/internal/api/response"
	"github.com/clinicbase/medrec-backend/internal/reports"
)

// ReportHandler handles report generation HTTP requests
type ReportHandler struct {
	generator *reports.Generator
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(generator *reports.Generator) *ReportHandler {
	return &ReportHandler{generator: generator}
}

func sendReport(c echo.Context, contentType, filename string, content []byte) error {
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Blob(http.StatusOK, contentType, content)
}

// PatientHistory handles GET /api/reports/patients/:patient_id/history
func (h *ReportHandler) PatientHistory(c echo.Context) error {
	patientID, err := strconv.ParseUint(c.Param("patient_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid patient ID")
	}

	content, filename, err := h.generator.PatientHistoryPDF(c.Request().Context(), uint(patientID))
	if err != nil {
		return response.Error(c, err)
	}

	return sendReport(c, "application/pdf", filename, content)
}

// PatientsExcel handles GET /api/reports/patients
func (h *ReportHandler) PatientsExcel(c echo.Context) error {
	includeInactive := c.QueryParam("include_inactive") == "true"

	content, filename, err := h.generator.PatientsExcel(c.Request().Context(), includeInactive)
	if err != nil {
		return response.Error(c, err)
	}

	return sendReport(c, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", filename, content)
}

// ConsultationsExcel handles GET /api/reports/consultations
func (h *ReportHandler) ConsultationsExcel(c echo.Context) error {
	from, err := time.Parse(dateLayout, c.QueryParam("from"))
	if err != nil {
		return response.BadRequest(c, "from must be YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, c.QueryParam("to"))
	if err != nil {
		return response.BadRequest(c, "to must be YYYY-MM-DD")
	}

	content, filename, err := h.generator.ConsultationsExcel(c.Request().Context(), from, to)
	if err != nil {
		return response.Error(c, err)
	}

	return sendReport(c, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", filename, content)
}
