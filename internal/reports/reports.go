// Package reports renders patient data into downloadable documents: a
// per-patient clinical history PDF and administrative Excel workbooks.
package reports

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/clinicbase/medrec-backend/internal/errors"
	"github.com/clinicbase/medrec-backend/internal/models"
	"github.com/clinicbase/medrec-backend/internal/repository"
)

const dateLayout = "2006-01-02"

// listPageSize bounds how many rows a report pulls per query.
const listPageSize = 500

// Generator renders reports from the repository layer. All methods return
// the document bytes plus a suggested download filename.
type Generator struct {
	patients      repository.PatientRepository
	consultations repository.ConsultationRepository
	studies       repository.StudyRepository
}

// NewGenerator creates a report Generator.
func NewGenerator(
	patients repository.PatientRepository,
	consultations repository.ConsultationRepository,
	studies repository.StudyRepository,
) *Generator {
	return &Generator{patients: patients, consultations: consultations, studies: studies}
}

// PatientHistoryPDF renders a patient's full clinical history: personal
// data, every consultation and every study, newest first.
func (g *Generator) PatientHistoryPDF(ctx context.Context, patientID uint) ([]byte, string, error) {
	patient, err := g.patients.GetByID(ctx, patientID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, "", apperrors.ErrPatientNotFound
		}
		return nil, "", err
	}
	consultations, _, err := g.consultations.ListByPatient(ctx, patientID, listPageSize, 0)
	if err != nil {
		return nil, "", err
	}
	studies, _, err := g.studies.ListByPatient(ctx, patientID, "", listPageSize, 0)
	if err != nil {
		return nil, "", err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Clinical History", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Generated %s", time.Now().Format(dateLayout)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	g.writePatientSection(pdf, patient)
	g.writeConsultationsSection(pdf, consultations)
	g.writeStudiesSection(pdf, studies)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to render patient history PDF: %w", err)
	}
	filename := fmt.Sprintf("history_%s_%s.pdf", patient.DNI, time.Now().Format("20060102"))
	return buf.Bytes(), filename, nil
}

func (g *Generator) writePatientSection(pdf *fpdf.Fpdf, patient *models.Patient) {
	g.sectionTitle(pdf, "Patient")

	rows := [][2]string{
		{"Name", patient.FullName()},
		{"DNI", patient.DNI},
		{"Birth date", fmt.Sprintf("%s (%d years)", patient.BirthDate.Format(dateLayout), patient.Age())},
		{"Gender", patient.Gender},
		{"Blood type", patient.BloodType},
		{"Phone", patient.Phone},
		{"Email", patient.Email},
		{"Address", patient.Address},
		{"Allergies", patient.Allergies},
		{"Chronic conditions", patient.ChronicConditions},
		{"Family history", patient.FamilyHistory},
	}
	pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(45, 6, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, row[1], "", "L", false)
	}
	pdf.Ln(3)
}

func (g *Generator) writeConsultationsSection(pdf *fpdf.Fpdf, consultations []models.Consultation) {
	g.sectionTitle(pdf, fmt.Sprintf("Consultations (%d)", len(consultations)))
	if len(consultations) == 0 {
		g.emptyNote(pdf, "No consultations recorded.")
		return
	}
	for _, c := range consultations {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s - %s", c.ConsultationDate.Format(dateLayout), c.Reason), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		g.labeledLine(pdf, "Symptoms", c.Symptoms)
		g.labeledLine(pdf, "Diagnosis", c.Diagnosis)
		g.labeledLine(pdf, "Treatment", c.Treatment)
		g.labeledLine(pdf, "Vitals", formatVitals(&c))
		g.labeledLine(pdf, "Notes", c.Notes)
		if c.NextVisit != nil {
			g.labeledLine(pdf, "Next visit", c.NextVisit.Format(dateLayout))
		}
		pdf.Ln(2)
	}
	pdf.Ln(2)
}

func (g *Generator) writeStudiesSection(pdf *fpdf.Fpdf, studies []models.MedicalStudy) {
	g.sectionTitle(pdf, fmt.Sprintf("Medical Studies (%d)", len(studies)))
	if len(studies) == 0 {
		g.emptyNote(pdf, "No studies recorded.")
		return
	}
	for _, s := range studies {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s - %s (%s)", s.StudyDate.Format(dateLayout), s.StudyName, s.StudyType), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		g.labeledLine(pdf, "Institution", s.Institution)
		g.labeledLine(pdf, "Requested by", s.RequestingDoctor)
		g.labeledLine(pdf, "Results", s.Results)
		g.labeledLine(pdf, "Observations", s.Observations)
		g.labeledLine(pdf, "Diagnosis", s.Diagnosis)
		pdf.Ln(2)
	}
}

func (g *Generator) sectionTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 8, title, "", 1, "L", true, 0, "")
	pdf.Ln(2)
}

func (g *Generator) emptyNote(pdf *fpdf.Fpdf, note string) {
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 6, note, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func (g *Generator) labeledLine(pdf *fpdf.Fpdf, label, value string) {
	if value == "" {
		return
	}
	pdf.MultiCell(0, 5, fmt.Sprintf("%s: %s", label, value), "", "L", false)
}

// formatVitals joins the recorded vital signs into one display line.
func formatVitals(c *models.Consultation) string {
	var parts []string
	if c.BloodPressure != "" {
		parts = append(parts, "BP "+c.BloodPressure)
	}
	if c.HeartRate != nil {
		parts = append(parts, fmt.Sprintf("HR %d bpm", *c.HeartRate))
	}
	if c.Temperature != nil {
		parts = append(parts, fmt.Sprintf("Temp %.1f C", *c.Temperature))
	}
	if c.Weight != nil {
		parts = append(parts, fmt.Sprintf("Weight %.1f kg", *c.Weight))
	}
	if c.Height != nil {
		parts = append(parts, fmt.Sprintf("Height %.0f cm", *c.Height))
	}
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

// PatientsExcel renders the full patient roster as a workbook.
func (g *Generator) PatientsExcel(ctx context.Context, includeInactive bool) ([]byte, string, error) {
	patients, _, err := g.patients.List(ctx, "", includeInactive, listPageSize, 0)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Patients"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{"ID", "Last Name", "First Name", "DNI", "Birth Date", "Age", "Gender", "Blood Type", "Phone", "Email", "Active"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for row, p := range patients {
		values := []interface{}{
			p.ID, p.LastName, p.FirstName, p.DNI,
			p.BirthDate.Format(dateLayout), p.Age(), p.Gender, p.BloodType,
			p.Phone, p.Email, p.IsActive,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to render patients workbook: %w", err)
	}
	filename := fmt.Sprintf("patients_%s.xlsx", time.Now().Format("20060102"))
	return buf.Bytes(), filename, nil
}

// ConsultationsExcel renders all consultations within [from, to] as a
// workbook, one row per visit with the owning patient named.
func (g *Generator) ConsultationsExcel(ctx context.Context, from, to time.Time) ([]byte, string, error) {
	if to.Before(from) {
		return nil, "", fmt.Errorf("%w: date range end precedes start", apperrors.ErrInvalidInput)
	}
	consultations, err := g.consultations.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Consultations"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{"Date", "Patient", "DNI", "Reason", "Diagnosis", "Treatment", "Next Visit"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for row, c := range consultations {
		nextVisit := ""
		if c.NextVisit != nil {
			nextVisit = c.NextVisit.Format(dateLayout)
		}
		values := []interface{}{
			c.ConsultationDate.Format(dateLayout),
			c.Patient.FullName(), c.Patient.DNI,
			c.Reason, c.Diagnosis, c.Treatment, nextVisit,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to render consultations workbook: %w", err)
	}
	filename := fmt.Sprintf("consultations_%s_%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	return buf.Bytes(), filename, nil
}
