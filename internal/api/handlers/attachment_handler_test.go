package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clinicbase/medrec-backend/internal/attachments"
	"github.com/clinicbase/medrec-backend/internal/models"
	"github.com/clinicbase/medrec-backend/internal/repository"
	"github.com/clinicbase/medrec-backend/internal/storage"
)

// AttachmentHandlerTestSuite exercises the attachment endpoints against a
// real sqlite database and temp-dir file stores.
type AttachmentHandlerTestSuite struct {
	suite.Suite
	echo        *echo.Echo
	db          *gorm.DB
	handler     *AttachmentHandler
	store       *attachments.Store
	patientDir  string
	testPatient *models.Patient
}

func (s *AttachmentHandlerTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(s.T(), err)

	err = db.AutoMigrate(&models.Patient{}, &models.Consultation{}, &models.MedicalStudy{}, &models.Attachment{})
	require.NoError(s.T(), err)

	s.db = db
}

func (s *AttachmentHandlerTestSuite) TearDownSuite() {
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

func (s *AttachmentHandlerTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM attachments")
	s.db.Exec("DELETE FROM patients")

	root := s.T().TempDir()
	s.patientDir = filepath.Join(root, "patients")
	patientFS, err := storage.NewLocalStore(s.patientDir)
	require.NoError(s.T(), err)
	consultationFS, err := storage.NewLocalStore(filepath.Join(root, "consultations"))
	require.NoError(s.T(), err)
	studyFS, err := storage.NewLocalStore(filepath.Join(root, "studies"))
	require.NoError(s.T(), err)

	patientRepo := repository.NewPatientRepository(s.db)
	consultationRepo := repository.NewConsultationRepository(s.db)
	studyRepo := repository.NewStudyRepository(s.db)
	attachmentRepo := repository.NewAttachmentRepository(s.db)

	s.store = attachments.NewStore(
		attachmentRepo,
		map[models.OwnerKind]storage.FileStore{
			models.OwnerPatient:      patientFS,
			models.OwnerConsultation: consultationFS,
			models.OwnerStudy:        studyFS,
		},
		map[models.OwnerKind]attachments.OwnerLookup{
			models.OwnerPatient:      patientRepo.Exists,
			models.OwnerConsultation: consultationRepo.Exists,
			models.OwnerStudy:        studyRepo.Exists,
		},
	)
	s.handler = NewAttachmentHandler(s.store, nil, nil)
	s.echo = echo.New()

	s.testPatient = &models.Patient{
		FirstName: "Laura",
		LastName:  "Fernandez",
		DNI:       "28456789",
		BirthDate: time.Date(1985, 3, 12, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
	require.NoError(s.T(), patientRepo.Create(context.Background(), s.testPatient))
}

func TestAttachmentHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(AttachmentHandlerTestSuite))
}

// multipartRequest builds a multipart upload request with a single file part
// plus optional form fields.
func (s *AttachmentHandlerTestSuite) multipartRequest(filename string, content []byte, fields map[string]string) *http.Request {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	require.NoError(s.T(), err)
	_, err = part.Write(content)
	require.NoError(s.T(), err)

	for k, v := range fields {
		require.NoError(s.T(), writer.WriteField(k, v))
	}
	require.NoError(s.T(), writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func (s *AttachmentHandlerTestSuite) uploadForPatient(filename string, content []byte, fields map[string]string) (*httptest.ResponseRecorder, *models.Attachment) {
	req := s.multipartRequest(filename, content, fields)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("kind", "owner_id")
	c.SetParamValues("patient", fmt.Sprintf("%d", s.testPatient.ID))

	require.NoError(s.T(), s.handler.Upload(c))
	if rec.Code != http.StatusCreated {
		return rec, nil
	}

	var resp struct {
		Data models.Attachment `json:"data"`
	}
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, &resp.Data
}

func (s *AttachmentHandlerTestSuite) TestUpload_Success() {
	rec, attachment := s.uploadForPatient("lab_results.pdf", []byte("pdf bytes"), map[string]string{
		"category":    "laboratory",
		"description": "blood panel",
	})

	assert.Equal(s.T(), http.StatusCreated, rec.Code)
	require.NotNil(s.T(), attachment)
	assert.Equal(s.T(), models.OwnerPatient, attachment.OwnerKind)
	assert.Equal(s.T(), s.testPatient.ID, attachment.OwnerID)
	assert.Equal(s.T(), "laboratory", attachment.Category)
	assert.Equal(s.T(), "lab_results.pdf", attachment.OriginalName)
	assert.Equal(s.T(), int64(len("pdf bytes")), attachment.SizeBytes)

	// The file landed under the patient's directory
	_, err := os.Stat(filepath.Join(s.patientDir, attachment.RelativePath))
	assert.NoError(s.T(), err)
}

func (s *AttachmentHandlerTestSuite) TestUpload_UnknownOwner() {
	req := s.multipartRequest("scan.png", []byte("png"), nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("kind", "owner_id")
	c.SetParamValues("patient", "9999")

	require.NoError(s.T(), s.handler.Upload(c))
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func (s *AttachmentHandlerTestSuite) TestUpload_InvalidKind() {
	req := s.multipartRequest("scan.png", []byte("png"), nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("kind", "owner_id")
	c.SetParamValues("invoice", "1")

	require.NoError(s.T(), s.handler.Upload(c))
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *AttachmentHandlerTestSuite) TestUpload_BlockedExtension() {
	req := s.multipartRequest("malware.exe", []byte("MZ"), nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("kind", "owner_id")
	c.SetParamValues("patient", fmt.Sprintf("%d", s.testPatient.ID))

	require.NoError(s.T(), s.handler.Upload(c))
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *AttachmentHandlerTestSuite) TestDownload_Success() {
	_, attachment := s.uploadForPatient("notes.txt", []byte("follow-up in 30 days"), nil)
	require.NotNil(s.T(), attachment)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", attachment.ID))

	require.NoError(s.T(), s.handler.Download(c))
	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Equal(s.T(), "follow-up in 30 days", rec.Body.String())
	assert.Contains(s.T(), rec.Header().Get("Content-Disposition"), `filename="notes.txt"`)
}

func (s *AttachmentHandlerTestSuite) TestDownload_ContentMissingIsGone() {
	_, attachment := s.uploadForPatient("notes.txt", []byte("content"), nil)
	require.NotNil(s.T(), attachment)

	// Remove the file behind the record's back
	require.NoError(s.T(), os.Remove(filepath.Join(s.patientDir, attachment.RelativePath)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", attachment.ID))

	require.NoError(s.T(), s.handler.Download(c))
	assert.Equal(s.T(), http.StatusGone, rec.Code)
}

func (s *AttachmentHandlerTestSuite) TestDownload_NotFound() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("424242")

	require.NoError(s.T(), s.handler.Download(c))
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func (s *AttachmentHandlerTestSuite) TestList_FlatAndGrouped() {
	_, a1 := s.uploadForPatient("xray.png", []byte("img"), map[string]string{"category": "imaging"})
	require.NotNil(s.T(), a1)
	_, a2 := s.uploadForPatient("blood.pdf", []byte("pdf"), map[string]string{"category": "laboratory"})
	require.NotNil(s.T(), a2)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("kind", "owner_id")
	c.SetParamValues("patient", fmt.Sprintf("%d", s.testPatient.ID))

	require.NoError(s.T(), s.handler.List(c))
	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var flat struct {
		Data []models.Attachment `json:"data"`
	}
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &flat))
	assert.Len(s.T(), flat.Data, 2)

	req = httptest.NewRequest(http.MethodGet, "/?grouped=true", nil)
	rec = httptest.NewRecorder()
	c = s.echo.NewContext(req, rec)
	c.SetParamNames("kind", "owner_id")
	c.SetParamValues("patient", fmt.Sprintf("%d", s.testPatient.ID))

	require.NoError(s.T(), s.handler.List(c))
	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var grouped struct {
		Data map[string][]models.Attachment `json:"data"`
	}
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &grouped))
	assert.Len(s.T(), grouped.Data["imaging"], 1)
	assert.Len(s.T(), grouped.Data["laboratory"], 1)
}

func (s *AttachmentHandlerTestSuite) TestOwnerSize() {
	_, a := s.uploadForPatient("a.txt", []byte("12345"), nil)
	require.NotNil(s.T(), a)
	_, b := s.uploadForPatient("b.txt", []byte("123"), nil)
	require.NotNil(s.T(), b)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("kind", "owner_id")
	c.SetParamValues("patient", fmt.Sprintf("%d", s.testPatient.ID))

	require.NoError(s.T(), s.handler.OwnerSize(c))
	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			TotalSizeBytes int64 `json:"total_size_bytes"`
		} `json:"data"`
	}
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(s.T(), int64(8), resp.Data.TotalSizeBytes)
}

func (s *AttachmentHandlerTestSuite) TestUpdateMetadata() {
	_, attachment := s.uploadForPatient("scan.png", []byte("img"), nil)
	require.NotNil(s.T(), attachment)

	body := `{"category":"imaging","description":"chest x-ray"}`
	req := httptest.NewRequest(http.MethodPatch, "/", bytes.NewReader([]byte(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", attachment.ID))

	require.NoError(s.T(), s.handler.UpdateMetadata(c))
	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var resp struct {
		Data models.Attachment `json:"data"`
	}
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(s.T(), "imaging", resp.Data.Category)
	assert.Equal(s.T(), "chest x-ray", resp.Data.Description)
	assert.Equal(s.T(), attachment.RelativePath, resp.Data.RelativePath)
}

func (s *AttachmentHandlerTestSuite) TestDelete() {
	_, attachment := s.uploadForPatient("old.txt", []byte("stale"), nil)
	require.NotNil(s.T(), attachment)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", attachment.ID))

	require.NoError(s.T(), s.handler.Delete(c))
	assert.Equal(s.T(), http.StatusNoContent, rec.Code)

	_, err := os.Stat(filepath.Join(s.patientDir, attachment.RelativePath))
	assert.True(s.T(), os.IsNotExist(err))

	// Deleting again reports not found
	rec = httptest.NewRecorder()
	c = s.echo.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", attachment.ID))
	require.NoError(s.T(), s.handler.Delete(c))
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}
