package repository

import (
	"context"
	"testing"
	"time"

	"github.com/clinicbase/medrec-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AttachmentRepositoryTestSuite is the test suite for AttachmentRepository
type AttachmentRepositoryTestSuite struct {
	suite.Suite
	db          *gorm.DB
	repo        AttachmentRepository
	patientRepo PatientRepository
	testPatient *models.Patient
}

// SetupSuite runs once before all tests
func (s *AttachmentRepositoryTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)

	db.Exec("PRAGMA foreign_keys = ON")

	err = db.AutoMigrate(&models.Patient{}, &models.Consultation{}, &models.MedicalStudy{}, &models.Attachment{})
	require.NoError(s.T(), err)

	s.db = db
	s.repo = NewAttachmentRepository(db)
	s.patientRepo = NewPatientRepository(db)
}

// TearDownSuite runs once after all tests
func (s *AttachmentRepositoryTestSuite) TearDownSuite() {
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SetupTest runs before each test
func (s *AttachmentRepositoryTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM attachments")
	s.db.Exec("DELETE FROM patients")

	s.testPatient = &models.Patient{
		FirstName: "Ana",
		LastName:  "Diaz",
		DNI:       "30111222",
		BirthDate: time.Date(1985, 6, 1, 0, 0, 0, 0, time.UTC),
		Gender:    "F",
		IsActive:  true,
	}
	require.NoError(s.T(), s.patientRepo.Create(context.Background(), s.testPatient))
}

// TestAttachmentRepositoryTestSuite runs the test suite
func TestAttachmentRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(AttachmentRepositoryTestSuite))
}

func (s *AttachmentRepositoryTestSuite) newAttachment(path string) *models.Attachment {
	return &models.Attachment{
		OwnerKind:    models.OwnerPatient,
		OwnerID:      s.testPatient.ID,
		Category:     models.CategoryDocument,
		RelativePath: path,
		OriginalName: "scan.pdf",
		ContentType:  "application/pdf",
		SizeBytes:    1024,
	}
}

// ==================== Create Tests ====================

func (s *AttachmentRepositoryTestSuite) TestCreate_Success() {
	attachment := s.newAttachment("patient_1/patient_1_20250118_120000_ab12cd34_scan.pdf")

	err := s.repo.Create(context.Background(), attachment)

	assert.NoError(s.T(), err)
	assert.NotZero(s.T(), attachment.ID)
	assert.NotZero(s.T(), attachment.UploadedAt)
}

func (s *AttachmentRepositoryTestSuite) TestCreate_DuplicatePathSameKind_ReturnsError() {
	a1 := s.newAttachment("patient_1/file.pdf")
	require.NoError(s.T(), s.repo.Create(context.Background(), a1))

	a2 := s.newAttachment("patient_1/file.pdf")
	err := s.repo.Create(context.Background(), a2)

	assert.ErrorIs(s.T(), err, ErrDuplicateEntry)
}

func (s *AttachmentRepositoryTestSuite) TestCreate_SamePathDifferentKind_Allowed() {
	a1 := s.newAttachment("shared/file.pdf")
	require.NoError(s.T(), s.repo.Create(context.Background(), a1))

	a2 := s.newAttachment("shared/file.pdf")
	a2.OwnerKind = models.OwnerStudy
	err := s.repo.Create(context.Background(), a2)

	assert.NoError(s.T(), err)
}

// ==================== Get Tests ====================

func (s *AttachmentRepositoryTestSuite) TestGetByID_Success() {
	attachment := s.newAttachment("patient_1/file.pdf")
	require.NoError(s.T(), s.repo.Create(context.Background(), attachment))

	found, err := s.repo.GetByID(context.Background(), attachment.ID)

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), attachment.RelativePath, found.RelativePath)
	assert.Equal(s.T(), "scan.pdf", found.OriginalName)
}

func (s *AttachmentRepositoryTestSuite) TestGetByID_NotFound() {
	_, err := s.repo.GetByID(context.Background(), 9999)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

// ==================== UpdateMetadata Tests ====================

func (s *AttachmentRepositoryTestSuite) TestUpdateMetadata_Success() {
	attachment := s.newAttachment("patient_1/file.pdf")
	require.NoError(s.T(), s.repo.Create(context.Background(), attachment))

	err := s.repo.UpdateMetadata(context.Background(), attachment.ID, models.CategoryLabResult, "blood panel")
	require.NoError(s.T(), err)

	found, err := s.repo.GetByID(context.Background(), attachment.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.CategoryLabResult, found.Category)
	assert.Equal(s.T(), "blood panel", found.Description)
	// Path stays untouched
	assert.Equal(s.T(), attachment.RelativePath, found.RelativePath)
}

func (s *AttachmentRepositoryTestSuite) TestUpdateMetadata_NotFound() {
	err := s.repo.UpdateMetadata(context.Background(), 9999, models.CategoryOther, "")
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

// ==================== Delete Tests ====================

func (s *AttachmentRepositoryTestSuite) TestDelete_Success() {
	attachment := s.newAttachment("patient_1/file.pdf")
	require.NoError(s.T(), s.repo.Create(context.Background(), attachment))

	err := s.repo.Delete(context.Background(), attachment.ID)
	require.NoError(s.T(), err)

	_, err = s.repo.GetByID(context.Background(), attachment.ID)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *AttachmentRepositoryTestSuite) TestDelete_NotFound() {
	err := s.repo.Delete(context.Background(), 9999)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

// ==================== List Tests ====================

func (s *AttachmentRepositoryTestSuite) TestListByOwner_OrderedByUploadTime() {
	older := s.newAttachment("patient_1/older.pdf")
	require.NoError(s.T(), s.repo.Create(context.Background(), older))
	s.db.Model(older).Update("uploaded_at", time.Now().Add(-time.Hour))

	newer := s.newAttachment("patient_1/newer.pdf")
	require.NoError(s.T(), s.repo.Create(context.Background(), newer))

	attachments, err := s.repo.ListByOwner(context.Background(), models.OwnerPatient, s.testPatient.ID)

	require.NoError(s.T(), err)
	require.Len(s.T(), attachments, 2)
	assert.Equal(s.T(), "patient_1/older.pdf", attachments[0].RelativePath)
	assert.Equal(s.T(), "patient_1/newer.pdf", attachments[1].RelativePath)
}

func (s *AttachmentRepositoryTestSuite) TestListByOwner_FiltersByKind() {
	patientFile := s.newAttachment("patient_1/file.pdf")
	require.NoError(s.T(), s.repo.Create(context.Background(), patientFile))

	studyFile := s.newAttachment("study_1/file.pdf")
	studyFile.OwnerKind = models.OwnerStudy
	require.NoError(s.T(), s.repo.Create(context.Background(), studyFile))

	attachments, err := s.repo.ListByOwner(context.Background(), models.OwnerPatient, s.testPatient.ID)

	require.NoError(s.T(), err)
	require.Len(s.T(), attachments, 1)
	assert.Equal(s.T(), models.OwnerPatient, attachments[0].OwnerKind)
}

func (s *AttachmentRepositoryTestSuite) TestListByOwner_EmptyForUnknownOwner() {
	attachments, err := s.repo.ListByOwner(context.Background(), models.OwnerPatient, 9999)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), attachments)
}

// ==================== Aggregate size Tests ====================

func (s *AttachmentRepositoryTestSuite) TestSumSizeByOwner() {
	a1 := s.newAttachment("patient_1/a.pdf")
	a1.SizeBytes = 100
	a2 := s.newAttachment("patient_1/b.pdf")
	a2.SizeBytes = 250
	require.NoError(s.T(), s.repo.Create(context.Background(), a1))
	require.NoError(s.T(), s.repo.Create(context.Background(), a2))

	total, err := s.repo.SumSizeByOwner(context.Background(), models.OwnerPatient, s.testPatient.ID)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(350), total)
}

func (s *AttachmentRepositoryTestSuite) TestSumSizeByOwner_ZeroWhenNoRecords() {
	total, err := s.repo.SumSizeByOwner(context.Background(), models.OwnerPatient, 9999)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(0), total)
}

func (s *AttachmentRepositoryTestSuite) TestSumSizeAll() {
	a1 := s.newAttachment("patient_1/a.pdf")
	a1.SizeBytes = 100
	a2 := s.newAttachment("study_2/b.pdf")
	a2.OwnerKind = models.OwnerStudy
	a2.OwnerID = 2
	a2.SizeBytes = 400
	require.NoError(s.T(), s.repo.Create(context.Background(), a1))
	require.NoError(s.T(), s.repo.Create(context.Background(), a2))

	total, err := s.repo.SumSizeAll(context.Background())

	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(500), total)
}
