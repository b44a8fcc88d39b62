package attachments

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/clinicbase/medrec-backend/internal/errors"
	"github.com/clinicbase/medrec-backend/internal/models"
	"github.com/clinicbase/medrec-backend/internal/repository"
	"github.com/clinicbase/medrec-backend/internal/storage"
)

// StoreTestSuite exercises the attachment store against a real sqlite
// database and real temp-dir file stores.
type StoreTestSuite struct {
	suite.Suite
	db          *gorm.DB
	store       *Store
	patientRepo repository.PatientRepository
	patientDir  string
	testPatient *models.Patient
}

func (s *StoreTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)

	db.Exec("PRAGMA foreign_keys = ON")

	err = db.AutoMigrate(&models.Patient{}, &models.Consultation{}, &models.MedicalStudy{}, &models.Attachment{})
	require.NoError(s.T(), err)

	s.db = db
	s.patientRepo = repository.NewPatientRepository(db)
}

func (s *StoreTestSuite) TearDownSuite() {
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

func (s *StoreTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM attachments")
	s.db.Exec("DELETE FROM patients")
	s.db.Exec("DELETE FROM consultations")

	root := s.T().TempDir()
	s.patientDir = filepath.Join(root, "patients")
	patientFS, err := storage.NewLocalStore(s.patientDir)
	require.NoError(s.T(), err)
	consultationFS, err := storage.NewLocalStore(filepath.Join(root, "consultations"))
	require.NoError(s.T(), err)
	studyFS, err := storage.NewLocalStore(filepath.Join(root, "studies"))
	require.NoError(s.T(), err)

	consultationRepo := repository.NewConsultationRepository(s.db)
	studyRepo := repository.NewStudyRepository(s.db)

	s.store = NewStore(
		repository.NewAttachmentRepository(s.db),
		map[models.OwnerKind]storage.FileStore{
			models.OwnerPatient:      patientFS,
			models.OwnerConsultation: consultationFS,
			models.OwnerStudy:        studyFS,
		},
		map[models.OwnerKind]OwnerLookup{
			models.OwnerPatient:      s.patientRepo.Exists,
			models.OwnerConsultation: consultationRepo.Exists,
			models.OwnerStudy:        studyRepo.Exists,
		},
	)

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

func (s *StoreTestSuite) save(name, content string) *models.Attachment {
	attachment, err := s.store.Save(context.Background(), models.OwnerPatient, s.testPatient.ID,
		strings.NewReader(content), name, "application/pdf", models.CategoryDocument, "")
	require.NoError(s.T(), err)
	return attachment
}

func (s *StoreTestSuite) TestSave_StoresFileAndRecord() {
	attachment := s.save("lab results.pdf", "pdf content")

	assert.NotZero(s.T(), attachment.ID)
	assert.Equal(s.T(), int64(len("pdf content")), attachment.SizeBytes)
	assert.Equal(s.T(), "lab results.pdf", attachment.OriginalName)

	prefix := fmt.Sprintf("patient_%d/patient_%d_", s.testPatient.ID, s.testPatient.ID)
	assert.True(s.T(), strings.HasPrefix(attachment.RelativePath, prefix))
	assert.True(s.T(), strings.HasSuffix(attachment.RelativePath, "_lab_results.pdf"))

	// Path carries a parseable timestamp plus a unique token
	re := regexp.MustCompile(`_(\d{8}_\d{6})_[0-9a-f]{8}_lab_results\.pdf$`)
	m := re.FindStringSubmatch(attachment.RelativePath)
	require.Len(s.T(), m, 2)
	_, err := time.Parse("20060102_150405", m[1])
	assert.NoError(s.T(), err)

	// Bytes actually landed on disk
	info, err := os.Stat(filepath.Join(s.patientDir, filepath.FromSlash(attachment.RelativePath)))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(len("pdf content")), info.Size())
}

func (s *StoreTestSuite) TestSave_SameNameSameSecondGetDistinctPaths() {
	a := s.save("scan.jpg", "first")
	b := s.save("scan.jpg", "second")
	assert.NotEqual(s.T(), a.RelativePath, b.RelativePath)
}

func (s *StoreTestSuite) TestSave_UnknownOwnerFailsBeforeWrite() {
	_, err := s.store.Save(context.Background(), models.OwnerPatient, 9999,
		strings.NewReader("x"), "a.txt", "text/plain", models.CategoryOther, "")
	assert.ErrorIs(s.T(), err, apperrors.ErrPatientNotFound)

	// No file was written for the failed save
	entries, err := os.ReadDir(s.patientDir)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), entries)
}

func (s *StoreTestSuite) TestSave_InvalidKind() {
	_, err := s.store.Save(context.Background(), models.OwnerKind("folder"), 1,
		strings.NewReader("x"), "a.txt", "text/plain", models.CategoryOther, "")
	assert.ErrorIs(s.T(), err, apperrors.ErrInvalidInput)
}

func (s *StoreTestSuite) TestSave_DefaultsCategory() {
	attachment, err := s.store.Save(context.Background(), models.OwnerPatient, s.testPatient.ID,
		strings.NewReader("x"), "a.txt", "text/plain", "", "")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.CategoryOther, attachment.Category)
}

func (s *StoreTestSuite) TestResolve() {
	attachment := s.save("consent.pdf", "signed")

	abs, name, err := s.store.Resolve(context.Background(), attachment.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "consent.pdf", name)
	assert.True(s.T(), filepath.IsAbs(abs))

	data, err := os.ReadFile(abs)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "signed", string(data))
}

func (s *StoreTestSuite) TestResolve_NotFound() {
	_, _, err := s.store.Resolve(context.Background(), 9999)
	assert.ErrorIs(s.T(), err, apperrors.ErrAttachmentNotFound)
	assert.False(s.T(), apperrors.IsContentMissing(err))
}

func (s *StoreTestSuite) TestResolve_ContentMissing() {
	attachment := s.save("gone.pdf", "bytes")

	// Remove the file behind the record's back
	require.NoError(s.T(), os.Remove(filepath.Join(s.patientDir, filepath.FromSlash(attachment.RelativePath))))

	_, _, err := s.store.Resolve(context.Background(), attachment.ID)
	assert.ErrorIs(s.T(), err, apperrors.ErrContentMissing)
	assert.False(s.T(), apperrors.IsNotFound(err))
}

func (s *StoreTestSuite) TestOpen_ReadsContent() {
	attachment := s.save("notes.txt", "follow up in two weeks")

	reader, meta, err := s.store.Open(context.Background(), attachment.ID)
	require.NoError(s.T(), err)
	defer reader.Close()

	assert.Equal(s.T(), attachment.ID, meta.ID)
	buf := make([]byte, 64)
	n, _ := reader.Read(buf)
	assert.Equal(s.T(), "follow up in two weeks", string(buf[:n]))
}

func (s *StoreTestSuite) TestDelete_RemovesFileAndRecord() {
	attachment := s.save("old.pdf", "stale")
	absPath := filepath.Join(s.patientDir, filepath.FromSlash(attachment.RelativePath))

	deleted, err := s.store.Delete(context.Background(), attachment.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), deleted)

	_, err = os.Stat(absPath)
	assert.True(s.T(), os.IsNotExist(err))

	_, _, err = s.store.Resolve(context.Background(), attachment.ID)
	assert.ErrorIs(s.T(), err, apperrors.ErrAttachmentNotFound)
}

func (s *StoreTestSuite) TestDelete_AbsentRecord() {
	deleted, err := s.store.Delete(context.Background(), 9999)
	require.NoError(s.T(), err)
	assert.False(s.T(), deleted)
}

func (s *StoreTestSuite) TestDelete_MissingFileStillRemovesRecord() {
	attachment := s.save("half.pdf", "bytes")
	require.NoError(s.T(), os.Remove(filepath.Join(s.patientDir, filepath.FromSlash(attachment.RelativePath))))

	deleted, err := s.store.Delete(context.Background(), attachment.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), deleted)
}

func (s *StoreTestSuite) TestListByOwner_Order() {
	a := s.save("first.pdf", "1")
	b := s.save("second.pdf", "2")

	// Backdate the first upload so the ordering is observable
	s.db.Model(&models.Attachment{}).Where("id = ?", a.ID).
		Update("uploaded_at", time.Now().Add(-time.Hour))

	list, err := s.store.ListByOwner(context.Background(), models.OwnerPatient, s.testPatient.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), list, 2)
	assert.Equal(s.T(), a.ID, list[0].ID)
	assert.Equal(s.T(), b.ID, list[1].ID)
}

func (s *StoreTestSuite) TestListByCategory() {
	_, err := s.store.Save(context.Background(), models.OwnerPatient, s.testPatient.ID,
		strings.NewReader("x"), "xray.jpg", "image/jpeg", models.CategoryImage, "")
	require.NoError(s.T(), err)
	s.save("report_a.pdf", "a")
	s.save("report_b.pdf", "b")

	grouped, err := s.store.ListByCategory(context.Background(), models.OwnerPatient, s.testPatient.ID)
	require.NoError(s.T(), err)
	assert.Len(s.T(), grouped[models.CategoryDocument], 2)
	assert.Len(s.T(), grouped[models.CategoryImage], 1)
}

func (s *StoreTestSuite) TestAggregateSize() {
	s.save("a.txt", "12345")
	s.save("b.txt", "123")

	total, err := s.store.AggregateSize(context.Background(), models.OwnerPatient, s.testPatient.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(8), total)

	all, err := s.store.AggregateSizeAll(context.Background())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(8), all)

	empty, err := s.store.AggregateSize(context.Background(), models.OwnerConsultation, 1)
	require.NoError(s.T(), err)
	assert.Zero(s.T(), empty)
}

func (s *StoreTestSuite) TestUpdateMetadata_PathImmutable() {
	attachment := s.save("meta.pdf", "x")

	updated, err := s.store.UpdateMetadata(context.Background(), attachment.ID, models.CategoryLabResult, "blood panel")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.CategoryLabResult, updated.Category)
	assert.Equal(s.T(), "blood panel", updated.Description)
	assert.Equal(s.T(), attachment.RelativePath, updated.RelativePath)
}

func (s *StoreTestSuite) TestUpdateMetadata_NotFound() {
	_, err := s.store.UpdateMetadata(context.Background(), 9999, models.CategoryOther, "")
	assert.ErrorIs(s.T(), err, apperrors.ErrAttachmentNotFound)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
