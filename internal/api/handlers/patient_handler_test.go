package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clinicbase/medrec-backend/internal/models"
	"github.com/clinicbase/medrec-backend/internal/repository"
)

// PatientHandlerTestSuite exercises the patient endpoints against a real
// sqlite database.
type PatientHandlerTestSuite struct {
	suite.Suite
	echo    *echo.Echo
	db      *gorm.DB
	handler *PatientHandler
	repo    repository.PatientRepository
}

func (s *PatientHandlerTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(s.T(), err)

	require.NoError(s.T(), db.AutoMigrate(&models.Patient{}))
	s.db = db
}

func (s *PatientHandlerTestSuite) TearDownSuite() {
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

func (s *PatientHandlerTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM patients")
	s.repo = repository.NewPatientRepository(s.db)
	s.handler = NewPatientHandler(s.repo)
	s.echo = echo.New()
}

func TestPatientHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(PatientHandlerTestSuite))
}

func (s *PatientHandlerTestSuite) jsonContext(method, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return s.echo.NewContext(req, rec), rec
}

func (s *PatientHandlerTestSuite) seedPatient(firstName, lastName, dni string) *models.Patient {
	p := &models.Patient{
		FirstName: firstName,
		LastName:  lastName,
		DNI:       dni,
		BirthDate: time.Date(1980, 6, 1, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
	require.NoError(s.T(), s.repo.Create(context.Background(), p))
	return p
}

func (s *PatientHandlerTestSuite) TestCreate_Success() {
	body := `{"first_name":"Carlos","last_name":"Mendez","dni":"28456789","birth_date":"1975-11-02","gender":"M","phone":"+54 11 4444-5555"}`
	c, rec := s.jsonContext(http.MethodPost, body)

	require.NoError(s.T(), s.handler.Create(c))
	assert.Equal(s.T(), http.StatusCreated, rec.Code)

	var resp struct {
		Data models.Patient `json:"data"`
	}
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(s.T(), "Mendez", resp.Data.LastName)
	assert.Equal(s.T(), "28456789", resp.Data.DNI)
	// Phone is normalized to digits plus leading +
	assert.Equal(s.T(), "+541144445555", resp.Data.Phone)
	assert.True(s.T(), resp.Data.IsActive)
}

func (s *PatientHandlerTestSuite) TestCreate_DuplicateDNI() {
	s.seedPatient("Carlos", "Mendez", "28456789")

	body := `{"first_name":"Otro","last_name":"Paciente","dni":"28456789","birth_date":"1990-01-01"}`
	c, rec := s.jsonContext(http.MethodPost, body)

	require.NoError(s.T(), s.handler.Create(c))
	assert.Equal(s.T(), http.StatusConflict, rec.Code)
}

func (s *PatientHandlerTestSuite) TestCreate_Validation() {
	cases := []struct {
		name string
		body string
	}{
		{"missing first name", `{"last_name":"X","dni":"28456789","birth_date":"1990-01-01"}`},
		{"bad dni", `{"first_name":"A","last_name":"B","dni":"abc","birth_date":"1990-01-01"}`},
		{"bad birth date", `{"first_name":"A","last_name":"B","dni":"28456789","birth_date":"not-a-date"}`},
		{"future birth date", `{"first_name":"A","last_name":"B","dni":"28456789","birth_date":"2090-01-01"}`},
		{"bad email", `{"first_name":"A","last_name":"B","dni":"28456789","birth_date":"1990-01-01","email":"nope"}`},
	}

	for _, tc := range cases {
		c, rec := s.jsonContext(http.MethodPost, tc.body)
		require.NoError(s.T(), s.handler.Create(c), tc.name)
		assert.Equal(s.T(), http.StatusBadRequest, rec.Code, tc.name)
	}
}

func (s *PatientHandlerTestSuite) TestGet_NotFound() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("4242")

	require.NoError(s.T(), s.handler.Get(c))
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func (s *PatientHandlerTestSuite) TestList_SearchIgnoresAccents() {
	s.seedPatient("María", "Gutiérrez", "30111222")
	s.seedPatient("Carlos", "Mendez", "28456789")

	req := httptest.NewRequest(http.MethodGet, "/?search=gutierrez", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)

	require.NoError(s.T(), s.handler.List(c))
	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Patient `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(s.T(), resp.Data, 1)
	assert.Equal(s.T(), "Gutiérrez", resp.Data[0].LastName)
	assert.Equal(s.T(), int64(1), resp.Meta.Total)
}

func (s *PatientHandlerTestSuite) TestDeactivate_HidesFromDefaultList() {
	p := s.seedPatient("Carlos", "Mendez", "28456789")

	req := httptest.NewRequest(http.MethodPatch, "/", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", p.ID))

	require.NoError(s.T(), s.handler.Deactivate(c))
	assert.Equal(s.T(), http.StatusOK, rec.Code)

	// Default listing skips inactive patients
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c = s.echo.NewContext(req, rec)
	require.NoError(s.T(), s.handler.List(c))

	var resp struct {
		Data []models.Patient `json:"data"`
	}
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(s.T(), resp.Data)

	// But include_inactive=true shows them
	req = httptest.NewRequest(http.MethodGet, "/?include_inactive=true", nil)
	rec = httptest.NewRecorder()
	c = s.echo.NewContext(req, rec)
	require.NoError(s.T(), s.handler.List(c))
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(s.T(), resp.Data, 1)
}

func (s *PatientHandlerTestSuite) TestUpdate_Success() {
	p := s.seedPatient("Carlos", "Mendez", "28456789")

	body := `{"first_name":"Carlos","last_name":"Mendez","dni":"28456789","birth_date":"1980-06-01","phone":"+5491155556666","allergies":"penicillin"}`
	c, rec := s.jsonContext(http.MethodPut, body)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", p.ID))

	require.NoError(s.T(), s.handler.Update(c))
	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var resp struct {
		Data models.Patient `json:"data"`
	}
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(s.T(), "penicillin", resp.Data.Allergies)
}

func (s *PatientHandlerTestSuite) TestDelete() {
	p := s.seedPatient("Carlos", "Mendez", "28456789")

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", p.ID))

	require.NoError(s.T(), s.handler.Delete(c))
	assert.Equal(s.T(), http.StatusNoContent, rec.Code)

	_, err := s.repo.GetByID(context.Background(), p.ID)
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)
}
