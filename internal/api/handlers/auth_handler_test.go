package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbase/medrec-backend/internal/auth"
)

func loginContext(e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthHandler_Login(t *testing.T) {
	hash, err := auth.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	e := echo.New()
	handler := NewAuthHandler(hash, "test-api-key", nil)

	t.Run("valid password returns the API key", func(t *testing.T) {
		c, rec := loginContext(e, `{"password":"correct horse battery staple"}`)
		require.NoError(t, handler.Login(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "test-api-key", resp.Data["api_key"])
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		c, rec := loginContext(e, `{"password":"guess"}`)
		require.NoError(t, handler.Login(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty password is a bad request", func(t *testing.T) {
		c, rec := loginContext(e, `{}`)
		require.NoError(t, handler.Login(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthHandler_Unconfigured(t *testing.T) {
	e := echo.New()
	handler := NewAuthHandler("", "key", nil)

	c, rec := loginContext(e, `{"password":"anything"}`)
	require.NoError(t, handler.Login(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
