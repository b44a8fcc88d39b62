package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/clinicbase/medrec-backend/internal/api/response"
	"github.com/clinicbase/medrec-backend/internal/auth"
	"github.com/clinicbase/medrec-backend/internal/logger"
)

// AuthHandler exchanges the admin password for the API key
type AuthHandler struct {
	adminPasswordHash string
	apiKey            string
	secLog            *logger.SecurityLogger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(adminPasswordHash, apiKey string, secLog *logger.SecurityLogger) *AuthHandler {
	return &AuthHandler{
		adminPasswordHash: adminPasswordHash,
		apiKey:            apiKey,
		secLog:            secLog,
	}
}

// LoginRequest represents the request body for logging in
type LoginRequest struct {
	Password string `json:"password"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.Password == "" {
		return response.BadRequest(c, "password is required")
	}

	if h.adminPasswordHash == "" {
		return response.InternalError(c, "admin authentication is not configured")
	}

	ok, err := auth.VerifyPassword(req.Password, h.adminPasswordHash)
	if err != nil {
		return response.InternalError(c, "failed to verify password")
	}
	if !ok {
		if h.secLog != nil {
			h.secLog.AuthFailure(c.RealIP(), c.Path(), "wrong admin password")
		}
		return response.Unauthorized(c, "invalid credentials")
	}

	return response.Success(c, map[string]string{
		"api_key": h.apiKey,
	})
}
