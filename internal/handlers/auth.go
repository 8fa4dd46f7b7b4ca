// internal/handlers/auth.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/licensehub/license-server/internal/i18n"
	"github.com/licensehub/license-server/internal/middleware"
	"github.com/licensehub/license-server/internal/services"
	"github.com/licensehub/license-server/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
	// secureCookie marks the session cookie Secure; set in production.
	secureCookie bool
}

func NewAuthHandler(authService *services.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		secureCookie: secureCookie,
	}
}

// POST /admin/login
func (h *AuthHandler) Login(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	authResponse, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidCredentials))
			return
		}
		internalError(c, err, "Login failed")
		return
	}

	c.SetCookie(middleware.AdminTokenCookie, authResponse.AccessToken, authResponse.ExpiresIn, "/", "", h.secureCookie, true)

	utils.SuccessResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeyAuthLoginSuccess),
		"admin":      authResponse.Admin,
		"token":      authResponse.AccessToken,
		"token_type": authResponse.TokenType,
		"expires_in": authResponse.ExpiresIn,
	})
}

// POST /admin/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	c.SetCookie(middleware.AdminTokenCookie, "", -1, "/", "", h.secureCookie, true)

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAuthLogoutSuccess),
	})
}
