package handler

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
	"github.com/noah-isme/langcenter-api/pkg/response"
)

// AuthHandler exposes the identity carried by the caller's access token.
type AuthHandler struct{}

// NewAuthHandler creates a new handler.
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Me godoc
// @Summary Current administrator
// @Description Returns the claims of the validated access token. Tokens are issued by the identity provider.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /admin/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.OK(c, gin.H{
		"user_id":   claims.UserID,
		"role":      claims.Role,
		"email":     claims.Email,
		"full_name": claims.FullName,
	})
}
