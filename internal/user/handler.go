package user

import (
	"collaborative-docs/internal/errors"
	"collaborative-docs/internal/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for users
type Handler struct {
	service Service
}

// NewHandler creates a new user handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// SearchUsers lists the caller's organization roster, optionally filtered by ?q=.
func (h *Handler) SearchUsers(c *gin.Context) {
	caller, ok := middleware.IdentityFrom(c)
	if !ok {
		c.Error(errors.Unauthorized("Unauthorized", nil))
		return
	}

	users, err := h.service.ListOrganizationUsers(c.Request.Context(), caller, c.Query("q"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// GetProfile returns the caller as other participants see them.
func (h *Handler) GetProfile(c *gin.Context) {
	caller, ok := middleware.IdentityFrom(c)
	if !ok {
		c.Error(errors.Unauthorized("Unauthorized", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              caller.Subject,
		"name":            caller.DisplayName(),
		"email":           caller.Email,
		"avatar":          caller.AvatarURL,
		"organization_id": caller.OrganizationID,
	})
}
