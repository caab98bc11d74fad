package session

import (
	"collaborative-docs/internal/domain"
	"collaborative-docs/internal/errors"
	"collaborative-docs/internal/middleware"
	"context"

	"github.com/gin-gonic/gin"
)

type Authorizer interface {
	Authorize(ctx context.Context, roomID string, caller domain.Identity) (*Grant, error)
}

type Handler struct {
	gate Authorizer
}

func NewHandler(gate Authorizer) *Handler {
	return &Handler{gate: gate}
}

type AuthorizeRequest struct {
	Room string `json:"room" binding:"required"`
}

// Authorize answers the realtime client's auth endpoint. A malformed body
// names no room, so it is refused like any other denial.
func (h *Handler) Authorize(c *gin.Context) {
	caller, ok := middleware.IdentityFrom(c)
	if !ok {
		c.Error(errors.Denied(nil))
		return
	}

	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.Denied(err))
		return
	}

	grant, err := h.gate.Authorize(c.Request.Context(), req.Room, caller)
	if err != nil {
		c.Error(err)
		return
	}

	if grant.ContentType == "" {
		c.Status(grant.Status)
		c.Writer.Write(grant.Body)
		return
	}
	c.Data(grant.Status, grant.ContentType, grant.Body)
}

var _ Authorizer = (*Gate)(nil)
