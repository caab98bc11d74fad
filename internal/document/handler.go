package document

import (
	"collaborative-docs/internal/errors"
	"collaborative-docs/internal/middleware"
	"collaborative-docs/internal/utils"
	defError "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxRoomsPerLookup bounds one room-info lookup.
const maxRoomsPerLookup = 100

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type CreateRequest struct {
	Title          string  `json:"title" binding:"max=255"`
	InitialContent *string `json:"initialContent"`
}

type RenameRequest struct {
	Title string `json:"title" binding:"required,min=1,max=255"`
}

func (h *Handler) Create(c *gin.Context) {
	var form CreateRequest
	// an empty body creates an untitled document
	if err := c.ShouldBindJSON(&form); err != nil && !defError.Is(err, io.EOF) {
		c.Error(errors.NewValidationError(err))
		return
	}

	caller, _ := middleware.IdentityFrom(c)

	doc, err := h.service.CreateDocument(c.Request.Context(), caller, form.Title, form.InitialContent)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) ShowUserDocuments(c *gin.Context) {
	caller, _ := middleware.IdentityFrom(c)

	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.ListDocuments(c.Request.Context(), caller, c.Query("search"), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ShowDocument(c *gin.Context) {
	caller, _ := middleware.IdentityFrom(c)

	doc, err := h.service.GetDocument(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Rename(c *gin.Context) {
	var input RenameRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	caller, _ := middleware.IdentityFrom(c)

	doc, err := h.service.RenameDocument(c.Request.Context(), caller, c.Param("id"), input.Title)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	caller, _ := middleware.IdentityFrom(c)

	if err := h.service.RemoveDocument(c.Request.Context(), caller, c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ShowRoomsInfo resolves room ids to document titles for presence rosters.
func (h *Handler) ShowRoomsInfo(c *gin.Context) {
	ids := utils.GetListParam(c, "ids")
	if len(ids) > maxRoomsPerLookup {
		c.Error(errors.BadRequest("Too many ids", nil))
		return
	}

	rooms, err := h.service.GetRoomsInfo(c.Request.Context(), ids)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, rooms)
}
