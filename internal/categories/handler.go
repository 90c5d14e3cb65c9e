package categories

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"grainlab-backend/internal/shared/server/middleware"
	"grainlab-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the categories service.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches category routes. Reads are open to any
// authenticated user; writes are staff-only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/categories", h.list)
	rg.GET("/categories/:id", h.get)

	staff := rg.Group("", middleware.RequireRole("admin", "staff"))
	staff.POST("/categories", h.create)
	staff.PUT("/categories/:id", h.update)
	staff.DELETE("/categories/:id", h.delete)
}

type categoryRequest struct {
	Name        string `json:"name"`
	Tag         string `json:"tag"`
	Description string `json:"description"`
}

func (h *Handler) create(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	category, err := h.Svc.Create(c.Request.Context(), req.Name, req.Tag, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateTag):
			respond.Error(c, http.StatusConflict, "conflict", "category tag already exists", nil)
		default:
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		}
		return
	}
	respond.JSON(c, http.StatusCreated, category)
}

func (h *Handler) get(c *gin.Context) {
	category, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil || category.DeletedAt != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "category not found", nil)
		return
	}
	respond.OK(c, category)
}

func (h *Handler) list(c *gin.Context) {
	out, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list categories", nil)
		return
	}
	if out == nil {
		out = []Category{}
	}
	respond.OK(c, out)
}

func (h *Handler) update(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	category, err := h.Svc.Update(c.Request.Context(), c.Param("id"), req.Name, req.Tag, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "category not found", nil)
		case errors.Is(err, ErrDuplicateTag):
			respond.Error(c, http.StatusConflict, "conflict", "category tag already exists", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update category", nil)
		}
		return
	}
	respond.OK(c, category)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "category not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete category", nil)
		}
		return
	}
	respond.JSON(c, http.StatusNoContent, nil)
}
