package feedback

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"grainlab-backend/internal/shared/server/middleware"
	"grainlab-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/feedback", h.submit)

	staff := rg.Group("", middleware.RequireRole("admin", "staff"))
	staff.GET("/feedback", h.list)
	staff.GET("/feedback/:id", h.get)
	staff.POST("/feedback/:id/resolve", h.resolve)
	staff.POST("/feedback/:id/reopen", h.reopen)
	staff.DELETE("/feedback/:id", h.delete)
}

type submitRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (h *Handler) submit(c *gin.Context) {
	if isGuest, ok := c.Get("isGuest"); ok {
		if guest, ok2 := isGuest.(bool); ok2 && guest {
			respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to send feedback", nil)
			return
		}
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "subject is required", nil)
		return
	}

	fb, err := h.Svc.Submit(c.Request.Context(), middleware.UserIDFromContext(c), req.Subject, req.Body)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit feedback", nil)
		return
	}
	respond.JSON(c, http.StatusCreated, fb)
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	onlyUnresolved := c.Query("unresolved") == "true"

	list, err := h.Svc.List(c.Request.Context(), onlyUnresolved, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list feedback", nil)
		return
	}
	respond.OK(c, list)
}

func (h *Handler) get(c *gin.Context) {
	fb, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to fetch feedback")
		return
	}
	respond.OK(c, fb)
}

func (h *Handler) resolve(c *gin.Context) {
	fb, err := h.Svc.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to resolve feedback")
		return
	}
	respond.OK(c, fb)
}

func (h *Handler) reopen(c *gin.Context) {
	fb, err := h.Svc.Reopen(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to reopen feedback")
		return
	}
	respond.OK(c, fb)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err, "failed to delete feedback")
		return
	}
	respond.JSON(c, http.StatusNoContent, nil)
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "feedback not found", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
}
