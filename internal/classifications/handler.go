package classifications

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"grainlab-backend/internal/categories"
	"grainlab-backend/internal/shared/server/middleware"
	"grainlab-backend/internal/shared/server/respond"
)

const maxUploadSize = 15 << 20 // 15MB

// Handler wires HTTP handlers to the classifications service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches classification routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/classifications", h.create)
	rg.GET("/classifications", h.list)
	rg.GET("/classifications/:id", h.get)
	rg.POST("/classifications/:id/cancel", h.cancel)
	rg.DELETE("/classifications/:id", h.delete)
}

func (h *Handler) create(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	categoryID := strings.TrimSpace(c.PostForm("categoryId"))
	if categoryID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "categoryId is required", nil)
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "image is required", nil)
		return
	}
	if !isImageName(fileHeader.Filename) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unsupported image type", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read image", nil)
		return
	}
	defer file.Close()

	classification, err := h.Svc.Create(c.Request.Context(), userID, categoryID, fileHeader.Filename, file, c.PostForm("message"))
	if err != nil {
		switch {
		case errors.Is(err, categories.ErrNotFound):
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown category", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create classification", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"classificationId": classification.ExternalID,
		"status":           classification.Status,
	})
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	classificationID := c.Param("id")

	classification, err := h.Svc.Get(c.Request.Context(), classificationID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "classification not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch classification", nil)
		}
		return
	}
	if classification.UserID != userID && !isStaff(c) {
		respond.Error(c, http.StatusNotFound, "not_found", "classification not found", nil)
		return
	}

	respond.OK(c, classification)
}

func (h *Handler) list(c *gin.Context) {
	if isGuest, ok := c.Get("isGuest"); ok {
		if guest, ok2 := isGuest.(bool); ok2 && guest {
			respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view history", nil)
			return
		}
	}

	userID := middleware.UserIDFromContext(c)
	if staffFor := c.Query("userId"); staffFor != "" && isStaff(c) {
		userID = staffFor
	}

	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 50 {
		limit = 50
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	items, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list classifications", nil)
		return
	}

	resp := make([]gin.H, 0, len(items))
	for _, item := range items {
		entry := gin.H{
			"classificationId": item.ExternalID,
			"categoryId":       item.CategoryID,
			"categoryTag":      item.CategoryTag,
			"status":           item.Status,
			"createdAt":        item.CreatedAt,
		}
		if item.Status == StatusAnalyzed && item.Result != nil {
			entry["counts"] = item.Result.Counts
		}
		resp = append(resp, entry)
	}

	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) cancel(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if isStaff(c) {
		userID = ""
	}

	classification, err := h.Svc.Cancel(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotOwner):
			respond.Error(c, http.StatusNotFound, "not_found", "classification not found", nil)
		case errors.Is(err, ErrInvalidTransition):
			respond.Error(c, http.StatusConflict, "conflict", "classification already finished", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to cancel classification", nil)
		}
		return
	}

	respond.OK(c, gin.H{
		"classificationId": classification.ExternalID,
		"status":           classification.Status,
	})
}

func (h *Handler) delete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if isStaff(c) {
		userID = ""
	}

	if err := h.Svc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotOwner):
			respond.Error(c, http.StatusNotFound, "not_found", "classification not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete classification", nil)
		}
		return
	}

	respond.JSON(c, http.StatusNoContent, nil)
}

func isStaff(c *gin.Context) bool {
	for _, role := range middleware.RolesFromContext(c) {
		if role == "admin" || role == "staff" {
			return true
		}
	}
	return false
}

func isImageName(name string) bool {
	ext := strings.ToLower(name)
	for _, suffix := range []string{".jpg", ".jpeg", ".png", ".webp", ".bmp", ".tiff"} {
		if strings.HasSuffix(ext, suffix) {
			return true
		}
	}
	return false
}
