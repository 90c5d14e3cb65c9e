package roles

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"grainlab-backend/internal/shared/server/middleware"
	"grainlab-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the roles service. Everything here is
// admin-only: role edits change who can reach the staff API.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("", middleware.RequireRole("admin"))
	admin.POST("/roles", h.createRole)
	admin.GET("/roles", h.listRoles)
	admin.GET("/roles/:id", h.getRole)
	admin.PUT("/roles/:id", h.updateRole)
	admin.DELETE("/roles/:id", h.deleteRole)
	admin.PUT("/roles/:id/permissions", h.setPermissions)

	admin.POST("/permissions", h.createPermission)
	admin.GET("/permissions", h.listPermissions)
	admin.DELETE("/permissions/:id", h.deletePermission)

	admin.POST("/users/:id/roles", h.assign)
	admin.DELETE("/users/:id/roles/:roleId", h.remove)
}

type roleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) createRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "name is required", nil)
		return
	}
	role, err := h.Svc.CreateRole(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		h.writeError(c, err, "failed to create role")
		return
	}
	respond.JSON(c, http.StatusCreated, role)
}

func (h *Handler) listRoles(c *gin.Context) {
	list, err := h.Svc.ListRoles(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list roles", nil)
		return
	}
	respond.OK(c, list)
}

func (h *Handler) getRole(c *gin.Context) {
	role, err := h.Svc.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to fetch role")
		return
	}
	respond.OK(c, role)
}

func (h *Handler) updateRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "name is required", nil)
		return
	}
	role, err := h.Svc.UpdateRole(c.Request.Context(), c.Param("id"), req.Name, req.Description)
	if err != nil {
		h.writeError(c, err, "failed to update role")
		return
	}
	respond.OK(c, role)
}

func (h *Handler) deleteRole(c *gin.Context) {
	if err := h.Svc.DeleteRole(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err, "failed to delete role")
		return
	}
	respond.JSON(c, http.StatusNoContent, nil)
}

type setPermissionsRequest struct {
	PermissionIDs []string `json:"permissionIds"`
}

func (h *Handler) setPermissions(c *gin.Context) {
	var req setPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	role, err := h.Svc.SetRolePermissions(c.Request.Context(), c.Param("id"), req.PermissionIDs)
	if err != nil {
		h.writeError(c, err, "failed to set role permissions")
		return
	}
	respond.OK(c, role)
}

func (h *Handler) createPermission(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "name is required", nil)
		return
	}
	perm, err := h.Svc.CreatePermission(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		h.writeError(c, err, "failed to create permission")
		return
	}
	respond.JSON(c, http.StatusCreated, perm)
}

func (h *Handler) listPermissions(c *gin.Context) {
	list, err := h.Svc.ListPermissions(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list permissions", nil)
		return
	}
	respond.OK(c, list)
}

func (h *Handler) deletePermission(c *gin.Context) {
	if err := h.Svc.DeletePermission(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err, "failed to delete permission")
		return
	}
	respond.JSON(c, http.StatusNoContent, nil)
}

type assignRequest struct {
	RoleID string `json:"roleId"`
}

func (h *Handler) assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RoleID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "roleId is required", nil)
		return
	}
	if err := h.Svc.AssignToUser(c.Request.Context(), c.Param("id"), req.RoleID); err != nil {
		h.writeError(c, err, "failed to assign role")
		return
	}
	respond.JSON(c, http.StatusNoContent, nil)
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.Svc.RemoveFromUser(c.Request.Context(), c.Param("id"), c.Param("roleId")); err != nil {
		h.writeError(c, err, "failed to remove role")
		return
	}
	respond.JSON(c, http.StatusNoContent, nil)
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrRoleNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "role not found", nil)
	case errors.Is(err, ErrPermissionNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "permission not found", nil)
	case errors.Is(err, ErrDuplicateName):
		respond.Error(c, http.StatusConflict, "conflict", "name already exists", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
