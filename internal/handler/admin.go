package handler

import (
	"net/http"

	"github.com/Monthlyaway/ishort/internal/middleware"
	"github.com/Monthlyaway/ishort/internal/service"
	"github.com/gin-gonic/gin"
)

// AdminHandler serves the admin views
type AdminHandler struct {
	admin *service.AdminService
	links *LinkHandler
}

// NewAdminHandler creates a new admin handler instance
func NewAdminHandler(admin *service.AdminService, links *LinkHandler) *AdminHandler {
	return &AdminHandler{admin: admin, links: links}
}

// RoleRequest represents the request body for a role change
type RoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// PlanRequest represents the request body for a plan change
type PlanRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// ListUsers handles GET /dashboard/admin/users?q=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := page(c)
	users, total, err := h.admin.ListUsers(c.Request.Context(), c.Query("q"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, ListResponse{Items: users, Total: total, Limit: limit, Offset: offset})
}

// SetRole handles PUT /dashboard/admin/users/:uid/role
func (h *AdminHandler) SetRole(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.admin.SetRole(c.Request.Context(), c.Param("uid"), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, user)
}

// SetPlan handles PUT /dashboard/admin/users/:uid/plan
func (h *AdminHandler) SetPlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.admin.SetPlan(c.Request.Context(), c.Param("uid"), req.Plan)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, user)
}

// Ban handles POST /dashboard/admin/users/:uid/ban
func (h *AdminHandler) Ban(c *gin.Context) {
	var req service.BanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ban, err := h.admin.Ban(c.Request.Context(), middleware.CurrentUser(c), c.Param("uid"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, ban)
}

// Unban handles DELETE /dashboard/admin/users/:uid/ban
func (h *AdminHandler) Unban(c *gin.Context) {
	if err := h.admin.Unban(c.Request.Context(), c.Param("uid")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Message: "User unbanned"})
}

// DeleteUser handles DELETE /dashboard/admin/users/:uid
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.admin.DeleteUser(c.Request.Context(), middleware.CurrentUser(c), c.Param("uid")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Message: "User deleted"})
}

// ListLinks handles GET /dashboard/admin/links
func (h *AdminHandler) ListLinks(c *gin.Context) {
	limit, offset := page(c)
	links, total, err := h.links.links.ListAll(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, ListResponse{Items: h.links.views(links), Total: total, Limit: limit, Offset: offset})
}

// DeleteAllLinks handles DELETE /dashboard/admin/links
func (h *AdminHandler) DeleteAllLinks(c *gin.Context) {
	n, err := h.links.links.DeleteAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": n})
}
