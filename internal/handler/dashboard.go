package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Monthlyaway/ishort/internal/cache"
	"github.com/Monthlyaway/ishort/internal/middleware"
	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/Monthlyaway/ishort/internal/service"
	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// LinkHandler handles the dashboard link CRUD
type LinkHandler struct {
	links  *service.LinkService
	qr     *cache.QRCache
	qrSize int
}

// NewLinkHandler creates a new link handler instance. qr may be nil.
func NewLinkHandler(links *service.LinkService, qr *cache.QRCache, qrSize int) *LinkHandler {
	if qrSize <= 0 {
		qrSize = 256
	}
	return &LinkHandler{links: links, qr: qr, qrSize: qrSize}
}

// LinkResponse is a link together with its full short URL
type LinkResponse struct {
	*model.ShortLink
	FullURL string `json:"fullUrl"`
}

func (h *LinkHandler) view(link *model.ShortLink) LinkResponse {
	return LinkResponse{ShortLink: link, FullURL: h.links.ShortURL(link.Slug)}
}

func (h *LinkHandler) views(links []model.ShortLink) []LinkResponse {
	out := make([]LinkResponse, 0, len(links))
	for i := range links {
		out = append(out, h.view(&links[i]))
	}
	return out
}

// List handles GET /dashboard/links
func (h *LinkHandler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)
	links, err := h.links.List(c.Request.Context(), user.UID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, h.views(links))
}

// Create handles POST /dashboard/links
func (h *LinkHandler) Create(c *gin.Context) {
	var req service.LinkInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	link, err := h.links.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, h.view(link))
}

// Get handles GET /dashboard/links/:id
func (h *LinkHandler) Get(c *gin.Context) {
	id, valid := linkID(c)
	if !valid {
		return
	}
	link, err := h.links.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, h.view(link))
}

// Update handles PUT /dashboard/links/:id
func (h *LinkHandler) Update(c *gin.Context) {
	id, valid := linkID(c)
	if !valid {
		return
	}
	var req service.LinkInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	link, err := h.links.Update(c.Request.Context(), middleware.CurrentUser(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, h.view(link))
}

// Delete handles DELETE /dashboard/links/:id
func (h *LinkHandler) Delete(c *gin.Context) {
	id, valid := linkID(c)
	if !valid {
		return
	}
	if err := h.links.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Message: "Short link deleted"})
}

// QRCode handles GET /dashboard/links/:id/qr
func (h *LinkHandler) QRCode(c *gin.Context) {
	id, valid := linkID(c)
	if !valid {
		return
	}
	link, err := h.links.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	key := link.Slug + ":" + strconv.Itoa(h.qrSize)
	if h.qr != nil {
		if png, hit := h.qr.Get(key); hit {
			c.Data(http.StatusOK, "image/png", png)
			return
		}
	}
	png, err := qrcode.Encode(h.links.ShortURL(link.Slug), qrcode.Medium, h.qrSize)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.qr != nil {
		h.qr.Set(key, png)
	}
	c.Data(http.StatusOK, "image/png", png)
}

func linkID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Invalid link id")
		return 0, false
	}
	return id, true
}

func page(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// AnalyticsHandler serves the dashboard charts
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler instance
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Get handles GET /dashboard/analytics?days=N
func (h *AnalyticsHandler) Get(c *gin.Context) {
	days := service.DefaultAnalyticsDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}
	result, err := h.analytics.ForUser(c.Request.Context(), middleware.CurrentUser(c).UID, days)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

// ProfileHandler lets users manage their own account
type ProfileHandler struct {
	profiles *service.ProfileService
	cookie   CookieConfig
}

// NewProfileHandler creates a new profile handler instance
func NewProfileHandler(profiles *service.ProfileService, cookie CookieConfig) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, cookie: cookie}
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// DeleteAccountRequest carries the re-authentication for self-delete:
// the password for credential accounts, the email for Google accounts
type DeleteAccountRequest struct {
	Confirmation string `json:"confirmation" binding:"required"`
}

// Get handles GET /dashboard/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	user, err := h.profiles.Get(c.Request.Context(), middleware.CurrentUser(c).UID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, user)
}

// Update handles PUT /dashboard/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	var req service.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.profiles.Update(c.Request.Context(), middleware.CurrentUser(c).UID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, user)
}

// ChangePassword handles PUT /dashboard/profile/password. The session ends on success.
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := h.profiles.ChangePassword(c.Request.Context(), middleware.CurrentUser(c).UID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}
	h.cookie.clear(c)
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Message: "Password changed. Please sign in again."})
}

// Delete handles DELETE /dashboard/profile
func (h *ProfileHandler) Delete(c *gin.Context) {
	var req DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := h.profiles.Delete(c.Request.Context(), middleware.CurrentUser(c).UID, req.Confirmation)
	if errors.Is(err, service.ErrInvalidCredentials) {
		fail(c, http.StatusUnauthorized, "Confirmation does not match")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	h.cookie.clear(c)
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Message: "Account deleted"})
}
