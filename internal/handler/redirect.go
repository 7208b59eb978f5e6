package handler

import (
	"errors"
	"net/http"

	"github.com/Monthlyaway/ishort/internal/middleware"
	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/Monthlyaway/ishort/internal/service"
	"github.com/gin-gonic/gin"
)

// RedirectHandler serves GET and POST /:slug
type RedirectHandler struct {
	resolver *service.Resolver
}

// NewRedirectHandler creates a new redirect handler instance
func NewRedirectHandler(resolver *service.Resolver) *RedirectHandler {
	return &RedirectHandler{resolver: resolver}
}

// UnlockRequest is the password form of a protected link
type UnlockRequest struct {
	Password string `json:"password" form:"password"`
}

type promptView struct {
	Slug  string `json:"shortUrl"`
	Title string `json:"title"`
	Error string `json:"error,omitempty"`
}

// Redirect handles GET /:slug
func (h *RedirectHandler) Redirect(c *gin.Context) {
	link, ok := h.resolve(c)
	if !ok {
		return
	}
	if link.IsPasswordProtected {
		h.prompt(c, http.StatusOK, link, "")
		return
	}
	h.follow(c, link)
}

// Unlock handles POST /:slug
func (h *RedirectHandler) Unlock(c *gin.Context) {
	link, ok := h.resolve(c)
	if !ok {
		return
	}

	var req UnlockRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.resolver.Unlock(link, req.Password); err != nil {
		if errors.Is(err, service.ErrVerificationFailed) {
			h.prompt(c, http.StatusUnauthorized, link, "Incorrect password")
			return
		}
		respondError(c, err)
		return
	}
	h.follow(c, link)
}

func (h *RedirectHandler) resolve(c *gin.Context) (*model.ShortLink, bool) {
	slug := c.Param("slug")
	link, err := h.resolver.Resolve(c.Request.Context(), slug)
	if err == nil {
		return link, true
	}
	if !errors.Is(err, service.ErrLinkNotFound) {
		respondError(c, err)
		return nil, false
	}
	if middleware.WantsJSON(c) {
		fail(c, http.StatusNotFound, "Short URL not found")
	} else {
		c.HTML(http.StatusNotFound, "notfound.html", gin.H{"Slug": slug})
	}
	return nil, false
}

func (h *RedirectHandler) prompt(c *gin.Context, status int, link *model.ShortLink, msg string) {
	view := promptView{Slug: link.Slug, Title: link.Title, Error: msg}
	if middleware.WantsJSON(c) {
		c.JSON(status, Response{Code: status, Message: msg, Data: view})
		return
	}
	c.HTML(status, "password.html", view)
}

// follow records the click without waiting for it and redirects
func (h *RedirectHandler) follow(c *gin.Context, link *model.ShortLink) {
	v := service.Visitor{UserAgent: c.Request.UserAgent(), IP: c.ClientIP()}
	if user := middleware.CurrentUser(c); user != nil {
		v.UserID = user.UID
		v.Email = user.Email
	}
	h.resolver.RecordClick(link, v)
	c.Redirect(http.StatusFound, link.LongURL)
}
