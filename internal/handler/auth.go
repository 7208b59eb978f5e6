package handler

import (
	"net/http"
	"time"

	"github.com/Monthlyaway/ishort/internal/middleware"
	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/Monthlyaway/ishort/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const oauthStateCookie = "oauth_state"

// AuthHandler handles sign-up, sign-in and sign-out
type AuthHandler struct {
	auth     *service.AuthService
	sessions *service.Sessions
	cookie   CookieConfig
}

// CookieConfig describes the session cookie
type CookieConfig struct {
	Name   string
	Secure bool
}

// NewAuthHandler creates a new auth handler instance
func NewAuthHandler(auth *service.AuthService, sessions *service.Sessions, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, cookie: cookie}
}

// SignInRequest represents the request body for signing in
type SignInRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// SignUp handles POST /auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req service.SignUpInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.auth.SignUp(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	ok(c, http.StatusCreated, user)
}

// SignInPage handles GET /auth/signin
func (h *AuthHandler) SignInPage(c *gin.Context) {
	if middleware.CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, "/dashboard/links")
		return
	}
	c.HTML(http.StatusOK, "signin.html", gin.H{"Google": h.auth.GoogleEnabled()})
}

// SignIn handles POST /auth/signin. Form posts are answered with a page,
// JSON posts with the account.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if !middleware.WantsJSON(c) && statusOf(err) == http.StatusUnauthorized {
			c.HTML(http.StatusUnauthorized, "signin.html", gin.H{
				"Error":  err.Error(),
				"Email":  req.Email,
				"Google": h.auth.GoogleEnabled(),
			})
			return
		}
		respondError(c, err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	if !middleware.WantsJSON(c) {
		c.Redirect(http.StatusFound, "/dashboard/links")
		return
	}
	ok(c, http.StatusOK, user)
}

// SignOut handles POST /auth/signout
func (h *AuthHandler) SignOut(c *gin.Context) {
	h.cookie.clear(c)
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, Response{Code: http.StatusOK, Message: "Signed out"})
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		fail(c, http.StatusUnauthorized, "Not signed in")
		return
	}
	ok(c, http.StatusOK, user)
}

// GoogleLogin handles GET /auth/google/login
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	state := uuid.NewString()
	url, err := h.auth.GoogleAuthURL(state)
	if err != nil {
		respondError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, int((10 * time.Minute).Seconds()), "/auth/google", "", h.cookie.Secure, true)
	c.Redirect(http.StatusFound, url)
}

// GoogleCallback handles GET /auth/google/callback
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	state, err := c.Cookie(oauthStateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		fail(c, http.StatusBadRequest, "Invalid OAuth state")
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/auth/google", "", h.cookie.Secure, true)

	if e := c.Query("error"); e != "" {
		log.Warn().Str("error", e).Msg("google sign-in declined")
		c.Redirect(http.StatusFound, "/auth/signin")
		return
	}

	user, err := h.auth.GoogleSignIn(c.Request.Context(), c.Query("code"))
	if err != nil {
		log.Warn().Err(err).Msg("google sign-in failed")
		respondError(c, err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	c.Redirect(http.StatusFound, "/dashboard/links")
}

func (h *AuthHandler) startSession(c *gin.Context, user *model.UserAccount) bool {
	token, expires, err := h.sessions.Issue(user)
	if err != nil {
		respondError(c, err)
		return false
	}
	h.cookie.set(c, token, expires)
	return true
}

func (cc CookieConfig) set(c *gin.Context, token string, expires time.Time) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cc.Name, token, int(time.Until(expires).Seconds()), "/", "", cc.Secure, true)
}

func (cc CookieConfig) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cc.Name, "", -1, "/", "", cc.Secure, true)
}
