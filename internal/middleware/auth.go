package middleware

import (
	"net/http"
	"strings"

	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/Monthlyaway/ishort/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const currentUserKey = "currentUser"

// SessionParser verifies session tokens
type SessionParser interface {
	Parse(token string) (*service.SessionClaims, error)
}

// Auth resolves the signed-in account of a request
type Auth struct {
	sessions   SessionParser
	users      service.AccountLookup
	cookieName string
}

// NewAuth creates the session middleware
func NewAuth(sessions SessionParser, users service.AccountLookup, cookieName string) *Auth {
	return &Auth{sessions: sessions, users: users, cookieName: cookieName}
}

// Session loads the account behind the session cookie or bearer token.
// Requests without a valid session continue anonymously.
func (a *Auth) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := a.token(c)
		if token == "" {
			c.Next()
			return
		}
		claims, err := a.sessions.Parse(token)
		if err != nil {
			c.Next()
			return
		}
		user, err := a.users.GetByUID(c.Request.Context(), claims.Subject)
		if err != nil {
			log.Error().Err(err).Str("uid", claims.Subject).Msg("failed to load session account")
		}
		if claims.Current(user) {
			c.Set(currentUserKey, user)
		}
		c.Next()
	}
}

// RequireUser rejects anonymous requests. API clients get 401, browsers are
// sent to the sign-in page.
func (a *Auth) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) != nil {
			c.Next()
			return
		}
		if WantsJSON(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "Sign in required",
			})
			return
		}
		c.Redirect(http.StatusFound, "/auth/signin")
		c.Abort()
	}
}

func (a *Auth) token(c *gin.Context) string {
	if v, err := c.Cookie(a.cookieName); err == nil && v != "" {
		return v
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// CurrentUser returns the signed-in account, or nil for anonymous requests
func CurrentUser(c *gin.Context) *model.UserAccount {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*model.UserAccount)
	return user
}

// WantsJSON reports whether the client expects a JSON answer rather than a page
func WantsJSON(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		return true
	}
	if strings.HasPrefix(c.ContentType(), "application/json") {
		return true
	}
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest"
}
