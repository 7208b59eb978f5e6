package middleware

import (
	"context"
	"net/http"

	"github.com/Monthlyaway/ishort/internal/service"
	"github.com/gin-gonic/gin"
)

// BanChecker reports the ban status of a uid
type BanChecker interface {
	Check(ctx context.Context, uid string) service.BanStatus
}

// BanGate sends banned signed-in accounts to /banned. Anonymous requests pass.
// The session itself is left intact.
func BanGate(checker BanChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.Next()
			return
		}
		if !checker.Check(c.Request.Context(), user.UID).Banned {
			c.Next()
			return
		}
		deny(c, "/banned", "Account is banned")
	}
}

// RequireAdmin sends signed-in non-admins to /forbidden
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user != nil && user.IsAdmin() {
			c.Next()
			return
		}
		deny(c, "/forbidden", "Admin role required")
	}
}

func deny(c *gin.Context, page, message string) {
	if WantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code":    http.StatusForbidden,
			"message": message,
			"data":    gin.H{"redirect": page},
		})
		return
	}
	c.Redirect(http.StatusFound, page)
	c.Abort()
}
