package handler

import (
	"github.com/Monthlyaway/ishort/internal/logger"
	"github.com/Monthlyaway/ishort/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RateLimits holds the optional limiters. Endpoints is keyed by route path.
type RateLimits struct {
	Global    *middleware.RateLimiter
	Endpoints map[string]*middleware.RateLimiter
}

func (r *RateLimits) endpoint(path string) []gin.HandlerFunc {
	if r == nil {
		return nil
	}
	if l, found := r.Endpoints[path]; found {
		return []gin.HandlerFunc{l.Middleware()}
	}
	return nil
}

// Router wires handlers and middleware into a gin engine
type Router struct {
	Session   *middleware.Auth
	Gate      middleware.BanChecker
	Pages     *PageHandler
	Auth      *AuthHandler
	Redirect  *RedirectHandler
	Links     *LinkHandler
	Analytics *AnalyticsHandler
	Profile   *ProfileHandler
	Admin     *AdminHandler
	RateLimit *RateLimits

	// GateSlugRoute also applies the ban gate to /:slug for signed-in visitors
	GateSlugRoute bool
}

// Engine builds the gin engine
func (rt *Router) Engine() *gin.Engine {
	router := gin.New()
	router.SetHTMLTemplate(Templates())
	router.Use(gin.Recovery(), logger.GinLogger())
	if rt.RateLimit != nil && rt.RateLimit.Global != nil {
		router.Use(rt.RateLimit.Global.Middleware())
	}
	router.Use(rt.Session.Session())

	router.GET("/health", rt.Pages.HealthCheck)
	router.GET("/", rt.Pages.Landing)
	router.GET("/banned", rt.Pages.Banned)
	router.GET("/forbidden", rt.Pages.Forbidden)

	auth := router.Group("/auth")
	{
		auth.GET("/signin", rt.Auth.SignInPage)
		auth.POST("/signin", rt.with("/auth/signin", rt.Auth.SignIn)...)
		auth.POST("/signup", rt.with("/auth/signup", rt.Auth.SignUp)...)
		auth.POST("/signout", rt.Auth.SignOut)
		auth.GET("/me", rt.Auth.Me)
		auth.GET("/google/login", rt.Auth.GoogleLogin)
		auth.GET("/google/callback", rt.Auth.GoogleCallback)
	}

	dashboard := router.Group("/dashboard", rt.Session.RequireUser(), middleware.BanGate(rt.Gate))
	{
		dashboard.GET("/links", rt.Links.List)
		dashboard.POST("/links", rt.with("/dashboard/links", rt.Links.Create)...)
		dashboard.GET("/links/:id", rt.Links.Get)
		dashboard.PUT("/links/:id", rt.Links.Update)
		dashboard.DELETE("/links/:id", rt.Links.Delete)
		dashboard.GET("/links/:id/qr", rt.Links.QRCode)

		dashboard.GET("/analytics", rt.Analytics.Get)

		dashboard.GET("/profile", rt.Profile.Get)
		dashboard.PUT("/profile", rt.Profile.Update)
		dashboard.DELETE("/profile", rt.Profile.Delete)
		dashboard.PUT("/profile/password", rt.Profile.ChangePassword)

		admin := dashboard.Group("/admin", middleware.RequireAdmin())
		{
			admin.GET("/users", rt.Admin.ListUsers)
			admin.PUT("/users/:uid/role", rt.Admin.SetRole)
			admin.PUT("/users/:uid/plan", rt.Admin.SetPlan)
			admin.POST("/users/:uid/ban", rt.Admin.Ban)
			admin.DELETE("/users/:uid/ban", rt.Admin.Unban)
			admin.DELETE("/users/:uid", rt.Admin.DeleteUser)
			admin.GET("/links", rt.Admin.ListLinks)
			admin.DELETE("/links", rt.Admin.DeleteAllLinks)
		}
	}

	slug := []gin.HandlerFunc{}
	if rt.GateSlugRoute {
		slug = append(slug, middleware.BanGate(rt.Gate))
	}
	router.GET("/:slug", append(rt.with("/:slug", slug...), rt.Redirect.Redirect)...)
	router.POST("/:slug", append(rt.with("/:slug", slug...), rt.Redirect.Unlock)...)

	return router
}

// with prefixes handlers with the endpoint limiter of path, if any
func (rt *Router) with(path string, handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	return append(rt.RateLimit.endpoint(path), handlers...)
}
