package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Monthlyaway/ishort/config"
	"github.com/Monthlyaway/ishort/internal/cache"
	"github.com/Monthlyaway/ishort/internal/filter"
	"github.com/Monthlyaway/ishort/internal/handler"
	"github.com/Monthlyaway/ishort/internal/logger"
	"github.com/Monthlyaway/ishort/internal/middleware"
	"github.com/Monthlyaway/ishort/internal/repository"
	"github.com/Monthlyaway/ishort/internal/service"
	"github.com/Monthlyaway/ishort/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	// Initialize Snowflake ID generator
	if err := utils.InitSnowflake(cfg.Snowflake.DatacenterID, cfg.Snowflake.WorkerID); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize snowflake")
	}

	// Initialize database
	db, err := repository.Open(cfg.Database.Driver, cfg.DatabaseDSN(),
		cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns, cfg.Database.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open database")
	}
	store := repository.NewStore(db)

	// Redis is optional. A literal nil keeps the cache interface nil when it is off.
	var (
		linkCache   service.LinkCache
		redisCache  *cache.RedisCache
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(cfg.Redis.Addr(), cfg.Redis.Password,
			cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.TTL)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr()).Msg("failed to connect to redis")
		}
		linkCache = redisCache
		redisClient = redisCache.GetClient()
	}

	qrCache, err := cache.NewQRCache(cfg.QR.CacheMB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create qr cache")
	}

	// Services
	slugs := filter.NewSlugFilter(cfg.BloomFilter.Capacity, cfg.BloomFilter.FalsePositiveRate)
	links := service.NewLinkService(store, linkCache, slugs, cfg.BaseURL())
	var resolveFilter *filter.SlugFilter
	if cfg.BloomFilter.GuardResolve {
		resolveFilter = slugs
	}
	resolver := service.NewResolver(store, linkCache, resolveFilter)
	admin := service.NewAdminService(store, linkCache)
	sessions := service.NewSessions(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	gate := service.NewGate(store.Bans, store.Users)

	var oauthCfg *oauth2.Config
	if cfg.Google.ClientID != "" {
		oauthCfg = &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	auth := service.NewAuthService(store.Users, oauthCfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := links.LoadFilter(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load slug filter")
	}
	if err := auth.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		log.Error().Err(err).Msg("failed to bootstrap admin account")
	}
	cancel()

	gin.SetMode(cfg.Server.Mode)

	cookie := handler.CookieConfig{Name: cfg.Auth.CookieName, Secure: cfg.IsProduction()}
	linkHandler := handler.NewLinkHandler(links, qrCache, cfg.QR.Size)
	router := &handler.Router{
		Session:       middleware.NewAuth(sessions, store.Users, cfg.Auth.CookieName),
		Gate:          gate,
		Pages:         handler.NewPageHandler(gate, store, auth.GoogleEnabled()),
		Auth:          handler.NewAuthHandler(auth, sessions, cookie),
		Redirect:      handler.NewRedirectHandler(resolver),
		Links:         linkHandler,
		Analytics:     handler.NewAnalyticsHandler(service.NewAnalyticsService(store)),
		Profile:       handler.NewProfileHandler(service.NewProfileService(store, admin), cookie),
		Admin:         handler.NewAdminHandler(admin, linkHandler),
		RateLimit:     rateLimits(cfg.RateLimit, redisClient),
		GateSlugRoute: cfg.Auth.GateSlugRoute,
	}

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("base_url", cfg.BaseURL()).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	resolver.Wait()
	qrCache.Close()
	if redisCache != nil {
		_ = redisCache.Close()
	}
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
	}
	log.Info().Msg("server exited")
}

// rateLimits builds the global and per-endpoint limiters, or nil when disabled
func rateLimits(cfg config.RateLimitConfig, client *redis.Client) *handler.RateLimits {
	if !cfg.Enabled {
		return nil
	}
	strategy := middleware.ParseStrategy(cfg.Strategy)
	log.Info().Str("strategy", string(strategy)).Bool("redis", client != nil).Msg("rate limiting enabled")

	limits := &handler.RateLimits{Endpoints: make(map[string]*middleware.RateLimiter)}
	if cfg.Global.Limit > 0 {
		limits.Global = middleware.NewRateLimiter(client, &middleware.RateLimitConfig{
			Strategy: strategy,
			Limit:    cfg.Global.Limit,
			Window:   time.Duration(cfg.Global.Window) * time.Second,
			SkipFunc: middleware.SkipHealthCheck,
		})
	}
	for _, ep := range cfg.Endpoints {
		limits.Endpoints[ep.Path] = middleware.NewRateLimiter(client, &middleware.RateLimitConfig{
			Strategy: strategy,
			Limit:    ep.Limit,
			Window:   time.Duration(ep.Window) * time.Second,
			KeyFunc:  middleware.UserOrIPKey,
		})
	}
	return limits
}
