package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis starts an in-memory Redis for the test
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

// setupTestRouter creates a Gin router with rate limiting
func setupTestRouter(limiter *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(limiter.Middleware())

	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func doGet(router http.Handler, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if ip != "" {
		req.RemoteAddr = ip + ":1234"
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStrategiesEnforceLimit(t *testing.T) {
	for _, strategy := range []RateLimitStrategy{FixedWindow, SlidingWindow, TokenBucket, Local} {
		t.Run(string(strategy), func(t *testing.T) {
			client, _ := setupTestRedis(t)
			limiter := NewRateLimiter(client, &RateLimitConfig{
				Strategy: strategy,
				Limit:    5,
				Window:   time.Hour,
			})
			router := setupTestRouter(limiter)

			for i := 0; i < 5; i++ {
				w := doGet(router, "/test", "")
				assert.Equal(t, http.StatusOK, w.Code, "request %d should succeed", i+1)
				assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
			}

			w := doGet(router, "/test", "")
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
			assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

			retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, retry, 0)
		})
	}
}

func TestRemainingDecreases(t *testing.T) {
	client, _ := setupTestRedis(t)
	router := setupTestRouter(NewRateLimiter(client, &RateLimitConfig{
		Strategy: SlidingWindow,
		Limit:    3,
		Window:   time.Hour,
	}))

	assert.Equal(t, "2", doGet(router, "/test", "").Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1", doGet(router, "/test", "").Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "0", doGet(router, "/test", "").Header().Get("X-RateLimit-Remaining"))
}

func TestKeysAreIsolatedPerClient(t *testing.T) {
	client, _ := setupTestRedis(t)
	router := setupTestRouter(NewRateLimiter(client, &RateLimitConfig{
		Strategy: FixedWindow,
		Limit:    1,
		Window:   time.Hour,
	}))

	assert.Equal(t, http.StatusOK, doGet(router, "/test", "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doGet(router, "/test", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, doGet(router, "/test", "10.0.0.2").Code)
}

func TestSkipHealthCheck(t *testing.T) {
	client, _ := setupTestRedis(t)
	router := setupTestRouter(NewRateLimiter(client, &RateLimitConfig{
		Strategy: FixedWindow,
		Limit:    1,
		Window:   time.Hour,
		SkipFunc: SkipHealthCheck,
	}))

	for i := 0; i < 3; i++ {
		w := doGet(router, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestCustomErrorHandler(t *testing.T) {
	client, _ := setupTestRedis(t)
	router := setupTestRouter(NewRateLimiter(client, &RateLimitConfig{
		Strategy: TokenBucket,
		Limit:    1,
		Window:   time.Hour,
		ErrorHandler: func(c *gin.Context) {
			c.String(http.StatusServiceUnavailable, "slow down")
		},
	}))

	doGet(router, "/test", "")
	w := doGet(router, "/test", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "slow down", w.Body.String())
}

func TestRedisFailureAllowsRequests(t *testing.T) {
	client, mr := setupTestRedis(t)
	router := setupTestRouter(NewRateLimiter(client, &RateLimitConfig{
		Strategy: SlidingWindow,
		Limit:    1,
		Window:   time.Hour,
	}))
	mr.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(router, "/test", "").Code)
	}
}

func TestNilClientFallsBackToLocal(t *testing.T) {
	router := setupTestRouter(NewRateLimiter(nil, &RateLimitConfig{
		Strategy: FixedWindow,
		Limit:    2,
		Window:   time.Hour,
	}))

	assert.Equal(t, http.StatusOK, doGet(router, "/test", "").Code)
	assert.Equal(t, http.StatusOK, doGet(router, "/test", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, doGet(router, "/test", "").Code)
}

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, TokenBucket, ParseStrategy("token_bucket"))
	assert.Equal(t, Local, ParseStrategy("local"))
	assert.Equal(t, SlidingWindow, ParseStrategy("bogus"))
}
