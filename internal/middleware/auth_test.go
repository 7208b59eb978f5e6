package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/Monthlyaway/ishort/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccounts map[string]*model.UserAccount

func (f fakeAccounts) GetByUID(_ context.Context, uid string) (*model.UserAccount, error) {
	return f[uid], nil
}

type fakeChecker map[string]bool

func (f fakeChecker) Check(_ context.Context, uid string) service.BanStatus {
	return service.BanStatus{Banned: f[uid]}
}

func newTestEngine(t *testing.T, accounts fakeAccounts, banned fakeChecker) (*gin.Engine, *service.Sessions) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions := service.NewSessions("test-secret", time.Hour)
	auth := NewAuth(sessions, accounts, "auth_token")

	r := gin.New()
	r.Use(auth.Session())
	r.GET("/public", func(c *gin.Context) {
		uid := ""
		if u := CurrentUser(c); u != nil {
			uid = u.UID
		}
		c.String(http.StatusOK, uid)
	})

	dash := r.Group("/dashboard", auth.RequireUser(), BanGate(banned))
	dash.GET("/links", func(c *gin.Context) { c.String(http.StatusOK, "links") })
	dash.GET("/admin/users", RequireAdmin(), func(c *gin.Context) { c.String(http.StatusOK, "users") })
	return r, sessions
}

func request(t *testing.T, r http.Handler, path string, token string, jsonClient bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	}
	if jsonClient {
		req.Header.Set("Accept", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionLoadsAccount(t *testing.T) {
	alice := &model.UserAccount{UID: "u-alice", Email: "alice@example.com", Role: model.RoleUser}
	r, sessions := newTestEngine(t, fakeAccounts{"u-alice": alice}, fakeChecker{})

	token, _, err := sessions.Issue(alice)
	require.NoError(t, err)

	w := request(t, r, "/public", token, false)
	assert.Equal(t, "u-alice", w.Body.String())

	w = request(t, r, "/public", "garbage", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestSessionRejectsRevokedVersion(t *testing.T) {
	alice := &model.UserAccount{UID: "u-alice", Email: "alice@example.com", Role: model.RoleUser}
	r, sessions := newTestEngine(t, fakeAccounts{"u-alice": alice}, fakeChecker{})

	old, _, err := sessions.Issue(alice)
	require.NoError(t, err)

	alice.SessionVersion++
	w := request(t, r, "/public", old, false)
	assert.Empty(t, w.Body.String())
	w = request(t, r, "/dashboard/links", old, true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	fresh, _, err := sessions.Issue(alice)
	require.NoError(t, err)
	w = request(t, r, "/public", fresh, false)
	assert.Equal(t, "u-alice", w.Body.String())
}

func TestBearerTokenAccepted(t *testing.T) {
	alice := &model.UserAccount{UID: "u-alice", Role: model.RoleUser}
	r, sessions := newTestEngine(t, fakeAccounts{"u-alice": alice}, fakeChecker{})
	token, _, err := sessions.Issue(alice)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/links", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireUser(t *testing.T) {
	r, _ := newTestEngine(t, fakeAccounts{}, fakeChecker{})

	w := request(t, r, "/dashboard/links", "", false)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/signin", w.Header().Get("Location"))

	w = request(t, r, "/dashboard/links", "", true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBanGate(t *testing.T) {
	bob := &model.UserAccount{UID: "u-bob", Role: model.RoleUser}
	r, sessions := newTestEngine(t, fakeAccounts{"u-bob": bob}, fakeChecker{"u-bob": true})
	token, _, err := sessions.Issue(bob)
	require.NoError(t, err)

	w := request(t, r, "/dashboard/links", token, false)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/banned", w.Header().Get("Location"))

	w = request(t, r, "/dashboard/links", token, true)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect":"/banned"`)

	// the public surface stays reachable and the session is kept
	w = request(t, r, "/public", token, false)
	assert.Equal(t, "u-bob", w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	user := &model.UserAccount{UID: "u-user", Role: model.RoleUser}
	admin := &model.UserAccount{UID: "u-admin", Role: model.RoleAdmin}
	r, sessions := newTestEngine(t, fakeAccounts{"u-user": user, "u-admin": admin}, fakeChecker{})

	userToken, _, err := sessions.Issue(user)
	require.NoError(t, err)
	adminToken, _, err := sessions.Issue(admin)
	require.NoError(t, err)

	w := request(t, r, "/dashboard/admin/users", userToken, false)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/forbidden", w.Header().Get("Location"))

	w = request(t, r, "/dashboard/admin/users", adminToken, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "users", w.Body.String())
}
