package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Monthlyaway/ishort/internal/cache"
	"github.com/Monthlyaway/ishort/internal/filter"
	"github.com/Monthlyaway/ishort/internal/middleware"
	"github.com/Monthlyaway/ishort/internal/model"
	"github.com/Monthlyaway/ishort/internal/repository"
	"github.com/Monthlyaway/ishort/internal/service"
	"github.com/Monthlyaway/ishort/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cookieName = "auth_token"

type testApp struct {
	t        *testing.T
	engine   *gin.Engine
	store    *repository.Store
	resolver *service.Resolver
	auth     *service.AuthService
	admin    *service.AdminService
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, utils.InitSnowflake(1, 1))

	db, err := repository.OpenInMemory(fmt.Sprintf("handler_%s_%d", t.Name(), time.Now().UnixNano()))
	require.NoError(t, err)
	store := repository.NewStore(db)

	slugs := filter.NewSlugFilter(10000, 0.001)
	qr, err := cache.NewQRCache(1)
	require.NoError(t, err)

	sessions := service.NewSessions("test-secret", time.Hour)
	authSvc := service.NewAuthService(store.Users, nil)
	links := service.NewLinkService(store, nil, slugs, "http://localhost:8080")
	resolver := service.NewResolver(store, nil, slugs)
	adminSvc := service.NewAdminService(store, nil)
	gate := service.NewGate(store.Bans, store.Users)
	cookie := CookieConfig{Name: cookieName}
	linkHandler := NewLinkHandler(links, qr, 128)

	rt := &Router{
		Session:   middleware.NewAuth(sessions, store.Users, cookieName),
		Gate:      gate,
		Pages:     NewPageHandler(gate, store, false),
		Auth:      NewAuthHandler(authSvc, sessions, cookie),
		Redirect:  NewRedirectHandler(resolver),
		Links:     linkHandler,
		Analytics: NewAnalyticsHandler(service.NewAnalyticsService(store)),
		Profile:   NewProfileHandler(service.NewProfileService(store, adminSvc), cookie),
		Admin:     NewAdminHandler(adminSvc, linkHandler),
	}

	app := &testApp{t: t, engine: rt.Engine(), store: store, resolver: resolver, auth: authSvc, admin: adminSvc}
	t.Cleanup(func() {
		resolver.Wait()
		qr.Close()
		_ = store.Close()
	})
	return app
}

// signUp registers an account through the API and returns its session token
func (a *testApp) signUp(name, email string) (string, *model.UserAccount) {
	a.t.Helper()
	w := a.do(http.MethodPost, "/auth/signup", "", gin.H{
		"displayName": name,
		"email":       email,
		"password":    "password1",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	var user model.UserAccount
	decode(a.t, w, &user)
	return sessionCookie(a.t, w), &user
}

func (a *testApp) signUpAdmin(email string) (string, *model.UserAccount) {
	a.t.Helper()
	token, user := a.signUp("Admin", email)
	require.NoError(a.t, a.store.Users.UpdateFields(context.Background(), user.UID, map[string]interface{}{"role": model.RoleAdmin}))
	return token, user
}

// do sends a JSON request
func (a *testApp) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

// browse sends a browser request
func (a *testApp) browse(method, path, token, form string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(form))
	if form != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testApp) createLink(token string, body gin.H) LinkResponse {
	a.t.Helper()
	w := a.do(http.MethodPost, "/dashboard/links", token, body)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var link LinkResponse
	decode(a.t, w, &link)
	return link
}

func (a *testApp) clicks(slug string) uint64 {
	a.t.Helper()
	a.resolver.Wait()
	link, err := a.store.Links.GetBySlug(context.Background(), slug)
	require.NoError(a.t, err)
	require.NotNil(a.t, link)
	return link.Clicks
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) {
	t.Helper()
	var resp struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, data))
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			return c.Value
		}
	}
	t.Fatalf("no %s cookie in response", cookieName)
	return ""
}

func TestHealthCheck(t *testing.T) {
	app := setupApp(t)
	w := app.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDocsScenario(t *testing.T) {
	app := setupApp(t)
	token, _ := app.signUp("Alice", "alice@example.com")

	link := app.createLink(token, gin.H{
		"title":      "Docs",
		"longUrl":    "https://example.com/docs",
		"customSlug": "docs1",
	})
	assert.Equal(t, "docs1", link.Slug)
	assert.Equal(t, "http://localhost:8080/docs1", link.FullURL)

	w := app.browse(http.MethodGet, "/docs1", "", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/docs", w.Header().Get("Location"))
	assert.Equal(t, uint64(1), app.clicks("docs1"))

	events, err := app.store.Clicks.CountByLink(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), events)
}

func TestSecretScenario(t *testing.T) {
	app := setupApp(t)
	token, _ := app.signUp("Alice", "alice@example.com")
	app.createLink(token, gin.H{
		"title":       "Secret",
		"longUrl":     "https://example.com/secret",
		"customSlug":  "secret1",
		"usePassword": true,
		"password":    "hunter22",
	})

	w := app.browse(http.MethodGet, "/secret1", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `type="password"`)
	assert.Equal(t, uint64(0), app.clicks("secret1"))

	w = app.browse(http.MethodPost, "/secret1", "", "password=wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Incorrect password")
	assert.Equal(t, uint64(0), app.clicks("secret1"))

	w = app.browse(http.MethodPost, "/secret1", "", "password=hunter22")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/secret", w.Header().Get("Location"))
	assert.Equal(t, uint64(1), app.clicks("secret1"))
}

func TestUnknownSlug(t *testing.T) {
	app := setupApp(t)

	w := app.browse(http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Link not found")

	w = app.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSignedInClickRecordsIdentity(t *testing.T) {
	app := setupApp(t)
	token, user := app.signUp("Alice", "alice@example.com")
	link := app.createLink(token, gin.H{"title": "Docs", "longUrl": "https://example.com", "customSlug": "mine"})

	app.browse(http.MethodGet, "/mine", token, "")
	app.resolver.Wait()

	events, err := app.store.Clicks.ListForLinks(context.Background(), []int64{link.ID}, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].UserID)
	assert.Equal(t, user.UID, *events[0].UserID)
}

func TestDuplicateCustomSlug(t *testing.T) {
	app := setupApp(t)
	token, _ := app.signUp("Alice", "alice@example.com")
	app.createLink(token, gin.H{"title": "One", "longUrl": "https://example.com/1", "customSlug": "taken"})

	w := app.do(http.MethodPost, "/dashboard/links", token, gin.H{
		"title": "Two", "longUrl": "https://example.com/2", "customSlug": "taken",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already in use")

	w = app.do(http.MethodGet, "/dashboard/links", token, nil)
	var links []LinkResponse
	decode(t, w, &links)
	assert.Len(t, links, 1)
}

func TestCreateValidation(t *testing.T) {
	app := setupApp(t)
	token, _ := app.signUp("Alice", "alice@example.com")

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing title", gin.H{"title": "", "longUrl": "https://example.com"}},
		{"relative url", gin.H{"title": "x", "longUrl": "/docs"}},
		{"bad scheme", gin.H{"title": "x", "longUrl": "ftp://example.com"}},
		{"slug with space", gin.H{"title": "x", "longUrl": "https://example.com", "customSlug": "a b"}},
		{"reserved slug", gin.H{"title": "x", "longUrl": "https://example.com", "customSlug": "dashboard"}},
		{"short password", gin.H{"title": "x", "longUrl": "https://example.com", "usePassword": true, "password": "123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(http.MethodPost, "/dashboard/links", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestLinkOwnership(t *testing.T) {
	app := setupApp(t)
	alice, _ := app.signUp("Alice", "alice@example.com")
	bob, _ := app.signUp("Bob", "bob@example.com")
	link := app.createLink(alice, gin.H{"title": "Docs", "longUrl": "https://example.com"})
	path := fmt.Sprintf("/dashboard/links/%d", link.ID)

	assert.Equal(t, http.StatusForbidden, app.do(http.MethodGet, path, bob, nil).Code)
	assert.Equal(t, http.StatusForbidden, app.do(http.MethodDelete, path, bob, nil).Code)

	w := app.do(http.MethodPut, path, alice, gin.H{"title": "Renamed", "longUrl": "https://example.com/new"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated LinkResponse
	decode(t, w, &updated)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, link.Slug, updated.Slug)

	assert.Equal(t, http.StatusOK, app.do(http.MethodDelete, path, alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, path, alice, nil).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodGet, "/dashboard/links/abc", alice, nil).Code)
}

func TestQRCode(t *testing.T) {
	app := setupApp(t)
	token, _ := app.signUp("Alice", "alice@example.com")
	link := app.createLink(token, gin.H{"title": "Docs", "longUrl": "https://example.com"})

	for i := 0; i < 2; i++ {
		w := app.do(http.MethodGet, fmt.Sprintf("/dashboard/links/%d/qr", link.ID), token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
	}
}

func TestAnalytics(t *testing.T) {
	app := setupApp(t)
	token, _ := app.signUp("Alice", "alice@example.com")
	app.createLink(token, gin.H{"title": "Docs", "longUrl": "https://example.com", "customSlug": "stats"})
	app.browse(http.MethodGet, "/stats", "", "")
	app.browse(http.MethodGet, "/stats", "", "")
	app.resolver.Wait()

	w := app.do(http.MethodGet, "/dashboard/analytics?days=7", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result service.Analytics
	decode(t, w, &result)
	assert.Equal(t, 1, result.TotalLinks)
	assert.Equal(t, uint64(2), result.TotalClicks)
	assert.Len(t, result.Daily, 7)

	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodGet, "/dashboard/analytics?days=x", token, nil).Code)
}

func TestSignInErrors(t *testing.T) {
	app := setupApp(t)
	app.signUp("Alice", "alice@example.com")

	w := app.do(http.MethodPost, "/auth/signin", "", gin.H{"email": "nobody@example.com", "password": "password1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "not registered")

	w = app.do(http.MethodPost, "/auth/signin", "", gin.H{"email": "alice@example.com", "password": "nope123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "wrong email or password")

	w = app.do(http.MethodPost, "/auth/signin", "", gin.H{"email": "alice@example.com", "password": "password1"})
	require.Equal(t, http.StatusOK, w.Code)
	token := sessionCookie(t, w)

	w = app.do(http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")

	w = app.browse(http.MethodPost, "/auth/signin", "", "email=alice%40example.com&password=password1")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard/links", w.Header().Get("Location"))
}

func TestDuplicateSignUp(t *testing.T) {
	app := setupApp(t)
	app.signUp("Alice", "alice@example.com")
	w := app.do(http.MethodPost, "/auth/signup", "", gin.H{
		"displayName": "Again", "email": "alice@example.com", "password": "password1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDashboardRequiresSignIn(t *testing.T) {
	app := setupApp(t)

	w := app.browse(http.MethodGet, "/dashboard/links", "", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/signin", w.Header().Get("Location"))

	assert.Equal(t, http.StatusUnauthorized, app.do(http.MethodGet, "/dashboard/links", "", nil).Code)
}

func TestBannedUserIsGated(t *testing.T) {
	app := setupApp(t)
	_, admin := app.signUpAdmin("admin@example.com")
	token, bob := app.signUp("Bob", "bob@example.com")
	app.createLink(token, gin.H{"title": "Docs", "longUrl": "https://example.com", "customSlug": "bobs"})

	_, err := app.admin.Ban(context.Background(), admin, bob.UID, service.BanInput{Reason: "spam", Duration: 1, Unit: "hours"})
	require.NoError(t, err)

	w := app.browse(http.MethodGet, "/dashboard/links", token, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/banned", w.Header().Get("Location"))

	w = app.do(http.MethodGet, "/dashboard/links", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.browse(http.MethodGet, "/banned", token, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "spam")

	// public links of a banned owner still resolve for anonymous visitors
	w = app.browse(http.MethodGet, "/bobs", "", "")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestExpiredBanStillBlocks(t *testing.T) {
	app := setupApp(t)
	token, bob := app.signUp("Bob", "bob@example.com")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, app.store.Users.UpdateFields(context.Background(), bob.UID, map[string]interface{}{
		"status":        model.StatusBanned,
		"banned_reason": "old offence",
		"banned_until":  past,
	}))

	w := app.browse(http.MethodGet, "/dashboard/profile", token, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/banned", w.Header().Get("Location"))

	w = app.browse(http.MethodGet, "/banned", token, "")
	assert.Contains(t, w.Body.String(), "ban period has ended")
}

func TestAdminRoutes(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := app.signUpAdmin("admin@example.com")
	userToken, user := app.signUp("Bob", "bob@example.com")

	w := app.browse(http.MethodGet, "/dashboard/admin/users", userToken, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/forbidden", w.Header().Get("Location"))

	w = app.do(http.MethodGet, "/dashboard/admin/users?q=BOB", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []model.UserAccount `json:"items"`
		Total int64               `json:"total"`
	}
	decode(t, w, &list)
	assert.Equal(t, int64(1), list.Total)

	base := "/dashboard/admin/users/" + user.UID
	assert.Equal(t, http.StatusOK, app.do(http.MethodPut, base+"/plan", adminToken, gin.H{"plan": "pro"}).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodPut, base+"/role", adminToken, gin.H{"role": "root"}).Code)

	w = app.do(http.MethodPost, base+"/ban", adminToken, gin.H{"reason": "abuse", "permanent": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusForbidden, app.do(http.MethodGet, "/dashboard/links", userToken, nil).Code)

	assert.Equal(t, http.StatusOK, app.do(http.MethodDelete, base+"/ban", adminToken, nil).Code)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/dashboard/links", userToken, nil).Code)
}

func TestAdminDeleteUserKeepsClickEvents(t *testing.T) {
	app := setupApp(t)
	adminToken, admin := app.signUpAdmin("admin@example.com")
	token, bob := app.signUp("Bob", "bob@example.com")
	link := app.createLink(token, gin.H{"title": "Docs", "longUrl": "https://example.com", "customSlug": "gone"})
	app.browse(http.MethodGet, "/gone", "", "")
	app.resolver.Wait()

	assert.Equal(t, http.StatusForbidden, app.do(http.MethodDelete, "/dashboard/admin/users/"+admin.UID, adminToken, nil).Code)

	w := app.do(http.MethodDelete, "/dashboard/admin/users/"+bob.UID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusNotFound, app.browse(http.MethodGet, "/gone", "", "").Code)
	events, err := app.store.Clicks.CountByLink(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), events)
}

func TestAdminLinks(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := app.signUpAdmin("admin@example.com")
	token, _ := app.signUp("Bob", "bob@example.com")
	app.createLink(token, gin.H{"title": "A", "longUrl": "https://example.com/a"})
	app.createLink(token, gin.H{"title": "B", "longUrl": "https://example.com/b"})

	w := app.do(http.MethodGet, "/dashboard/admin/links", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Total int64 `json:"total"`
	}
	decode(t, w, &list)
	assert.Equal(t, int64(2), list.Total)

	w = app.do(http.MethodDelete, "/dashboard/admin/links", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var deleted struct {
		Deleted int `json:"deleted"`
	}
	decode(t, w, &deleted)
	assert.Equal(t, 2, deleted.Deleted)
}

func TestPasswordChangeSignsOut(t *testing.T) {
	app := setupApp(t)
	token, _ := app.signUp("Alice", "alice@example.com")

	w := app.do(http.MethodPut, "/dashboard/profile/password", token, gin.H{
		"currentPassword": "wrong1", "newPassword": "newpass1",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(http.MethodPut, "/dashboard/profile/password", token, gin.H{
		"currentPassword": "password1", "newPassword": "newpass1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)

	// the token issued before the change no longer authenticates
	w = app.do(http.MethodGet, "/dashboard/links", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(http.MethodPost, "/auth/signin", "", gin.H{"email": "alice@example.com", "password": "newpass1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSelfDelete(t *testing.T) {
	app := setupApp(t)
	token, user := app.signUp("Alice", "alice@example.com")

	w := app.do(http.MethodDelete, "/dashboard/profile", token, gin.H{"confirmation": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(http.MethodDelete, "/dashboard/profile", token, gin.H{"confirmation": "password1"})
	require.Equal(t, http.StatusOK, w.Code)

	got, err := app.store.Users.GetByUID(context.Background(), user.UID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGoogleLoginDisabled(t *testing.T) {
	app := setupApp(t)
	w := app.do(http.MethodGet, "/auth/google/login", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
