package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/proptrack-api/internal/analytics"
	"github.com/yourusername/proptrack-api/internal/authstate"
	"github.com/yourusername/proptrack-api/internal/identity"
)

type nopRegistration struct{}

func (nopRegistration) Register(string) {}
func (nopRegistration) Forget(string) {}

type stubSessions struct {
	sessions map[string]*authstate.Session
}

func (s stubSessions) SignUp(context.Context, authstate.Credentials) (*authstate.Session, error) {
	return nil, errors.New("not implemented")
}

func (s stubSessions) SignIn(context.Context, authstate.Credentials) (*authstate.Session, error) {
	return nil, errors.New("not implemented")
}

func (s stubSessions) SignOut(context.Context, string) error { return nil }

func (s stubSessions) CurrentSession(_ context.Context, token string) (*authstate.Session, error) {
	if session, ok := s.sessions[token]; ok {
		return session, nil
	}
	return nil, errors.New("unauthorized")
}

type activityRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (a *activityRecorder) RecordActivity(_ context.Context, tempID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, tempID)
}

type fixture struct {
	router   *gin.Engine
	store    *identity.Store
	activity *activityRecorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := identity.NewStore(identity.NewMemoryChannel(), identity.NewMemoryChannel(), nopRegistration{}, analytics.NopTracker{},
		identity.StoreConfig{KeyPrefix: "temp_user_id", PrimaryTTL: time.Hour})
	sessions := stubSessions{sessions: map[string]*authstate.Session{
		"user-token":  {UserID: "7", Role: "user"},
		"admin-token": {UserID: "1", Role: "admin"},
	}}
	factory := authstate.NewFactory(store, sessions, nil, nil, nil, time.Second)
	activity := &activityRecorder{}
	mw := NewIdentityMiddleware(factory, sessions, activity, IdentityConfig{CookieMaxAge: 400 * 24 * time.Hour})

	r := gin.New()
	r.Use(mw.Device(), mw.Session(), mw.Controller())
	r.GET("/state", func(c *gin.Context) {
		ctrl := ControllerFrom(c)
		c.JSON(http.StatusOK, gin.H{"device": DeviceFrom(c), "state": ctrl.State()})
	})
	r.GET("/admin", AdminOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/private", RequireSession(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return fixture{router: r, store: store, activity: activity}
}

func TestDevice_IssuesCookieForNewVisitor(t *testing.T) {
	// Arrange
	f := newFixture(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/state", nil)

	// Act
	f.router.ServeHTTP(w, req)

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies, "Должна быть выдана cookie устройства")
	assert.Equal(t, DeviceCookieName, cookies[0].Name)
	assert.True(t, isDeviceID(cookies[0].Value))
	assert.True(t, cookies[0].HttpOnly)
	assert.Contains(t, w.Body.String(), `"state":"anonymous"`)
}

func TestDevice_ReusesHeaderAndRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	device := "3f1c1a52-8a8e-4c37-9c55-0f4e4c3f8d11"

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set(DeviceHeader, device)
	f.router.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), device)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/state", nil)
	req.AddCookie(&http.Cookie{Name: DeviceCookieName, Value: "not-a-uuid"})
	f.router.ServeHTTP(w, req)
	assert.NotContains(t, w.Body.String(), "not-a-uuid", "Некорректная cookie должна быть заменена")
}

func TestController_TemporaryIdentityRecordsActivity(t *testing.T) {
	// Arrange
	f := newFixture(t)
	device := "3f1c1a52-8a8e-4c37-9c55-0f4e4c3f8d11"
	tempID, err := f.store.Ensure(context.Background(), device)
	require.NoError(t, err)

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	req.AddCookie(&http.Cookie{Name: DeviceCookieName, Value: device})
	f.router.ServeHTTP(w, req)

	// Assert
	assert.Contains(t, w.Body.String(), `"state":"temporary"`)
	assert.Equal(t, []string{tempID}, f.activity.ids)
}

func TestSession_BearerTokenAuthenticates(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	f.router.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"state":"authenticated"`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "Недействительный токен не должен прерывать запрос")
	assert.Contains(t, w.Body.String(), `"state":"anonymous"`)
}

func TestAdminOnlyAndRequireSession(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		path   string
		token  string
		status int
	}{
		{"/admin", "", http.StatusUnauthorized},
		{"/admin", "user-token", http.StatusForbidden},
		{"/admin", "admin-token", http.StatusNoContent},
		{"/private", "", http.StatusUnauthorized},
		{"/private", "user-token", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.token, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: tt.token})
			}
			f.router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRateLimiter_FailOpenWhenRedisDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	rl := NewRateLimiter(client)

	r := gin.New()
	r.GET("/limited", rl.Limit(AuthRateLimitConfig()), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))

	assert.Equal(t, http.StatusNoContent, w.Code, "При недоступном Redis запрос должен проходить")
}

func TestExtractUintParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/items/:id", ExtractUintParam("id", "itemID"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.MustGet("itemID").(uint)})
	})

	for path, status := range map[string]int{"/items/5": http.StatusOK, "/items/0": http.StatusBadRequest, "/items/x": http.StatusBadRequest} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, status, w.Code, path)
	}
}
