package echo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/presh-ai/training-portal/cache"
	"github.com/presh-ai/training-portal/config"
	"github.com/presh-ai/training-portal/domain"
	"github.com/presh-ai/training-portal/internal/federation"
	"github.com/presh-ai/training-portal/services"
)

// fakeProvider is a scripted identity provider for exercising the handlers.
type fakeProvider struct {
	exchangeCalls int
	exchangeErr   error
	claims        *federation.IdentityClaims
}

func (p *fakeProvider) Name() string { return "google" }

func (p *fakeProvider) GetOAuth2Config(context.Context, string) (*oauth2.Config, error) {
	return &oauth2.Config{}, nil
}

func (p *fakeProvider) GetAuthCodeURL(_ context.Context, state, redirectURL string, _ ...oauth2.AuthCodeOption) (string, error) {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state) +
		"&redirect_uri=" + url.QueryEscape(redirectURL), nil
}

func (p *fakeProvider) ExchangeCode(context.Context, string, string, ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	p.exchangeCalls++
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{AccessToken: "at"}, nil
}

func (p *fakeProvider) FetchIdentity(context.Context, *oauth2.Token) (*federation.IdentityClaims, error) {
	return p.claims, nil
}

// memoryUserRepo mirrors the Mongo repository's uniqueness semantics.
type memoryUserRepo struct {
	mu         sync.Mutex
	users      map[string]*domain.User
	activities []*domain.LearningActivity
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*domain.User)}
}

func (r *memoryUserRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memoryUserRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[email]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *memoryUserRepo) CreateUserWithEnrollment(_ context.Context, user *domain.User, activity *domain.LearningActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Email]; ok {
		return domain.ErrEmailTaken
	}
	user.ID = "user-" + user.Email
	activity.UserID = user.ID
	r.users[user.Email] = user
	r.activities = append(r.activities, activity)
	return nil
}

func (r *memoryUserRepo) ListActivities(_ context.Context, userID string) ([]*domain.LearningActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.LearningActivity
	for _, a := range r.activities {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type testHarness struct {
	e        *echo.Echo
	repo     *memoryUserRepo
	sessions *services.SessionService
	pingErr  error
}

func newTestHarness(t *testing.T, provider federation.OAuth2Provider) *testHarness {
	t.Helper()

	cfg := &config.ServerConfig{
		AuthProvider:       "google",
		AllowedDomain:      "presh.ai",
		MongoURI:           "mongodb+srv://cluster.example.mongodb.net/training",
		RawFrontendOrigin:  "https://app.presh.ai",
		GoogleClientID:     "google-client-id",
		GoogleClientSecret: "google-client-secret-value",
	}

	store := cache.NewMemorySessionStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	repo := newMemoryUserRepo()
	sessions := services.NewSessionService(store, time.Hour)

	h := &testHarness{repo: repo, sessions: sessions}

	api := NewAuthAPI(
		cfg,
		federation.NewService(provider),
		services.NewStateGuard(),
		services.NewDomainAuthorizer(cfg.Domain()),
		services.NewProvisioningService(repo),
		sessions,
		repo,
		func(context.Context) error { return h.pingErr },
	)

	e := echo.New()
	api.RegisterRoutes(e)
	h.e = e

	return h
}

func (h *testHarness) do(method, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func redirectQuery(t *testing.T, rec *httptest.ResponseRecorder) url.Values {
	t.Helper()
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return loc.Query()
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin_NoProviderConfigured(t *testing.T) {
	h := newTestHarness(t, nil)

	rec := h.do(http.MethodGet, "/auth/login")

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "provider_missing", redirectQuery(t, rec).Get("error"))
	assert.Nil(t, cookieByName(rec, StateCookieName), "no state token is issued without a provider")
}

func TestLogin_RedirectsToProvider(t *testing.T) {
	h := newTestHarness(t, &fakeProvider{})

	rec := h.do(http.MethodGet, "/auth/login")

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "idp.example.com", loc.Host)
	assert.Equal(t, "https://app.presh.ai/auth/callback", loc.Query().Get("redirect_uri"))

	stateCookie := cookieByName(rec, StateCookieName)
	require.NotNil(t, stateCookie)
	assert.Equal(t, loc.Query().Get("state"), stateCookie.Value)
	assert.True(t, stateCookie.Secure)
	assert.True(t, stateCookie.HttpOnly)
	assert.Equal(t, http.SameSiteNoneMode, stateCookie.SameSite)
	assert.Equal(t, "/", stateCookie.Path)
	assert.Zero(t, stateCookie.MaxAge, "state cookie is session-scoped")

	sessionCookie := cookieByName(rec, services.SessionCookieName)
	require.NotNil(t, sessionCookie)

	// Both channels hold the same state.
	session, err := h.sessions.Get(context.Background(), sessionCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, stateCookie.Value, session.OAuthState)
}

func TestCallback_InvalidState(t *testing.T) {
	provider := &fakeProvider{claims: &federation.IdentityClaims{Email: "alice@presh.ai"}}
	h := newTestHarness(t, provider)

	rec := h.do(http.MethodGet, "/auth/callback?state=xyz&code=c",
		&http.Cookie{Name: StateCookieName, Value: "abc"})

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "invalid_state", redirectQuery(t, rec).Get("error"))
	assert.Zero(t, provider.exchangeCalls, "token exchange must not run on state mismatch")
	assert.Empty(t, h.repo.users)
}

func TestCallback_MissingState(t *testing.T) {
	provider := &fakeProvider{claims: &federation.IdentityClaims{Email: "alice@presh.ai"}}
	h := newTestHarness(t, provider)

	rec := h.do(http.MethodGet, "/auth/callback?code=c")

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "invalid_state", redirectQuery(t, rec).Get("error"))
	assert.Zero(t, provider.exchangeCalls)
}

func TestCallback_SuccessViaCookieChannel(t *testing.T) {
	provider := &fakeProvider{claims: &federation.IdentityClaims{Email: "alice@presh.ai", Name: "Alice"}}
	h := newTestHarness(t, provider)

	rec := h.do(http.MethodGet, "/auth/callback?state=abc&code=c",
		&http.Cookie{Name: StateCookieName, Value: "abc"})

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.presh.ai/", rec.Header().Get("Location"))

	user, err := h.repo.GetUserByEmail(context.Background(), "alice@presh.ai")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "Marketing Strategist", user.Role)

	activities, err := h.repo.ListActivities(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "enrollment", activities[0].ActivityType)
	assert.Equal(t, "Joined AI Solution Designer Program via Google OAuth", activities[0].Description)

	sessionCookie := cookieByName(rec, services.SessionCookieName)
	require.NotNil(t, sessionCookie)

	clearedState := cookieByName(rec, StateCookieName)
	require.NotNil(t, clearedState)
	assert.Negative(t, clearedState.MaxAge, "state cookie is cleared after use")

	// The issued session answers the read endpoints.
	rec = h.do(http.MethodGet, "/auth/check-auth", sessionCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":true`)
	assert.Contains(t, rec.Body.String(), `"user_email":"alice@presh.ai"`)

	rec = h.do(http.MethodGet, "/auth/user", sessionCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"role":"Marketing Strategist"`)

	// The dashboard reads the progress fields by these exact camelCase names.
	assert.Contains(t, body, `"currentTrack":0`)
	assert.Contains(t, body, `"currentModule":0`)
	assert.Contains(t, body, `"completedModules":[]`)
	assert.Contains(t, body, `"certifications":[]`)
	assert.NotContains(t, body, `"current_track"`)
	assert.NotContains(t, body, `"completed_modules"`)
}

func TestCallback_SuccessViaSessionChannel(t *testing.T) {
	provider := &fakeProvider{claims: &federation.IdentityClaims{Email: "alice@presh.ai", Name: "Alice"}}
	h := newTestHarness(t, provider)

	// Start at /login so the state lives in the server session.
	rec := h.do(http.MethodGet, "/auth/login")
	require.Equal(t, http.StatusFound, rec.Code)
	sessionCookie := cookieByName(rec, services.SessionCookieName)
	require.NotNil(t, sessionCookie)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")

	// Callback carries the session cookie but lost the state cookie.
	rec = h.do(http.MethodGet, "/auth/callback?state="+url.QueryEscape(state)+"&code=c", sessionCookie)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.presh.ai/", rec.Header().Get("Location"))
	assert.Equal(t, 1, provider.exchangeCalls)
}

func TestCallback_UnauthorizedDomain(t *testing.T) {
	provider := &fakeProvider{claims: &federation.IdentityClaims{Email: "bob@other.com", Name: "Bob"}}
	h := newTestHarness(t, provider)

	rec := h.do(http.MethodGet, "/auth/callback?state=abc&code=c",
		&http.Cookie{Name: StateCookieName, Value: "abc"})

	require.Equal(t, http.StatusFound, rec.Code)
	q := redirectQuery(t, rec)
	assert.Equal(t, "unauthorized_domain", q.Get("error"))
	assert.Equal(t, "presh.ai", q.Get("domain"))
	assert.Empty(t, h.repo.users, "no user record for rejected domains")
}

func TestCallback_ExchangeFailure(t *testing.T) {
	provider := &fakeProvider{exchangeErr: assert.AnError}
	h := newTestHarness(t, provider)

	rec := h.do(http.MethodGet, "/auth/callback?state=abc&code=c",
		&http.Cookie{Name: StateCookieName, Value: "abc"})

	require.Equal(t, http.StatusFound, rec.Code)
	q := redirectQuery(t, rec)
	assert.Equal(t, "auth_failed", q.Get("error"))
	assert.NotEmpty(t, q.Get("why"))
	assert.Empty(t, h.repo.users)
}

func TestCallback_RepeatLoginIsIdempotent(t *testing.T) {
	provider := &fakeProvider{claims: &federation.IdentityClaims{Email: "alice@presh.ai", Name: "Alice"}}
	h := newTestHarness(t, provider)

	for i := 0; i < 2; i++ {
		rec := h.do(http.MethodGet, "/auth/callback?state=abc&code=c",
			&http.Cookie{Name: StateCookieName, Value: "abc"})
		require.Equal(t, http.StatusFound, rec.Code)
	}

	assert.Len(t, h.repo.users, 1)
	assert.Len(t, h.repo.activities, 1)
}

func TestLogout_ClearsSession(t *testing.T) {
	provider := &fakeProvider{claims: &federation.IdentityClaims{Email: "alice@presh.ai", Name: "Alice"}}
	h := newTestHarness(t, provider)

	rec := h.do(http.MethodGet, "/auth/callback?state=abc&code=c",
		&http.Cookie{Name: StateCookieName, Value: "abc"})
	sessionCookie := cookieByName(rec, services.SessionCookieName)
	require.NotNil(t, sessionCookie)

	rec = h.do(http.MethodPost, "/auth/logout", sessionCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	rec = h.do(http.MethodGet, "/auth/check-auth", sessionCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":false`)
}

func TestUser_RequiresAuthentication(t *testing.T) {
	h := newTestHarness(t, &fakeProvider{})

	rec := h.do(http.MethodGet, "/auth/user")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodGet, "/auth/user", &http.Cookie{Name: services.SessionCookieName, Value: "bogus"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckAuth_NeverErrors(t *testing.T) {
	h := newTestHarness(t, &fakeProvider{})

	rec := h.do(http.MethodGet, "/auth/check-auth")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"authenticated":false`)

	// The anonymous response carries the same key set as the authenticated one.
	assert.Contains(t, body, `"user_id":""`)
	assert.Contains(t, body, `"user_name":""`)
	assert.Contains(t, body, `"user_email":""`)
}

func TestDiag_ExposesNoSecrets(t *testing.T) {
	h := newTestHarness(t, &fakeProvider{})

	rec := h.do(http.MethodGet, "/auth/diag")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"auth_provider_env":"google"`)
	assert.Contains(t, body, `"active_provider":"google"`)
	assert.Contains(t, body, `"allowed_domain":"presh.ai"`)
	assert.Contains(t, body, `"google_client_secret_set":true`)
	assert.Contains(t, body, `"db_scheme":"mongodb+srv"`)
	assert.NotContains(t, body, "google-client-secret-value")
	assert.NotContains(t, body, "cluster.example.mongodb.net")
}

func TestHealthz(t *testing.T) {
	h := newTestHarness(t, nil)

	rec := h.do(http.MethodGet, "/auth/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)
}

func TestReadyz(t *testing.T) {
	h := newTestHarness(t, nil)

	rec := h.do(http.MethodGet, "/auth/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db":"ok"`)
}

func TestReadyz_DatabaseUnreachable(t *testing.T) {
	h := newTestHarness(t, nil)
	h.pingErr = assert.AnError

	rec := h.do(http.MethodGet, "/auth/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db":"unreachable"`)
}
