package echo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/presh-ai/training-portal/config"
	"github.com/presh-ai/training-portal/domain"
	"github.com/presh-ai/training-portal/internal/federation"
	"github.com/presh-ai/training-portal/middleware"
	"github.com/presh-ai/training-portal/services"
)

// StateCookieName is the cookie carrying the anti-forgery state across the
// redirect round trip. Session-scoped: no max-age on purpose.
const StateCookieName = "oauth_state"

// AuthAPI struct to hold dependencies.
type AuthAPI struct {
	cfg         *config.ServerConfig
	federation  *federation.Service
	states      *services.StateGuard
	authorizer  *services.DomainAuthorizer
	provisioner *services.ProvisioningService
	sessions    *services.SessionService
	users       domain.UserRepository
	dbPing      func(ctx context.Context) error
}

// NewAuthAPI initializes the authentication API. dbPing backs the readiness
// probe; nil skips the database check.
func NewAuthAPI(
	cfg *config.ServerConfig,
	federationSvc *federation.Service,
	states *services.StateGuard,
	authorizer *services.DomainAuthorizer,
	provisioner *services.ProvisioningService,
	sessions *services.SessionService,
	users domain.UserRepository,
	dbPing func(ctx context.Context) error,
) *AuthAPI {
	return &AuthAPI{
		cfg:         cfg,
		federation:  federationSvc,
		states:      states,
		authorizer:  authorizer,
		provisioner: provisioner,
		sessions:    sessions,
		users:       users,
		dbPing:      dbPing,
	}
}

// RegisterRoutes registers the /auth routes.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/auth")
	g.GET("/login", a.LoginHandler)
	g.GET("/callback", a.CallbackHandler)
	g.POST("/logout", a.LogoutHandler)
	g.GET("/user", a.UserHandler, middleware.RequireSession(a.sessions))
	g.GET("/check-auth", a.CheckAuthHandler)
	g.GET("/diag", a.DiagHandler)
	g.GET("/healthz", a.HealthzHandler)
	g.GET("/readyz", a.ReadyzHandler)
}

// LoginHandler starts the OAuth flow: it mints the anti-forgery state, stores
// it in both the session and a dedicated cookie, and redirects the browser to
// the identity provider. Every failure turns into an error redirect; this
// endpoint never surfaces a raw error to the client.
func (a *AuthAPI) LoginHandler(c echo.Context) error {
	provider := a.federation.Active()
	if provider == nil {
		return a.errorRedirect(c, url.Values{"error": {"provider_missing"}})
	}

	ctx := c.Request().Context()

	state, err := a.states.Issue()
	if err != nil {
		return a.initFailedRedirect(c, err)
	}

	session, err := a.currentSession(c)
	if err != nil {
		session, err = a.sessions.New(ctx)
		if err != nil {
			return a.initFailedRedirect(c, err)
		}
	}
	session.OAuthState = state
	if err := a.sessions.Save(ctx, session); err != nil {
		return a.initFailedRedirect(c, err)
	}

	authURL, err := a.federation.AuthCodeURL(ctx, state, a.redirectURI(c))
	if err != nil {
		return a.initFailedRedirect(c, err)
	}

	a.setSessionCookie(c, session.ID)
	a.setStateCookie(c, state)

	log.Info().Str("provider", provider.Name()).Msg("Starting OAuth login")

	return c.Redirect(http.StatusFound, authURL)
}

// CallbackHandler completes the flow: verifies the state against both
// channels, exchanges the code for identity claims, enforces the domain
// allow-list, provisions the user and issues the session.
func (a *AuthAPI) CallbackHandler(c echo.Context) error {
	ctx := c.Request().Context()

	session, sessionErr := a.currentSession(c)

	var sessionState string
	if sessionErr == nil {
		sessionState = session.OAuthState
	}
	var cookieState string
	if cookie, err := c.Cookie(StateCookieName); err == nil {
		cookieState = cookie.Value
	}

	// State verification must run before any exchange call.
	if !a.states.Verify(c.QueryParam("state"), sessionState, cookieState) {
		log.Warn().Msg("OAuth state mismatch on callback")
		return a.errorRedirect(c, url.Values{"error": {"invalid_state"}})
	}

	claims, _, err := a.federation.Exchange(ctx, a.redirectURI(c), c.QueryParam("code"))
	if err != nil {
		log.Error().Err(err).Msg("OAuth code exchange failed")
		return a.authFailedRedirect(c, err)
	}
	if claims.Email == "" {
		return a.authFailedRedirect(c, federation.ErrNoIdentity)
	}

	if !a.authorizer.IsAuthorized(claims.Email) {
		log.Warn().Str("email", claims.Email).Msg("Login rejected: email domain not allowed")
		return a.errorRedirect(c, url.Values{
			"error":  {"unauthorized_domain"},
			"domain": {a.authorizer.Domain()},
		})
	}

	providerName := ""
	if p := a.federation.Active(); p != nil {
		providerName = p.Name()
	}
	user, created, err := a.provisioner.GetOrCreate(ctx, claims.Email, claims.DisplayName(), providerName)
	if err != nil {
		log.Error().Err(err).Msg("User provisioning failed")
		return a.authFailedRedirect(c, err)
	}

	if sessionErr != nil {
		session, err = a.sessions.New(ctx)
		if err != nil {
			return a.authFailedRedirect(c, err)
		}
	}
	if err := a.sessions.Issue(ctx, session, user); err != nil {
		log.Error().Err(err).Msg("Session issuance failed")
		return a.authFailedRedirect(c, err)
	}

	a.setSessionCookie(c, session.ID)
	a.clearStateCookie(c)

	log.Info().
		Str("email", user.Email).
		Bool("created", created).
		Msg("Login completed")

	return c.Redirect(http.StatusFound, a.frontendBase(c)+"/")
}

// LogoutHandler clears the session. Stateless toward the IdP: no upstream
// token revocation.
func (a *AuthAPI) LogoutHandler(c echo.Context) error {
	if cookie, err := c.Cookie(services.SessionCookieName); err == nil && cookie.Value != "" {
		if err := a.sessions.Clear(c.Request().Context(), cookie.Value); err != nil {
			log.Error().Err(err).Msg("Failed to clear session on logout")
		}
	}
	a.clearSessionCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// UserHandler returns the current user's identity and progress projection.
// Runs behind RequireSession.
func (a *AuthAPI) UserHandler(c echo.Context) error {
	session, ok := c.Get(middleware.SessionContextKey).(*domain.Session)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication_required"})
	}

	user, err := a.users.GetUserByID(c.Request().Context(), session.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user_not_found"})
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to load current user")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server_error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
		// Progress keys are camelCase: the dashboard frontend reads these
		// field names verbatim.
		"progress": echo.Map{
			"currentTrack":     user.CurrentTrack,
			"currentModule":    user.CurrentModule,
			"completedModules": user.CompletedModules,
			"certifications":   user.Certifications,
		},
	})
}

// CheckAuthHandler reports authentication status. Never errors, and always
// returns the same key set so clients can read the user fields without
// checking for their presence first.
func (a *AuthAPI) CheckAuthHandler(c echo.Context) error {
	session, err := a.currentSession(c)
	if err != nil || !session.Authenticated() {
		return c.JSON(http.StatusOK, echo.Map{
			"authenticated": false,
			"user_id":       "",
			"user_name":     "",
			"user_email":    "",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"authenticated": true,
		"user_id":       session.UserID,
		"user_name":     session.UserName,
		"user_email":    session.UserEmail,
	})
}

// DiagHandler exposes redacted configuration presence flags for debugging
// deployments. No secrets leave this endpoint.
func (a *AuthAPI) DiagHandler(c echo.Context) error {
	activeName := ""
	if p := a.federation.Active(); p != nil {
		activeName = p.Name()
	}
	return c.JSON(http.StatusOK, echo.Map{
		"auth_provider_env":        a.cfg.Provider(),
		"active_provider":          activeName,
		"allowed_domain":           a.authorizer.Domain(),
		"frontend_origin":          a.cfg.FrontendOrigin(),
		"session_cookie_domain":    a.cfg.SessionCookieDomain(),
		"redirect_uri":             a.redirectURI(c),
		"google_client_id_set":     a.cfg.GoogleClientID != "",
		"google_client_secret_set": a.cfg.GoogleClientSecret != "",
		"stack_project_id_set":     a.cfg.EffectiveStackProjectID() != "",
		"stack_client_key_set":     a.cfg.EffectiveStackClientID() != "",
		"stack_secret_key_set":     a.cfg.StackClientSecret != "",
		"stack_metadata_url":       a.cfg.EffectiveStackMetadataURL(),
		"db_scheme":                a.cfg.MongoScheme(),
	})
}

// HealthzHandler is the liveness probe.
func (a *AuthAPI) HealthzHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// ReadyzHandler is the readiness probe: it verifies the database connection
// before reporting ready.
func (a *AuthAPI) ReadyzHandler(c echo.Context) error {
	if a.dbPing != nil {
		if err := a.dbPing(c.Request().Context()); err != nil {
			log.Error().Err(err).Msg("Readiness check failed: database unreachable")
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"ok": false, "db": "unreachable"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "db": "ok"})
}

// frontendBase returns the base URL browser redirects should target,
// preferring the configured frontend origin over the inbound host so cookies
// bind correctly behind a proxy.
func (a *AuthAPI) frontendBase(c echo.Context) string {
	if origin := a.cfg.FrontendOrigin(); origin != "" {
		return origin
	}
	return c.Scheme() + "://" + c.Request().Host
}

// redirectURI is the callback URL registered with the identity provider. It
// must be computed identically at login and at callback time or the exchange
// is rejected.
func (a *AuthAPI) redirectURI(c echo.Context) string {
	return a.frontendBase(c) + "/auth/callback"
}

// errorRedirect sends the browser back to the frontend root with an error
// code in the query string.
func (a *AuthAPI) errorRedirect(c echo.Context, params url.Values) error {
	return c.Redirect(http.StatusFound, a.frontendBase(c)+"/?"+params.Encode())
}

func (a *AuthAPI) initFailedRedirect(c echo.Context, err error) error {
	log.Error().Err(err).Msg("Failed to start OAuth login")
	return a.errorRedirect(c, url.Values{
		"error": {"auth_init_failed"},
		"why":   {reason(err)},
	})
}

func (a *AuthAPI) authFailedRedirect(c echo.Context, err error) error {
	return a.errorRedirect(c, url.Values{
		"error": {"auth_failed"},
		"why":   {reason(err)},
	})
}

// reason formats an error as type name plus message. Intended for developer
// debugging via the redirect query string, not for end-user display.
func reason(err error) string {
	return fmt.Sprintf("%T: %v", err, err)
}

// currentSession resolves the session cookie against the store.
func (a *AuthAPI) currentSession(c echo.Context) (*domain.Session, error) {
	cookie, err := c.Cookie(services.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, domain.ErrSessionNotFound
	}
	return a.sessions.Get(c.Request().Context(), cookie.Value)
}

// setStateCookie attaches the anti-forgery state cookie. Always SameSite=None
// and Secure: the IdP redirect back to /callback is a cross-site navigation.
func (a *AuthAPI) setStateCookie(c echo.Context, state string) {
	c.SetCookie(&http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

func (a *AuthAPI) clearStateCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

// sessionCookie builds the session cookie with attributes matching the
// deployment: cross-site None/Secure by default, relaxed to Lax over plain
// http for localhost frontends.
func (a *AuthAPI) sessionCookie(value string, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:     services.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	}
	if a.cfg.IsLocalFrontend() {
		cookie.Secure = false
		cookie.SameSite = http.SameSiteLaxMode
	}
	if domainName := a.cfg.SessionCookieDomain(); domainName != "" {
		cookie.Domain = domainName
	}
	return cookie
}

func (a *AuthAPI) setSessionCookie(c echo.Context, sessionID string) {
	c.SetCookie(a.sessionCookie(sessionID, 0))
}

func (a *AuthAPI) clearSessionCookie(c echo.Context) {
	c.SetCookie(a.sessionCookie("", -1))
}
