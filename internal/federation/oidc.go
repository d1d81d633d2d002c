package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// metadataCacheTTL bounds how long a fetched discovery document is reused
// before the provider is asked again.
const metadataCacheTTL = 24 * time.Hour

var defaultOIDCScopes = []string{"openid", "email", "profile"}

// providerMetadata is the subset of the OIDC discovery document this flow needs.
type providerMetadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// OIDCProvider implements OAuth2Provider for any identity provider that
// publishes an OIDC discovery document. The portal uses it for Stack.
type OIDCProvider struct {
	name         string
	clientID     string
	clientSecret string
	metadataURL  string
	scopes       []string
	httpClient   *http.Client

	mu        sync.Mutex
	meta      *providerMetadata
	fetchedAt time.Time
}

// NewOIDCProvider creates a discovery-based provider. All three of clientID,
// clientSecret and metadataURL are required.
func NewOIDCProvider(name, clientID, clientSecret, metadataURL string) (*OIDCProvider, error) {
	if clientID == "" || clientSecret == "" || metadataURL == "" {
		return nil, ErrProviderMisconfigured
	}
	return &OIDCProvider{
		name:         name,
		clientID:     clientID,
		clientSecret: clientSecret,
		metadataURL:  metadataURL,
		scopes:       defaultOIDCScopes,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (p *OIDCProvider) Name() string {
	return p.name
}

// metadata returns the discovery document, fetching it on first use and
// refreshing it after metadataCacheTTL.
func (p *OIDCProvider) metadata(ctx context.Context) (*providerMetadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.meta != nil && time.Since(p.fetchedAt) < metadataCacheTTL {
		return p.meta, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.metadataURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrDiscoveryFailed, resp.StatusCode, string(body))
	}

	var meta providerMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}
	if meta.AuthorizationEndpoint == "" || meta.TokenEndpoint == "" {
		return nil, fmt.Errorf("%w: discovery document is missing endpoints", ErrDiscoveryFailed)
	}

	p.meta = &meta
	p.fetchedAt = time.Now()
	return p.meta, nil
}

// GetOAuth2Config builds the config from the discovered endpoints.
func (p *OIDCProvider) GetOAuth2Config(ctx context.Context, redirectURL string) (*oauth2.Config, error) {
	meta, err := p.metadata(ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       p.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  meta.AuthorizationEndpoint,
			TokenURL: meta.TokenEndpoint,
		},
	}, nil
}

func (p *OIDCProvider) GetAuthCodeURL(ctx context.Context, state, redirectURL string, opts ...oauth2.AuthCodeOption) (string, error) {
	conf, err := p.GetOAuth2Config(ctx, redirectURL)
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL(state, opts...), nil
}

func (p *OIDCProvider) ExchangeCode(ctx context.Context, redirectURL, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	conf, err := p.GetOAuth2Config(ctx, redirectURL)
	if err != nil {
		return nil, err
	}
	return conf.Exchange(ctx, code, opts...)
}

// FetchIdentity retrieves claims from the discovered userinfo endpoint. When
// the provider publishes none, or the call fails, it falls back to decoding
// the id_token returned by the exchange.
func (p *OIDCProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*IdentityClaims, error) {
	meta, err := p.metadata(ctx)
	if err != nil {
		return identityFromToken(token)
	}
	if meta.UserInfoEndpoint == "" {
		return identityFromToken(token)
	}

	conf, err := p.GetOAuth2Config(ctx, "")
	if err != nil {
		return nil, err
	}

	resp, err := conf.Client(ctx, token).Get(meta.UserInfoEndpoint)
	if err != nil {
		return identityFromToken(token)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if claims, idErr := identityFromToken(token); idErr == nil {
			return claims, nil
		}
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("userinfo request failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read userinfo response body: %w", err)
	}

	return parseClaims(body)
}

// Ensure OIDCProvider implements OAuth2Provider.
var _ OAuth2Provider = (*OIDCProvider)(nil)
