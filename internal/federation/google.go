package federation

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	googleOAuth2 "golang.org/x/oauth2/google"
)

var GoogleUserInfoEndpoint = "https://www.googleapis.com/oauth2/v3/userinfo"

var defaultGoogleScopes = []string{"openid", "email", "profile"}

// GoogleProvider implements the OAuth2Provider interface for Google using its
// well-known static endpoints.
type GoogleProvider struct {
	clientID     string
	clientSecret string
	scopes       []string
}

// NewGoogleProvider creates a new GoogleProvider. Both the client ID and the
// client secret are required; there is no partial configuration.
func NewGoogleProvider(clientID, clientSecret string) (*GoogleProvider, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrProviderMisconfigured
	}
	return &GoogleProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		scopes:       defaultGoogleScopes,
	}, nil
}

func (g *GoogleProvider) Name() string {
	return "google"
}

// GetOAuth2Config returns the config with Google's standard endpoints.
func (g *GoogleProvider) GetOAuth2Config(_ context.Context, redirectURL string) (*oauth2.Config, error) {
	return &oauth2.Config{
		ClientID:     g.clientID,
		ClientSecret: g.clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       g.scopes,
		Endpoint:     googleOAuth2.Endpoint,
	}, nil
}

func (g *GoogleProvider) GetAuthCodeURL(ctx context.Context, state, redirectURL string, opts ...oauth2.AuthCodeOption) (string, error) {
	conf, err := g.GetOAuth2Config(ctx, redirectURL)
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL(state, opts...), nil
}

func (g *GoogleProvider) ExchangeCode(ctx context.Context, redirectURL, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	conf, err := g.GetOAuth2Config(ctx, redirectURL)
	if err != nil {
		return nil, err
	}
	return conf.Exchange(ctx, code, opts...)
}

// FetchIdentity retrieves identity claims from Google's userinfo endpoint,
// falling back to the id_token embedded in the exchanged token.
func (g *GoogleProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*IdentityClaims, error) {
	conf, err := g.GetOAuth2Config(ctx, "")
	if err != nil {
		return nil, err
	}

	resp, err := conf.Client(ctx, token).Get(GoogleUserInfoEndpoint)
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

// Ensure GoogleProvider implements OAuth2Provider.
var _ OAuth2Provider = (*GoogleProvider)(nil)
