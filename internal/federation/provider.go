package federation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// IdentityClaims holds standardized identity information retrieved from an
// external OAuth2 provider after a successful code exchange.
type IdentityClaims struct {
	Subject       string         // Unique ID of the user within the provider (e.g. OIDC 'sub')
	Email         string
	Name          string
	GivenName     string
	FamilyName    string
	Picture       string
	EmailVerified bool
	Raw           map[string]any // Raw claims payload from the provider
}

// DisplayName returns the best available human-readable name, falling back to
// the email when the provider supplied no name claim.
func (c *IdentityClaims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.GivenName != "" || c.FamilyName != "" {
		return strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	}
	return c.Email
}

// OAuth2Provider defines the interface for an external OAuth2 identity
// provider. Implementations handle provider-specific endpoint and claim
// details.
type OAuth2Provider interface {
	// Name returns the unique identifier for the provider (e.g. "google", "stack").
	Name() string

	// GetOAuth2Config returns the oauth2.Config initialized with the
	// provider's client credentials, the given redirect URL, scopes and
	// auth/token endpoints.
	GetOAuth2Config(ctx context.Context, redirectURL string) (*oauth2.Config, error)

	// GetAuthCodeURL generates the authorization URL the user should be
	// redirected to. The state parameter carries the CSRF token.
	GetAuthCodeURL(ctx context.Context, state, redirectURL string, opts ...oauth2.AuthCodeOption) (string, error)

	// ExchangeCode exchanges an authorization code for an OAuth2 token.
	ExchangeCode(ctx context.Context, redirectURL, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)

	// FetchIdentity uses the exchanged token to retrieve identity claims,
	// from the provider's userinfo endpoint or from an embedded id_token.
	FetchIdentity(ctx context.Context, token *oauth2.Token) (*IdentityClaims, error)
}

// rawClaims is the wire shape shared by OIDC userinfo responses and id_token
// payloads. email_verified arrives as a bool from most providers but as a
// string from some, hence the loose typing on decode.
type rawClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	EmailVerified any    `json:"email_verified"`
}

func (rc *rawClaims) toIdentity(raw map[string]any) *IdentityClaims {
	verified := false
	switch v := rc.EmailVerified.(type) {
	case bool:
		verified = v
	case string:
		verified = v == "true"
	}
	return &IdentityClaims{
		Subject:       rc.Sub,
		Email:         rc.Email,
		Name:          rc.Name,
		GivenName:     rc.GivenName,
		FamilyName:    rc.FamilyName,
		Picture:       rc.Picture,
		EmailVerified: verified,
		Raw:           raw,
	}
}

// parseClaims decodes a JSON claims payload into IdentityClaims.
func parseClaims(payload []byte) (*IdentityClaims, error) {
	var rc rawClaims
	if err := json.Unmarshal(payload, &rc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity claims: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		raw = nil
	}

	return rc.toIdentity(raw), nil
}

// decodeIDToken extracts the claims from a JWT id_token without verifying the
// signature. The token was just received over TLS directly from the provider's
// token endpoint, so its integrity rests on the channel, not the signature.
func decodeIDToken(idToken string) (*IdentityClaims, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed id_token: expected 3 segments, got %d", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode id_token payload: %w", err)
	}

	return parseClaims(payload)
}

// identityFromToken pulls claims out of the id_token embedded in an exchanged
// OAuth2 token, if one is present.
func identityFromToken(token *oauth2.Token) (*IdentityClaims, error) {
	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, ErrNoIdentity
	}
	return decodeIDToken(idToken)
}
