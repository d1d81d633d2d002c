package federation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/presh-ai/training-portal/config"
)

// Service wraps the single identity provider active for the process lifetime.
// Resolution happens once at startup; a process without any constructible
// provider keeps running but every login attempt fails with ErrNoProvider.
type Service struct {
	provider OAuth2Provider
}

// NewService creates a federation Service around an already-resolved provider.
// A nil provider is valid and means "none configured".
func NewService(provider OAuth2Provider) *Service {
	return &Service{provider: provider}
}

// ResolveProvider applies the startup selection algorithm: honor the
// AUTH_PROVIDER preference, fall back from Stack to Google when the Stack
// configuration is incomplete, and return nil when nothing is constructible.
func ResolveProvider(cfg *config.ServerConfig) OAuth2Provider {
	if cfg.Provider() == "google" {
		return resolveGoogle(cfg)
	}

	stack, err := NewOIDCProvider(
		"stack",
		cfg.EffectiveStackClientID(),
		cfg.StackClientSecret,
		cfg.EffectiveStackMetadataURL(),
	)
	if err == nil {
		return stack
	}
	log.Warn().Err(err).Msg("Stack provider not constructible, falling back to Google")

	return resolveGoogle(cfg)
}

func resolveGoogle(cfg *config.ServerConfig) OAuth2Provider {
	google, err := NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret)
	if err != nil {
		log.Warn().Err(err).Msg("Google provider not constructible")
		return nil
	}
	return google
}

// Active returns the resolved provider, or nil when none is configured.
func (s *Service) Active() OAuth2Provider {
	return s.provider
}

// AuthCodeURL builds the authorization redirect URL for the active provider.
func (s *Service) AuthCodeURL(ctx context.Context, state, redirectURL string) (string, error) {
	if s.provider == nil {
		return "", ErrNoProvider
	}
	return s.provider.GetAuthCodeURL(ctx, state, redirectURL)
}

// Exchange trades the authorization code for identity claims: code to token,
// then claims via userinfo or the embedded id_token.
func (s *Service) Exchange(ctx context.Context, redirectURL, code string) (*IdentityClaims, *oauth2.Token, error) {
	if s.provider == nil {
		return nil, nil, ErrNoProvider
	}

	token, err := s.provider.ExchangeCode(ctx, redirectURL, code)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrExchangeCodeFailed, err)
	}

	claims, err := s.provider.FetchIdentity(ctx, token)
	if err != nil {
		return nil, token, fmt.Errorf("%w: %v", ErrFetchIdentityFailed, err)
	}

	return claims, token, nil
}
