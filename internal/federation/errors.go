package federation

import "errors"

var (
	ErrNoProvider            = errors.New("no identity provider is configured")
	ErrProviderMisconfigured = errors.New("provider is misconfigured")
	ErrExchangeCodeFailed    = errors.New("failed to exchange authorization code for token")
	ErrFetchIdentityFailed   = errors.New("failed to fetch identity claims from provider")
	ErrNoIdentity            = errors.New("provider returned no identity claims")
	ErrDiscoveryFailed       = errors.New("failed to fetch provider discovery document")
)
