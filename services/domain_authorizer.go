package services

import "strings"

// DomainAuthorizer restricts logins to a single email domain. No subdomain
// matching and no multi-domain list, just one exact domain.
type DomainAuthorizer struct {
	allowedDomain string
}

// NewDomainAuthorizer creates an authorizer for the given domain.
func NewDomainAuthorizer(allowedDomain string) *DomainAuthorizer {
	return &DomainAuthorizer{allowedDomain: allowedDomain}
}

// Domain returns the configured allow-listed domain.
func (a *DomainAuthorizer) Domain() string {
	return a.allowedDomain
}

// IsAuthorized reports whether the email's domain equals the allow-listed
// domain, compared case-insensitively. The email itself is not normalized.
func (a *DomainAuthorizer) IsAuthorized(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	return strings.EqualFold(email[at+1:], a.allowedDomain)
}
