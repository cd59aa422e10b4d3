package idp

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// Provider abstracts the authorization code flow against an identity provider.
type Provider interface {
	// Type returns the provider type identifier (e.g., "google").
	Type() string

	// NewAuthorization generates a fresh state and the matching authorization URL.
	NewAuthorization() (state string, authURL string, err error)

	// ExchangeCode exchanges an authorization code for tokens.
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
}

// IDTokenVerifier checks an OIDC ID token and returns its claims.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*Claims, error)
}

// IDToken extracts the raw OIDC ID token from a token endpoint response.
func IDToken(token *oauth2.Token) (string, bool) {
	if token == nil {
		return "", false
	}
	raw, ok := token.Extra("id_token").(string)
	return raw, ok && raw != ""
}

// Domain returns the hosted domain claim, or the email's domain when absent.
// The result is lower case; "" means no domain could be determined.
func (c *Claims) Domain() string {
	if c.HostedDomain != "" {
		return strings.ToLower(strings.TrimSpace(c.HostedDomain))
	}
	local, domain, ok := strings.Cut(strings.ToLower(strings.TrimSpace(c.Email)), "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return ""
	}
	return domain
}

// ValidateDomain checks if the domain is in the allowed list.
// Returns nil if allowedDomains is empty (no restriction) or domain is allowed.
func ValidateDomain(domain string, allowedDomains []string) error {
	if len(allowedDomains) == 0 {
		return nil
	}
	for _, allowed := range allowedDomains {
		if domain != "" && strings.EqualFold(domain, allowed) {
			return nil
		}
	}
	return fmt.Errorf("domain '%s' is not allowed. Contact your administrator", domain)
}
