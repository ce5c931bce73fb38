package config

import (
	"fmt"
	"strings"
)

// AuthStrategy selects how bearer tokens are obtained.
type AuthStrategy string

const (
	// AuthNone sends requests without an Authorization header.
	AuthNone AuthStrategy = "none"
	// AuthStatic sends a preconfigured bearer token.
	AuthStatic AuthStrategy = "static"
	// AuthOAuth2 discovers the auth server and uses the client-credentials grant.
	AuthOAuth2 AuthStrategy = "oauth2"
)

// ValidAuthStrategies returns all supported strategies.
func ValidAuthStrategies() []AuthStrategy {
	return []AuthStrategy{AuthNone, AuthStatic, AuthOAuth2}
}

// ParseAuthStrategy maps a configured auth client name to a strategy.
// "jwt" is accepted as an alias of static and an empty value means none.
func ParseAuthStrategy(s string) (AuthStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "client":
		return AuthNone, nil
	case "static", "jwt":
		return AuthStatic, nil
	case "oauth2":
		return AuthOAuth2, nil
	default:
		return "", fmt.Errorf("unsupported auth client %q", s)
	}
}
