package app

import (
	"context"
	"crypto/subtle"
)

// Capability names an administrative permission checked before a gated
// entry point runs.
type Capability string

// Capabilities required by the engine's administrative operations.
const (
	CapabilityReset   Capability = "leaderboard.reset"
	CapabilityConfig  Capability = "leaderboard.config"
	CapabilitySeason  Capability = "leaderboard.season"
	CapabilityCleanup Capability = "activity.cleanup"
)

// Authorizer is the injected access-control collaborator. The engine
// never owns authorization logic; it only consults this check before
// mutating on an administrative path.
type Authorizer interface {
	// Authorize returns nil when the caller may exercise the capability.
	Authorize(ctx context.Context, c Capability) error
}

// AllowAll authorizes every capability. It is the default for embedded
// use where the host process gates access itself.
type AllowAll struct{}

// Authorize implements Authorizer.
func (AllowAll) Authorize(context.Context, Capability) error { return nil }

// tokenKey is the context key carrying the caller's admin token.
type tokenKey struct{}

// WithToken returns a context carrying the caller's admin token.
// Transports attach the presented credential here; TokenAuthorizer
// reads it back during Authorize.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext extracts the admin token attached by WithToken.
func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tokenKey{}).(string); ok {
		return v
	}
	return ""
}

// TokenAuthorizer grants every capability to callers presenting the
// configured token. An empty token disables all administrative access.
type TokenAuthorizer struct {
	token string
}

// NewTokenAuthorizer creates a TokenAuthorizer for the given token.
func NewTokenAuthorizer(token string) *TokenAuthorizer {
	return &TokenAuthorizer{token: token}
}

// Authorize implements Authorizer.
func (a *TokenAuthorizer) Authorize(ctx context.Context, _ Capability) error {
	if a.token == "" || subtle.ConstantTimeCompare([]byte(TokenFromContext(ctx)), []byte(a.token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
