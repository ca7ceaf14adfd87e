// Package auth resolves the user on whose behalf captures and flashcard sets
// are written.
package auth

import (
	"context"
	"strings"

	"github.com/starford/studyai/internal/apperr"
)

// Provider returns the id of the currently signed-in user.
type Provider interface {
	CurrentUser(ctx context.Context) (string, error)
}

type ctxKey struct{}

// WithUser returns a context that carries userID. Request-scoped identities
// (a bearer token mapped to a user) take precedence over the resolver default.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserFromContext returns the user attached by WithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(ctxKey{}).(string)
	return uid, ok && uid != ""
}

// Resolver looks up the user on the context first and falls back to Default,
// the single local user configured for this device.
type Resolver struct {
	Default string
}

// CurrentUser implements Provider. With no user available it returns an
// AuthError so callers fail before any network call.
func (r Resolver) CurrentUser(ctx context.Context) (string, error) {
	if uid, ok := UserFromContext(ctx); ok {
		return uid, nil
	}
	if uid := strings.TrimSpace(r.Default); uid != "" {
		return uid, nil
	}
	return "", &apperr.AuthError{}
}

// Static always answers with the same user. Tests use it as a stand-in for a
// signed-in session.
type Static string

// CurrentUser implements Provider.
func (s Static) CurrentUser(context.Context) (string, error) {
	if s == "" {
		return "", &apperr.AuthError{}
	}
	return string(s), nil
}
