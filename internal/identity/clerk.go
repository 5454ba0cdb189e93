// Package identity optionally resolves a caller's bearer token to a
// human-readable Clerk identity for the opaque `user` tag on image
// jobs. It is never required: the gateway's only hard authentication
// requirement is the chat path's bearer-token relay (§4.5), and a
// missing or unverifiable Clerk token simply falls back to whatever
// the caller declared in the request body.
package identity

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/clerk/clerk-sdk-go/v2/user"
)

// Enricher best-effort resolves a Clerk session token to a user handle.
type Enricher struct {
	enabled bool
}

// NewEnricher builds an Enricher. If CLERK_SECRET_KEY is unset, the
// Enricher is disabled and Resolve always returns its fallback unchanged.
func NewEnricher() *Enricher {
	secretKey := os.Getenv("CLERK_SECRET_KEY")
	if secretKey == "" {
		slog.Info("identity: CLERK_SECRET_KEY not set, user enrichment disabled")
		return &Enricher{enabled: false}
	}
	clerk.SetKey(secretKey)
	return &Enricher{enabled: true}
}

// Resolve returns a user handle for the request. It tries, in order:
// a Clerk session token in authHeader, then declaredUser from the
// request body, then the literal "anonymous". Any Clerk failure is
// logged and treated as absence, never surfaced to the caller — this
// path backs an opaque tag, not an authorization decision.
func (e *Enricher) Resolve(ctx context.Context, authHeader, declaredUser string) string {
	if e.enabled {
		if handle, ok := e.resolveFromToken(ctx, authHeader); ok {
			return handle
		}
	}
	if declaredUser != "" {
		return declaredUser
	}
	return "anonymous"
}

func (e *Enricher) resolveFromToken(ctx context.Context, authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", false
	}

	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{Token: token, Leeway: 30 * time.Second})
	if err != nil {
		slog.Debug("identity: token verification failed, falling back", "error", err)
		return "", false
	}

	u, err := user.Get(ctx, claims.Subject)
	if err != nil {
		slog.Debug("identity: clerk user lookup failed, falling back", "error", err)
		return "", false
	}

	if u.Username != nil && *u.Username != "" {
		return *u.Username, true
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress, true
	}
	return claims.Subject, true
}
