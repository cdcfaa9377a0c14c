package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type contextKey string

const (
	actorKey  contextKey = "actor"
	claimsKey contextKey = "claims"
)

type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Middleware resolves the Authorization header into a models.Actor.
type Middleware struct {
	Tokens      *TokenManager
	Revocations RevocationChecker
	Logger      *logger.Logger
	Expose      bool
}

func NewMiddleware(tokens *TokenManager, revocations RevocationChecker, log *logger.Logger, expose bool) *Middleware {
	return &Middleware{Tokens: tokens, Revocations: revocations, Logger: log, Expose: expose}
}

// Optional lets guests through. A token that is present but invalid is
// still rejected.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.authenticate(r)
		if err != nil {
			utils.WriteError(w, err, m.Expose)
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// Required rejects guests with 401.
func (m *Middleware) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.authenticate(r)
		if err != nil {
			utils.WriteError(w, err, m.Expose)
			return
		}
		if claims == nil {
			utils.WriteError(w, apperrors.Unauthorized("Authentication required"), m.Expose)
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// RequireRoles wraps Required and answers 403 for any other role.
func (m *Middleware) RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.Required(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := models.AsUser(ActorFrom(r.Context()))
			if !user.HasRole(roles...) {
				m.Logger.LogSecurity("FORBIDDEN", fmt.Sprintf("%s (%s) on %s %s", user.ID, user.Role, r.Method, r.URL.Path))
				utils.WriteError(w, apperrors.Forbidden("Insufficient permissions"), m.Expose)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// authenticate returns nil claims for a request without a token.
func (m *Middleware) authenticate(r *http.Request) (*Claims, error) {
	raw, err := ExtractTokenFromRequest(r)
	if err != nil {
		return nil, apperrors.Unauthorized("%s", err.Error())
	}
	if raw == "" {
		return nil, nil
	}

	claims, err := m.Tokens.Parse(raw)
	if err != nil {
		m.Logger.LogSecurity("INVALID_TOKEN", err.Error())
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}

	if m.Revocations != nil {
		revoked, err := m.Revocations.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			m.Logger.LogSecurity("REVOKED_TOKEN", fmt.Sprintf("jti %s for user %s", claims.ID, claims.Subject))
			return nil, apperrors.Unauthorized("Token has been revoked")
		}
	}
	return claims, nil
}

func withClaims(ctx context.Context, claims *Claims) context.Context {
	if claims == nil {
		return WithActor(ctx, models.Guest{})
	}
	ctx = context.WithValue(ctx, claimsKey, claims)
	return WithActor(ctx, claims.Actor())
}

func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the caller stored by the middleware, or a Guest.
func ActorFrom(ctx context.Context) models.Actor {
	if a, ok := ctx.Value(actorKey).(models.Actor); ok && a != nil {
		return a
	}
	return models.Guest{}
}

func ClaimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}
