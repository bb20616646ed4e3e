package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/honeynil/mdd-api/internal/models"
)

const (
	RoleUser     = "ROLE_USER"
	bearerPrefix = "Bearer "
)

// Principal is the identity attached to an authenticated request.
type Principal struct {
	UserID   int64
	Email    string
	Username string
	Login    string
	Role     string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

type TokenVerifier interface {
	Verify(token string) (*TokenClaims, bool)
}

// UserDirectory resolves the login carried by a token back to a user.
type UserDirectory interface {
	FindByEmailOrUsername(ctx context.Context, login string) (*models.User, error)
}

// AuthMiddleware attaches a Principal to requests carrying a valid bearer
// token. It never rejects a request: anything it cannot authenticate is
// passed on anonymously and left to the route policy.
func AuthMiddleware(tokens TokenVerifier, users UserDirectory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			claims, ok := tokens.Verify(strings.TrimPrefix(authHeader, bearerPrefix))
			if !ok {
				slog.Debug("bearer token rejected", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.FindByEmailOrUsername(r.Context(), claims.Login)
			if err != nil {
				slog.Warn("token login did not resolve to a user", "login", claims.Login, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			// The subject is authoritative: a login now owned by another
			// account must not authenticate as that account.
			if userID, err := claims.UserID(); err != nil || userID != user.ID {
				slog.Warn("token subject does not match resolved user", "subject", claims.Subject, "user_id", user.ID)
				next.ServeHTTP(w, r)
				return
			}

			principal := &Principal{
				UserID:   user.ID,
				Email:    user.Email,
				Username: user.Username,
				Login:    claims.Login,
				Role:     RoleUser,
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}
