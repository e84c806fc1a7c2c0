package middleware

import (
	"context"
	"net/http"
	"strings"

	"leads-backend/internal/apperr"
	"leads-backend/internal/auth"
	"leads-backend/internal/models"
	"leads-backend/pkg/utils"
)

type contextKey string

const PrincipalIDKey contextKey = "principal_id"
const RoleKey contextKey = "role"
const NameKey contextKey = "name"

// PrincipalGetter loads the current principal so role changes and
// retirement take effect without waiting for the token to expire.
type PrincipalGetter interface {
	Get(ctx context.Context, id int) (*models.Principal, error)
}

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	principals PrincipalGetter
}

func NewAuthMiddleware(jwtManager *auth.JWTManager, principals PrincipalGetter) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		principals: principals,
	}
}

// Authenticate is a middleware that validates JWT tokens
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.principalFromRequest(r)
		if err != nil {
			utils.Error(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

// RequireRole is a middleware that ensures the principal has one of the allowed roles
func (m *AuthMiddleware) RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := m.principalFromRequest(r)
			if err != nil {
				utils.Error(w, err)
				return
			}

			hasRole := false
			for _, role := range allowedRoles {
				if p.Role == role {
					hasRole = true
					break
				}
			}
			if !hasRole {
				utils.Error(w, apperr.Forbidden("insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
		})
	}
}

func (m *AuthMiddleware) principalFromRequest(r *http.Request) (*models.Principal, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, apperr.Unauthorized("authorization header required")
	}

	claims, err := m.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, apperr.Unauthorized("invalid or expired token")
	}

	// Check database for current principal status (for immediate permission updates)
	p, err := m.principals.Get(r.Context(), claims.PrincipalID)
	if err != nil {
		return nil, apperr.Unauthorized("principal not found")
	}
	if !p.IsActive {
		return nil, apperr.Forbidden("account retired, contact an administrator")
	}
	return p, nil
}

// bearerToken reads "Authorization: Bearer <token>", or ?token= for
// websocket upgrades where browsers cannot set headers.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return r.URL.Query().Get("token")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func withPrincipal(ctx context.Context, p *models.Principal) context.Context {
	ctx = context.WithValue(ctx, PrincipalIDKey, p.ID)
	ctx = context.WithValue(ctx, RoleKey, p.Role)
	ctx = context.WithValue(ctx, NameKey, p.Name)
	return ctx
}

// WithActor is used by tests and internal callers to seed the context
func WithActor(ctx context.Context, a models.Actor) context.Context {
	return withPrincipal(ctx, &models.Principal{ID: a.ID, Role: a.Role, Name: a.Name})
}

// GetPrincipalIDFromContext extracts principal ID from request context
func GetPrincipalIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(PrincipalIDKey).(int)
	return id, ok
}

// GetRoleFromContext extracts role from request context
func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

// ActorFromContext rebuilds the service-layer actor from context values
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	id, ok := GetPrincipalIDFromContext(ctx)
	if !ok {
		return models.Actor{}, false
	}
	role, _ := GetRoleFromContext(ctx)
	name, _ := ctx.Value(NameKey).(string)
	return models.Actor{ID: id, Role: role, Name: name}, true
}
