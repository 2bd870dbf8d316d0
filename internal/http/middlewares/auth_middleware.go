package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/herapt/internal/actorctx"
	"github.com/geocoder89/herapt/internal/domain/user"
	"github.com/gin-gonic/gin"
)

const (
	TokenCookie = "token"

	CodeMissingCredential = "missing_credential"
	CodeInvalidCredential = "invalid_credential"
	CodeIdentityNotFound  = "identity_not_found"

	msgMissingCredential = "Not authorized to access this route"
	msgInvalidCredential = "Not authorized, token failed or expired"
	msgIdentityNotFound  = "User not found"
)

// Keep these small interfaces so tests can fake them easily.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type IdentityResolver interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type RejectionObserver interface {
	ObserveAuthRejection(code string)
}

type AuthMiddleware struct {
	tokens TokenVerifier
	users  IdentityResolver
	obs    RejectionObserver
}

func NewAuthMiddleware(tokens TokenVerifier, users IdentityResolver, obs RejectionObserver) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, obs: obs}
}

// RequireAuth extracts the credential (bearer header first, then the token
// cookie), verifies it and resolves the user it names. The handler only
// runs when all three steps succeed.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractToken(c)
		if raw == "" {
			m.reject(c, http.StatusUnauthorized, CodeMissingCredential, msgMissingCredential)
			return
		}

		subject, err := m.tokens.Verify(raw)
		if err != nil {
			slog.Default().DebugContext(c.Request.Context(), "auth_token_rejected", "err", err)
			m.reject(c, http.StatusUnauthorized, CodeInvalidCredential, msgInvalidCredential)
			return
		}

		u, err := m.users.GetByID(c.Request.Context(), subject)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				m.reject(c, http.StatusNotFound, CodeIdentityNotFound, msgIdentityNotFound)
				return
			}
			slog.Default().ErrorContext(c.Request.Context(), "auth_identity_lookup_failed", "err", err)
			abortJSON(c, http.StatusInternalServerError, "internal_error", "Server error")
			return
		}

		u = u.Redacted()

		// Stash identity on both the gin and the request context
		c.Set(CtxUser, u)
		c.Set(CtxUserID, u.ID)
		c.Set(CtxRole, string(u.Role))
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), u.ID))

		c.Next()
	}
}

func (m *AuthMiddleware) reject(c *gin.Context, status int, code, message string) {
	if m.obs != nil {
		m.obs.ObserveAuthRejection(code)
	}
	abortJSON(c, status, code, message)
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		if raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")); raw != "" {
			return raw
		}
	}

	if raw, err := c.Cookie(TokenCookie); err == nil {
		return strings.TrimSpace(raw)
	}

	return ""
}

// Optional helpers so handlers don’t need to know the magic keys.

func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func RoleFromContext(c *gin.Context) (user.Role, bool) {
	v, ok := c.Get(CtxRole)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return user.Role(role), ok
}
