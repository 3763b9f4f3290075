package middleware

import (
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/jobboard/internal/auth"
	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/pkg/errors"
	"github.com/charlesng35/jobboard/pkg/response"
)

const (
	CtxClaimsKey        = "authClaims"
	CtxPrincipalIDKey   = "principalID"
	CtxPrincipalKindKey = "principalKind"
	CtxSessionIDKey     = "sessionID"
)

// AuthOption customises the Auth middleware.
type AuthOption func(*authSettings)

type authSettings struct {
	queryParam string
}

// WithQueryToken also accepts the access token from the named query
// parameter. Browsers cannot set headers on websocket upgrades.
func WithQueryToken(param string) AuthOption {
	return func(s *authSettings) {
		s.queryParam = strings.TrimSpace(param)
	}
}

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService, opts ...AuthOption) gin.HandlerFunc {
	var settings authSettings
	for _, opt := range opts {
		opt(&settings)
	}

	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && settings.queryParam != "" {
			token = strings.TrimSpace(c.Query(settings.queryParam))
		}
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			if stderrors.Is(err, iauth.ErrTokenExpired) {
				response.Error(c, errors.ErrUnauthorized.WithMessage("Access token expired"))
			} else {
				response.Error(c, errors.ErrUnauthorized)
			}
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxPrincipalIDKey, claims.PrincipalID)
		c.Set(CtxPrincipalKindKey, claims.Kind)
		if claims.SessionID != "" {
			c.Set(CtxSessionIDKey, claims.SessionID)
		}

		c.Next()
	}
}

// RequireKind rejects principals whose kind is not listed. It must run after Auth.
func RequireKind(kinds ...models.PrincipalKind) gin.HandlerFunc {
	allowed := make(map[models.PrincipalKind]struct{}, len(kinds))
	for _, kind := range kinds {
		allowed[kind] = struct{}{}
	}

	return func(c *gin.Context) {
		_, kind, ok := Principal(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, permitted := allowed[kind]; !permitted {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Principal returns the authenticated principal id and kind.
func Principal(c *gin.Context) (string, models.PrincipalKind, bool) {
	id := c.GetString(CtxPrincipalIDKey)
	value, exists := c.Get(CtxPrincipalKindKey)
	if id == "" || !exists {
		return "", "", false
	}
	kind, ok := value.(models.PrincipalKind)
	return id, kind, ok
}

func bearerToken(header string) string {
	if len(header) < 8 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
