package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/jobboard/internal/auth"
	"github.com/charlesng35/jobboard/internal/models"
)

func newTestJWT(t *testing.T) *iauth.JWTService {
	t.Helper()
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "secret",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Minute,
	})
	require.NoError(t, err)
	return jwtSvc
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtSvc := newTestJWT(t)

	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
		PrincipalID: "user-123",
		Kind:        models.PrincipalUser,
		SessionID:   "session-abc",
	})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/secure", Auth(jwtSvc), func(c *gin.Context) {
		id, kind, _ := Principal(c)
		c.JSON(http.StatusOK, gin.H{
			"principal_id": id,
			"kind":         kind,
			"session_id":   c.GetString(CtxSessionIDKey),
		})
	})
	r.GET("/stream", Auth(jwtSvc, WithQueryToken("access_token")), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/secure", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "user-123", payload["principal_id"])
	require.Equal(t, "user", payload["kind"])
	require.Equal(t, "session-abc", payload["session_id"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/secure?access_token="+token, nil))
	require.Equal(t, http.StatusUnauthorized, w.Code, "query tokens are opt-in")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream?access_token="+token, nil))
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtSvc := newTestJWT(t)

	r := gin.New()
	r.GET("/admin", Auth(jwtSvc), RequireKind(models.PrincipalAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	call := func(kind models.PrincipalKind) int {
		token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{PrincipalID: "p-1", Kind: kind})
		require.NoError(t, err)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, call(models.PrincipalAdmin))
	require.Equal(t, http.StatusForbidden, call(models.PrincipalUser))
}

func TestAuthMiddlewareReportsExpiredToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	verifier := newTestJWT(t)

	past := time.Now().Add(-2 * time.Hour)
	issuer, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "secret",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Minute,
		Clock:          func() time.Time { return past },
	})
	require.NoError(t, err)
	token, err := issuer.GenerateAccessToken(iauth.AccessTokenInput{PrincipalID: "user-1", Kind: models.PrincipalUser})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/secure", Auth(verifier), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Access token expired")
}
