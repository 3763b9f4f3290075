package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/charlesng35/jobboard/internal/models"
)

// DefaultAccessTokenTTL is used when no access token lifetime is configured.
const DefaultAccessTokenTTL = 15 * time.Minute

// clockSkew tolerates small clock drift between API replicas.
const clockSkew = 5 * time.Second

var (
	// ErrTokenExpired reports an access token past its expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenInvalid reports any other access token failure.
	ErrTokenInvalid = errors.New("jwt: token invalid")
)

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
	Clock          func() time.Time
}

// Claims are the access token claims. The audience names the principal kind,
// so a user token can never be replayed against a kind it was not minted for.
type Claims struct {
	PrincipalID string               `json:"pid"`
	Kind        models.PrincipalKind `json:"kind"`
	SessionID   string               `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// AccessTokenInput holds the parameters used when generating a new access token.
type AccessTokenInput struct {
	PrincipalID string
	Kind        models.PrincipalKind
	SessionID   string
}

// JWTService signs and verifies HS256 access tokens.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTService constructs a JWTService.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	svc := &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.AccessTokenTTL,
		now:    cfg.Clock,
	}
	if svc.ttl <= 0 {
		svc.ttl = DefaultAccessTokenTTL
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// TTL reports the access token lifetime.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

func audience(kind models.PrincipalKind) string {
	return "jobboard:" + string(kind)
}

// GenerateAccessToken issues a signed access token for a principal session.
func (s *JWTService) GenerateAccessToken(input AccessTokenInput) (string, error) {
	if input.PrincipalID == "" {
		return "", errors.New("jwt: principal id is required")
	}
	kind, ok := models.ParsePrincipalKind(string(input.Kind))
	if !ok {
		return "", fmt.Errorf("jwt: unknown principal kind %q", input.Kind)
	}

	issuedAt := s.now()
	claims := Claims{
		PrincipalID: input.PrincipalID,
		Kind:        kind,
		SessionID:   input.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        input.SessionID,
			Subject:   input.PrincipalID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{audience(kind)},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken verifies signature, issuer, lifetime and the
// kind/audience pairing. Failures wrap ErrTokenExpired or ErrTokenInvalid
// together with the underlying jwt error.
func (s *JWTService) ValidateAccessToken(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(clockSkew),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Join(ErrTokenExpired, err)
		}
		return nil, errors.Join(ErrTokenInvalid, err)
	}

	kind, ok := models.ParsePrincipalKind(string(claims.Kind))
	if claims.PrincipalID == "" || !ok {
		return nil, fmt.Errorf("%w: missing principal claims", ErrTokenInvalid)
	}
	if !audienceMatches(claims.Audience, audience(kind)) {
		return nil, fmt.Errorf("%w: audience does not match principal kind", ErrTokenInvalid)
	}
	return &claims, nil
}

func audienceMatches(aud jwt.ClaimStrings, want string) bool {
	for _, value := range aud {
		if value == want {
			return true
		}
	}
	return false
}
