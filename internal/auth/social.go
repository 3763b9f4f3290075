package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// GoogleIssuer is the OpenID issuer for Google sign-in ID tokens.
const GoogleIssuer = "https://accounts.google.com"

var (
	// ErrSocialProviderUnknown is returned for providers without a registered verifier.
	ErrSocialProviderUnknown = errors.New("social: unknown provider")
	// ErrSocialTokenInvalid is returned when an ID token fails verification.
	ErrSocialTokenInvalid = errors.New("social: invalid id token")
)

// SocialIdentity is the verified identity asserted by a social ID token.
type SocialIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// IdentityVerifier validates a provider ID token.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*SocialIdentity, error)
}

// GoogleConfig configures the Google ID token verifier.
type GoogleConfig struct {
	// ClientIDs lists every OAuth client (web, Android, iOS) whose tokens are accepted.
	ClientIDs  []string
	Issuer     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Clock      func() time.Time
}

// OIDCVerifier verifies ID tokens against an OpenID provider. Discovery runs on first use.
type OIDCVerifier struct {
	provider  string
	issuer    string
	clientIDs map[string]struct{}
	client    *http.Client
	timeout   time.Duration
	now       func() time.Time

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier builds a verifier for Google sign-in tokens.
func NewGoogleVerifier(cfg GoogleConfig) (*OIDCVerifier, error) {
	ids := make(map[string]struct{}, len(cfg.ClientIDs))
	for _, id := range cfg.ClientIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids[id] = struct{}{}
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("social: google client id is required")
	}

	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = GoogleIssuer
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &OIDCVerifier{
		provider:  "google",
		issuer:    issuer,
		clientIDs: ids,
		client:    cfg.HTTPClient,
		timeout:   timeout,
		now:       now,
	}, nil
}

// newStaticVerifier wires a verifier against fixed keys, bypassing discovery.
func newStaticVerifier(provider, issuer string, keys oidc.KeySet, clientIDs []string, now func() time.Time) *OIDCVerifier {
	ids := make(map[string]struct{}, len(clientIDs))
	for _, id := range clientIDs {
		ids[id] = struct{}{}
	}
	return &OIDCVerifier{
		provider:  provider,
		issuer:    issuer,
		clientIDs: ids,
		now:       now,
		verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{
			SkipClientIDCheck: true,
			Now:               now,
		}),
	}
}

// Verify checks signature, issuer, expiry and audience, then extracts the identity claims.
func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (*SocialIdentity, error) {
	rawIDToken = strings.TrimSpace(rawIDToken)
	if rawIDToken == "" {
		return nil, ErrSocialTokenInvalid
	}

	verifier, err := v.idTokenVerifier(ctx)
	if err != nil {
		return nil, err
	}

	token, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSocialTokenInvalid, err)
	}

	if !v.acceptsAudience(token.Audience) {
		return nil, fmt.Errorf("%w: audience not accepted", ErrSocialTokenInvalid)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %v", ErrSocialTokenInvalid, err)
	}
	if strings.TrimSpace(claims.Email) == "" {
		return nil, fmt.Errorf("%w: email claim missing", ErrSocialTokenInvalid)
	}

	return &SocialIdentity{
		Provider:      v.provider,
		Subject:       token.Subject,
		Email:         strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified: claims.EmailVerified,
		Name:          strings.TrimSpace(claims.Name),
		Picture:       strings.TrimSpace(claims.Picture),
	}, nil
}

func (v *OIDCVerifier) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.verifier != nil {
		return v.verifier, nil
	}

	discoveryCtx := ctx
	if v.client != nil {
		discoveryCtx = oidc.ClientContext(discoveryCtx, v.client)
	}
	discoveryCtx, cancel := context.WithTimeout(discoveryCtx, v.timeout)
	defer cancel()

	provider, err := oidc.NewProvider(discoveryCtx, v.issuer)
	if err != nil {
		return nil, fmt.Errorf("social: %s discovery failed: %w", v.provider, err)
	}

	v.verifier = provider.Verifier(&oidc.Config{
		SkipClientIDCheck: true,
		Now:               v.now,
	})
	return v.verifier, nil
}

func (v *OIDCVerifier) acceptsAudience(audience []string) bool {
	for _, aud := range audience {
		if _, ok := v.clientIDs[aud]; ok {
			return true
		}
	}
	return false
}
