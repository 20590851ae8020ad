package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"strings"
)

// BearerConfig configures shared-secret bearer token authentication.
type BearerConfig struct {
	// Token is the shared secret callers must present.
	Token string

	// HeaderName is the header carrying the token. Defaults to "Authorization".
	HeaderName string

	// TokenPrefix is stripped before comparison. Defaults to "Bearer ".
	TokenPrefix string

	// Principal is the identity assigned on success. Defaults to "revalidator".
	Principal string

	// Roles are granted to the authenticated identity.
	Roles []string
}

// BearerAuthenticator validates a single shared secret presented as a
// bearer token. Comparison is constant-time over SHA-256 digests so that
// neither token length nor content leaks through timing.
type BearerAuthenticator struct {
	config BearerConfig
	digest [sha256.Size]byte
}

// NewBearerAuthenticator creates a bearer token authenticator.
func NewBearerAuthenticator(config BearerConfig) *BearerAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer "
	}
	if config.Principal == "" {
		config.Principal = "revalidator"
	}
	return &BearerAuthenticator{
		config: config,
		digest: sha256.Sum256([]byte(config.Token)),
	}
}

// Name returns the authenticator name.
func (a *BearerAuthenticator) Name() string {
	return "bearer"
}

// Supports returns true if the request carries the configured header
// with the expected prefix.
func (a *BearerAuthenticator) Supports(ctx context.Context, req *AuthRequest) bool {
	value := req.GetHeader(a.config.HeaderName)
	return value != "" && strings.HasPrefix(value, a.config.TokenPrefix)
}

// Authenticate validates the presented token against the shared secret.
func (a *BearerAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	value := req.GetHeader(a.config.HeaderName)
	if value == "" {
		return AuthFailure(ErrMissingCredentials, AuthMethodBearer), nil
	}

	token := strings.TrimPrefix(value, a.config.TokenPrefix)
	if token == value && a.config.TokenPrefix != "" {
		return AuthFailure(ErrMissingCredentials, AuthMethodBearer), nil
	}

	presented := sha256.Sum256([]byte(token))
	if subtle.ConstantTimeCompare(presented[:], a.digest[:]) != 1 {
		return AuthFailure(ErrInvalidCredentials, AuthMethodBearer), nil
	}

	identity := &Identity{
		Principal: a.config.Principal,
		Roles:     a.config.Roles,
		Method:    AuthMethodBearer,
	}
	return AuthSuccess(identity), nil
}

var _ Authenticator = (*BearerAuthenticator)(nil)
