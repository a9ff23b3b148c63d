package oauth2login

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrNotJWT               = fmt.Errorf("not a JWT")
	ErrUnsupportedAlgorithm = fmt.Errorf("unsupported signature algorithm")
	ErrSignatureInvalid     = fmt.Errorf("token signature is invalid")
	ErrTokenExpired         = fmt.Errorf("token is expired")
	ErrTokenNotYetValid     = fmt.Errorf("token is not valid yet")
	ErrInvalidToken         = fmt.Errorf("invalid token")
)

// IsJWT tells if token has the compact JWS shape: three non-empty,
// dot separated segments. Values failing this check are not bearer JWTs and
// should be ignored rather than rejected.
func IsJWT(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// TokenVerifier verifies compact bearer tokens against the keys of a KeyStore.
type TokenVerifier struct {
	keys    *KeyStore
	logger  *zap.SugaredLogger
	metrics *Metrics
	now     func() time.Time
	leeway  time.Duration
}

// VerifierOption customizes a TokenVerifier.
type VerifierOption func(*TokenVerifier)

// WithClock overrides the time source used for exp/nbf checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *TokenVerifier) { v.now = now }
}

// WithLeeway tolerates clock skew when checking exp/nbf.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *TokenVerifier) { v.leeway = d }
}

// NewTokenVerifier creates a TokenVerifier sharing the given KeyStore.
func NewTokenVerifier(keys *KeyStore, opts ...VerifierOption) *TokenVerifier {
	v := &TokenVerifier{
		keys:    keys,
		logger:  keys.logger,
		metrics: keys.params.Metrics,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the token signature and time window and returns its claims.
func (v *TokenVerifier) Verify(ctx context.Context, token string) (MapClaims, error) {
	claims, err := v.verify(ctx, token)
	v.metrics.verified(err)
	return claims, err
}

func (v *TokenVerifier) verify(ctx context.Context, token string) (MapClaims, error) {
	if !IsJWT(token) {
		return nil, ErrNotJWT
	}

	material, err := v.keys.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(supportedAlgorithms),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(v.leeway),
		jwt.WithJSONNumber(),
	)

	unverified, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenUnverifiable) {
			// alg is missing or unknown to the jwt library
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedAlgorithm, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	alg, _ := unverified.Header["alg"].(string)
	if !isSupportedAlgorithm(alg) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	key, err := verificationKey(material, unverified)
	if err != nil {
		return nil, err
	}

	parsed, err := parser.ParseWithClaims(token, jwt.MapClaims{}, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return nil, translateJWTError(err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type %T", ErrInvalidToken, parsed.Claims)
	}

	return MapClaims(claims), nil
}

// verificationKey picks the key for token. A local key always wins; a key set
// is searched by the token's kid and alg.
func verificationKey(material *KeyMaterial, token *jwt.Token) (*rsa.PublicKey, error) {
	if material == nil {
		return nil, ErrKeyNotFound
	}
	if material.Local != nil {
		return material.Local, nil
	}

	kid, _ := token.Header["kid"].(string)
	alg, _ := token.Header["alg"].(string)
	key, found := selectJWK(material.Set, kid, alg)
	if !found {
		return nil, fmt.Errorf("%w: no JWKS key matches kid=%q alg=%q", ErrKeyNotFound, kid, alg)
	}
	return key, nil
}

func translateJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %w", ErrTokenNotYetValid, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
}
