package oauth2login_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/b4fun/oauth2login"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalVerifier(t *testing.T, opts ...oauth2login.VerifierOption) *oauth2login.TokenVerifier {
	ks, err := oauth2login.NewKeyStore(oauth2login.Params{
		PublicKey: publicKeyBase64(t, &signingKey(t).PublicKey),
	})
	require.NoError(t, err)
	return oauth2login.NewTokenVerifier(ks, opts...)
}

func TestTokenVerifier_LocalKey(t *testing.T) {
	key := signingKey(t)
	other := newRSAKey(t)

	defaultClaims := withDefault(func() claimsT {
		return claimsT{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "test-subject",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Username: "jdoe",
		}
	})

	testCases := []struct {
		name  string
		token string
		err   error
	}{
		{
			name:  "RS256",
			token: signJWT(t, jwt.SigningMethodRS256, key, "", defaultClaims()),
		},
		{
			name:  "RS512",
			token: signJWT(t, jwt.SigningMethodRS512, key, "", defaultClaims()),
		},
		{
			name:  "PS256",
			token: signJWT(t, jwt.SigningMethodPS256, key, "", defaultClaims()),
		},
		{
			name:  "no expiry",
			token: signJWT(t, jwt.SigningMethodRS256, key, "", defaultClaims(func(c *claimsT) { c.ExpiresAt = nil })),
		},
		{
			name: "expired",
			token: signJWT(t, jwt.SigningMethodRS256, key, "", defaultClaims(func(c *claimsT) {
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
			})),
			err: oauth2login.ErrTokenExpired,
		},
		{
			name: "not yet valid",
			token: signJWT(t, jwt.SigningMethodRS256, key, "", defaultClaims(func(c *claimsT) {
				c.NotBefore = jwt.NewNumericDate(time.Now().Add(time.Hour))
			})),
			err: oauth2login.ErrTokenNotYetValid,
		},
		{
			name:  "signed by another key",
			token: signJWT(t, jwt.SigningMethodRS256, other, "", defaultClaims()),
			err:   oauth2login.ErrSignatureInvalid,
		},
		{
			name:  "HMAC",
			token: signJWT(t, jwt.SigningMethodHS256, []byte("secret"), "", defaultClaims()),
			err:   oauth2login.ErrUnsupportedAlgorithm,
		},
		{
			name:  "unknown alg",
			token: "eyJhbGciOiJYWDI1NiJ9.eyJzdWIiOiJ4In0.c2ln",
			err:   oauth2login.ErrUnsupportedAlgorithm,
		},
		{
			name:  "two segments",
			token: "eyJhbGciOiJSUzI1NiJ9.eyJzdWIiOiJ4In0",
			err:   oauth2login.ErrNotJWT,
		},
		{
			name:  "empty signature",
			token: "eyJhbGciOiJSUzI1NiJ9.eyJzdWIiOiJ4In0.",
			err:   oauth2login.ErrNotJWT,
		},
		{
			name:  "malformed segments",
			token: "a.b.c",
			err:   oauth2login.ErrInvalidToken,
		},
	}

	v := newLocalVerifier(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := v.Verify(context.Background(), tc.token)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.Nil(t, claims)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "test-subject", claims["sub"])
			assert.Equal(t, "jdoe", claims["preferred_username"])
		})
	}
}

func TestTokenVerifier_ClockAndLeeway(t *testing.T) {
	key := signingKey(t)
	token := signJWT(t, jwt.SigningMethodRS256, key, "", claimsT{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "test-subject",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-30 * time.Second)),
		},
	})

	_, err := newLocalVerifier(t).Verify(context.Background(), token)
	assert.ErrorIs(t, err, oauth2login.ErrTokenExpired)

	_, err = newLocalVerifier(t, oauth2login.WithLeeway(time.Minute)).Verify(context.Background(), token)
	assert.NoError(t, err)

	past := func() time.Time { return time.Now().Add(-time.Hour) }
	_, err = newLocalVerifier(t, oauth2login.WithClock(past)).Verify(context.Background(), token)
	assert.NoError(t, err)
}

func TestTokenVerifier_JWKS(t *testing.T) {
	idP := newIDProvider(t)
	idP.StartTLS()
	defer idP.Close()

	ks, err := oauth2login.NewKeyStore(oauth2login.Params{
		KeysURL: idP.KeysURL(),
		CAFile:  idP.CAFile(t),
	})
	require.NoError(t, err)
	v := oauth2login.NewTokenVerifier(ks)

	claims := claimsT{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "test-subject",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	t.Run("kid match", func(t *testing.T) {
		_, err := v.Verify(context.Background(), idP.JWT(t, claims))
		assert.NoError(t, err)
	})

	t.Run("no kid matches by alg", func(t *testing.T) {
		token := signJWT(t, jwt.SigningMethodRS256, signingKey(t), "", claims)
		_, err := v.Verify(context.Background(), token)
		assert.NoError(t, err)
	})

	t.Run("unknown kid", func(t *testing.T) {
		token := signJWT(t, jwt.SigningMethodRS256, signingKey(t), "unknown", claims)
		_, err := v.Verify(context.Background(), token)
		assert.ErrorIs(t, err, oauth2login.ErrKeyNotFound)
	})

	t.Run("alg mismatch", func(t *testing.T) {
		token := signJWT(t, jwt.SigningMethodRS512, signingKey(t), "", claims)
		_, err := v.Verify(context.Background(), token)
		assert.ErrorIs(t, err, oauth2login.ErrKeyNotFound)
	})

	assert.Equal(t, 1, idP.JWKSRequests())
}

func TestTokenVerifier_NoKey(t *testing.T) {
	ks, err := oauth2login.NewKeyStore(oauth2login.Params{})
	require.NoError(t, err)

	token := signJWT(t, jwt.SigningMethodRS256, signingKey(t), "", claimsT{})
	_, err = oauth2login.NewTokenVerifier(ks).Verify(context.Background(), token)
	assert.ErrorIs(t, err, oauth2login.ErrKeyNotFound)
}

func TestTokenVerifier_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := oauth2login.NewMetrics(reg)
	require.NoError(t, err)

	ks, err := oauth2login.NewKeyStore(oauth2login.Params{
		PublicKey: publicKeyBase64(t, &signingKey(t).PublicKey),
		Metrics:   metrics,
	})
	require.NoError(t, err)
	v := oauth2login.NewTokenVerifier(ks)

	ok := signJWT(t, jwt.SigningMethodRS256, signingKey(t), "", claimsT{})
	expired := signJWT(t, jwt.SigningMethodRS256, signingKey(t), "", claimsT{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, _ = v.Verify(context.Background(), ok)
	_, _ = v.Verify(context.Background(), ok)
	_, _ = v.Verify(context.Background(), expired)
	_, _ = v.Verify(context.Background(), "opaque")

	expected := `
# HELP oauth2login_token_verifications_total Bearer token verifications by result.
# TYPE oauth2login_token_verifications_total counter
oauth2login_token_verifications_total{result="expired"} 1
oauth2login_token_verifications_total{result="not_jwt"} 1
oauth2login_token_verifications_total{result="ok"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(
		reg, strings.NewReader(expected), "oauth2login_token_verifications_total"))
}

func TestIsJWT(t *testing.T) {
	assert.True(t, oauth2login.IsJWT("a.b.c"))
	assert.False(t, oauth2login.IsJWT(""))
	assert.False(t, oauth2login.IsJWT("opaque-token"))
	assert.False(t, oauth2login.IsJWT("a.b"))
	assert.False(t, oauth2login.IsJWT("a..c"))
	assert.False(t, oauth2login.IsJWT("a.b.c.d"))
}

func TestTokenVerifier_KeepsNumberText(t *testing.T) {
	token := signJWT(t, jwt.SigningMethodRS256, signingKey(t), "", jwt.MapClaims{
		"preferred_username": "jdoe",
		"sid":                json.Number("12345678901234567890"),
		"exp":                time.Now().Add(time.Hour).Unix(),
	})

	claims, err := newLocalVerifier(t).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234567890"), claims["sid"])

	u, err := oauth2login.NewUserInfoFromClaims(claims, defaultMapping(func(m *oauth2login.MappingTable) {
		(*m)[oauth2login.PropSystemID] = "sid"
	}))
	require.NoError(t, err)

	systemID, err := u.SystemID()
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567890", systemID)
}
