package oauth2login_test

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// keyIDFromPublicKey derives a key ID non-reversibly from a public key.
func keyIDFromPublicKey(publicKey *rsa.PublicKey) (string, error) {
	publicKeyDERBytes, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to serialize public key to DER format: %w", err)
	}

	hasher := crypto.SHA256.New()
	_, _ = hasher.Write(publicKeyDERBytes)
	publicKeyDERHash := hasher.Sum(nil)

	keyID := base64.RawURLEncoding.EncodeToString(publicKeyDERHash)

	return keyID, nil
}

var (
	sharedKeyOnce sync.Once
	sharedKey     *rsa.PrivateKey
)

// signingKey returns the RSA key shared by the tests of this package.
func signingKey(t *testing.T) *rsa.PrivateKey {
	sharedKeyOnce.Do(func() {
		var err error
		sharedKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
	})
	return sharedKey
}

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey
}

func publicKeyBase64(t *testing.T, key *rsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(der)
}

func publicKeyPEM(t *testing.T, key *rsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func jwksFromPrivateKey(t *testing.T, privateKey *rsa.PrivateKey) string {
	publicKey := &privateKey.PublicKey
	keyID, err := keyIDFromPublicKey(publicKey)
	require.NoError(t, err)

	jwks := new(jose.JSONWebKeySet)
	jwks.Keys = append(jwks.Keys, jose.JSONWebKey{
		Algorithm: string(jose.RS256),
		Key:       publicKey,
		KeyID:     keyID,
		Use:       "sig",
	})

	b, err := json.MarshalIndent(jwks, "", "  ")
	require.NoError(t, err)

	return string(b)
}

type idProviderT struct {
	JWKS                   string
	JWKSStatus             int
	OpenIDMetadataTemplate string
	UserInfo               string
	AccessToken            string

	jwksRequests atomic.Int32
	privateKey   *rsa.PrivateKey
	keyID        string
	*httptest.Server
}

func newIDProvider(t *testing.T) *idProviderT {
	privateKey := signingKey(t)
	keyID, err := keyIDFromPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)

	rv := &idProviderT{
		privateKey:  privateKey,
		keyID:       keyID,
		JWKS:        jwksFromPrivateKey(t, privateKey),
		JWKSStatus:  http.StatusOK,
		AccessToken: "test-access-token",
		UserInfo:    `{"sub": "test-subject", "preferred_username": "jdoe"}`,
		OpenIDMetadataTemplate: `
{
	"issuer": "ISSUER_URL",
	"jwks_uri": "ISSUER_URLopenid/v1/jwks",
	"userinfo_endpoint": "ISSUER_URLuserinfo",
	"response_types_supported": ["code"],
	"subject_types_supported": ["public"],
	"id_token_signing_alg_values_supported": ["RS256"]
}
	`,
	}

	rv.Server = httptest.NewUnstartedServer(rv.mux(t))

	return rv
}

func (idp *idProviderT) mux(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(
		"/openid/v1/jwks",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Log("requesting /openid/v1/jwks")
			idp.jwksRequests.Add(1)

			if idp.JWKSStatus != http.StatusOK {
				w.WriteHeader(idp.JWKSStatus)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(idp.JWKS))
		}),
	)
	mux.Handle(
		"/.well-known/openid-configuration",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Log("requesting /.well-known/openid-configuration")

			w.Header().Set("Content-Type", "application/json")
			b := strings.ReplaceAll(
				idp.OpenIDMetadataTemplate,
				"ISSUER_URL", idp.IssuerURL(),
			)
			w.Write([]byte(b))
		}),
	)
	mux.Handle(
		"/userinfo",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Log("requesting /userinfo")

			if r.Header.Get("Authorization") != "Bearer "+idp.AccessToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(idp.UserInfo))
		}),
	)

	return mux
}

func (idp *idProviderT) IssuerURL() string {
	return idp.URL + "/"
}

func (idp *idProviderT) KeysURL() string {
	return idp.URL + "/openid/v1/jwks"
}

func (idp *idProviderT) JWKSRequests() int {
	return int(idp.jwksRequests.Load())
}

func (idp *idProviderT) CAFile(t *testing.T) string {
	cert := idp.Certificate()
	require.NotNil(t, cert)

	path := filepath.Join(t.TempDir(), "ca.pem")
	b := &pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	}
	err := os.WriteFile(path, pem.EncodeToMemory(b), 0644)
	require.NoError(t, err)

	return path
}

// JWT signs claims with RS256 and the provider's key id.
func (idp *idProviderT) JWT(t *testing.T, claims jwt.Claims) string {
	return signJWT(t, jwt.SigningMethodRS256, idp.privateKey, idp.keyID, claims)
}

func signJWT(t *testing.T, method jwt.SigningMethod, key interface{}, kid string, claims jwt.Claims) string {
	token := jwt.NewWithClaims(method, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	tokenSigned, err := token.SignedString(key)
	require.NoError(t, err)

	return tokenSigned
}

func convertWithDefault[T any, U any](
	computeDefaultValue func() T,
	convert func(T) U,
) func(...func(*T)) U {
	return func(mutateFuncs ...func(*T)) U {
		v := computeDefaultValue()

		for _, m := range mutateFuncs {
			m(&v)
		}

		return convert(v)
	}
}

func withDefault[T any](computeDefaultValue func() T) func(...func(*T)) T {
	return convertWithDefault(computeDefaultValue, func(t T) T { return t })
}

type claimsT struct {
	jwt.RegisteredClaims

	Username  string   `json:"preferred_username,omitempty"`
	Email     string   `json:"email,omitempty"`
	GivenName string   `json:"given_name,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}
