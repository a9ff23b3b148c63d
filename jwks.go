package oauth2login

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"
)

const maxJWKSSize = 1 << 20

// supportedAlgorithms lists the signature algorithms accepted for bearer tokens.
var supportedAlgorithms = []string{
	jwt.SigningMethodRS256.Alg(),
	jwt.SigningMethodRS384.Alg(),
	jwt.SigningMethodRS512.Alg(),
	jwt.SigningMethodPS256.Alg(),
	jwt.SigningMethodPS384.Alg(),
	jwt.SigningMethodPS512.Alg(),
}

func isSupportedAlgorithm(alg string) bool {
	for _, v := range supportedAlgorithms {
		if v == alg {
			return true
		}
	}
	return false
}

func newHTTPClient(params Params) (*http.Client, error) {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = params.JWKSTimeout

	if params.CAFile != "" {
		pool, err := caCertPool(params.CAFile)
		if err != nil {
			return nil, fmt.Errorf("create http client from CA %s: %w", params.CAFile, err)
		}
		transport, ok := client.Transport.(*http.Transport)
		if !ok {
			return nil, fmt.Errorf("unexpected transport %T", client.Transport)
		}
		transport.TLSClientConfig = &tls.Config{
			RootCAs:    pool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return client, nil
}

func caCertPool(caPath string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("no certificates found in %s", caPath)
	}
	return pool, nil
}

func fetchJWKS(
	ctx context.Context,
	client *http.Client,
	url string,
	logger *zap.SugaredLogger,
) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToFetchJWKS, err)
	}
	req.Header.Set("Accept", "application/json")

	logger.Debugw("fetching JSON web keys from identity provider", "url", url)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToFetchJWKS, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected response %s from identity provider",
			ErrFailedToFetchJWKS, resp.Status)
	}

	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err != nil ||
		(mediaType != "application/json" && mediaType != "application/jwk-set+json") {
		logger.Warnw("unexpected JWKS content type", "url", url, "contentType", resp.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToFetchJWKS, err)
	}

	set := new(jose.JSONWebKeySet)
	if err := json.Unmarshal(body, set); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrFailedToFetchJWKS, err)
	}
	if len(set.Keys) == 0 {
		return nil, fmt.Errorf("%w: empty key set", ErrFailedToFetchJWKS)
	}

	return set, nil
}

// selectJWK picks the verification key for a token header. Keys are matched
// by kid when the token names one, otherwise by algorithm and usage.
func selectJWK(set *jose.JSONWebKeySet, kid, alg string) (*rsa.PublicKey, bool) {
	if set == nil {
		return nil, false
	}

	candidates := set.Keys
	if kid != "" {
		candidates = set.Key(kid)
	}

	for _, k := range candidates {
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		if k.Algorithm != "" && k.Algorithm != alg {
			continue
		}
		if pub, ok := k.Key.(*rsa.PublicKey); ok {
			return pub, true
		}
	}

	return nil, false
}
