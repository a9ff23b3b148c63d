package oauth2login

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrKeyNotFound       = fmt.Errorf("no key available to verify token")
	ErrUnsupportedKey    = fmt.Errorf("unsupported public key")
	ErrFailedToFetchJWKS = fmt.Errorf("failed to fetch JWKS")
)

// KeySource tells where the key material was resolved from.
type KeySource int

const (
	KeySourceNone KeySource = iota
	KeySourceInline
	KeySourceFile
	KeySourceJWKS
)

func (s KeySource) String() string {
	switch s {
	case KeySourceInline:
		return "inline"
	case KeySourceFile:
		return "file"
	case KeySourceJWKS:
		return "jwks"
	default:
		return "none"
	}
}

// KeyState is the lifecycle state of a KeyStore.
type KeyState int32

const (
	KeyStateUninitialized KeyState = iota
	KeyStateResolving
	KeyStateResolved
)

// KeyMaterial is either a single local public key or a remote key set.
type KeyMaterial struct {
	Source KeySource
	Local  *rsa.PublicKey
	Set    *jose.JSONWebKeySet
}

type keyResolution struct {
	material *KeyMaterial
	err      error
}

// KeyStore resolves the token verification keys once and caches the outcome,
// failures included, for its whole lifetime.
type KeyStore struct {
	params Params
	client *http.Client
	logger *zap.SugaredLogger

	mu       sync.Mutex
	state    atomic.Int32
	resolved atomic.Pointer[keyResolution]
}

// NewKeyStore creates a KeyStore. Nothing is resolved until the first call to Resolve.
func NewKeyStore(params Params) (*KeyStore, error) {
	params = params.defaults()

	client, err := newHTTPClient(params)
	if err != nil {
		return nil, err
	}

	return &KeyStore{
		params: params,
		client: client,
		logger: params.Logger,
	}, nil
}

// State reports the resolution state.
func (s *KeyStore) State() KeyState {
	return KeyState(s.state.Load())
}

// Resolve returns the key material. When nothing usable is configured the
// error matches ErrKeyNotFound.
func (s *KeyStore) Resolve(ctx context.Context) (*KeyMaterial, error) {
	if r := s.resolved.Load(); r != nil {
		return r.material, r.err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r := s.resolved.Load(); r != nil {
		return r.material, r.err
	}

	s.state.Store(int32(KeyStateResolving))
	// the outcome is shared by every later caller, so it must not depend on
	// the first caller's cancellation
	material, err := s.resolve(context.WithoutCancel(ctx))
	s.resolved.Store(&keyResolution{material: material, err: err})
	s.state.Store(int32(KeyStateResolved))

	if err != nil {
		s.params.Metrics.keyResolved(KeySourceNone)
	} else {
		s.params.Metrics.keyResolved(material.Source)
	}

	return material, err
}

func (s *KeyStore) resolve(ctx context.Context) (*KeyMaterial, error) {
	if text := strings.TrimSpace(s.params.PublicKey); text != "" {
		key, err := ParsePublicKey(text)
		if err == nil {
			s.logger.Infow("using public key from property", "property", PropPublicKey)
			return &KeyMaterial{Source: KeySourceInline, Local: key}, nil
		}
		s.logger.Errorw("unable to parse public key property", "property", PropPublicKey, "error", err)
	}

	if name := strings.TrimSpace(s.params.PublicKeyFilename); name != "" {
		path := filepath.Join(s.params.AppDataDir, name)
		key, err := readPublicKeyFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Errorw("public key file does not exist", "path", path)
		case err != nil:
			s.logger.Errorw("unable to load public key file", "path", path, "error", err)
		default:
			s.logger.Infow("using public key from file", "path", path)
			return &KeyMaterial{Source: KeySourceFile, Local: key}, nil
		}
	}

	if keysURL := strings.TrimSpace(s.params.KeysURL); keysURL != "" {
		set, err := fetchJWKS(ctx, s.client, keysURL, s.logger)
		if err != nil {
			s.logger.Errorw("unable to resolve JWKS", "url", keysURL, "error", err)
			return nil, fmt.Errorf("%w: %w", ErrKeyNotFound, err)
		}
		s.logger.Infow("using JWKS from identity provider", "url", keysURL, "keys", len(set.Keys))
		return &KeyMaterial{Source: KeySourceJWKS, Set: set}, nil
	}

	s.logger.Error("unable to find public key to verify JWT tokens")
	return nil, ErrKeyNotFound
}

func readPublicKeyFile(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path) // #nosec G304 - path is operator configuration
	if err != nil {
		return nil, err
	}
	return ParsePublicKey(strings.TrimSpace(string(b)))
}

// ParsePublicKey parses an RSA public key given either as PEM or as the base64
// encoding of its X.509 SubjectPublicKeyInfo.
func ParsePublicKey(text string) (*rsa.PublicKey, error) {
	if strings.Contains(text, "-----BEGIN") {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedKey, err)
		}
		return key, nil
	}

	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(text), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %w", ErrUnsupportedKey, err)
	}

	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedKey, err)
	}

	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
	}
	return key, nil
}
