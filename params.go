package oauth2login

import (
	"time"

	"go.uber.org/zap"
)

// Params specifies the OAuth2 login settings.
type Params struct {
	// PublicKey is the base64 encoded X.509 public key (or PEM) verifying
	// bearer tokens. Takes precedence over every other key source. Optional.
	PublicKey string

	// PublicKeyFilename is the path of a file holding the public key text.
	// Relative to AppDataDir. Optional.
	PublicKeyFilename string

	// KeysURL is the URL of a JWKS document. Used only if no local key
	// could be resolved. Optional.
	KeysURL string

	// AppDataDir is the host application data directory. Defaults to the
	// current directory.
	AppDataDir string

	// CAFile specifies the full path to the CA that signed the identity
	// provider's web certificate. Defaults to the host's root CAs.
	CAFile string

	// JWKSTimeout bounds the JWKS fetch. Defaults to 10 seconds.
	JWKSTimeout time.Duration

	// Mapping maps identity properties to user info JSON paths.
	Mapping MappingTable

	// Logger receives operator diagnostics. Defaults to a no-op logger.
	Logger *zap.SugaredLogger

	// Metrics records verification and reconciliation outcomes. Optional.
	Metrics *Metrics
}

const defaultJWKSTimeout = 10 * time.Second

func (p Params) defaults() Params {
	rv := p

	if rv.AppDataDir == "" {
		rv.AppDataDir = "."
	}
	if rv.JWKSTimeout <= 0 {
		rv.JWKSTimeout = defaultJWKSTimeout
	}
	if rv.Mapping == nil {
		rv.Mapping = MappingTable{}
	}
	if rv.Logger == nil {
		rv.Logger = zap.NewNop().Sugar()
	}

	return rv
}
