package oauth2login

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var ErrFailedToFetchUserInfo = fmt.Errorf("failed to fetch user info")

// UserInfoSource fetches the user info document of an access token.
type UserInfoSource interface {
	FetchUserInfo(ctx context.Context, accessToken string) ([]byte, error)
}

// ProviderUserInfoSource reads user info from the userinfo endpoint of an
// OpenID Connect provider.
type ProviderUserInfoSource struct {
	issuerURL string
	client    *http.Client
	logger    *zap.SugaredLogger

	mu       sync.Mutex
	provider *oidc.Provider
}

var _ UserInfoSource = (*ProviderUserInfoSource)(nil)

// NewProviderUserInfoSource creates a ProviderUserInfoSource for issuerURL.
// The provider is discovered on first use.
func NewProviderUserInfoSource(issuerURL string, params Params) (*ProviderUserInfoSource, error) {
	params = params.defaults()

	if issuerURL == "" {
		return nil, fmt.Errorf("issuer URL is required")
	}

	client, err := newHTTPClient(params)
	if err != nil {
		return nil, err
	}

	return &ProviderUserInfoSource{
		issuerURL: issuerURL,
		client:    client,
		logger:    params.Logger,
	}, nil
}

func (s *ProviderUserInfoSource) discover(ctx context.Context) (*oidc.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provider != nil {
		return s.provider, nil
	}

	provider, err := oidc.NewProvider(ctx, s.issuerURL)
	if err != nil {
		return nil, err
	}
	s.provider = provider
	return provider, nil
}

// FetchUserInfo calls the userinfo endpoint with accessToken and returns the
// raw claims document.
func (s *ProviderUserInfoSource) FetchUserInfo(ctx context.Context, accessToken string) ([]byte, error) {
	ctx = oidc.ClientContext(ctx, s.client)

	provider, err := s.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: discover %s: %w", ErrFailedToFetchUserInfo, s.issuerURL, err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
	info, err := provider.UserInfo(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToFetchUserInfo, err)
	}

	var doc json.RawMessage
	if err := info.Claims(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrFailedToFetchUserInfo, err)
	}

	s.logger.Debugw("fetched user info", "issuer", s.issuerURL, "subject", info.Subject)

	return doc, nil
}

// AuthenticateAccessToken fetches the user info of accessToken from src and
// authenticates it as an interactive login.
func (a *Authenticator) AuthenticateAccessToken(
	ctx context.Context,
	src UserInfoSource,
	accessToken string,
) (*Authentication, error) {
	doc, err := src.FetchUserInfo(ctx, accessToken)
	if err != nil {
		return nil, &AuthenticationError{Stage: StageTokenReceived, Err: err}
	}

	return a.AuthenticateUserInfo(ctx, doc)
}
