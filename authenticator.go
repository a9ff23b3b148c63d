package oauth2login

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrAuthenticationFailed = fmt.Errorf("authentication failed")

// Stage is the last state an authentication attempt reached.
type Stage string

const (
	StageTokenReceived    Stage = "token_received"
	StageVerified         Stage = "verified"
	StageIdentityResolved Stage = "identity_resolved"
)

// AuthenticationError reports a failed attempt together with the stage it
// reached. It matches ErrAuthenticationFailed and the underlying cause.
type AuthenticationError struct {
	Stage Stage
	Err   error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s after %s: %s", ErrAuthenticationFailed, e.Stage, e.Err)
}

func (e *AuthenticationError) Unwrap() []error {
	return []error{ErrAuthenticationFailed, e.Err}
}

// Authentication is a successful authentication attempt.
type Authentication struct {
	Record         *IdentityRecord
	Claims         MapClaims
	ServiceAccount bool
}

// PostProcessor runs after an interactive login was reconciled. An error
// fails the attempt.
type PostProcessor func(ctx context.Context, userInfo *UserInfo, record *IdentityRecord) error

// Authenticator drives an authentication attempt from a bearer token or a
// user info document to a reconciled identity.
type Authenticator struct {
	verifier    *TokenVerifier
	reconciler  *Reconciler
	roles       RoleResolver
	mapping     MappingTable
	logger      *zap.SugaredLogger
	postProcess PostProcessor
}

// AuthenticatorOption customizes an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithPostProcessor hooks p after interactive logins.
func WithPostProcessor(p PostProcessor) AuthenticatorOption {
	return func(a *Authenticator) { a.postProcess = p }
}

// NewAuthenticator creates an Authenticator. verifier may be nil when only
// user info documents are authenticated.
func NewAuthenticator(
	params Params,
	verifier *TokenVerifier,
	reconciler *Reconciler,
	roles RoleResolver,
	opts ...AuthenticatorOption,
) *Authenticator {
	params = params.defaults()

	a := &Authenticator{
		verifier:   verifier,
		reconciler: reconciler,
		roles:      roles,
		mapping:    params.Mapping,
		logger:     params.Logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AuthenticateToken authenticates a service account bearer token. Values
// that are not JWTs return ErrNotJWT unwrapped so callers can fall through
// to other mechanisms.
func (a *Authenticator) AuthenticateToken(ctx context.Context, token string) (*Authentication, error) {
	if !IsJWT(token) {
		return nil, ErrNotJWT
	}
	if a.verifier == nil {
		return nil, &AuthenticationError{Stage: StageTokenReceived, Err: ErrKeyNotFound}
	}

	claims, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return nil, &AuthenticationError{Stage: StageTokenReceived, Err: err}
	}

	userInfo, err := NewUserInfoFromClaims(claims, a.mapping, WithUserInfoLogger(a.logger))
	if err != nil {
		return nil, &AuthenticationError{Stage: StageVerified, Err: err}
	}

	record, err := a.reconcile(ctx, userInfo.ForServiceAccount(), true)
	if err != nil {
		return nil, err
	}

	return &Authentication{Record: record, Claims: claims, ServiceAccount: true}, nil
}

// AuthenticateUserInfo authenticates an interactive login from the user info
// document returned by the identity provider.
func (a *Authenticator) AuthenticateUserInfo(ctx context.Context, doc []byte) (*Authentication, error) {
	userInfo, err := NewUserInfo(doc, a.mapping, WithUserInfoLogger(a.logger))
	if err != nil {
		return nil, &AuthenticationError{Stage: StageVerified, Err: err}
	}

	record, err := a.reconcile(ctx, userInfo, false)
	if err != nil {
		return nil, err
	}

	if a.postProcess != nil {
		if err := a.postProcess(ctx, userInfo, record); err != nil {
			return nil, &AuthenticationError{Stage: StageIdentityResolved, Err: err}
		}
	}

	claims := MapClaims{}
	if err := userInfo.Bind(&claims); err != nil {
		return nil, &AuthenticationError{Stage: StageIdentityResolved, Err: err}
	}

	return &Authentication{Record: record, Claims: claims}, nil
}

func (a *Authenticator) reconcile(ctx context.Context, userInfo *UserInfo, serviceAccount bool) (*IdentityRecord, error) {
	var (
		snapshot IdentitySnapshot
		err      error
	)
	if serviceAccount {
		// service accounts are looked up by username only
		snapshot.Username, err = userInfo.Username()
	} else {
		snapshot, err = userInfo.Snapshot()
	}
	if err != nil {
		return nil, &AuthenticationError{Stage: StageVerified, Err: err}
	}

	record, err := a.reconciler.Reconcile(ctx, snapshot, a.roles, serviceAccount)
	if err != nil {
		return nil, &AuthenticationError{Stage: StageIdentityResolved, Err: err}
	}

	a.logger.Infow("user authenticated",
		"username", record.Username, "serviceAccount", serviceAccount)

	return record, nil
}

// IsShapeError tells if err means the presented credential is not for this
// scheme, as opposed to a failed authentication.
func IsShapeError(err error) bool {
	return errors.Is(err, ErrNotJWT)
}
