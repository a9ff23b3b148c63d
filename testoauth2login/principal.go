package testoauth2login

import (
	"fmt"

	"github.com/b4fun/oauth2login"
)

// ClaimsPrincipal provides on-demand mock for oauth2login.ClaimsPrincipal type.
type ClaimsPrincipal struct {
	NameFunc            func() string
	HasRoleFunc         func(role string) bool
	ClaimsFunc          func() oauth2login.MapClaims
	BindClaimsFunc      func(v interface{}) error
	IdentityFunc        func() *oauth2login.IdentityRecord
	AuthenticateErrFunc func() error
}

var _ oauth2login.ClaimsPrincipal = (*ClaimsPrincipal)(nil)

func (cp *ClaimsPrincipal) Name() string {
	if cp.NameFunc != nil {
		return cp.NameFunc()
	}

	panic("not implemented")
}

func (cp *ClaimsPrincipal) HasRole(role string) bool {
	if cp.HasRoleFunc != nil {
		return cp.HasRoleFunc(role)
	}

	panic("not implemented")
}

func (cp *ClaimsPrincipal) Claims() oauth2login.MapClaims {
	if cp.ClaimsFunc != nil {
		return cp.ClaimsFunc()
	}

	panic("not implemented")
}

func (cp *ClaimsPrincipal) BindClaims(v interface{}) error {
	if cp.BindClaimsFunc != nil {
		return cp.BindClaimsFunc(v)
	}

	panic("not implemented")
}

func (cp *ClaimsPrincipal) Identity() *oauth2login.IdentityRecord {
	if cp.IdentityFunc != nil {
		return cp.IdentityFunc()
	}

	panic("not implemented")
}

func (cp *ClaimsPrincipal) AuthenticateErr() error {
	if cp.AuthenticateErrFunc != nil {
		return cp.AuthenticateErrFunc()
	}

	panic("not implemented")
}

// UnauthenticatedClaimsPrincipal creates an unauthenticated ClaimsPrincipal.
func UnauthenticatedClaimsPrincipal(err error) *ClaimsPrincipal {
	return &ClaimsPrincipal{
		NameFunc: func() string {
			return "unauthenticated"
		},

		HasRoleFunc: func(role string) bool {
			return false
		},

		ClaimsFunc: func() oauth2login.MapClaims {
			return oauth2login.MapClaims{}
		},

		BindClaimsFunc: func(v interface{}) error {
			return fmt.Errorf("no claims")
		},

		IdentityFunc: func() *oauth2login.IdentityRecord {
			return nil
		},

		AuthenticateErrFunc: func() error {
			if err != nil {
				return err
			}

			return oauth2login.ErrUnauthenticated
		},
	}
}

// AuthenticatedClaimsPrincipal creates a ClaimsPrincipal for record.
func AuthenticatedClaimsPrincipal(record *oauth2login.IdentityRecord, claims oauth2login.MapClaims) *ClaimsPrincipal {
	if claims == nil {
		claims = oauth2login.MapClaims{}
	}

	return &ClaimsPrincipal{
		NameFunc: func() string {
			return record.Username
		},

		HasRoleFunc: record.HasRole,

		ClaimsFunc: func() oauth2login.MapClaims {
			return claims
		},

		BindClaimsFunc: func(v interface{}) error {
			return fmt.Errorf("not supported")
		},

		IdentityFunc: func() *oauth2login.IdentityRecord {
			return record
		},

		AuthenticateErrFunc: func() error {
			return nil
		},
	}
}
