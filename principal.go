package oauth2login

import (
	"encoding/json"
	"fmt"
)

var ErrUnauthenticated = fmt.Errorf("unauthenticated")

type unauthenticatedClaimsPrincipalT struct {
	err error
}

var _ ClaimsPrincipal = (*unauthenticatedClaimsPrincipalT)(nil)

func (cp *unauthenticatedClaimsPrincipalT) Name() string {
	return "unauthenticated"
}

func (cp *unauthenticatedClaimsPrincipalT) HasRole(role string) bool {
	return false
}

func (cp *unauthenticatedClaimsPrincipalT) Claims() MapClaims {
	return MapClaims{}
}

func (cp *unauthenticatedClaimsPrincipalT) BindClaims(v interface{}) error {
	return fmt.Errorf("no claims")
}

func (cp *unauthenticatedClaimsPrincipalT) Identity() *IdentityRecord {
	return nil
}

func (cp *unauthenticatedClaimsPrincipalT) AuthenticateErr() error {
	if cp.err != nil {
		return cp.err
	}
	return ErrUnauthenticated
}

func unauthenticatedClaimsPrincipal() ClaimsPrincipal {
	return &unauthenticatedClaimsPrincipalT{err: ErrUnauthenticated}
}

type claimsPrincipal struct {
	record *IdentityRecord
	claims []byte
}

var _ ClaimsPrincipal = (*claimsPrincipal)(nil)

func (cp *claimsPrincipal) Name() string {
	return cp.record.Username
}

func (cp *claimsPrincipal) HasRole(role string) bool {
	return cp.record.HasRole(role)
}

func (cp *claimsPrincipal) Claims() MapClaims {
	rv := make(MapClaims)
	_ = cp.BindClaims(&rv)
	return rv
}

func (cp *claimsPrincipal) BindClaims(v interface{}) error {
	return json.Unmarshal(cp.claims, v)
}

func (cp *claimsPrincipal) Identity() *IdentityRecord {
	return cp.record
}

func (cp *claimsPrincipal) AuthenticateErr() error {
	return nil
}

func newClaimsPrincipal(a *Authentication) ClaimsPrincipal {
	claims := a.Claims
	if claims == nil {
		claims = MapClaims{}
	}

	claimsEncoded, err := json.Marshal(claims)
	if err != nil {
		// claims came out of a JSON document, so this is not expected
		return &unauthenticatedClaimsPrincipalT{err: err}
	}

	return &claimsPrincipal{
		record: a.Record,
		claims: claimsEncoded,
	}
}
