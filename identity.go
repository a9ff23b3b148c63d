package oauth2login

import (
	"context"
	"fmt"
)

// GenderUnknown is the gender used when the user info does not provide one.
const GenderUnknown = "n/a"

var (
	ErrIdentityNotFound = fmt.Errorf("identity not found")
	ErrRoleNotFound     = fmt.Errorf("role not found")
)

// Person holds the demographic part of an identity.
type Person struct {
	ID         string `json:"id"`
	GivenName  string `json:"givenName,omitempty"`
	MiddleName string `json:"middleName,omitempty"`
	FamilyName string `json:"familyName,omitempty"`
	Gender     string `json:"gender"`
}

// IdentityRecord is a user account owned by the host identity store.
type IdentityRecord struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	SystemID string `json:"systemId,omitempty"`
	Email    string `json:"email,omitempty"`
	Person   Person `json:"person"`

	// Roles holds the role ids assigned to the identity.
	Roles []string `json:"roles"`
}

// HasRole checks if the record carries the role id.
func (r *IdentityRecord) HasRole(roleID string) bool {
	for _, v := range r.Roles {
		if v == roleID {
			return true
		}
	}
	return false
}

// ProviderRecord is a clinical provider account linked to a person.
type ProviderRecord struct {
	ID           string `json:"id"`
	PersonID     string `json:"personId"`
	Identifier   string `json:"identifier"`
	Retired      bool   `json:"retired"`
	RetireReason string `json:"retireReason,omitempty"`
}

// IdentitySnapshot is the immutable set of identity fields derived from a user
// info document. It is the merge source of reconciliation.
type IdentitySnapshot struct {
	Username        string   `json:"username"`
	SystemID        string   `json:"systemId"`
	Email           string   `json:"email"`
	GivenName       string   `json:"givenName"`
	MiddleName      string   `json:"middleName"`
	FamilyName      string   `json:"familyName"`
	Gender          string   `json:"gender"`
	RoleNames       []string `json:"roleNames"`
	ProviderAccount bool     `json:"providerAccount"`
}

// IdentityStore is the host persistence for identities.
type IdentityStore interface {
	// GetUserByUsername returns ErrIdentityNotFound when no identity matches.
	GetUserByUsername(ctx context.Context, username string) (*IdentityRecord, error)

	// CreateUser persists a new identity with the given credential.
	CreateUser(ctx context.Context, record *IdentityRecord, password string) (*IdentityRecord, error)

	// SaveUser persists changes of an existing identity.
	SaveUser(ctx context.Context, record *IdentityRecord) (*IdentityRecord, error)
}

// RoleResolver resolves role names to role ids.
type RoleResolver interface {
	// RoleID returns ErrRoleNotFound for unknown role names.
	RoleID(ctx context.Context, name string) (string, error)
}

// RoleResolverFunc adapts a function to RoleResolver.
type RoleResolverFunc func(ctx context.Context, name string) (string, error)

func (f RoleResolverFunc) RoleID(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// ProviderStore is the host persistence for provider accounts.
type ProviderStore interface {
	ProvidersByPerson(ctx context.Context, personID string) ([]*ProviderRecord, error)
	CreateProvider(ctx context.Context, provider *ProviderRecord) error
	RetireProvider(ctx context.Context, provider *ProviderRecord, reason string) error
	UnretireProvider(ctx context.Context, provider *ProviderRecord) error
}
