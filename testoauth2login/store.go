package testoauth2login

import (
	"context"

	"github.com/b4fun/oauth2login"
)

// IdentityStore provides on-demand mock for oauth2login.IdentityStore type.
type IdentityStore struct {
	GetUserByUsernameFunc func(ctx context.Context, username string) (*oauth2login.IdentityRecord, error)
	CreateUserFunc        func(ctx context.Context, record *oauth2login.IdentityRecord, password string) (*oauth2login.IdentityRecord, error)
	SaveUserFunc          func(ctx context.Context, record *oauth2login.IdentityRecord) (*oauth2login.IdentityRecord, error)
}

var _ oauth2login.IdentityStore = (*IdentityStore)(nil)

func (s *IdentityStore) GetUserByUsername(ctx context.Context, username string) (*oauth2login.IdentityRecord, error) {
	if s.GetUserByUsernameFunc != nil {
		return s.GetUserByUsernameFunc(ctx, username)
	}

	panic("not implemented")
}

func (s *IdentityStore) CreateUser(ctx context.Context, record *oauth2login.IdentityRecord, password string) (*oauth2login.IdentityRecord, error) {
	if s.CreateUserFunc != nil {
		return s.CreateUserFunc(ctx, record, password)
	}

	panic("not implemented")
}

func (s *IdentityStore) SaveUser(ctx context.Context, record *oauth2login.IdentityRecord) (*oauth2login.IdentityRecord, error) {
	if s.SaveUserFunc != nil {
		return s.SaveUserFunc(ctx, record)
	}

	panic("not implemented")
}

// ProviderStore provides on-demand mock for oauth2login.ProviderStore type.
type ProviderStore struct {
	ProvidersByPersonFunc func(ctx context.Context, personID string) ([]*oauth2login.ProviderRecord, error)
	CreateProviderFunc    func(ctx context.Context, provider *oauth2login.ProviderRecord) error
	RetireProviderFunc    func(ctx context.Context, provider *oauth2login.ProviderRecord, reason string) error
	UnretireProviderFunc  func(ctx context.Context, provider *oauth2login.ProviderRecord) error
}

var _ oauth2login.ProviderStore = (*ProviderStore)(nil)

func (s *ProviderStore) ProvidersByPerson(ctx context.Context, personID string) ([]*oauth2login.ProviderRecord, error) {
	if s.ProvidersByPersonFunc != nil {
		return s.ProvidersByPersonFunc(ctx, personID)
	}

	panic("not implemented")
}

func (s *ProviderStore) CreateProvider(ctx context.Context, provider *oauth2login.ProviderRecord) error {
	if s.CreateProviderFunc != nil {
		return s.CreateProviderFunc(ctx, provider)
	}

	panic("not implemented")
}

func (s *ProviderStore) RetireProvider(ctx context.Context, provider *oauth2login.ProviderRecord, reason string) error {
	if s.RetireProviderFunc != nil {
		return s.RetireProviderFunc(ctx, provider, reason)
	}

	panic("not implemented")
}

func (s *ProviderStore) UnretireProvider(ctx context.Context, provider *oauth2login.ProviderRecord) error {
	if s.UnretireProviderFunc != nil {
		return s.UnretireProviderFunc(ctx, provider)
	}

	panic("not implemented")
}

// RoleTable resolves role names from a fixed name to id table.
func RoleTable(roles map[string]string) oauth2login.RoleResolver {
	return oauth2login.RoleResolverFunc(func(ctx context.Context, name string) (string, error) {
		if id, ok := roles[name]; ok {
			return id, nil
		}
		return "", oauth2login.ErrRoleNotFound
	})
}
