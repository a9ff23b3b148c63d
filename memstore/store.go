// Package memstore provides an in-memory identity, provider and role store.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/b4fun/oauth2login"
	"github.com/google/uuid"
)

var ErrDuplicateUsername = fmt.Errorf("username already exists")

// Store keeps identities, provider accounts and roles in memory. It is safe
// for concurrent use.
type Store struct {
	mu          sync.RWMutex
	users       map[string]*oauth2login.IdentityRecord
	credentials map[string]string
	providers   map[string]*oauth2login.ProviderRecord
	roles       map[string]string
}

var (
	_ oauth2login.IdentityStore = (*Store)(nil)
	_ oauth2login.ProviderStore = (*Store)(nil)
	_ oauth2login.RoleResolver  = (*Store)(nil)
)

// New creates a Store with the given role names in its catalogue.
func New(roles ...string) *Store {
	s := &Store{
		users:       map[string]*oauth2login.IdentityRecord{},
		credentials: map[string]string{},
		providers:   map[string]*oauth2login.ProviderRecord{},
		roles:       map[string]string{},
	}
	for _, r := range roles {
		s.AddRole(r)
	}
	return s
}

// AddRole adds name to the role catalogue and returns its id.
func (s *Store) AddRole(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.roles[name]; ok {
		return id
	}
	id := uuid.NewString()
	s.roles[name] = id
	return id
}

func (s *Store) RoleID(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.roles[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", oauth2login.ErrRoleNotFound, name)
	}
	return id, nil
}

// RoleName returns the name of a role id.
func (s *Store) RoleName(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name, v := range s.roles {
		if v == id {
			return name, true
		}
	}
	return "", false
}

func cloneRecord(r *oauth2login.IdentityRecord) *oauth2login.IdentityRecord {
	rv := *r
	rv.Roles = slices.Clone(r.Roles)
	return &rv
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*oauth2login.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: %q", oauth2login.ErrIdentityNotFound, username)
	}
	return cloneRecord(r), nil
}

func (s *Store) CreateUser(
	ctx context.Context,
	record *oauth2login.IdentityRecord,
	password string,
) (*oauth2login.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[record.Username]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateUsername, record.Username)
	}

	r := cloneRecord(record)
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Person.ID == "" {
		r.Person.ID = uuid.NewString()
	}
	s.users[r.Username] = r
	s.credentials[r.Username] = password

	return cloneRecord(r), nil
}

func (s *Store) SaveUser(ctx context.Context, record *oauth2login.IdentityRecord) (*oauth2login.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[record.Username]
	if !ok || current.ID != record.ID {
		return nil, fmt.Errorf("%w: %q", oauth2login.ErrIdentityNotFound, record.Username)
	}

	r := cloneRecord(record)
	s.users[r.Username] = r
	return cloneRecord(r), nil
}

// Credential returns the password an identity was created with.
func (s *Store) Credential(username string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.credentials[username]
	return v, ok
}

// Users returns every identity ordered by username.
func (s *Store) Users() []*oauth2login.IdentityRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rv := make([]*oauth2login.IdentityRecord, 0, len(s.users))
	for _, r := range s.users {
		rv = append(rv, cloneRecord(r))
	}
	sort.Slice(rv, func(i, j int) bool { return rv[i].Username < rv[j].Username })
	return rv
}
