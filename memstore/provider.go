package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/b4fun/oauth2login"
	"github.com/google/uuid"
)

var ErrProviderNotFound = fmt.Errorf("provider not found")

func (s *Store) ProvidersByPerson(ctx context.Context, personID string) ([]*oauth2login.ProviderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rv []*oauth2login.ProviderRecord
	for _, p := range s.providers {
		if p.PersonID == personID {
			v := *p
			rv = append(rv, &v)
		}
	}
	sort.Slice(rv, func(i, j int) bool { return rv[i].ID < rv[j].ID })
	return rv, nil
}

func (s *Store) CreateProvider(ctx context.Context, provider *oauth2login.ProviderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := *provider
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.providers[p.ID] = &p
	provider.ID = p.ID
	return nil
}

func (s *Store) RetireProvider(ctx context.Context, provider *oauth2login.ProviderRecord, reason string) error {
	return s.updateProvider(provider, func(p *oauth2login.ProviderRecord) {
		p.Retired = true
		p.RetireReason = reason
	})
}

func (s *Store) UnretireProvider(ctx context.Context, provider *oauth2login.ProviderRecord) error {
	return s.updateProvider(provider, func(p *oauth2login.ProviderRecord) {
		p.Retired = false
		p.RetireReason = ""
	})
}

func (s *Store) updateProvider(provider *oauth2login.ProviderRecord, update func(*oauth2login.ProviderRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.providers[provider.ID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrProviderNotFound, provider.ID)
	}
	update(p)
	*provider = *p
	return nil
}
