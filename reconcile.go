package oauth2login

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-secure-stdlib/base62"
	"go.uber.org/zap"
)

// placeholderCredentialLength is the length of the random password set on
// created identities. The scheme never authenticates with it.
const placeholderCredentialLength = 100

var ErrServiceAccountNotFound = fmt.Errorf("service account does not exist")

// Reconciler maps identity snapshots onto the host identity store.
type Reconciler struct {
	users     IdentityStore
	providers ProviderStore
	logger    *zap.SugaredLogger
	metrics   *Metrics

	newCredential func() (string, error)
}

// NewReconciler creates a Reconciler. A nil ProviderStore disables provider
// account synchronization.
func NewReconciler(users IdentityStore, providers ProviderStore, params Params) *Reconciler {
	params = params.defaults()

	return &Reconciler{
		users:     users,
		providers: providers,
		logger:    params.Logger,
		metrics:   params.Metrics,
		newCredential: func() (string, error) {
			return base62.Random(placeholderCredentialLength)
		},
	}
}

// Reconcile creates or updates the identity described by s and synchronizes
// its provider account.
//
// Service accounts are never created: an unknown service account fails with
// ErrServiceAccountNotFound and a known one is returned untouched.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	s IdentitySnapshot,
	roles RoleResolver,
	serviceAccount bool,
) (*IdentityRecord, error) {
	if strings.TrimSpace(s.Username) == "" {
		return nil, ErrNoUsername
	}

	existing, err := r.users.GetUserByUsername(ctx, s.Username)
	if err != nil && !errors.Is(err, ErrIdentityNotFound) {
		r.metrics.reconciled("failed")
		return nil, fmt.Errorf("lookup identity %q: %w", s.Username, err)
	}
	if errors.Is(err, ErrIdentityNotFound) {
		existing = nil
	}

	var record *IdentityRecord
	switch {
	case existing == nil && serviceAccount:
		r.metrics.reconciled("failed")
		return nil, fmt.Errorf("%w: %q", ErrServiceAccountNotFound, s.Username)
	case serviceAccount:
		r.metrics.reconciled("unchanged")
		return existing, nil
	case existing == nil:
		record, err = r.create(ctx, s, roles)
		if err != nil {
			r.metrics.reconciled("failed")
			return nil, fmt.Errorf("create identity %q: %w", s.Username, err)
		}
		r.metrics.reconciled("created")
		r.logger.Infow("created identity", "username", record.Username)
	default:
		record, err = r.update(ctx, existing, s, roles)
		if err != nil {
			r.metrics.reconciled("failed")
			return nil, fmt.Errorf("update identity %q: %w", s.Username, err)
		}
		r.metrics.reconciled("updated")
		r.logger.Debugw("updated identity", "username", record.Username)
	}

	r.syncProvider(ctx, record, s.ProviderAccount)

	return record, nil
}

func (r *Reconciler) create(ctx context.Context, s IdentitySnapshot, roles RoleResolver) (*IdentityRecord, error) {
	roleIDs, err := r.resolveRoles(ctx, roles, s.RoleNames)
	if err != nil {
		return nil, err
	}

	gender := s.Gender
	if strings.TrimSpace(gender) == "" {
		gender = GenderUnknown
	}

	record := &IdentityRecord{
		Username: s.Username,
		SystemID: s.SystemID,
		Email:    s.Email,
		Person: Person{
			GivenName:  s.GivenName,
			MiddleName: s.MiddleName,
			FamilyName: s.FamilyName,
			Gender:     gender,
		},
		Roles: roleIDs,
	}

	password, err := r.newCredential()
	if err != nil {
		return nil, fmt.Errorf("generate credential: %w", err)
	}

	return r.users.CreateUser(ctx, record, password)
}

func (r *Reconciler) update(
	ctx context.Context,
	existing *IdentityRecord,
	s IdentitySnapshot,
	roles RoleResolver,
) (*IdentityRecord, error) {
	merged := *existing
	merged.Roles = slices.Clone(existing.Roles)
	mergeSnapshot(&merged, s)

	if len(s.RoleNames) > 0 {
		roleIDs, err := r.resolveRoles(ctx, roles, s.RoleNames)
		if err != nil {
			return nil, err
		}
		merged.Roles = roleIDs
	}

	return r.users.SaveUser(ctx, &merged)
}

// mergeSnapshot copies the non-blank fields of s onto dst.
func mergeSnapshot(dst *IdentityRecord, s IdentitySnapshot) {
	mergeField(&dst.Email, s.Email)
	mergeField(&dst.Person.GivenName, s.GivenName)
	mergeField(&dst.Person.MiddleName, s.MiddleName)
	mergeField(&dst.Person.FamilyName, s.FamilyName)
	if s.Gender != GenderUnknown || strings.TrimSpace(dst.Person.Gender) == "" {
		mergeField(&dst.Person.Gender, s.Gender)
	}
}

func mergeField(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// resolveRoles maps role names to ids. Unknown names are dropped.
func (r *Reconciler) resolveRoles(ctx context.Context, roles RoleResolver, names []string) ([]string, error) {
	ids := []string{}
	if len(names) == 0 {
		return ids, nil
	}
	if roles == nil {
		r.logger.Warnw("no role resolver, dropping roles", "roles", names)
		return ids, nil
	}

	for _, name := range names {
		id, err := roles.RoleID(ctx, name)
		if errors.Is(err, ErrRoleNotFound) {
			r.logger.Debugw("dropping unknown role", "role", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve role %q: %w", name, err)
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}

	return ids, nil
}
