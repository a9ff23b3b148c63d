package oauth2login

import (
	"context"
	"errors"
)

// ProviderRetireReason is recorded on provider accounts retired because the
// identity provider flags the user as not being a provider.
const ProviderRetireReason = "Disabling provider account by oauth2login"

// syncProvider aligns the provider accounts of record with the provider flag.
// Failures are logged only: provider bookkeeping never fails an authentication.
func (r *Reconciler) syncProvider(ctx context.Context, record *IdentityRecord, provider bool) {
	if r.providers == nil {
		return
	}

	var err error
	if provider {
		err = r.ensureProvider(ctx, record)
	} else {
		err = r.retireProviders(ctx, record)
	}

	if err != nil {
		r.metrics.providerSynced("failed")
		r.logger.Errorw("could not synchronize provider account",
			"username", record.Username, "provider", provider, "error", err)
		return
	}
	r.metrics.providerSynced("ok")
}

func (r *Reconciler) ensureProvider(ctx context.Context, record *IdentityRecord) error {
	providers, err := r.providers.ProvidersByPerson(ctx, record.Person.ID)
	if err != nil {
		return err
	}

	var retired []*ProviderRecord
	for _, p := range providers {
		if !p.Retired {
			return nil
		}
		retired = append(retired, p)
	}

	if len(retired) == 0 {
		r.logger.Infow("creating provider account", "username", record.Username)
		return r.providers.CreateProvider(ctx, &ProviderRecord{
			PersonID:   record.Person.ID,
			Identifier: record.SystemID,
		})
	}

	var errs []error
	for _, p := range retired {
		r.logger.Infow("restoring provider account", "username", record.Username, "provider", p.ID)
		errs = append(errs, r.providers.UnretireProvider(ctx, p))
	}
	return errors.Join(errs...)
}

func (r *Reconciler) retireProviders(ctx context.Context, record *IdentityRecord) error {
	providers, err := r.providers.ProvidersByPerson(ctx, record.Person.ID)
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range providers {
		if p.Retired {
			continue
		}
		r.logger.Infow("retiring provider account", "username", record.Username, "provider", p.ID)
		errs = append(errs, r.providers.RetireProvider(ctx, p, ProviderRetireReason))
	}
	return errors.Join(errs...)
}
