package oauth2login

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records authentication outcomes. A nil *Metrics records nothing.
type Metrics struct {
	verifications   *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	providerSyncs   *prometheus.CounterVec
	keySource       *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oauth2login",
			Name:      "token_verifications_total",
			Help:      "Bearer token verifications by result.",
		}, []string{"result"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oauth2login",
			Name:      "identity_reconciliations_total",
			Help:      "Identity reconciliations by outcome.",
		}, []string{"outcome"}),
		providerSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oauth2login",
			Name:      "provider_syncs_total",
			Help:      "Provider account synchronizations by outcome.",
		}, []string{"outcome"}),
		keySource: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "oauth2login",
			Name:      "key_source",
			Help:      "Source the verification keys were resolved from (1 for the active source).",
		}, []string{"source"}),
	}

	for _, c := range []prometheus.Collector{m.verifications, m.reconciliations, m.providerSyncs, m.keySource} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func verificationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotJWT):
		return "not_jwt"
	case errors.Is(err, ErrKeyNotFound):
		return "no_key"
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return "unsupported_algorithm"
	case errors.Is(err, ErrSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenNotYetValid):
		return "not_yet_valid"
	default:
		return "invalid"
	}
}

func (m *Metrics) verified(err error) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(verificationResult(err)).Inc()
}

func (m *Metrics) reconciled(outcome string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) providerSynced(outcome string) {
	if m == nil {
		return
	}
	m.providerSyncs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) keyResolved(source KeySource) {
	if m == nil {
		return
	}
	m.keySource.WithLabelValues(source.String()).Set(1)
}
