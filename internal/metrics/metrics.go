package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "parishvault"

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	TenantsCreated       prometheus.Counter
	ProvisioningFailures *prometheus.CounterVec
	SeedFailures         *prometheus.CounterVec
	SweepTenants         *prometheus.CounterVec
	SweepDuration        prometheus.Histogram
	RotationEntries      *prometheus.CounterVec
	TenantResolutions    *prometheus.CounterVec
	RegistryHealthy      prometheus.Gauge
	RegistryBreakerOpen  prometheus.Gauge
	TenantPoolsOpen      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TenantsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenants_created_total",
			Help:      "Total number of parishes provisioned",
		}),
		ProvisioningFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioning_failures_total",
			Help:      "Provisioning failures by stage",
		}, []string{"stage"}),
		SeedFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seed_failures_total",
			Help:      "Best-effort seeding failures by kind",
		}, []string{"kind"}),
		SweepTenants: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_tenants_total",
			Help:      "Parishes processed by ensure-ready sweeps, by result",
		}, []string{"result"}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of full ensure-ready sweeps",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		RotationEntries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_rotation_entries_total",
			Help:      "Registry entries visited by key rotation, by result",
		}, []string{"result"}),
		TenantResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_resolutions_total",
			Help:      "Tenant resolutions by resulting state",
		}, []string{"state"}),
		RegistryHealthy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_healthy",
			Help:      "1 when the last registry ping succeeded",
		}),
		RegistryBreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_breaker_open",
			Help:      "1 while a registry circuit breaker is open",
		}),
		TenantPoolsOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tenant_pools_open",
			Help:      "Tenant connection pools currently cached",
		}),
	}
}

func (m *Metrics) IncrementTenantCreated() {
	if m == nil {
		return
	}
	m.TenantsCreated.Inc()
}

func (m *Metrics) IncrementProvisioningFailure(stage string) {
	if m == nil {
		return
	}
	m.ProvisioningFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncrementSeedFailure(kind string) {
	if m == nil {
		return
	}
	m.SeedFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordSweepTenant(ok bool) {
	if m == nil {
		return
	}
	result := "ready"
	if !ok {
		result = "failed"
	}
	m.SweepTenants.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSweep(start time.Time) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(time.Since(start).Seconds())
}

// RecordRotation takes one of "updated", "skipped", "errored".
func (m *Metrics) RecordRotation(result string) {
	if m == nil {
		return
	}
	m.RotationEntries.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordResolution(state string) {
	if m == nil {
		return
	}
	m.TenantResolutions.WithLabelValues(state).Inc()
}

func (m *Metrics) SetRegistryHealthy(healthy bool) {
	if m == nil {
		return
	}
	m.RegistryHealthy.Set(boolToFloat(healthy))
}

func (m *Metrics) SetRegistryBreakerOpen(open bool) {
	if m == nil {
		return
	}
	m.RegistryBreakerOpen.Set(boolToFloat(open))
}

func (m *Metrics) AddTenantPools(delta float64) {
	if m == nil {
		return
	}
	m.TenantPoolsOpen.Add(delta)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
