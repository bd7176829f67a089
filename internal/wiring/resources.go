package wiring

import (
	"context"
	"sync"
	"time"

	"github.com/spounge-ai/parishvault/internal/infra/persistence"
	"github.com/spounge-ai/parishvault/pkg/patterns/lifecycle"
)

// MonitorResource runs a ConnectionMonitor in the background for the
// lifetime of the process.
type MonitorResource struct {
	monitor  *persistence.ConnectionMonitor
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ lifecycle.ManagedResource = (*MonitorResource)(nil)

func NewMonitorResource(monitor *persistence.ConnectionMonitor, interval time.Duration) *MonitorResource {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &MonitorResource{monitor: monitor, interval: interval}
}

func (r *MonitorResource) Name() string { return "registry-monitor" }

func (r *MonitorResource) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}

	r.monitor.Check(ctx)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		r.monitor.Start(runCtx, r.interval)
	}(r.done)
	return nil
}

func (r *MonitorResource) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *MonitorResource) Health(_ context.Context) lifecycle.HealthStatus {
	if r.monitor.IsHealthy() {
		return lifecycle.HealthStatus{Ready: true}
	}
	return lifecycle.HealthStatus{Ready: false, Message: "registry unreachable"}
}
