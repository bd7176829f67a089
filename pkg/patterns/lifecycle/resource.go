package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// HealthStatus represents the health of a component.
type HealthStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message,omitempty"`
}

// ManagedResource defines a component with a managed lifecycle.
type ManagedResource interface {
	Name() string

	// Start initializes and starts the component. It should be idempotent.
	Start(ctx context.Context) error

	// Stop releases the component's resources. It should be idempotent.
	Stop(ctx context.Context) error

	Health(ctx context.Context) HealthStatus
}

// Group starts resources in order and stops them in reverse.
type Group struct {
	logger    *slog.Logger
	resources []ManagedResource
	started   int
}

func NewGroup(logger *slog.Logger, resources ...ManagedResource) *Group {
	return &Group{logger: logger, resources: resources}
}

// Start starts every resource. On failure the already started ones are
// stopped before the error is returned.
func (g *Group) Start(ctx context.Context) error {
	for _, r := range g.resources[g.started:] {
		if err := r.Start(ctx); err != nil {
			stopErr := g.Stop(ctx)
			return errors.Join(fmt.Errorf("start %s: %w", r.Name(), err), stopErr)
		}
		g.started++
		g.logger.InfoContext(ctx, "resource started", "resource", r.Name())
	}
	return nil
}

func (g *Group) Stop(ctx context.Context) error {
	var errs []error
	for i := g.started - 1; i >= 0; i-- {
		r := g.resources[i]
		if err := r.Stop(ctx); err != nil {
			g.logger.ErrorContext(ctx, "failed to stop resource", "resource", r.Name(), "error", err)
			errs = append(errs, fmt.Errorf("stop %s: %w", r.Name(), err))
			continue
		}
		g.logger.InfoContext(ctx, "resource stopped", "resource", r.Name())
	}
	g.started = 0
	return errors.Join(errs...)
}

// Health reports per resource health keyed by name.
func (g *Group) Health(ctx context.Context) map[string]HealthStatus {
	out := make(map[string]HealthStatus, len(g.resources))
	for _, r := range g.resources {
		out[r.Name()] = r.Health(ctx)
	}
	return out
}
