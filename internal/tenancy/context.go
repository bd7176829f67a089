package tenancy

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spounge-ai/parishvault/internal/domain"
)

type State int

const (
	StateUnset State = iota
	StateInvalid
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StateResolved:
		return "resolved"
	default:
		return "unset"
	}
}

// TenantContext is the outcome of resolving one unit of work. It is owned
// by that unit of work and must be closed when it ends.
type TenantContext struct {
	requestedID string
	state       State
	publicID    uuid.UUID
	displayName string
	descriptor  *domain.ConnectionDescriptor
	err         error
	override    *domain.ConnectionDescriptor
}

func unset() *TenantContext {
	return &TenantContext{state: StateUnset}
}

func invalid(requestedID string, err error) *TenantContext {
	return &TenantContext{requestedID: requestedID, state: StateInvalid, err: err}
}

func resolved(requestedID string, entry *domain.TenantEntry, d *domain.ConnectionDescriptor) *TenantContext {
	return &TenantContext{
		requestedID: requestedID,
		state:       StateResolved,
		publicID:    entry.PublicID,
		displayName: entry.DisplayName,
		descriptor:  d,
	}
}

func (tc *TenantContext) State() State {
	if tc == nil {
		return StateUnset
	}
	return tc.state
}

func (tc *TenantContext) IsResolved() bool {
	return tc.State() == StateResolved
}

// RequestedID is the raw identifier the unit of work asked for.
func (tc *TenantContext) RequestedID() string {
	if tc == nil {
		return ""
	}
	return tc.requestedID
}

func (tc *TenantContext) PublicID() uuid.UUID {
	if tc == nil {
		return uuid.Nil
	}
	return tc.publicID
}

func (tc *TenantContext) DisplayName() string {
	if tc == nil {
		return ""
	}
	return tc.displayName
}

// Err is why resolution ended in StateInvalid.
func (tc *TenantContext) Err() error {
	if tc == nil {
		return nil
	}
	return tc.err
}

// ConnectionDescriptor returns the resolved descriptor, or the override of
// a no-op context, or nil.
func (tc *TenantContext) ConnectionDescriptor() *domain.ConnectionDescriptor {
	if tc == nil {
		return nil
	}
	if tc.state == StateResolved {
		return tc.descriptor
	}
	return tc.override
}

// Close wipes the descriptors. The context reads as unset afterwards.
func (tc *TenantContext) Close() {
	if tc == nil {
		return
	}
	tc.descriptor.Wipe()
	tc.override.Wipe()
	tc.descriptor = nil
	tc.override = nil
	tc.state = StateUnset
}

func (tc *TenantContext) LogValue() slog.Value {
	if tc == nil {
		return slog.StringValue("<nil>")
	}
	attrs := []slog.Attr{
		slog.String("state", tc.state.String()),
		slog.String("requested_id", tc.requestedID),
	}
	if tc.state == StateResolved {
		attrs = append(attrs, slog.String("public_id", tc.publicID.String()))
	}
	return slog.GroupValue(attrs...)
}

type contextKey struct{}

func WithContext(ctx context.Context, tc *TenantContext) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext returns the TenantContext stored in ctx, if any.
func FromContext(ctx context.Context) (*TenantContext, bool) {
	tc, ok := ctx.Value(contextKey{}).(*TenantContext)
	return tc, ok && tc != nil
}
