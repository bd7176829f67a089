package domain

import (
	"context"
	"time"
)

// Audit actions.
const (
	AuditTenantCreated    = "tenant.created"
	AuditTenantSeedFailed = "tenant.seed_failed"
	AuditTenantEnsured    = "tenant.ensured"
	AuditKeyRotated       = "tenant.key_rotated"
	AuditRotationFinished = "fleet.rotation_finished"
)

type AuditEvent struct {
	ID         string
	Timestamp  time.Time
	Action     string
	Actor      string
	PublicID   string
	KeyVersion int
	Success    bool
	Error      string
	Details    map[string]string
	Checksum   string
}

type AuditLogger interface {
	Record(ctx context.Context, event *AuditEvent)
}
