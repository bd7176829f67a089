package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TenantEntry is the registry row describing one parish's isolated resources.
// EncryptedConnection and KeyVersion are only ever written together.
type TenantEntry struct {
	ID                  int64
	PublicID            uuid.UUID
	DisplayName         string
	EncryptedConnection string
	KeyVersion          int
	CreatedAt           time.Time
}

// TenantRegistry is the durable store of tenant entries.
type TenantRegistry interface {
	Create(ctx context.Context, entry *TenantEntry) error
	FindByPublicID(ctx context.Context, publicID uuid.UUID) (*TenantEntry, error)
	UpdateEncryptedDescriptor(ctx context.Context, id int64, ciphertext string, keyVersion int) error
	ListAll(ctx context.Context) ([]*TenantEntry, error)
}
