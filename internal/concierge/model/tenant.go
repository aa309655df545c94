package model

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Tenant is one couple's account. DisplayName and WeddingDate are fast-access
// copies maintained by the kernel merger so the rest of the product does not
// have to load the kernel document.
type Tenant struct {
	ID          string
	Email       string
	DisplayName string
	WeddingDate string
	APIToken    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TenantRepository interface {
	// TenantByToken resolves the bearer credential to a tenant.
	TenantByToken(ctx context.Context, token string) (*Tenant, error)

	// SetDisplayName updates the tenant's display name cascade.
	SetDisplayName(ctx context.Context, tenantID, displayName string) error

	// SetWeddingDate updates the tenant's wedding date cascade.
	SetWeddingDate(ctx context.Context, tenantID, weddingDate string) error
}

type KernelRepository interface {
	// KernelByTenant loads the tenant's kernel. Returns ErrNotFound before
	// the first onboarding interaction.
	KernelByTenant(ctx context.Context, tenantID string) (*WeddingKernel, error)

	// SaveKernel upserts the kernel document in one statement.
	SaveKernel(ctx context.Context, k *WeddingKernel) error
}
