package ports

import (
	"context"

	"github.com/clientportal/client-service/internal/core/domain"
)

// ListClientsFilter carries paging parameters for listing clients.
type ListClientsFilter struct {
	Page  int // 1-based
	Limit int // max rows per page (capped at 100 by service)
}

// ClientRepository defines persistence operations for clients.
//
// Uniqueness of email and external id must be enforced atomically by the
// store: a concurrent duplicate insert surfaces as domain.ErrDuplicateEmail
// or domain.ErrDuplicateExternalID, never as a second record.
type ClientRepository interface {
	Insert(ctx context.Context, c *domain.Client) (*domain.Client, error)
	FindByID(ctx context.Context, id string) (*domain.Client, error)
	FindByExternalID(ctx context.Context, externalID string) (*domain.Client, error)
	// FindCredentialsByEmail is the only finder that returns the password digest.
	FindCredentialsByEmail(ctx context.Context, email string) (*domain.Client, error)
	Update(ctx context.Context, id string, update domain.ClientUpdate) (*domain.Client, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
	// Delete removes the record and returns it as it was before removal.
	Delete(ctx context.Context, id string) (*domain.Client, error)
	List(ctx context.Context, filter ListClientsFilter) ([]*domain.Client, int64, error)
}

// ProfileCache is a read-through cache of public profiles.
// Implementations must be safe to bypass: a cache error never fails a request.
//
// Invalidate must also keep a Set that races with it from restoring the old
// entry: a profile read before an update or delete committed may reach Set
// after the matching Invalidate, and must then be dropped.
type ProfileCache interface {
	Get(ctx context.Context, id string) (*domain.PublicProfile, bool, error)
	Set(ctx context.Context, profile domain.PublicProfile) error
	Invalidate(ctx context.Context, id string) error
}
