package ports

import (
	"context"

	"github.com/clientportal/client-service/internal/core/domain"
)

// AssetUpload is raw file content submitted for a logo or stamp slot.
type AssetUpload struct {
	Filename string
	Data     []byte
}

// UpdateClientInput carries a partial profile update and optional new assets.
type UpdateClientInput struct {
	Fields domain.ClientUpdate
	Logo   *AssetUpload
	Stamp  *AssetUpload
}

// ListClientsResult is returned by ClientService.List.
type ListClientsResult struct {
	Items      []domain.PublicProfile
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// ClientService is the credential store used by the auth flows and the
// profile endpoints.
type ClientService interface {
	CreateWithPassword(ctx context.Context, profile domain.ClientProfile, password string, logo, stamp *AssetUpload) (*domain.Client, error)
	CreateFromExternalIdentity(ctx context.Context, profile domain.ClientProfile, externalID string) (*domain.Client, error)
	// FindByEmail includes the password digest and is reserved for login.
	FindByEmail(ctx context.Context, email string) (*domain.Client, error)
	FindByExternalID(ctx context.Context, externalID string) (*domain.Client, error)
	Get(ctx context.Context, id string) (*domain.PublicProfile, error)
	Update(ctx context.Context, id string, input UpdateClientInput) (*domain.PublicProfile, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListClientsFilter) (*ListClientsResult, error)
	UpgradePasswordHash(ctx context.Context, id, plaintext string) error
}
