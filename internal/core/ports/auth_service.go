package ports

import (
	"context"

	"github.com/clientportal/client-service/internal/core/domain"
)

// RegisterInput is the password registration request.
type RegisterInput struct {
	Profile  domain.ClientProfile
	Password string
	Logo     *AssetUpload
	Stamp    *AssetUpload
}

// AuthService resolves credentials to exactly one client and issues sessions.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.PublicProfile, error)
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	LoginWithExternalToken(ctx context.Context, rawToken string) (*domain.Session, error)
}
