package ports

import (
	"context"
	"time"

	"github.com/clientportal/client-service/internal/core/domain"
)

// PasswordHasher produces and checks salted one-way password digests.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	// Verify reports a missing or malformed digest as a mismatch. An error
	// means the comparison could not run and says nothing about the password.
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
	NeedsRehash(digest string) bool
}

// IdentityVerifier validates a third-party identity token.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (*domain.ExternalIdentity, error)
}

// SessionIssuer mints and validates signed, time-bound session credentials.
type SessionIssuer interface {
	Issue(client *domain.Client) (token string, expiresAt time.Time, err error)
	Verify(token string) (*domain.SessionClaims, error)
}

// FileStorage persists asset bytes and returns a path to reference them.
type FileStorage interface {
	Save(ctx context.Context, data []byte, suggestedName string) (string, error)
	Delete(ctx context.Context, path string) error
}

// AuthCodeExchanger runs the browser redirect variant of external login: it
// builds the consent URL and trades the returned code for a raw identity token.
type AuthCodeExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}
