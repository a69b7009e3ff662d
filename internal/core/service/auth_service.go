package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/clientportal/client-service/internal/core/domain"
	"github.com/clientportal/client-service/internal/core/ports"
	"github.com/clientportal/client-service/internal/metrics"
)

const (
	methodPassword = "password"
	methodGoogle   = "google"
)

// timingPlaintext is hashed once to obtain a digest for comparisons that must
// take as long as a real one.
const timingPlaintext = "timing-equalizer"

// AuthService resolves credentials to exactly one client and issues sessions.
// Password and external identities are never merged automatically.
type AuthService struct {
	clients  ports.ClientService
	hasher   ports.PasswordHasher
	verifier ports.IdentityVerifier
	sessions ports.SessionIssuer
	logger   zerolog.Logger

	dummyMu     sync.Mutex
	dummyDigest string
}

func NewAuthService(clients ports.ClientService, hasher ports.PasswordHasher, verifier ports.IdentityVerifier, sessions ports.SessionIssuer, logger zerolog.Logger) *AuthService {
	return &AuthService{
		clients:  clients,
		hasher:   hasher,
		verifier: verifier,
		sessions: sessions,
		logger:   logger,
	}
}

// Register creates a password account and returns its public profile.
func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (*domain.PublicProfile, error) {
	created, err := s.clients.CreateWithPassword(ctx, input.Profile, input.Password, input.Logo, input.Stamp)
	if err != nil {
		return nil, err
	}
	metrics.RegistrationsTotal.WithLabelValues(methodPassword).Inc()

	p := created.Public()
	return &p, nil
}

// Login authenticates with email and password. Unknown email, missing
// password and wrong password all fail with the same ErrInvalidCredentials
// after a comparable amount of work.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		if err := s.equalizeTiming(ctx, password); err != nil {
			return nil, err
		}
		return nil, s.loginFailed(methodPassword)
	}

	client, err := s.clients.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrClientNotFound) {
			return nil, err
		}
		if err := s.equalizeTiming(ctx, password); err != nil {
			return nil, err
		}
		return nil, s.loginFailed(methodPassword)
	}

	if !client.HasPassword() {
		if err := s.equalizeTiming(ctx, password); err != nil {
			return nil, err
		}
		return nil, s.loginFailed(methodPassword)
	}

	ok, err := s.hasher.Verify(ctx, password, client.PasswordHash)
	if err != nil {
		s.logger.Warn().Err(err).Msg("password comparison could not run")
		return nil, err
	}
	if !ok {
		return nil, s.loginFailed(methodPassword)
	}

	if s.hasher.NeedsRehash(client.PasswordHash) {
		if err := s.clients.UpgradePasswordHash(ctx, client.ID, password); err != nil {
			s.logger.Warn().Err(err).Str("client_id", client.ID).Msg("password rehash failed")
		}
	}

	return s.issue(client, methodPassword)
}

// LoginWithExternalToken verifies a third-party identity token and logs the
// matching client in, creating it on first sight of the subject.
func (s *AuthService) LoginWithExternalToken(ctx context.Context, rawToken string) (*domain.Session, error) {
	identity, err := s.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, s.loginFailed(methodGoogle)
	}

	client, err := s.clients.FindByExternalID(ctx, identity.SubjectID)
	switch {
	case err == nil:
		return s.issue(client, methodGoogle)
	case !errors.Is(err, domain.ErrClientNotFound):
		return nil, err
	}

	client, err = s.clients.CreateFromExternalIdentity(ctx, externalProfile(identity), identity.SubjectID)
	switch {
	case err == nil:
		metrics.RegistrationsTotal.WithLabelValues(methodGoogle).Inc()
	case errors.Is(err, domain.ErrDuplicateExternalID):
		// Another request registered the same subject first.
		client, err = s.clients.FindByExternalID(ctx, identity.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("refetch external client: %w", err)
		}
	case errors.Is(err, domain.ErrDuplicateEmail):
		// The email belongs to an account on another identity path.
		s.logger.Info().Str("subject", identity.SubjectID).Msg("external login refused: email already registered")
		return nil, s.loginFailed(methodGoogle)
	default:
		return nil, err
	}

	return s.issue(client, methodGoogle)
}

func (s *AuthService) issue(client *domain.Client, method string) (*domain.Session, error) {
	token, expiresAt, err := s.sessions.Issue(client)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	metrics.LoginAttemptsTotal.WithLabelValues(method, "success").Inc()
	s.logger.Info().Str("client_id", client.ID).Str("method", method).Msg("login succeeded")

	return &domain.Session{
		Token:     token,
		ExpiresAt: expiresAt,
		Profile:   client.Public(),
	}, nil
}

func (s *AuthService) loginFailed(method string) error {
	metrics.LoginAttemptsTotal.WithLabelValues(method, "failure").Inc()
	return domain.ErrInvalidCredentials
}

// equalizeTiming runs a full digest comparison whose result is discarded.
// It fails the same way a real comparison would when hashing is unavailable,
// so an unknown email is not told apart from a known one.
func (s *AuthService) equalizeTiming(ctx context.Context, password string) error {
	digest, err := s.timingDigest(ctx)
	if err != nil {
		return err
	}
	_, err = s.hasher.Verify(ctx, password, digest)
	return err
}

// timingDigest hashes timingPlaintext on first use. A failed attempt is
// retried by the next caller.
func (s *AuthService) timingDigest(ctx context.Context) (string, error) {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()

	if s.dummyDigest != "" {
		return s.dummyDigest, nil
	}
	digest, err := s.hasher.Hash(context.WithoutCancel(ctx), timingPlaintext)
	if err != nil {
		return "", err
	}
	s.dummyDigest = digest
	return digest, nil
}

// externalProfile fills the attributes an identity token cannot supply with
// placeholders.
func externalProfile(identity *domain.ExternalIdentity) domain.ClientProfile {
	first := strings.TrimSpace(identity.GivenName)
	last := strings.TrimSpace(identity.FamilyName)
	if first == "" {
		if r := []rune(last); len(r) > 0 {
			first = string(r[0])
		} else {
			first = domain.PlaceholderFirstName
		}
	}
	if last == "" {
		last = domain.PlaceholderLastName
	}
	return domain.ClientProfile{
		Email:       identity.Email,
		FirstName:   first,
		LastName:    last,
		PhoneNumber: domain.PlaceholderPhone,
		Address:     domain.PlaceholderAddress,
	}
}
