package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clientportal/client-service/internal/core/domain"
	"github.com/clientportal/client-service/internal/core/ports"
	"github.com/clientportal/client-service/internal/metrics"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	// sideEffectTimeout bounds the cleanup that follows a committed write.
	sideEffectTimeout = 5 * time.Second
)

// ClientService is the credential store. It owns every write to a client
// record, including password digests and asset references.
type ClientService struct {
	repo   ports.ClientRepository
	hasher ports.PasswordHasher
	files  ports.FileStorage
	cache  ports.ProfileCache
	logger zerolog.Logger
}

// NewClientService wires the store. cache may be nil.
func NewClientService(repo ports.ClientRepository, hasher ports.PasswordHasher, files ports.FileStorage, cache ports.ProfileCache, logger zerolog.Logger) *ClientService {
	return &ClientService{
		repo:   repo,
		hasher: hasher,
		files:  files,
		cache:  cache,
		logger: logger,
	}
}

// CreateWithPassword hashes the password and persists a new client. Asset
// files are written first and removed again if the record cannot be stored.
func (s *ClientService) CreateWithPassword(ctx context.Context, profile domain.ClientProfile, password string, logo, stamp *ports.AssetUpload) (*domain.Client, error) {
	profile.Email = domain.NormalizeEmail(profile.Email)
	if profile.Email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}

	var saved []string
	if logo != nil {
		path, err := s.files.Save(ctx, logo.Data, logo.Filename)
		if err != nil {
			return nil, fmt.Errorf("save logo: %w", err)
		}
		profile.LogoPath = path
		saved = append(saved, path)
	}
	if stamp != nil {
		path, err := s.files.Save(ctx, stamp.Data, stamp.Filename)
		if err != nil {
			s.cleanupAssets(ctx, "", saved...)
			return nil, fmt.Errorf("save stamp: %w", err)
		}
		profile.StampPath = path
		saved = append(saved, path)
	}

	created, err := s.repo.Insert(ctx, &domain.Client{
		Email:        profile.Email,
		PasswordHash: hash,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		PhoneNumber:  profile.PhoneNumber,
		Address:      profile.Address,
		LogoPath:     profile.LogoPath,
		StampPath:    profile.StampPath,
	})
	if err != nil {
		s.cleanupAssets(ctx, "", saved...)
		return nil, err
	}

	s.logger.Info().Str("client_id", created.ID).Str("method", "password").Msg("client registered")
	return created, nil
}

// CreateFromExternalIdentity persists a password-less client keyed by
// externalID.
func (s *ClientService) CreateFromExternalIdentity(ctx context.Context, profile domain.ClientProfile, externalID string) (*domain.Client, error) {
	profile.Email = domain.NormalizeEmail(profile.Email)
	if externalID == "" || profile.Email == "" {
		return nil, fmt.Errorf("%w: external id and email are required", domain.ErrInvalidInput)
	}

	created, err := s.repo.Insert(ctx, &domain.Client{
		Email:       profile.Email,
		ExternalID:  externalID,
		FirstName:   profile.FirstName,
		LastName:    profile.LastName,
		PhoneNumber: profile.PhoneNumber,
		Address:     profile.Address,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("client_id", created.ID).Str("method", "google").Msg("client registered")
	return created, nil
}

// FindByEmail returns the client with its password digest. It exists for the
// login path only.
func (s *ClientService) FindByEmail(ctx context.Context, email string) (*domain.Client, error) {
	return s.repo.FindCredentialsByEmail(ctx, domain.NormalizeEmail(email))
}

func (s *ClientService) FindByExternalID(ctx context.Context, externalID string) (*domain.Client, error) {
	return s.repo.FindByExternalID(ctx, externalID)
}

// Get returns the public profile, reading through the profile cache.
func (s *ClientService) Get(ctx context.Context, id string) (*domain.PublicProfile, error) {
	if cached, ok := s.cacheGet(ctx, id); ok {
		return cached, nil
	}

	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p := c.Public()
	s.cacheSet(ctx, p)
	return &p, nil
}

// Update applies a partial update. New asset bytes are stored before the
// record points at them and the replaced file is removed only afterwards, so
// the profile never references a missing asset.
func (s *ClientService) Update(ctx context.Context, id string, input ports.UpdateClientInput) (*domain.PublicProfile, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := input.Fields
	if fields.Email != nil {
		email := domain.NormalizeEmail(*fields.Email)
		if email == "" {
			return nil, fmt.Errorf("%w: email cannot be empty", domain.ErrInvalidInput)
		}
		fields.Email = &email
	}

	var written, replaced []string
	if input.Logo != nil {
		path, err := s.files.Save(ctx, input.Logo.Data, input.Logo.Filename)
		if err != nil {
			return nil, fmt.Errorf("save logo: %w", err)
		}
		fields.LogoPath = &path
		written = append(written, path)
		replaced = append(replaced, existing.LogoPath)
	}
	if input.Stamp != nil {
		path, err := s.files.Save(ctx, input.Stamp.Data, input.Stamp.Filename)
		if err != nil {
			s.cleanupAssets(ctx, id, written...)
			return nil, fmt.Errorf("save stamp: %w", err)
		}
		fields.StampPath = &path
		written = append(written, path)
		replaced = append(replaced, existing.StampPath)
	}

	if fields.IsEmpty() {
		p := existing.Public()
		return &p, nil
	}

	updated, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		s.cleanupAssets(ctx, id, written...)
		return nil, err
	}

	s.cleanupAssets(ctx, id, replaced...)
	s.cacheInvalidate(ctx, id)

	p := updated.Public()
	return &p, nil
}

// Delete removes the client, then its asset files. A failed file delete is
// logged and counted; it never undoes the record removal.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.cleanupAssets(ctx, id, removed.LogoPath, removed.StampPath)
	s.cacheInvalidate(ctx, id)

	s.logger.Info().Str("client_id", id).Msg("client deleted")
	return nil
}

// List returns one page of public profiles.
func (s *ClientService) List(ctx context.Context, filter ports.ListClientsFilter) (*ports.ListClientsResult, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}

	clients, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]domain.PublicProfile, 0, len(clients))
	for _, c := range clients {
		items = append(items, c.Public())
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &ports.ListClientsResult{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
	}, nil
}

// UpgradePasswordHash re-hashes plaintext with the current cost and stores it.
// The caller must already have verified plaintext against the old digest.
func (s *ClientService) UpgradePasswordHash(ctx context.Context, id, plaintext string) error {
	hash, err := s.hasher.Hash(ctx, plaintext)
	if err != nil {
		return err
	}
	return s.repo.SetPasswordHash(ctx, id, hash)
}

// cleanupAssets removes files best-effort. It runs on a context detached from
// the request, since the write it follows is already committed and a client
// disconnect must not leave the files behind.
func (s *ClientService) cleanupAssets(ctx context.Context, clientID string, paths ...string) {
	ctx, cancel := detached(ctx)
	defer cancel()

	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := s.files.Delete(ctx, path); err != nil {
			metrics.AssetCleanupFailuresTotal.Inc()
			s.logger.Warn().
				Err(errors.Join(domain.ErrAssetCleanupFailed, err)).
				Str("client_id", clientID).
				Str("path", path).
				Msg("asset cleanup failed")
		}
	}
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
}

func (s *ClientService) cacheGet(ctx context.Context, id string) (*domain.PublicProfile, bool) {
	if s.cache == nil {
		return nil, false
	}
	p, ok, err := s.cache.Get(ctx, id)
	switch {
	case err != nil:
		metrics.ProfileCacheTotal.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Str("client_id", id).Msg("profile cache read failed")
		return nil, false
	case ok:
		metrics.ProfileCacheTotal.WithLabelValues("hit").Inc()
		return p, true
	}
	metrics.ProfileCacheTotal.WithLabelValues("miss").Inc()
	return nil, false
}

func (s *ClientService) cacheSet(ctx context.Context, p domain.PublicProfile) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.logger.Warn().Err(err).Str("client_id", p.ID).Msg("profile cache write failed")
	}
}

// cacheInvalidate drops the cached profile and blocks concurrent reads from
// putting it back. It is retried once, detached from the request.
func (s *ClientService) cacheInvalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	ctx, cancel := detached(ctx)
	defer cancel()

	err := s.cache.Invalidate(ctx, id)
	if err != nil {
		err = s.cache.Invalidate(ctx, id)
	}
	if err != nil {
		metrics.ProfileCacheTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("client_id", id).Msg("profile cache invalidate failed")
	}
}
