package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clientportal/client-service/internal/core/domain"
	"github.com/clientportal/client-service/internal/core/ports"
	"github.com/clientportal/client-service/internal/infrastructure/hashing"
)

// stubClientRepo enforces email and external id uniqueness under one mutex,
// like the unique indexes of the real store.
type stubClientRepo struct {
	mu      sync.Mutex
	clients map[string]*domain.Client
	seq     int

	insertErr error
	updateErr error
	// beforeInsert runs under no lock before uniqueness is checked.
	beforeInsert func(c *domain.Client)
	// afterFind runs under no lock once FindByID has read a record.
	afterFind func(id string)
}

func newStubClientRepo() *stubClientRepo {
	return &stubClientRepo{clients: make(map[string]*domain.Client)}
}

func cloneClient(c *domain.Client) *domain.Client {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

func withoutDigest(c *domain.Client) *domain.Client {
	clone := cloneClient(c)
	clone.PasswordHash = ""
	return clone
}

func (r *stubClientRepo) Insert(_ context.Context, c *domain.Client) (*domain.Client, error) {
	if r.beforeInsert != nil {
		r.beforeInsert(c)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.insertErr != nil {
		return nil, r.insertErr
	}
	for _, existing := range r.clients {
		if c.ExternalID != "" && existing.ExternalID == c.ExternalID {
			return nil, domain.ErrDuplicateExternalID
		}
		if existing.Email == domain.NormalizeEmail(c.Email) {
			return nil, domain.ErrDuplicateEmail
		}
	}

	r.seq++
	stored := cloneClient(c)
	stored.ID = fmt.Sprintf("client-%d", r.seq)
	stored.Email = domain.NormalizeEmail(c.Email)
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	r.clients[stored.ID] = stored
	return cloneClient(stored), nil
}

func (r *stubClientRepo) FindByID(_ context.Context, id string) (*domain.Client, error) {
	r.mu.Lock()
	c, ok := r.clients[id]
	if !ok {
		r.mu.Unlock()
		return nil, domain.ErrClientNotFound
	}
	found := withoutDigest(c)
	r.mu.Unlock()

	if hook := r.afterFind; hook != nil {
		r.afterFind = nil
		hook(id)
	}
	return found, nil
}

func (r *stubClientRepo) FindByExternalID(_ context.Context, externalID string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if externalID != "" && c.ExternalID == externalID {
			return withoutDigest(c), nil
		}
	}
	return nil, domain.ErrClientNotFound
}

func (r *stubClientRepo) FindCredentialsByEmail(_ context.Context, email string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.Email == domain.NormalizeEmail(email) {
			return cloneClient(c), nil
		}
	}
	return nil, domain.ErrClientNotFound
}

func (r *stubClientRepo) Update(_ context.Context, id string, update domain.ClientUpdate) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	c, ok := r.clients[id]
	if !ok {
		return nil, domain.ErrClientNotFound
	}
	if update.Email != nil {
		for otherID, other := range r.clients {
			if otherID != id && other.Email == domain.NormalizeEmail(*update.Email) {
				return nil, domain.ErrDuplicateEmail
			}
		}
	}
	update.Apply(c)
	c.UpdatedAt = time.Now().UTC()
	return withoutDigest(c), nil
}

func (r *stubClientRepo) SetPasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return domain.ErrClientNotFound
	}
	c.PasswordHash = hash
	return nil
}

func (r *stubClientRepo) Delete(_ context.Context, id string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, domain.ErrClientNotFound
	}
	delete(r.clients, id)
	return withoutDigest(c), nil
}

func (r *stubClientRepo) List(_ context.Context, filter ports.ListClientsFilter) ([]*domain.Client, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := (filter.Page - 1) * filter.Limit
	var out []*domain.Client
	for i := start; i < len(ids) && i < start+filter.Limit; i++ {
		out = append(out, withoutDigest(r.clients[ids[i]]))
	}
	return out, int64(len(ids)), nil
}

func (r *stubClientRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *stubClientRepo) digest(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		return c.PasswordHash
	}
	return ""
}

type stubStorage struct {
	mu        sync.Mutex
	files     map[string][]byte
	seq       int
	saveErr   error
	deleteErr error
	deleted   []string
}

func newStubStorage() *stubStorage {
	return &stubStorage{files: make(map[string][]byte)}
}

func (s *stubStorage) Save(_ context.Context, data []byte, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.seq++
	path := fmt.Sprintf("/uploads/%d-%s", s.seq, name)
	s.files[path] = data
	return path, nil
}

// Delete gives up on a done context, as LocalStorage does.
func (s *stubStorage) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, path)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.files, path)
	return nil
}

func (s *stubStorage) has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

func (s *stubStorage) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// stubCache mirrors the Redis cache, including the tombstone an Invalidate
// leaves behind.
type stubCache struct {
	mu         sync.Mutex
	entries    map[string]domain.PublicProfile
	tombstones map[string]bool
	err        error
	hits       int
}

func newStubCache() *stubCache {
	return &stubCache{
		entries:    make(map[string]domain.PublicProfile),
		tombstones: make(map[string]bool),
	}
}

func (c *stubCache) Get(_ context.Context, id string) (*domain.PublicProfile, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	p, ok := c.entries[id]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &p, true, nil
}

func (c *stubCache) Set(_ context.Context, p domain.PublicProfile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.tombstones[p.ID] {
		return nil
	}
	c.entries[p.ID] = p
	return nil
}

func (c *stubCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	delete(c.entries, id)
	c.tombstones[id] = true
	return nil
}

func (c *stubCache) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

type stubVerifier struct {
	identities map[string]domain.ExternalIdentity
}

func (v *stubVerifier) Verify(_ context.Context, raw string) (*domain.ExternalIdentity, error) {
	id, ok := v.identities[raw]
	if !ok {
		return nil, domain.ErrVerificationFailed
	}
	return &id, nil
}

var errStorageDown = errors.New("storage down")

// testHasher uses bcrypt's minimum cost and runs inline.
func testHasher() *hashing.BcryptHasher {
	return hashing.NewBcryptHasher(bcrypt.MinCost, nil)
}
