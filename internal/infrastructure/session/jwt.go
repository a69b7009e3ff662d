package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clientportal/client-service/internal/core/domain"
)

const (
	defaultTTL    = 24 * time.Hour
	defaultIssuer = "client-service"
)

// claims is the wire shape of a session credential.
type claims struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	jwt.RegisteredClaims
}

// JWTIssuer signs session credentials with a server-held HMAC secret.
// Expiry is the only invalidation mechanism.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// Option customises a JWTIssuer.
type Option func(*JWTIssuer)

// WithIssuer sets the iss claim written and required on verification.
func WithIssuer(iss string) Option {
	return func(i *JWTIssuer) {
		if iss != "" {
			i.issuer = iss
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(i *JWTIssuer) { i.now = now }
}

// NewJWTIssuer returns an issuer. ttl <= 0 falls back to 24h.
func NewJWTIssuer(secret string, ttl time.Duration, opts ...Option) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("session: signing secret is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	i := &JWTIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: defaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue mints a credential for client valid for the configured TTL.
func (i *JWTIssuer) Issue(client *domain.Client) (string, time.Time, error) {
	if client == nil || client.ID == "" {
		return "", time.Time{}, fmt.Errorf("issue session: %w: missing client id", domain.ErrInvalidInput)
	}

	issuedAt := i.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.ttl)

	c := claims{
		Email:     client.Email,
		FirstName: client.FirstName,
		LastName:  client.LastName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   client.ID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue session: %w", err)
	}
	return token, expiresAt, nil
}

// Verify checks signature, algorithm, issuer and expiry. A credential is
// valid strictly before its expiry instant. Every failure is reported as
// domain.ErrInvalidSession.
func (i *JWTIssuer) Verify(token string) (*domain.SessionClaims, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid || c.Subject == "" {
		return nil, domain.ErrInvalidSession
	}

	out := &domain.SessionClaims{
		Subject:   c.Subject,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		ExpiresAt: c.ExpiresAt.Time,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	return out, nil
}
