package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/clientportal/client-service/internal/core/domain"
	"github.com/clientportal/client-service/internal/metrics"
)

const (
	DefaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	defaultRefreshInterval = time.Hour
	defaultFetchTimeout    = 5 * time.Second
	defaultRetryBackoff    = 500 * time.Millisecond
)

// Issuers accepted in the iss claim of Google ID tokens.
var Issuers = []string{"accounts.google.com", "https://accounts.google.com"}

// Config holds Google ID token verification settings.
type Config struct {
	// ClientID is this application's OAuth client id; tokens must carry it as audience.
	ClientID string

	JWKSURL         string
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
	RetryBackoff    time.Duration
	ClockSkew       time.Duration

	HTTPClient *http.Client
}

// KeySource resolves the verification key for a parsed token.
// *keyfunc.JWKS satisfies it.
type KeySource interface {
	Keyfunc(token *jwt.Token) (interface{}, error)
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	jwt.RegisteredClaims
}

// Verifier validates Google ID tokens.
type Verifier struct {
	cfg  Config
	keys func(ctx context.Context) (KeySource, error)
	now  func() time.Time
	log  zerolog.Logger

	remote *remoteKeys
}

// NewVerifier returns a Verifier that fetches signing keys from cfg.JWKSURL.
// Keys are loaded on first use and refreshed in the background afterwards.
func NewVerifier(cfg Config, log zerolog.Logger) (*Verifier, error) {
	cfg = withDefaults(cfg)
	if cfg.ClientID == "" {
		return nil, errors.New("google: client id is required")
	}
	remote := &remoteKeys{cfg: cfg, log: log}
	return &Verifier{
		cfg:    cfg,
		keys:   remote.get,
		now:    time.Now,
		log:    log,
		remote: remote,
	}, nil
}

// NewVerifierWithKeys returns a Verifier using a fixed key source.
func NewVerifierWithKeys(cfg Config, keys KeySource, now func() time.Time, log zerolog.Logger) *Verifier {
	cfg = withDefaults(cfg)
	if now == nil {
		now = time.Now
	}
	return &Verifier{
		cfg:  cfg,
		keys: func(context.Context) (KeySource, error) { return keys, nil },
		now:  now,
		log:  log,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = DefaultJWKSURL
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.ClockSkew < 0 {
		cfg.ClockSkew = 0
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.FetchTimeout}
	}
	return cfg
}

// Verify validates rawToken and returns the identity it asserts. Any failure
// yields domain.ErrVerificationFailed; the concrete reason is only logged.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*domain.ExternalIdentity, error) {
	identity, reason := v.verify(ctx, rawToken)
	if reason != nil {
		v.log.Debug().Err(reason).Msg("google token rejected")
		return nil, domain.ErrVerificationFailed
	}
	return identity, nil
}

func (v *Verifier) verify(ctx context.Context, rawToken string) (*domain.ExternalIdentity, error) {
	if rawToken == "" {
		return nil, errors.New("empty token")
	}

	keys, err := v.keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("signing keys: %w", err)
	}

	var c idTokenClaims
	token, err := jwt.ParseWithClaims(rawToken, &c, keys.Keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.cfg.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.cfg.ClockSkew),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	if !validIssuer(c.Issuer) {
		return nil, fmt.Errorf("unexpected issuer %q", c.Issuer)
	}
	if c.Subject == "" {
		return nil, errors.New("missing sub claim")
	}
	if c.Email == "" {
		return nil, errors.New("missing email claim")
	}
	if !c.EmailVerified {
		return nil, errors.New("email not verified by provider")
	}

	return &domain.ExternalIdentity{
		SubjectID:  c.Subject,
		Email:      domain.NormalizeEmail(c.Email),
		GivenName:  c.GivenName,
		FamilyName: c.FamilyName,
	}, nil
}

// Close stops the background key refresh, if one was started.
func (v *Verifier) Close() {
	if v.remote != nil {
		v.remote.close()
	}
}

func validIssuer(iss string) bool {
	for _, accepted := range Issuers {
		if iss == accepted {
			return true
		}
	}
	return false
}

// remoteKeys lazily loads the JWKS. The first fetch is retried once after a
// backoff; if both attempts fail the callers are refused and the next request
// tries again. Concurrent callers share one load, and each stops waiting when
// its own context ends.
type remoteKeys struct {
	cfg Config
	log zerolog.Logger

	loads singleflight.Group

	mu     sync.Mutex
	jwks   *keyfunc.JWKS
	closed bool
}

func (r *remoteKeys) get(ctx context.Context) (KeySource, error) {
	if jwks := r.cached(); jwks != nil {
		return jwks, nil
	}

	ch := r.loads.DoChan("jwks", func() (any, error) {
		return r.load()
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*keyfunc.JWKS), nil
	}
}

func (r *remoteKeys) cached() *keyfunc.JWKS {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jwks
}

// load runs detached from any request; each fetch is bounded by FetchTimeout.
func (r *remoteKeys) load() (*keyfunc.JWKS, error) {
	if jwks := r.cached(); jwks != nil {
		return jwks, nil
	}

	jwks, err := r.fetch()
	if err != nil {
		metrics.IdentityKeyFetchErrorsTotal.Inc()
		r.log.Warn().Err(err).Str("jwks_url", r.cfg.JWKSURL).Msg("google signing keys fetch failed, retrying")

		time.Sleep(r.cfg.RetryBackoff)

		jwks, err = r.fetch()
		if err != nil {
			metrics.IdentityKeyFetchErrorsTotal.Inc()
			r.log.Error().Err(err).Str("jwks_url", r.cfg.JWKSURL).Msg("google signing keys unavailable")
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		jwks.EndBackground()
		return nil, errors.New("verifier closed")
	}
	r.jwks = jwks
	return jwks, nil
}

func (r *remoteKeys) fetch() (*keyfunc.JWKS, error) {
	return keyfunc.Get(r.cfg.JWKSURL, keyfunc.Options{
		Client: r.cfg.HTTPClient,
		RefreshErrorHandler: func(err error) {
			metrics.IdentityKeyFetchErrorsTotal.Inc()
			r.log.Warn().Err(err).Msg("background refresh of google signing keys failed")
		},
		RefreshInterval:   r.cfg.RefreshInterval,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    r.cfg.FetchTimeout,
		RefreshUnknownKID: true,
	})
}

func (r *remoteKeys) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.jwks != nil {
		r.jwks.EndBackground()
		r.jwks = nil
	}
}
