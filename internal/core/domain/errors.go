package domain

import "errors"

var (
	// ErrInvalidInput reports a malformed request shape (missing required
	// field, empty password, unparsable id).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials is the single error returned for every failed
	// login: unknown email, wrong password, password-less account or a bad
	// external token.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrDuplicateEmail      = errors.New("email already registered")
	ErrDuplicateExternalID = errors.New("external identity already registered")
	ErrClientNotFound      = errors.New("client not found")

	// ErrVerificationFailed is returned by identity verifiers for any
	// structural, signature, audience, issuer or expiry failure. It never
	// leaves the auth service; callers see ErrInvalidCredentials.
	ErrVerificationFailed = errors.New("identity verification failed")

	// ErrStorageUnavailable marks transient infrastructure faults. Callers may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrAssetCleanupFailed is logged when a stored file could not be removed.
	// It is never returned to the caller of the operation that triggered it.
	ErrAssetCleanupFailed = errors.New("asset cleanup failed")

	// ErrInvalidSession covers tampered, expired or malformed session credentials.
	ErrInvalidSession = errors.New("invalid session")

	ErrForbidden = errors.New("access forbidden")
)
