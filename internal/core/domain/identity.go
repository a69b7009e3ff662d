package domain

import "time"

// ExternalIdentity is the verified content of a third-party identity token.
type ExternalIdentity struct {
	SubjectID  string
	Email      string
	GivenName  string
	FamilyName string
}

// SessionClaims is the identity asserted by a session credential.
type SessionClaims struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is returned by every successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Profile   PublicProfile
}
