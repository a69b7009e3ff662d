package domain

import (
	"strings"
	"time"
)

// Placeholder values for accounts created through an external identity
// provider, where the profile attributes required by password registration
// are unknown.
const (
	PlaceholderFirstName = "User"
	PlaceholderLastName  = ""
	PlaceholderPhone     = "9999999999"
	PlaceholderAddress   = ""
)

// Client is the registered account entity.
type Client struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ExternalID   string    `json:"external_id,omitempty"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PhoneNumber  string    `json:"phone_number"`
	Address      string    `json:"address"`
	LogoPath     string    `json:"logo_url,omitempty"`
	StampPath    string    `json:"stamp_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasPassword reports whether password login is possible for this client.
func (c *Client) HasPassword() bool {
	return c != nil && c.PasswordHash != ""
}

// Public returns the externally visible view of the client.
func (c *Client) Public() PublicProfile {
	return PublicProfile{
		ID:           c.ID,
		Email:        c.Email,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		PhoneNumber:  c.PhoneNumber,
		Address:      c.Address,
		LogoPath:     c.LogoPath,
		StampPath:    c.StampPath,
		GoogleLinked: c.ExternalID != "",
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// PublicProfile is the only client shape that crosses the API boundary.
// It has no slot for the password digest.
type PublicProfile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PhoneNumber  string    `json:"phone_number"`
	Address      string    `json:"address"`
	LogoPath     string    `json:"logo_url,omitempty"`
	StampPath    string    `json:"stamp_url,omitempty"`
	GoogleLinked bool      `json:"google_linked"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ClientProfile carries the attributes supplied when a client is created.
type ClientProfile struct {
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber string
	Address     string
	LogoPath    string
	StampPath   string
}

// ClientUpdate is a partial update: a nil slot leaves the attribute unchanged.
// Passwords cannot be set through an update.
type ClientUpdate struct {
	FirstName   *string
	LastName    *string
	Email       *string
	PhoneNumber *string
	Address     *string
	LogoPath    *string
	StampPath   *string
}

// IsEmpty reports whether no slot is set.
func (u ClientUpdate) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil &&
		u.PhoneNumber == nil && u.Address == nil && u.LogoPath == nil && u.StampPath == nil
}

// Apply copies every set slot onto c.
func (u ClientUpdate) Apply(c *Client) {
	if u.FirstName != nil {
		c.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		c.LastName = *u.LastName
	}
	if u.Email != nil {
		c.Email = NormalizeEmail(*u.Email)
	}
	if u.PhoneNumber != nil {
		c.PhoneNumber = *u.PhoneNumber
	}
	if u.Address != nil {
		c.Address = *u.Address
	}
	if u.LogoPath != nil {
		c.LogoPath = *u.LogoPath
	}
	if u.StampPath != nil {
		c.StampPath = *u.StampPath
	}
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
