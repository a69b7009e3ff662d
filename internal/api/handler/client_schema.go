package handler

import (
	"time"

	"github.com/clientportal/client-service/internal/core/domain"
)

// --- Request / Response types ---

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type googleVerifyRequest struct {
	Token string `json:"token" validate:"required"`
}

// registerClientRequest is accepted as JSON or as multipart form fields
// alongside the optional logo and stamp files.
type registerClientRequest struct {
	Email       string `json:"email"        form:"email"        validate:"required,email,max=254"`
	Password    string `json:"password"     form:"password"     validate:"required,min=6,max=72"`
	FirstName   string `json:"first_name"   form:"first_name"   validate:"required,max=100"`
	LastName    string `json:"last_name"    form:"last_name"    validate:"required,max=100"`
	PhoneNumber string `json:"phone_number" form:"phone_number" validate:"required,phone_in"`
	Address     string `json:"address"      form:"address"      validate:"required,max=500"`
}

func (r registerClientRequest) profile() domain.ClientProfile {
	return domain.ClientProfile{
		Email:       r.Email,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		PhoneNumber: r.PhoneNumber,
		Address:     r.Address,
	}
}

// updateClientRequest is a partial update: absent fields are left unchanged.
// Passwords cannot be changed through this request.
type updateClientRequest struct {
	Email       *string `json:"email"        validate:"omitnil,email,max=254"`
	FirstName   *string `json:"first_name"   validate:"omitnil,min=1,max=100"`
	LastName    *string `json:"last_name"    validate:"omitnil,min=1,max=100"`
	PhoneNumber *string `json:"phone_number" validate:"omitnil,phone_in"`
	Address     *string `json:"address"      validate:"omitnil,max=500"`
}

func (r updateClientRequest) update() domain.ClientUpdate {
	return domain.ClientUpdate{
		Email:       r.Email,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		PhoneNumber: r.PhoneNumber,
		Address:     r.Address,
	}
}

type sessionResponse struct {
	AccessToken string               `json:"access_token"`
	TokenType   string               `json:"token_type"`
	ExpiresAt   time.Time            `json:"expires_at"`
	User        domain.PublicProfile `json:"user"`
}

func newSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		AccessToken: s.Token,
		TokenType:   "Bearer",
		ExpiresAt:   s.ExpiresAt,
		User:        s.Profile,
	}
}

type meResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type listClientsResponse struct {
	Items      []domain.PublicProfile `json:"items"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"total_pages"`
}

// errorBody documents the error envelope rendered by the central error handler.
type errorBody struct {
	Error string `json:"error"`
}
