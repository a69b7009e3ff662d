package handler

import (
	"context"

	"github.com/clientportal/client-service/internal/core/domain"
	"github.com/clientportal/client-service/internal/core/ports"
)

type stubAuthService struct {
	registerFn      func(ctx context.Context, input ports.RegisterInput) (*domain.PublicProfile, error)
	loginFn         func(ctx context.Context, email, password string) (*domain.Session, error)
	externalLoginFn func(ctx context.Context, rawToken string) (*domain.Session, error)
}

func (s *stubAuthService) Register(ctx context.Context, input ports.RegisterInput) (*domain.PublicProfile, error) {
	return s.registerFn(ctx, input)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) LoginWithExternalToken(ctx context.Context, rawToken string) (*domain.Session, error) {
	return s.externalLoginFn(ctx, rawToken)
}

// stubClientService implements ports.ClientService; unset funcs panic.
type stubClientService struct {
	ports.ClientService

	getFn    func(ctx context.Context, id string) (*domain.PublicProfile, error)
	updateFn func(ctx context.Context, id string, input ports.UpdateClientInput) (*domain.PublicProfile, error)
	deleteFn func(ctx context.Context, id string) error
	listFn   func(ctx context.Context, filter ports.ListClientsFilter) (*ports.ListClientsResult, error)
}

func (s *stubClientService) Get(ctx context.Context, id string) (*domain.PublicProfile, error) {
	return s.getFn(ctx, id)
}

func (s *stubClientService) Update(ctx context.Context, id string, input ports.UpdateClientInput) (*domain.PublicProfile, error) {
	return s.updateFn(ctx, id, input)
}

func (s *stubClientService) Delete(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}

func (s *stubClientService) List(ctx context.Context, filter ports.ListClientsFilter) (*ports.ListClientsResult, error) {
	return s.listFn(ctx, filter)
}

type stubExchanger struct {
	url      string
	exchange func(ctx context.Context, code string) (string, error)
}

func (s *stubExchanger) AuthCodeURL(state string) string {
	return s.url + "?state=" + state
}

func (s *stubExchanger) Exchange(ctx context.Context, code string) (string, error) {
	return s.exchange(ctx, code)
}
