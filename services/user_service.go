package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"mealTrackAPI/internal/metrics"
	"mealTrackAPI/internal/repository"
	"mealTrackAPI/internal/user"
)

type UserService struct {
	store repository.Store
}

func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store}
}

// CreateUser registers a user and issues the opaque session token that
// identifies them on every meal call. The token is possession-only: whoever
// presents it owns the account's meals.
func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	name := strings.TrimSpace(req.Name)
	if len(name) < 3 {
		return nil, fmt.Errorf("name must be at least 3 characters long")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, fmt.Errorf("invalid email format")
	}

	u := &user.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        req.Email,
		SessionToken: uuid.New().String(),
		Metrics:      metrics.Aggregate{},
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*user.User, error) {
	return s.store.UserByID(ctx, id)
}

func (s *UserService) GetUserBySessionToken(ctx context.Context, token string) (*user.User, error) {
	return s.store.UserBySessionToken(ctx, token)
}

func (s *UserService) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}
