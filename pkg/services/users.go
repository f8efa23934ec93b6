package services

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askdb-io/askdb-engine/pkg/apperrors"
	"github.com/askdb-io/askdb-engine/pkg/models"
	"github.com/askdb-io/askdb-engine/pkg/repositories"
)

// UserService manages user accounts.
type UserService interface {
	Create(ctx context.Context, email string) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)

	// Delete removes the user. Stored credentials and chat history are
	// deleted with the account; nothing of the tenant survives.
	Delete(ctx context.Context, id uuid.UUID) error
}

type userService struct {
	repo   repositories.UserRepository
	logger *zap.Logger
}

// NewUserService creates a new user service.
func NewUserService(repo repositories.UserRepository, logger *zap.Logger) UserService {
	return &userService{
		repo:   repo,
		logger: logger.Named("users"),
	}
}

func (s *userService) Create(ctx context.Context, email string) (*models.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", apperrors.ErrValidation)
	}

	user := &models.User{Email: email}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *userService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *userService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("user deleted", zap.String("user_id", id.String()))
	return nil
}

var _ UserService = (*userService)(nil)
