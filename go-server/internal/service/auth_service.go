package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gfranca/shortly/go-server/internal/model"
	"github.com/gfranca/shortly/go-server/internal/repository"
	"github.com/gfranca/shortly/go-server/internal/token"
)

type AuthService interface {
	Register(ctx context.Context, username, password string) (*model.User, error)
	Login(ctx context.Context, username, password string) (string, error)
}

var ErrInvalidCredentials = errors.New("invalid username or password")

const bcryptCost = 10

type authService struct {
	userRepo repository.UserRepository
	tokens   *token.Manager
	logger   *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, tokens *token.Manager) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		logger:   zap.L().With(zap.String("component", "AuthService")),
	}
}

// Register creates an account. A duplicate username comes back from the
// store as repository.ErrUsernameTaken; there is no pre-check here.
func (s *authService) Register(ctx context.Context, username, password string) (*model.User, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		PasswordHash: string(passwordHash),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrUsernameTaken) {
			s.logger.Error("Failed to create user", zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("User registered", zap.String("username", username))
	return user, nil
}

// Login verifies the credentials and issues a bearer token. Unknown user and
// wrong password are indistinguishable to the caller.
func (s *authService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	tokenString, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
