package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/shopmesh/shopmesh/internal/auth"
	"github.com/shopmesh/shopmesh/internal/user/domain"
	"github.com/shopmesh/shopmesh/internal/user/repository"
	"github.com/shopmesh/shopmesh/pkg/telemetry"
)

const tokenTTL = 24 * time.Hour

var ErrInvalidCredentials = errors.New("invalid email or password")

type Repository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type UserService struct {
	repo      Repository
	jwtSecret []byte
	tracer    trace.Tracer
	logger    zerolog.Logger
}

func NewUserService(repo Repository, jwtSecret []byte, logger zerolog.Logger) *UserService {
	return &UserService{
		repo:      repo,
		jwtSecret: jwtSecret,
		tracer:    otel.Tracer("user-service"),
		logger:    logger,
	}
}

func (s *UserService) Register(ctx context.Context, username, email, password string) (user *domain.User, err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "user.register",
		attribute.String("user.email", email))
	defer func() { end(err) }()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("password hash failed")
		return nil, err
	}

	user = &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err = s.repo.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrDuplicateEmail) {
			s.logger.Error().Err(err).Msg("create user failed")
		}
		return nil, err
	}

	return user, nil
}

// Login verifies the credentials and issues the access token the other
// services verify. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (token string, user *domain.User, err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "user.login",
		attribute.String("user.email", email))
	defer func() { end(err) }()

	user, err = s.repo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("login lookup failed")
		return "", nil, err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err = auth.Sign(s.jwtSecret, user.ID, user.Username, user.Email, tokenTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("token signing failed")
		return "", nil, err
	}

	return token, user, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (user *domain.User, err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "user.profile",
		attribute.String("user.id", userID))
	defer func() { end(err) }()

	user, err = s.repo.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("profile lookup failed")
		}
		return nil, err
	}
	return user, nil
}
