package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	likesjwt "likes-hub/pkg/jwt"

	"likes-hub/internal/metrics"
	"likes-hub/internal/model"
	"likes-hub/internal/repository"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
)

// Default credentials seeded on first boot so the panel is reachable before
// any operator runs create-admin. Changing the password afterwards is on the
// operator.
const (
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin123"
)

type LoginResult struct {
	Token string
	User  *model.AdminUser
}

type AuthService struct {
	users     repository.AdminUserRepository
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthService(users repository.AdminUserRepository, jwtSecret string, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, jwtSecret: jwtSecret, logger: logger}
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.LoginsTotal.WithLabelValues("failure").Inc()
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		s.logger.Warn("failed login attempt", zap.String("username", username))
		return nil, ErrInvalidPassword
	}

	claims := likesjwt.NewClaims(user.ID, user.Username, string(user.Role), time.Now())
	token, err := likesjwt.Sign(s.jwtSecret, claims)
	if err != nil {
		return nil, err
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.logger.Info("admin logged in", zap.String("username", user.Username))
	return &LoginResult{Token: token, User: user}, nil
}

// CreateAdmin registers a new panel user with a bcrypt-hashed password.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password string) (*model.AdminUser, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &model.AdminUser{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         model.AdminRoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureDefaultAdmin seeds the built-in admin account when no user with that
// name exists yet. Safe to call on every startup.
func (s *AuthService) EnsureDefaultAdmin(ctx context.Context) error {
	_, err := s.users.FindByUsername(ctx, defaultAdminUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if _, err := s.CreateAdmin(ctx, defaultAdminUsername, defaultAdminPassword); err != nil {
		return fmt.Errorf("seed default admin: %w", err)
	}
	s.logger.Warn("seeded default admin account, change the password",
		zap.String("username", defaultAdminUsername))
	return nil
}
