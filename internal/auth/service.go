package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/argon2"

	"github.com/gosuda/pumpwatch/internal/domain"
)

// Sentinel errors for the auth package.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserAlreadyExists  = errors.New("auth: user already exists")
)

// argon2id parameters following OWASP recommendations.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// MinPasswordLength applies to every password set through this package.
const MinPasswordLength = 8

// Service provides authentication operations.
type Service struct {
	userRepo  domain.UserRepository
	jwtSecret string
	accessTTL time.Duration
}

// NewService creates a new auth service.
func NewService(userRepo domain.UserRepository, jwtSecret string, accessTTL time.Duration) *Service {
	return &Service{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		accessTTL: accessTTL,
	}
}

// CreateUser stores a new user with an argon2id password hash.
func (s *Service) CreateUser(ctx context.Context, username, fullName, password string, role domain.Role) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("auth.CreateUser: %w", domain.Validationf("username is required"))
	}
	if !role.Valid() {
		return nil, fmt.Errorf("auth.CreateUser: %w", domain.Validationf("unknown role %q", role))
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("auth.CreateUser: %w",
			domain.Validationf("password must be at least %d characters", MinPasswordLength))
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("auth.CreateUser: %w", ErrUserAlreadyExists)
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("auth.CreateUser: %w", err)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("auth.CreateUser: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("auth.CreateUser: %w", err)
	}

	return user, nil
}

// Login validates username/password and returns an access token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", nil, fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}

	if !verifyPassword(password, user.PasswordHash) {
		return "", nil, fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}

	token, err := IssueAccessToken(s.jwtSecret, user.ID, user.Role, s.accessTTL)
	if err != nil {
		return "", nil, fmt.Errorf("auth.Login: %w", err)
	}

	return token, user, nil
}

// EnsureAdmin creates the first administrator when no user of that name
// exists. An empty password skips the bootstrap.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if password == "" {
		log.Debug().Msg("auth.EnsureAdmin: no admin password configured; skipping")
		return nil
	}

	_, err := s.CreateUser(ctx, username, "Administrator", password, domain.RoleAdmin)
	switch {
	case err == nil:
		log.Info().Str("username", username).Msg("auth.EnsureAdmin: admin user created")
		return nil
	case errors.Is(err, ErrUserAlreadyExists):
		return nil
	default:
		return fmt.Errorf("auth.EnsureAdmin: %w", err)
	}
}

// GetUser returns a user by ID (for middleware use).
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth.GetUser: %w", err)
	}

	return user, nil
}

// hashPassword generates an argon2id hash with a random salt.
// Format: hex(salt) + "$" + hex(hash)
func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

// verifyPassword checks a password against an argon2id hash.
func verifyPassword(password, encoded string) bool {
	saltHex, hashHex, ok := strings.Cut(encoded, "$")
	if !ok || saltHex == "" || hashHex == "" {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}

	expectedHash, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return subtle.ConstantTimeCompare(computed, expectedHash) == 1
}
