package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blogapi/blog-api/internal/crypto"
	"github.com/blogapi/blog-api/internal/model"
	"github.com/blogapi/blog-api/internal/repository"
)

const tokenTypeBearer = "bearer"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrUnauthenticated    = errors.New("could not validate credentials")
)

// dummyHash is verified against when the login email is unknown, so both
// failure paths cost one hash derivation.
var dummyHash = sync.OnceValue(func() string {
	h, err := crypto.HashPassword("blog-api-dummy-password")
	if err != nil {
		panic(err)
	}
	return h
})

// UserStore is the user persistence used by AuthService.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// AuthService handles registration, login and bearer-token authentication.
type AuthService struct {
	users  UserStore
	tokens *crypto.TokenIssuer
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, tokens *crypto.TokenIssuer) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
	}
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, req model.CreateUserRequest) (model.UserResponse, error) {
	if err := req.Validate(); err != nil {
		return model.UserResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return model.UserResponse{}, err
	}

	user := &model.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.UserResponse{}, ErrDuplicateEmail
		}
		return model.UserResponse{}, err
	}

	slog.Info("user registered", "user_id", user.ID)
	return model.NewUserResponse(user), nil
}

// Login checks the credentials and issues an access token bound to the
// user's email. Unknown emails and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.TokenResponse, error) {
	if err := req.Validate(); err != nil {
		return model.TokenResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user, err := s.users.GetByEmail(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_, _ = crypto.VerifyPassword(req.Password, dummyHash())
			return model.TokenResponse{}, ErrInvalidCredentials
		}
		return model.TokenResponse{}, err
	}

	match, err := crypto.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return model.TokenResponse{}, fmt.Errorf("verifying password for user %d: %w", user.ID, err)
	}
	if !match {
		return model.TokenResponse{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(map[string]string{"sub": user.Email}, 0)
	if err != nil {
		return model.TokenResponse{}, err
	}

	return model.TokenResponse{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
	}, nil
}

// Authenticate resolves a bearer token to its user. Token failures of any
// kind are reported as ErrUnauthenticated; the reason is only logged.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		slog.DebugContext(ctx, "bearer token rejected", "reason", err)
		return nil, ErrUnauthenticated
	}

	email := claims["sub"]
	if email == "" {
		slog.DebugContext(ctx, "bearer token rejected", "reason", "missing subject")
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			slog.DebugContext(ctx, "bearer token rejected", "reason", "unknown subject")
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	return user, nil
}
