package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/geocoder89/bugzapp/internal/apperr"
	"github.com/geocoder89/bugzapp/internal/domain/user"
	"github.com/geocoder89/bugzapp/internal/identity"
	"github.com/geocoder89/bugzapp/internal/observability"
	"github.com/geocoder89/bugzapp/internal/security"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgPasswordTooLong    = "password must be at most 72 bytes"
)

type UserStore interface {
	Create(ctx context.Context, in user.NewUser) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
}

type TokenIssuer interface {
	GenerateToken(userID, email, role string) (string, error)
}

// AuthResult is the register/login response body.
type AuthResult struct {
	User  user.User `json:"user"`
	Token string    `json:"token"`
}

type AuthService struct {
	users  UserStore
	tokens TokenIssuer
	prom   *observability.Prom
}

func NewAuthService(users UserStore, tokens TokenIssuer, prom *observability.Prom) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		prom:   prom,
	}
}

func (s *AuthService) Register(ctx context.Context, req user.RegisterRequest) (AuthResult, error) {
	name := strings.TrimSpace(req.Name)
	email := user.NormalizeEmail(req.Email)

	if name == "" || email == "" || strings.TrimSpace(req.Password) == "" {
		s.prom.IncAuth("register", "invalid")
		return AuthResult{}, apperr.Validation("name, email, password are required")
	}

	if security.PasswordTooLong(req.Password) {
		s.prom.IncAuth("register", "invalid")
		return AuthResult{}, apperr.Validation(msgPasswordTooLong)
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		s.prom.IncAuth("register", "error")
		return AuthResult{}, apperr.Internal(err)
	}

	u, err := s.users.Create(ctx, user.NewUser{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleUser,
	})

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			s.prom.IncAuth("register", "conflict")
			return AuthResult{}, apperr.Conflict("Email already registered", err)
		}

		s.prom.IncAuth("register", "error")
		return AuthResult{}, apperr.Internal(err)
	}

	token, err := s.tokens.GenerateToken(u.ID, u.Email, u.Role)
	if err != nil {
		s.prom.IncAuth("register", "error")
		return AuthResult{}, apperr.Internal(err)
	}

	s.prom.IncAuth("register", "ok")
	slog.Default().InfoContext(ctx, "user_registered", "user_id", u.ID)

	u.PasswordHash = ""

	return AuthResult{User: u, Token: token}, nil
}

// Login answers an unknown email and a wrong password identically.
func (s *AuthService) Login(ctx context.Context, req user.LoginRequest) (AuthResult, error) {
	email := user.NormalizeEmail(req.Email)

	if email == "" || req.Password == "" {
		s.prom.IncAuth("login", "invalid")
		return AuthResult{}, apperr.Validation("email and password are required")
	}

	found, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			security.BurnCompare(req.Password)
			s.prom.IncAuth("login", "rejected")
			return AuthResult{}, apperr.Unauthorized(msgInvalidCredentials)
		}

		s.prom.IncAuth("login", "error")
		return AuthResult{}, apperr.Internal(err)
	}

	err = security.CheckPassword(found.PasswordHash, req.Password)
	if err != nil {
		s.prom.IncAuth("login", "rejected")
		return AuthResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	token, err := s.tokens.GenerateToken(found.ID, found.Email, found.Role)
	if err != nil {
		s.prom.IncAuth("login", "error")
		return AuthResult{}, apperr.Internal(err)
	}

	s.prom.IncAuth("login", "ok")

	// don't expose password_hash
	found.PasswordHash = ""

	return AuthResult{User: found, Token: token}, nil
}

func (s *AuthService) Me(ctx context.Context, who identity.Identity) (user.User, error) {
	u, err := s.users.GetByID(ctx, who.ID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, apperr.NotFound("User not found", err)
		}
		return user.User{}, apperr.Internal(err)
	}

	u.PasswordHash = ""

	return u, nil
}

func (s *AuthService) ListUsers(ctx context.Context, who identity.Identity) ([]user.User, error) {
	if !who.IsAdmin() {
		return nil, apperr.Forbidden("Admin role required")
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	for i := range users {
		users[i].PasswordHash = ""
	}

	return users, nil
}

// EnsureAdmin seeds one admin account when credentials are configured and
// the email is not taken yet. An existing account is left as it is.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, name string) error {
	email = user.NormalizeEmail(email)

	if email == "" || password == "" {
		return nil
	}

	if security.PasswordTooLong(password) {
		return errors.New("admin password: " + msgPasswordTooLong)
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		if existing.Role != user.RoleAdmin {
			slog.Default().WarnContext(ctx, "admin seed email belongs to a non-admin user", "user_id", existing.ID)
		}
		return nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}

	if strings.TrimSpace(name) == "" {
		name = "Admin"
	}

	u, err := s.users.Create(ctx, user.NewUser{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
	})

	// another replica won the race
	if errors.Is(err, user.ErrEmailTaken) {
		return nil
	}

	if err != nil {
		return err
	}

	slog.Default().InfoContext(ctx, "admin_seeded", "user_id", u.ID)

	return nil
}
