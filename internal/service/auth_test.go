package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/bugzapp/internal/apperr"
	"github.com/geocoder89/bugzapp/internal/auth"
	"github.com/geocoder89/bugzapp/internal/domain/user"
	"github.com/geocoder89/bugzapp/internal/identity"
	"github.com/geocoder89/bugzapp/internal/repo/memory"
	"github.com/geocoder89/bugzapp/internal/service"
)

func newAuthService(t *testing.T) (*service.AuthService, *memory.UsersRepo, *auth.Manager) {
	t.Helper()

	users := memory.NewUsersRepo()
	tokens := auth.NewManager("test-secret", 48*time.Hour)

	return service.NewAuthService(users, tokens, nil), users, tokens
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newAuthService(t)

	tests := []struct {
		name string
		req  user.RegisterRequest
	}{
		{"empty_name", user.RegisterRequest{Name: "", Email: "a@x.com", Password: "pw"}},
		{"blank_name", user.RegisterRequest{Name: "   ", Email: "a@x.com", Password: "pw"}},
		{"blank_email", user.RegisterRequest{Name: "A", Email: " \t", Password: "pw"}},
		{"empty_password", user.RegisterRequest{Name: "A", Email: "a@x.com", Password: ""}},
		{"blank_password", user.RegisterRequest{Name: "A", Email: "a@x.com", Password: "   "}},
		// 30 characters but 90 bytes
		{"multibyte_password_over_72_bytes", user.RegisterRequest{Name: "A", Email: "a@x.com", Password: strings.Repeat("€", 30)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.req)

			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegister_PasswordAtByteLimit(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	// 24 x 3 bytes = 72 bytes exactly
	pw := strings.Repeat("€", 24)

	if _, err := svc.Register(ctx, user.RegisterRequest{Name: "A", Email: "a@x.com", Password: pw}); err != nil {
		t.Fatalf("72-byte password should register: %v", err)
	}
	if _, err := svc.Login(ctx, user.LoginRequest{Email: "a@x.com", Password: pw}); err != nil {
		t.Fatalf("72-byte password should log in: %v", err)
	}
}

func TestRegister_NormalizesAndIssuesToken(t *testing.T) {
	svc, users, tokens := newAuthService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, user.RegisterRequest{Name: "  Ada ", Email: "  Ada@X.com ", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if res.User.Name != "Ada" || res.User.Email != "ada@x.com" || res.User.Role != user.RoleUser {
		t.Fatalf("unexpected user: %+v", res.User)
	}
	if res.User.PasswordHash != "" {
		t.Fatalf("hash must not be returned")
	}
	if res.User.ID == "" || res.User.CreatedAt.IsZero() {
		t.Fatalf("store should assign id and created_at: %+v", res.User)
	}

	claims, err := tokens.VerifyToken(res.Token)
	if err != nil {
		t.Fatalf("token should verify: %v", err)
	}
	if claims.UserID != res.User.ID || claims.Email != "ada@x.com" || claims.Role != user.RoleUser {
		t.Fatalf("claims do not match registration: %+v", claims)
	}

	stored, err := users.GetByEmail(ctx, "ada@x.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "pw" {
		t.Fatalf("stored hash looks wrong: %q", stored.PasswordHash)
	}
}

func TestRegister_DuplicateEmailCaseInsensitive(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, user.RegisterRequest{Name: "A", Email: "a@x.com", Password: "pw"})
	if err != nil {
		t.Fatalf("first register: %v", err)
	}

	_, err = svc.Register(ctx, user.RegisterRequest{Name: "B", Email: "A@X.COM", Password: "other"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("conflict should wrap ErrEmailTaken")
	}
}

func TestLogin(t *testing.T) {
	svc, _, tokens := newAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, user.RegisterRequest{Name: "A", Email: "a@x.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	t.Run("success", func(t *testing.T) {
		res, err := svc.Login(ctx, user.LoginRequest{Email: " A@x.com", Password: "pw"})
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		if res.User.ID != reg.User.ID || res.User.PasswordHash != "" {
			t.Fatalf("unexpected user: %+v", res.User)
		}

		claims, err := tokens.VerifyToken(res.Token)
		if err != nil || claims.UserID != reg.User.ID {
			t.Fatalf("bad token: %v %+v", err, claims)
		}
	})

	t.Run("oversize_password_is_just_wrong", func(t *testing.T) {
		_, err := svc.Login(ctx, user.LoginRequest{Email: "a@x.com", Password: strings.Repeat("€", 30)})
		if !apperr.Is(err, apperr.KindUnauthorized) || err.Error() != "Invalid credentials" {
			t.Fatalf("expected Invalid credentials, got %v", err)
		}
	})

	t.Run("missing_fields", func(t *testing.T) {
		_, err := svc.Login(ctx, user.LoginRequest{Email: "a@x.com"})
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	wrongPw, errWrong := svc.Login(ctx, user.LoginRequest{Email: "a@x.com", Password: "nope"})
	_, errMissing := svc.Login(ctx, user.LoginRequest{Email: "ghost@x.com", Password: "pw"})

	if wrongPw.Token != "" {
		t.Fatalf("no token on failure")
	}

	for name, err := range map[string]error{"wrong_password": errWrong, "unknown_email": errMissing} {
		if !apperr.Is(err, apperr.KindUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
		if err.Error() != "Invalid credentials" {
			t.Fatalf("%s: got message %q", name, err.Error())
		}
	}
}

func TestEnsureAdmin(t *testing.T) {
	svc, users, _ := newAuthService(t)
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "", "", ""); err != nil {
		t.Fatalf("unconfigured seed should be a no-op: %v", err)
	}

	if err := svc.EnsureAdmin(ctx, "big@x.com", strings.Repeat("€", 30), ""); err == nil {
		t.Fatalf("seed with a password over 72 bytes should fail")
	}

	if err := svc.EnsureAdmin(ctx, "Root@X.com", "secret", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.EnsureAdmin(ctx, "root@x.com", "secret", "Root"); err != nil {
		t.Fatalf("second seed should be idempotent: %v", err)
	}

	all, _ := users.List(ctx)
	if len(all) != 1 || all[0].Role != user.RoleAdmin || all[0].Email != "root@x.com" {
		t.Fatalf("expected exactly one admin, got %+v", all)
	}

	res, err := svc.Login(ctx, user.LoginRequest{Email: "root@x.com", Password: "secret"})
	if err != nil || res.User.Role != user.RoleAdmin {
		t.Fatalf("admin should log in: %v %+v", err, res.User)
	}
}

func TestMeAndListUsers(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	reg, _ := svc.Register(ctx, user.RegisterRequest{Name: "A", Email: "a@x.com", Password: "pw"})
	caller := identity.Identity{ID: reg.User.ID, Email: reg.User.Email, Role: user.RoleUser}

	me, err := svc.Me(ctx, caller)
	if err != nil || me.ID != reg.User.ID {
		t.Fatalf("me: %v %+v", err, me)
	}

	if _, err := svc.Me(ctx, identity.Identity{ID: "gone"}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := svc.ListUsers(ctx, caller); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("non-admin list should be forbidden, got %v", err)
	}

	admin := identity.Identity{ID: "root", Role: user.RoleAdmin}
	list, err := svc.ListUsers(ctx, admin)
	if err != nil || len(list) != 1 || list[0].PasswordHash != "" {
		t.Fatalf("admin list: %v %+v", err, list)
	}
}
