package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/bugzapp/internal/apperr"
	"github.com/geocoder89/bugzapp/internal/domain/bug"
	"github.com/geocoder89/bugzapp/internal/domain/user"
	"github.com/geocoder89/bugzapp/internal/http/handlers"
	"github.com/geocoder89/bugzapp/internal/http/middlewares"
	"github.com/geocoder89/bugzapp/internal/identity"
	"github.com/geocoder89/bugzapp/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// keep gin quiet during tests
func init() {
	gin.SetMode(gin.TestMode)
}

// fakes

type fakeBugService struct {
	listFn          func(ctx context.Context) ([]bug.BugReport, error)
	getFn           func(ctx context.Context, id string) (bug.BugReport, error)
	createFn        func(ctx context.Context, req bug.CreateBugRequest, who identity.Identity) (bug.BugReport, error)
	updateStatusFn  func(ctx context.Context, id string, status bug.Status, who identity.Identity) (bug.BugReport, error)
	updatePartialFn func(ctx context.Context, id string, req bug.UpdateBugRequest, who identity.Identity) (bug.BugReport, error)
	deleteFn        func(ctx context.Context, id string, who identity.Identity) error
}

func (f *fakeBugService) List(ctx context.Context) ([]bug.BugReport, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return []bug.BugReport{}, nil
}

func (f *fakeBugService) Get(ctx context.Context, id string) (bug.BugReport, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return bug.BugReport{}, nil
}

func (f *fakeBugService) Create(ctx context.Context, req bug.CreateBugRequest, who identity.Identity) (bug.BugReport, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req, who)
	}
	return bug.BugReport{}, nil
}

func (f *fakeBugService) UpdateStatus(ctx context.Context, id string, status bug.Status, who identity.Identity) (bug.BugReport, error) {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, status, who)
	}
	return bug.BugReport{}, nil
}

func (f *fakeBugService) UpdatePartial(ctx context.Context, id string, req bug.UpdateBugRequest, who identity.Identity) (bug.BugReport, error) {
	if f.updatePartialFn != nil {
		return f.updatePartialFn(ctx, id, req, who)
	}
	return bug.BugReport{}, nil
}

func (f *fakeBugService) Delete(ctx context.Context, id string, who identity.Identity) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id, who)
	}
	return nil
}

type fakeAuth struct {
	registerFn func(ctx context.Context, req user.RegisterRequest) (service.AuthResult, error)
	loginFn    func(ctx context.Context, req user.LoginRequest) (service.AuthResult, error)
}

func (f *fakeAuth) Register(ctx context.Context, req user.RegisterRequest) (service.AuthResult, error) {
	return f.registerFn(ctx, req)
}

func (f *fakeAuth) Login(ctx context.Context, req user.LoginRequest) (service.AuthResult, error) {
	return f.loginFn(ctx, req)
}

// helpers

var testIdentity = identity.Identity{ID: uuid.NewString(), Email: "ada@example.com", Role: user.RoleUser}

// withIdentity stands in for RequireAuth.
func withIdentity(who identity.Identity) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(middlewares.CtxIdentity, who)
		ctx.Next()
	}
}

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Handle(method, path, withIdentity(testIdentity), h)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}
	return resp.Error
}

func sampleBug(id string) bug.BugReport {
	owner := testIdentity.ID
	return bug.BugReport{
		ID:        id,
		Title:     "login button unresponsive",
		Status:    bug.StatusPending,
		UserID:    &owner,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tests

func TestCreateBugHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		createErr  error
		wantStatus int
		wantErr    string
	}{
		{
			name:       "created",
			body:       `{"title":"login button unresponsive","severity":"high"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "service validation error",
			body:       `{"title":"   "}`,
			createErr:  apperr.Validation("Bug title is required"),
			wantStatus: http.StatusBadRequest,
			wantErr:    "Bug title is required",
		},
		{
			name:       "store failure passes message through",
			body:       `{"title":"x"}`,
			createErr:  apperr.Internal(errors.New("connection refused")),
			wantStatus: http.StatusInternalServerError,
			wantErr:    "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotWho identity.Identity

			svc := &fakeBugService{
				createFn: func(ctx context.Context, req bug.CreateBugRequest, who identity.Identity) (bug.BugReport, error) {
					gotWho = who
					if tt.createErr != nil {
						return bug.BugReport{}, tt.createErr
					}
					b := sampleBug(uuid.NewString())
					b.Severity = req.Severity
					return b, nil
				},
			}

			h := handlers.NewBugsHandler(svc)
			r := setupRouter(http.MethodPost, "/api/bugs", h.CreateBug)

			w := doJSON(r, http.MethodPost, "/api/bugs", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if gotWho.ID != testIdentity.ID {
				t.Fatalf("identity not forwarded: %+v", gotWho)
			}

			if tt.wantErr != "" {
				if got := decodeError(t, w); got != tt.wantErr {
					t.Fatalf("got error %q, want %q", got, tt.wantErr)
				}
				return
			}

			var got bug.BugReport
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Severity == nil || *got.Severity != "high" {
				t.Fatalf("unexpected severity: %v", got.Severity)
			}
		})
	}
}

func TestGetBugHandler(t *testing.T) {
	id := uuid.NewString()

	svc := &fakeBugService{
		getFn: func(ctx context.Context, got string) (bug.BugReport, error) {
			if got != id {
				return bug.BugReport{}, apperr.NotFound("Bug not found", bug.ErrNotFound)
			}
			return sampleBug(id), nil
		},
	}

	h := handlers.NewBugsHandler(svc)
	r := gin.New()
	r.GET("/api/bugs/:id", h.GetBug)

	t.Run("found", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/bugs/"+id, "")
		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}
		if w.Header().Get("ETag") == "" {
			t.Fatalf("expected an ETag header")
		}

		var got map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		for _, key := range []string{"id", "title", "description", "severity", "status", "user_id", "created_at"} {
			if _, ok := got[key]; !ok {
				t.Fatalf("missing key %q in %v", key, got)
			}
		}
	})

	t.Run("not found", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/bugs/"+uuid.NewString(), "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("got status %d, want 404", w.Code)
		}
		if got := decodeError(t, w); got != "Bug not found" {
			t.Fatalf("got error %q", got)
		}
	})
}

func TestListBugsHandler_ETag(t *testing.T) {
	svc := &fakeBugService{
		listFn: func(ctx context.Context) ([]bug.BugReport, error) {
			return []bug.BugReport{sampleBug("b2"), sampleBug("b1")}, nil
		},
	}

	h := handlers.NewBugsHandler(svc)
	r := gin.New()
	r.GET("/api/bugs", h.ListBugs)

	first := doJSON(r, http.MethodGet, "/api/bugs", "")
	if first.Code != http.StatusOK {
		t.Fatalf("got status %d", first.Code)
	}

	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected an ETag header")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/bugs", nil)
	req.Header.Set("If-None-Match", "W/"+etag)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want 304", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("304 must not carry a body, got %q", w.Body.String())
	}
}

func TestUpdateStatusHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantErr    string
	}{
		{name: "ok", body: `{"status":"Approved"}`, wantStatus: http.StatusOK},
		{name: "invalid", body: `{"status":"Closed"}`, err: apperr.Validation("Invalid status"), wantStatus: http.StatusBadRequest, wantErr: "Invalid status"},
		{name: "forbidden", body: `{"status":"Resolved"}`, err: apperr.Forbidden("Not allowed to modify this bug"), wantStatus: http.StatusForbidden, wantErr: "Not allowed to modify this bug"},
		{name: "missing", body: `{"status":"Resolved"}`, err: apperr.NotFound("Bug not found", nil), wantStatus: http.StatusNotFound, wantErr: "Bug not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeBugService{
				updateStatusFn: func(ctx context.Context, id string, status bug.Status, who identity.Identity) (bug.BugReport, error) {
					if tt.err != nil {
						return bug.BugReport{}, tt.err
					}
					b := sampleBug(id)
					b.Status = status
					return b, nil
				},
			}

			h := handlers.NewBugsHandler(svc)
			r := setupRouter(http.MethodPatch, "/api/bugs/:id/status", h.UpdateStatus)

			w := doJSON(r, http.MethodPatch, "/api/bugs/abc/status", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantErr != "" {
				if got := decodeError(t, w); got != tt.wantErr {
					t.Fatalf("got error %q, want %q", got, tt.wantErr)
				}
				return
			}

			var got bug.BugReport
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Status != bug.StatusApproved || got.ID != "abc" {
				t.Fatalf("unexpected bug: %+v", got)
			}
		})
	}
}

func TestUpdateBugHandler_PassesOnlyPresentFields(t *testing.T) {
	var got bug.UpdateBugRequest

	svc := &fakeBugService{
		updatePartialFn: func(ctx context.Context, id string, req bug.UpdateBugRequest, who identity.Identity) (bug.BugReport, error) {
			got = req
			return sampleBug(id), nil
		},
	}

	h := handlers.NewBugsHandler(svc)
	r := setupRouter(http.MethodPut, "/api/bugs/:id", h.UpdateBug)

	w := doJSON(r, http.MethodPut, "/api/bugs/abc", `{"severity":"low"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if got.Status.Set {
		t.Fatalf("status should be absent, got %+v", got.Status)
	}
	if !got.Severity.Set || got.Severity.Value == nil || *got.Severity.Value != "low" {
		t.Fatalf("severity not forwarded: %+v", got.Severity)
	}

	w = doJSON(r, http.MethodPut, "/api/bugs/abc", `{"severity":null}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if !got.Severity.Set || got.Severity.Value != nil {
		t.Fatalf("explicit null should arrive as set without a value: %+v", got.Severity)
	}
}

func TestDeleteBugHandler(t *testing.T) {
	deleted := map[string]bool{}

	svc := &fakeBugService{
		deleteFn: func(ctx context.Context, id string, who identity.Identity) error {
			if deleted[id] {
				return apperr.NotFound("Bug not found", bug.ErrNotFound)
			}
			deleted[id] = true
			return nil
		},
	}

	h := handlers.NewBugsHandler(svc)
	r := setupRouter(http.MethodDelete, "/api/bugs/:id", h.DeleteBug)

	w := doJSON(r, http.MethodDelete, "/api/bugs/abc", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != "Bug deleted successfully" {
		t.Fatalf("unexpected body: %v", body)
	}

	w = doJSON(r, http.MethodDelete, "/api/bugs/abc", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete: got status %d, want 404", w.Code)
	}
}

func TestAuthHandler(t *testing.T) {
	fake := &fakeAuth{
		registerFn: func(ctx context.Context, req user.RegisterRequest) (service.AuthResult, error) {
			if req.Email == "taken@example.com" {
				return service.AuthResult{}, apperr.Conflict("Email already registered", user.ErrEmailTaken)
			}
			return service.AuthResult{
				User:  user.User{ID: uuid.NewString(), Name: req.Name, Email: req.Email, Role: user.RoleUser, PasswordHash: "$2a$10$secret"},
				Token: "tok",
			}, nil
		},
		loginFn: func(ctx context.Context, req user.LoginRequest) (service.AuthResult, error) {
			return service.AuthResult{}, apperr.Unauthorized("Invalid credentials")
		},
	}

	h := handlers.NewAuthHandler(fake)
	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)

	t.Run("register created without hash", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/register", `{"name":"Ada","email":"ada@example.com","password":"pw"}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}
		if bytes.Contains(w.Body.Bytes(), []byte("secret")) || bytes.Contains(w.Body.Bytes(), []byte("password")) {
			t.Fatalf("password material leaked: %s", w.Body.String())
		}

		var body struct {
			User  map[string]any `json:"user"`
			Token string         `json:"token"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Token != "tok" || body.User["email"] != "ada@example.com" {
			t.Fatalf("unexpected body: %s", w.Body.String())
		}
	})

	t.Run("register conflict", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/register", `{"name":"Ada","email":"taken@example.com","password":"pw"}`)
		if w.Code != http.StatusConflict {
			t.Fatalf("got status %d, want 409", w.Code)
		}
		if got := decodeError(t, w); got != "Email already registered" {
			t.Fatalf("got error %q", got)
		}
	})

	t.Run("login unauthorized", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/login", `{"email":"ada@example.com","password":"nope"}`)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("got status %d, want 401", w.Code)
		}
		if got := decodeError(t, w); got != "Invalid credentials" {
			t.Fatalf("got error %q", got)
		}
	})
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		ping       func(ctx context.Context) error
		wantStatus int
		wantOK     bool
	}{
		{name: "no store", wantStatus: http.StatusOK, wantOK: true},
		{name: "store up", ping: func(context.Context) error { return nil }, wantStatus: http.StatusOK, wantOK: true},
		{name: "store down", ping: func(context.Context) error { return errors.New("db down") }, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", handlers.NewHealthHandler(tt.ping).Health)

			w := doJSON(r, http.MethodGet, "/health", "")
			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatus)
			}

			var body struct {
				OK    bool   `json:"ok"`
				Error string `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.OK != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", body.OK, tt.wantOK)
			}
			if !tt.wantOK && body.Error != "db down" {
				t.Fatalf("unexpected error %q", body.Error)
			}
		})
	}
}
