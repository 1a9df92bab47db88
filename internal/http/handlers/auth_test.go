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

	"github.com/spendly/spendly/internal/auth"
	"github.com/spendly/spendly/internal/domain/user"
	"github.com/spendly/spendly/internal/http/handlers"
	"github.com/spendly/spendly/internal/security"
)

// Fake repository implementation of the handlers.UserStore interface

type fakeUsersRepo struct {
	createFn         func(ctx context.Context, u user.User) error
	getByEmailFn     func(ctx context.Context, email string) (user.User, error)
	getByIDFn        func(ctx context.Context, id string) (user.User, error)
	updateDetailsFn  func(ctx context.Context, id, name, email string) (user.User, error)
	updatePasswordFn func(ctx context.Context, id, passwordHash string) error
	touchLastLoginFn func(ctx context.Context, id string, at time.Time) error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u user.User) error {
	if f.createFn != nil {
		return f.createFn(ctx, u)
	}
	return nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsersRepo) UpdateDetails(ctx context.Context, id, name, email string) (user.User, error) {
	if f.updateDetailsFn != nil {
		return f.updateDetailsFn(ctx, id, name, email)
	}
	return user.User{}, nil
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if f.updatePasswordFn != nil {
		return f.updatePasswordFn(ctx, id, passwordHash)
	}
	return nil
}

func (f *fakeUsersRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if f.touchLastLoginFn != nil {
		return f.touchLastLoginFn(ctx, id, at)
	}
	return nil
}

func testJWT() *auth.Manager {
	return auth.NewManager("test-secret", 15*time.Minute)
}

type authResponse struct {
	Success bool      `json:"success"`
	Token   string    `json:"token"`
	User    user.User `json:"user"`
}

// Register tests

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"name": "Jane Doe", "email": "Jane@Example.com", "password": "hunter22"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, u user.User) error {
					if u.Email != "jane@example.com" {
						return errors.New("email not normalized")
					}
					if u.Role != user.RoleUser {
						return errors.New("new users must get the user role")
					}
					if u.PasswordHash == "" || u.PasswordHash == "hunter22" {
						return errors.New("password stored without hashing")
					}
					return nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name: "duplicate_email",
			body: `{"name": "Jane Doe", "email": "jane@example.com", "password": "hunter22"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, u user.User) error {
					return user.ErrEmailTaken
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "short_password",
			body:           `{"name": "Jane Doe", "email": "jane@example.com", "password": "abc"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "invalid_email",
			body:           `{"name": "Jane Doe", "email": "not-an-email", "password": "hunter22"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "repo_error",
			body: `{"name": "Jane Doe", "email": "jane@example.com", "password": "hunter22"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, u user.User) error {
					return errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			}

			h := handlers.NewAuthHandler(repo, testJWT(), discardLogger())
			r := setupRouter(http.MethodPost, "/auth/register", "", h.Register)

			req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusCreated {
				var resp authResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if resp.Token == "" {
					t.Fatalf("expected a token in the response")
				}
				if resp.User.Email != "jane@example.com" {
					t.Fatalf("got user email %q", resp.User.Email)
				}
			}
		})
	}
}

func TestRegisterNeverLeaksPasswordHash(t *testing.T) {
	h := handlers.NewAuthHandler(&fakeUsersRepo{}, testJWT(), discardLogger())
	r := setupRouter(http.MethodPost, "/auth/register", "", h.Register)

	body := `{"name": "Jane Doe", "email": "jane@example.com", "password": "hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	var u map[string]any
	if err := json.Unmarshal(raw["user"], &u); err != nil {
		t.Fatalf("failed to unmarshal user: %v", err)
	}

	for _, key := range []string{"password", "passwordHash", "password_hash"} {
		if _, ok := u[key]; ok {
			t.Fatalf("response leaks %q", key)
		}
	}
}

// Login tests

func TestLoginHandler(t *testing.T) {
	hash, err := security.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	stored := user.User{
		ID:           newUUID(),
		Name:         "Jane Doe",
		Email:        "jane@example.com",
		PasswordHash: hash,
		Role:         user.RoleUser,
		IsActive:     true,
	}

	tests := []struct {
		name           string
		body           string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"email": "jane@example.com", "password": "hunter22"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return stored, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "wrong_password",
			body: `{"email": "jane@example.com", "password": "wrong-password"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return stored, nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "unknown_email",
			body: `{"email": "nobody@example.com", "password": "hunter22"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return user.User{}, user.ErrNotFound
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "missing_password",
			body:           `{"email": "jane@example.com"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			}

			h := handlers.NewAuthHandler(repo, testJWT(), discardLogger())
			r := setupRouter(http.MethodPost, "/auth/login", "", h.Login)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var resp authResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if resp.Token == "" {
					t.Fatalf("expected a token in the response")
				}
			}
		})
	}
}

func TestLoginStampsLastLogin(t *testing.T) {
	hash, err := security.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	touched := false
	repo := &fakeUsersRepo{
		getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
			return user.User{ID: newUUID(), Email: email, PasswordHash: hash, Role: user.RoleUser, IsActive: true}, nil
		},
		touchLastLoginFn: func(ctx context.Context, id string, at time.Time) error {
			touched = true
			return nil
		},
	}

	h := handlers.NewAuthHandler(repo, testJWT(), discardLogger())
	r := setupRouter(http.MethodPost, "/auth/login", "", h.Login)

	body := `{"email": "jane@example.com", "password": "hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if !touched {
		t.Fatalf("expected lastLogin to be stamped")
	}
}

// Me tests

func TestMeHandler(t *testing.T) {
	callerID := newUUID()

	repo := &fakeUsersRepo{
		getByIDFn: func(ctx context.Context, id string) (user.User, error) {
			if id != callerID {
				return user.User{}, user.ErrNotFound
			}
			return user.User{ID: id, Name: "Jane Doe", Email: "jane@example.com", Role: user.RoleUser, IsActive: true}, nil
		},
	}

	h := handlers.NewAuthHandler(repo, testJWT(), discardLogger())

	t.Run("success", func(t *testing.T) {
		r := setupRouter(http.MethodGet, "/auth/me", callerID, h.Me)

		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("missing_identity", func(t *testing.T) {
		r := setupRouter(http.MethodGet, "/auth/me", "", h.Me)

		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("deleted_user", func(t *testing.T) {
		r := setupRouter(http.MethodGet, "/auth/me", newUUID(), h.Me)

		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}
	})
}

// Update details tests

func TestUpdateDetailsHandler(t *testing.T) {
	callerID := newUUID()

	tests := []struct {
		name           string
		body           string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"name": "Jane Smith", "email": "jane.smith@example.com"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.updateDetailsFn = func(ctx context.Context, id, name, email string) (user.User, error) {
					return user.User{ID: id, Name: name, Email: email, Role: user.RoleUser}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "email_taken",
			body: `{"name": "Jane Smith", "email": "taken@example.com"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.updateDetailsFn = func(ctx context.Context, id, name, email string) (user.User, error) {
					return user.User{}, user.ErrEmailTaken
				}
			},
			wantStatusCode: http.StatusConflict,
		},
		{
			name:           "invalid_email",
			body:           `{"name": "Jane Smith", "email": "nope"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			}

			h := handlers.NewAuthHandler(repo, testJWT(), discardLogger())
			r := setupRouter(http.MethodPut, "/auth/updatedetails", callerID, h.UpdateDetails)

			req := httptest.NewRequest(http.MethodPut, "/auth/updatedetails", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

// Update password tests

func TestUpdatePasswordHandler(t *testing.T) {
	callerID := newUUID()

	hash, err := security.HashPassword("old-password")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	stored := user.User{ID: callerID, Email: "jane@example.com", PasswordHash: hash, Role: user.RoleUser, IsActive: true}

	tests := []struct {
		name           string
		body           string
		repoSetup      func(*fakeUsersRepo)
		wantStatusCode int
	}{
		{
			name: "success_returns_fresh_token",
			body: `{"currentPassword": "old-password", "newPassword": "new-password"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.getByIDFn = func(ctx context.Context, id string) (user.User, error) {
					return stored, nil
				}
				f.updatePasswordFn = func(ctx context.Context, id, passwordHash string) error {
					if passwordHash == hash || passwordHash == "new-password" {
						return errors.New("new password not hashed")
					}
					return nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "wrong_current_password",
			body: `{"currentPassword": "not-it", "newPassword": "new-password"}`,
			repoSetup: func(f *fakeUsersRepo) {
				f.getByIDFn = func(ctx context.Context, id string) (user.User, error) {
					return stored, nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "short_new_password",
			body:           `{"currentPassword": "old-password", "newPassword": "abc"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(repo)
			}

			h := handlers.NewAuthHandler(repo, testJWT(), discardLogger())
			r := setupRouter(http.MethodPut, "/auth/updatepassword", callerID, h.UpdatePassword)

			req := httptest.NewRequest(http.MethodPut, "/auth/updatepassword", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var resp authResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if resp.Token == "" {
					t.Fatalf("expected a fresh token in the response")
				}
			}
		})
	}
}

func TestLogoutHandler(t *testing.T) {
	h := handlers.NewAuthHandler(&fakeUsersRepo{}, testJWT(), discardLogger())
	r := setupRouter(http.MethodPost, "/auth/logout", newUUID(), h.Logout)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
}
