package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/libris-app/libris-backend/api/middleware"
	authsvc "github.com/libris-app/libris-backend/internal/auth"
)

type stubAuthService struct {
	result        *authsvc.LoginResponse
	user          *authsvc.UserDTO
	loggedOut     string
	lastRegister  authsvc.RegisterRequest
	lastLogin     authsvc.LoginRequest
	lastMe        uuid.UUID
	err           error
	registerCalls int
}

func (s *stubAuthService) Register(ctx context.Context, req authsvc.RegisterRequest) (*authsvc.LoginResponse, error) {
	s.registerCalls++
	s.lastRegister = req
	return s.result, s.err
}

func (s *stubAuthService) Login(ctx context.Context, req authsvc.LoginRequest) (*authsvc.LoginResponse, error) {
	s.lastLogin = req
	return s.result, s.err
}

func (s *stubAuthService) Logout(ctx context.Context, tokenID string) error {
	s.loggedOut = tokenID
	return s.err
}

func (s *stubAuthService) Me(ctx context.Context, userID uuid.UUID) (*authsvc.UserDTO, error) {
	s.lastMe = userID
	return s.user, s.err
}

func TestRegister(t *testing.T) {
	logg := testLogger()

	t.Run("short password", func(t *testing.T) {
		stub := &stubAuthService{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"name":"Jan","email":"jan@example.com","password":"short"}`))
		rec := httptest.NewRecorder()
		Register(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if stub.registerCalls != 0 {
			t.Fatalf("service must not be called on validation failure")
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubAuthService{result: &authsvc.LoginResponse{AccessToken: "token", ExpiresAt: time.Now().Add(time.Hour)}}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"name":"Jan","email":"jan@example.com","password":"long-enough"}`))
		rec := httptest.NewRecorder()
		Register(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.lastRegister.Email != "jan@example.com" {
			t.Fatalf("payload not forwarded: %+v", stub.lastRegister)
		}
	})
}

func TestLogin(t *testing.T) {
	logg := testLogger()

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"not-an-email","password":"x"}`))
		rec := httptest.NewRecorder()
		Login(&stubAuthService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubAuthService{result: &authsvc.LoginResponse{AccessToken: "token"}}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"jan@example.com","password":"long-enough"}`))
		rec := httptest.NewRecorder()
		Login(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestLogout(t *testing.T) {
	logg := testLogger()

	t.Run("missing session context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		rec := httptest.NewRecorder()
		Logout(&stubAuthService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubAuthService{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req = req.WithContext(middleware.WithTokenID(req.Context(), "jti-1"))
		rec := httptest.NewRecorder()
		Logout(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stub.loggedOut != "jti-1" {
			t.Fatalf("expected session jti-1 revoked, got %q", stub.loggedOut)
		}
	})
}

func TestMe(t *testing.T) {
	logg := testLogger()

	t.Run("missing user context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		rec := httptest.NewRecorder()
		Me(&stubAuthService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		userID := uuid.New()
		stub := &stubAuthService{user: &authsvc.UserDTO{ID: userID, Email: "jan@example.com"}}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
		rec := httptest.NewRecorder()
		Me(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.lastMe != userID {
			t.Fatalf("expected lookup for %s, got %s", userID, stub.lastMe)
		}
	})
}
