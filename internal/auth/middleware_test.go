// Cinesync - Watch Party Synchronization Service
// Copyright 2026 Cinesync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cinesync/cinesync

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cinesync/cinesync/internal/models"
)

func newTestMiddleware(t *testing.T) (*Middleware, *JWTManager) {
	t.Helper()

	manager, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager failed: %v", err)
	}
	return NewMiddleware(manager), manager
}

func TestAuthenticateMissingToken(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler reached without token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/parties", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestAuthenticateValidBearer(t *testing.T) {
	mw, manager := newTestMiddleware(t)

	token, err := manager.GenerateToken("user-1", "alice", "viewer")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	var captured models.Identity
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Error("Identity missing from context")
		}
		captured = identity
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/parties", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if captured.ID != "user-1" || captured.Name != "alice" {
		t.Errorf("Identity mismatch: %+v", captured)
	}
}

func TestAuthenticateTokenQueryParam(t *testing.T) {
	mw, manager := newTestMiddleware(t)

	token, err := manager.GenerateToken("user-1", "alice", "viewer")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Websocket clients cannot set headers; the token travels as a query
	// parameter instead.
	req := httptest.NewRequest(http.MethodGet, "/parties/p1/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with query token, got %d", rec.Code)
	}
}

func TestAuthenticateInvalidToken(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler reached with invalid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/parties", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestCredentialStore(t *testing.T) {
	store, err := NewCredentialStore("admin", "correct horse battery")
	if err != nil {
		t.Fatalf("NewCredentialStore failed: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"valid", "admin", "correct horse battery", true},
		{"wrong password", "admin", "wrong", false},
		{"wrong username", "root", "correct horse battery", false},
		{"both wrong", "root", "wrong", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.Verify(tt.username, tt.password); got != tt.want {
				t.Errorf("Verify(%q, ...) = %v, want %v", tt.username, got, tt.want)
			}
		})
	}
}

func TestCredentialStoreRejectsWeakConfig(t *testing.T) {
	if _, err := NewCredentialStore("", "longenoughpassword"); err == nil {
		t.Error("Expected error for empty username")
	}
	if _, err := NewCredentialStore("admin", "short"); err == nil {
		t.Error("Expected error for short password")
	}
}
