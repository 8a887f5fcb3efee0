// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, secret, subject, username, role string, expiry time.Duration) string {
	t.Helper()
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(testSecret)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return a
}

func TestNewAuthenticatorRejectsShortSecret(t *testing.T) {
	if _, err := NewAuthenticator("too-short"); err == nil {
		t.Fatal("short secret must be rejected")
	}
}

func TestVerifyValidToken(t *testing.T) {
	a := newTestAuthenticator(t)
	raw := signToken(t, testSecret, "user-1", "alice", "admin", time.Hour)

	claims, err := a.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID() != "user-1" || claims.Username != "alice" || claims.Role != "admin" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a := newTestAuthenticator(t)
	raw := signToken(t, "ffffffffffffffffffffffffffffffff", "user-1", "alice", "admin", time.Hour)

	if _, err := a.Verify(raw); err == nil {
		t.Fatal("token signed with a different secret must be rejected")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	a := newTestAuthenticator(t)
	raw := signToken(t, testSecret, "user-1", "alice", "admin", -time.Minute)

	if _, err := a.Verify(raw); err == nil {
		t.Fatal("expired token must be rejected")
	}
}

func TestAuthenticateStoresClaims(t *testing.T) {
	a := newTestAuthenticator(t)
	raw := signToken(t, testSecret, "user-7", "bob", "viewer", time.Hour)

	var got *Claims
	handler := a.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClaimsFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/k8s/pods", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got == nil || got.UserID() != "user-7" {
		t.Fatalf("claims = %+v", got)
	}
}

func TestAuthenticateAcceptsQueryToken(t *testing.T) {
	a := newTestAuthenticator(t)
	raw := signToken(t, testSecret, "user-7", "bob", "viewer", time.Hour)

	called := false
	handler := a.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws/chat?token="+raw, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("called = %v, status = %d", called, rec.Code)
	}
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	a := newTestAuthenticator(t)
	handler := a.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/k8s/pods", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthorizeEnforcesRoles(t *testing.T) {
	a := newTestAuthenticator(t)

	tests := []struct {
		name    string
		role    string
		allowed []string
		want    int
	}{
		{"admin allowed", "admin", []string{"admin", "operator"}, http.StatusOK},
		{"operator allowed", "operator", []string{"admin", "operator"}, http.StatusOK},
		{"viewer forbidden", "viewer", []string{"admin", "operator"}, http.StatusForbidden},
		{"operator forbidden for admin-only", "operator", []string{"admin"}, http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := signToken(t, testSecret, "u", "u", tc.role, time.Hour)
			handler := a.Authenticate(Authorize(tc.allowed...)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
			))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/k8s/scale", nil)
			req.Header.Set("Authorization", "Bearer "+raw)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestAuthorizeWithoutAuthenticateRejects(t *testing.T) {
	handler := Authorize("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/k8s/scale", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
