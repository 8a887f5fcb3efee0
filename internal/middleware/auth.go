// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

// Package middleware provides HTTP middleware for KubePulse: bearer token
// verification, role authorization, request logging and Prometheus
// instrumentation.
//
// Token issuance belongs to the identity service; this package only
// verifies HS256 signatures and extracts claims.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dhanush6701/kubepulse/internal/models"
)

// Claims are the verified token claims KubePulse consumes.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

type contextKey int

const claimsKey contextKey = iota

// ClaimsFromContext returns the verified claims for a request, or nil when
// the request did not pass through Authenticate.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

// Authenticator verifies bearer tokens.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an Authenticator for an HS256 shared secret.
func NewAuthenticator(secret string) (*Authenticator, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 characters")
	}
	return &Authenticator{secret: []byte(secret)}, nil
}

// Verify parses and validates a raw token string.
func (a *Authenticator) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// TokenFromRequest extracts the bearer token from the Authorization header
// or, for websocket upgrades where headers are awkward for browser
// clients, the "token" query parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// Authenticate rejects requests without a valid token and stores the
// claims on the request context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := TokenFromRequest(r)
		if raw == "" {
			respondAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing credentials")
			return
		}

		claims, err := a.Verify(raw)
		if err != nil {
			respondAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authorize allows only requests whose verified role is in the list.
// Must run after Authenticate.
func Authorize(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				respondAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing credentials")
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				respondAuthError(w, http.StatusForbidden, "FORBIDDEN",
					fmt.Sprintf("role %q is not permitted for this operation", claims.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// respondAuthError writes a structured error without importing the api
// package (which imports this one).
func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := models.APIResponse{
		Status:   "error",
		Error:    &models.APIError{Code: code, Message: message},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	}
	_ = json.NewEncoder(w).Encode(resp)
}
