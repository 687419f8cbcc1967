// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kwatanabe42/animori/internal/config"
)

// Claims carries the authenticated user identity inside a JWT.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type contextKey string

const userIDKey contextKey = "animori.user_id"

// Authenticator validates requests on user-scoped routes.
//
// Mode "jwt" requires a Bearer token signed with HMAC-SHA256. Mode "none"
// trusts the X-User-ID header and exists for development setups only.
type Authenticator struct {
	mode   string
	secret []byte
}

// NewAuthenticator builds an Authenticator from the security config.
func NewAuthenticator(cfg *config.SecurityConfig) (*Authenticator, error) {
	switch cfg.AuthMode {
	case "jwt":
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required but was empty")
		}
		return &Authenticator{mode: "jwt", secret: []byte(cfg.JWTSecret)}, nil
	case "none":
		return &Authenticator{mode: "none"}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}

// GenerateToken creates a signed JWT for the given user, valid for ttl.
func (a *Authenticator) GenerateToken(userID int64, username string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, nil
}

// validateToken checks the signature and time claims of a token string.
// The signing method is pinned to HMAC to prevent algorithm confusion.
func (a *Authenticator) validateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("token carries no user identity")
	}
	return claims, nil
}

// Middleware authenticates the request and stores the user ID in the context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.authenticate(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, codeAuthenticationError, "Authentication required", err)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (int64, error) {
	if a.mode == "none" {
		header := r.Header.Get("X-User-ID")
		if header == "" {
			return 0, fmt.Errorf("missing X-User-ID header")
		}
		userID, err := strconv.ParseInt(header, 10, 64)
		if err != nil || userID <= 0 {
			return 0, fmt.Errorf("invalid X-User-ID header %q", header)
		}
		return userID, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return 0, fmt.Errorf("missing Authorization header")
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return 0, fmt.Errorf("authorization header is not a bearer token")
	}
	claims, err := a.validateToken(tokenString)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// UserIDFromContext returns the authenticated user ID set by Middleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok
}
