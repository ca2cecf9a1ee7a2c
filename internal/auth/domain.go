// Package auth issues staff bearer tokens and resolves them into actors.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the verified content of a bearer token.
type Claims struct {
	StaffID   uuid.UUID
	Name      string
	TokenID   string
	ExpiresAt time.Time
}

// Token is returned by a successful login.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
}
