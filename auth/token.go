package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"marketchat/errors"
)

// Viewer is the authenticated participant a session acts for.
type Viewer struct {
	ID       string
	FullName string
}

// sessionClaims carries the viewer identity inside the JWT. The viewer ID
// lives in the registered Subject claim.
type sessionClaims struct {
	FullName string `json:"full_name"`
	jwt.RegisteredClaims
}

// NewSessionToken creates a signed session JWT for a viewer.
func NewSessionToken(viewer Viewer, secret []byte, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := &sessionClaims{
		FullName: viewer.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   viewer.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "marketchat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ResolveViewer validates a session token and returns the viewer it names.
func ResolveViewer(tokenString string, secret []byte) (Viewer, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return Viewer{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Viewer{}, errors.ErrInvalidToken
	}

	return Viewer{ID: claims.Subject, FullName: claims.FullName}, nil
}
