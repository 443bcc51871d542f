// Package auth issues and verifies the short-lived session tokens minted
// after a successful pipeline run, so business services can accept a proven
// session without re-running the possession proof.
package auth

import (
	"errors"
	"time"

	"github.com/circlekeep/circlekeep/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard registered claims plus the member ID.
type Claims struct {
	jwt.RegisteredClaims
	MemberID string
}

// GenerateToken mints an HS256 session token for the member.
func GenerateToken(memberID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		MemberID: memberID,
	})

	return token.SignedString(secretKey)
}

// MemberIDFromToken verifies the token signature and expiry and returns the
// embedded member ID.
func MemberIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	return claims.MemberID, nil
}
