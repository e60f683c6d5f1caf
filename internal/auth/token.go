// Package auth issues the session tokens a client presents when it
// reconnects to a room.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrExpiredToken      = errors.New("session token expired")
	ErrInvalidSignature  = errors.New("session token signature invalid")
	ErrInvalidSigningAlg = errors.New("session token signing algorithm not accepted")
	ErrCorruptedToken    = errors.New("session token malformed")
	ErrTokenMismatch     = errors.New("session token issued for another player or room")
)

// SessionClaims binds a player to the room they were seated in.
type SessionClaims struct {
	PlayerID string `json:"pid"`
	RoomCode string `json:"room"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
}

func NewTokenManager(secretKey string, ttl time.Duration) *TokenManager {
	return &TokenManager{secretKey: []byte(secretKey), ttl: ttl}
}

// Generate signs a token for playerID in roomCode valid for the manager's
// TTL from issuedAt.
func (m *TokenManager) Generate(playerID, roomCode string, issuedAt time.Time) (string, error) {
	claims := SessionClaims{
		PlayerID: playerID,
		RoomCode: roomCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// Verify checks signature and expiry and returns the claims.
func (m *TokenManager) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigningAlg
		}
		return m.secretKey, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidSigningAlg):
		return nil, ErrInvalidSigningAlg
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSignature
	default:
		return nil, ErrCorruptedToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrCorruptedToken
	}
	return claims, nil
}

// VerifyFor verifies the token and that it was issued for playerID in
// roomCode.
func (m *TokenManager) VerifyFor(tokenString, playerID, roomCode string) error {
	claims, err := m.Verify(tokenString)
	if err != nil {
		return err
	}
	if claims.PlayerID != playerID || claims.RoomCode != roomCode {
		return ErrTokenMismatch
	}
	return nil
}
