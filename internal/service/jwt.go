package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("jwt secret is not set")
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

// Tokens signs and verifies bearer tokens carrying the acting user id.
type Tokens struct {
	secret []byte
	now    Clock
}

func NewTokens(secret string, now Clock) (*Tokens, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if now == nil {
		now = SystemClock
	}
	return &Tokens{secret: []byte(secret), now: now}, nil
}

// Generate issues a token for userID.
func (t *Tokens) Generate(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := t.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(TokenTTL).Unix(),
		"iat":     now.Unix(),
		"nbf":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates tokenString and returns the user id it was issued for.
func (t *Tokens) Parse(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("user_id not found")
	}
	return userID, nil
}
