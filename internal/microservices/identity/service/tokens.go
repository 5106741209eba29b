package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"order-desk/internal/domain"
)

// Tokens issues and checks HS256 access tokens carrying userId and role claims.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Claims is the access token payload.
type Claims struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (t *Tokens) Issue(userID int64, role domain.Role) (string, error) {
	now := t.now()
	claims := &Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse returns the user id and role of a valid token.
func (t *Tokens) Parse(raw string) (int64, domain.Role, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return 0, "", domain.ErrInvalidToken
	}
	if claims.UserID <= 0 || !domain.Role(claims.Role).Valid() {
		return 0, "", domain.ErrInvalidToken
	}
	return claims.UserID, domain.Role(claims.Role), nil
}
