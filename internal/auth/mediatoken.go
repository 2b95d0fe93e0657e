package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MediaSigner issues short-lived tokens that authorize fetching one media
// blob. The token travels as a query parameter because the playback element
// cannot attach request headers.
type MediaSigner struct {
	hmac []byte
	ttl  time.Duration
}

func NewMediaSigner(secret string, ttl time.Duration) *MediaSigner {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &MediaSigner{hmac: []byte(secret), ttl: ttl}
}

type mediaClaims struct {
	Key string `json:"key"` // blob key the token is bound to
	Sub string `json:"sub"`
	jwt.RegisteredClaims
}

func (m *MediaSigner) Issue(key, sub string) (string, error) {
	now := time.Now()
	claims := &mediaClaims{
		Key: key,
		Sub: sub,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "review-player/media",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.hmac)
}

// Verify checks the token and that it was issued for the requested key.
func (m *MediaSigner) Verify(tokenStr, key string) error {
	token, err := jwt.ParseWithClaims(tokenStr, &mediaClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.hmac, nil
	})
	if err != nil {
		return err
	}
	c, ok := token.Claims.(*mediaClaims)
	if !ok || !token.Valid {
		return errors.New("invalid media token")
	}
	if c.Key != key {
		return errors.New("media token does not match key")
	}
	return nil
}
