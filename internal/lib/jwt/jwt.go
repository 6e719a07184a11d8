package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const DefaultTTL = 30 * time.Minute

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens with a single shared secret.
type Codec struct {
	secret     []byte
	defaultTTL time.Duration
	now        func() time.Time
}

func NewCodec(secret string, defaultTTL time.Duration) *Codec {
	if defaultTTL == 0 {
		defaultTTL = DefaultTTL
	}
	return &Codec{
		secret:     []byte(secret),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Encode issues a token for subject. A zero ttl falls back to the codec
// default; a negative one yields a token that is already expired.
func (c *Codec) Encode(subject string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}

// Decode verifies the signature and expiry of tokenString. Every failure
// is reported as ErrInvalidToken.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}

	// expiry is checked below so that a missing exp is rejected as well
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if !claims.VerifyExpiresAt(c.now(), true) {
		return nil, fmt.Errorf("%w: token is expired or has no exp", ErrInvalidToken)
	}

	return claims, nil
}
