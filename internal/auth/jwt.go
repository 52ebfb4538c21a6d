package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the decision link payload. Subject is the visitor entry ID.
type Claims struct {
	jwt.RegisteredClaims
}

// Tokens signs and verifies decision link tokens with HS256.
type Tokens struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token issuer. A zero ttl means tokens never expire.
func NewTokens(key, issuer string, ttl time.Duration) *Tokens {
	return &Tokens{key: []byte(key), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue returns a signed token bound to entryID.
func (t *Tokens) Issue(entryID string) (string, error) {
	if entryID == "" {
		return "", errors.New("empty entry id")
	}
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   t.issuer,
			Subject:  entryID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
}

// Parse validates a token and returns its claims.
func (t *Tokens) Parse(tokenStr string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.key, nil
	}, opts...)
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("token has no subject")
	}
	return *claims, nil
}
