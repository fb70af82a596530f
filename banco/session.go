package main

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type sessionClaims struct {
	UserID  int64 `json:"userId"`
	IsAdmin bool  `json:"isAdmin,omitempty"`
	jwt.RegisteredClaims
}

// SessionReader recognises the signed-in customer from the session cookie.
type SessionReader struct {
	cookieName string
	secret     []byte
}

func NewSessionReader(settings SessionSettings) *SessionReader {
	return &SessionReader{cookieName: settings.CookieName, secret: []byte(settings.Secret)}
}

// UserID returns the user carried by a valid session cookie. A missing,
// expired or forged cookie is an anonymous request, not an error.
func (s *SessionReader) UserID(r *http.Request) *int64 {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	var claims sessionClaims
	_, err = jwt.ParseWithClaims(cookie.Value, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithExpirationRequired())
	if err != nil || claims.UserID <= 0 {
		return nil
	}
	id := claims.UserID
	return &id
}

// Sign issues a session token for userID. Used by tests and tooling that
// share the session secret.
func (s *SessionReader) Sign(userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString(s.secret)
}
