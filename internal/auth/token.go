// Package auth issues and verifies HS256 access tokens and puts the caller's
// identity on the request context.
package auth

import (
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

const defaultTTL = 8 * time.Hour

// Identity is who a token was issued to.
type Identity struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Issuer struct {
	ja  *jwtauth.JWTAuth
	ttl time.Duration
	now func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Issuer{ja: jwtauth.New("HS256", []byte(secret), nil), ttl: ttl, now: time.Now}
}

// JWTAuth is the verifier handed to jwtauth.Verifier.
func (i *Issuer) JWTAuth() *jwtauth.JWTAuth { return i.ja }

func (i *Issuer) Issue(id Identity) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := jwt.MapClaims{
		"sub":   id.ID,
		"role":  id.Role,
		"email": id.Email,
		"name":  id.Name,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
		"iss":   "integriguard",
	}
	_, tok, err := i.ja.Encode(claims)
	return tok, exp, err
}

// IdentityFromClaims reads the claims written by Issue.
func IdentityFromClaims(claims jwt.MapClaims) (Identity, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, errors.New("sub claim is missing")
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return Identity{}, errors.New("role claim is missing")
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	return Identity{ID: sub, Role: role, Email: email, Name: name}, nil
}
