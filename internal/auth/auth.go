// Package auth issues and verifies the bearer tokens the API hands out
// at login. Tokens are HS256 JWTs carrying the user identity and admin
// flag; there is no server-side session state.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lzjever/mbos-irp/internal/core"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the verified identity extracted from a bearer token.
type Claims struct {
	UserID int64
	Email  string
	Admin  bool
}

type Authenticator struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func New(secret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{secret: []byte(secret), ttl: ttl, issuer: "irp"}
}

func (a *Authenticator) MintToken(user core.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(user.ID, 10),
		"email": user.Email,
		"admin": user.IsAdmin,
		"iss":   a.issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(a.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseToken verifies the signature and expiry and returns the claims.
// Any failure maps to ErrInvalidToken; callers never learn why a token
// was rejected.
func (a *Authenticator) ParseToken(tokenStr string) (Claims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer))
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, err := mapClaims.GetSubject()
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	c := Claims{UserID: userID}
	if email, ok := mapClaims["email"].(string); ok {
		c.Email = email
	}
	if admin, ok := mapClaims["admin"].(bool); ok {
		c.Admin = admin
	}
	return c, nil
}

type ctxKey struct{}

func ContextWithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// ClaimsFromContext returns the claims stored by the auth middleware.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(Claims)
	return c, ok
}
