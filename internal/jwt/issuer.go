// Package jwt emite y valida los tokens de administración (HS256) que usan
// las herramientas externas contra la API admin.
package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid_jwt")
	ErrInvalidIssuer = errors.New("invalid_issuer")
	ErrNoSecret      = errors.New("admin token secret not configured")
)

// leeway tolera desfasajes de reloj entre emisor y validador.
const leeway = 30 * time.Second

// AdminClaims son los claims del access token de admin.
type AdminClaims struct {
	Username string `json:"username,omitempty"`
	Scope    string `json:"scope"` // siempre "admin"
	jwtv5.RegisteredClaims
}

// Issuer firma y valida tokens de admin con un secreto compartido.
type Issuer struct {
	Iss    string
	TTL    time.Duration
	secret []byte
	now    func() time.Time
}

// NewIssuer crea un Issuer. Con secret vacío, Sign y Parse fallan con ErrNoSecret.
func NewIssuer(iss, secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{Iss: iss, TTL: ttl, secret: []byte(secret), now: time.Now}
}

// Enabled reporta si hay secreto configurado.
func (i *Issuer) Enabled() bool { return len(i.secret) > 0 }

// IssueAdmin emite un token para el usuario sub.
func (i *Issuer) IssueAdmin(sub, username string) (string, time.Time, error) {
	if !i.Enabled() {
		return "", time.Time{}, ErrNoSecret
	}
	now := i.now().UTC()
	exp := now.Add(i.TTL)

	claims := AdminClaims{
		Username: username,
		Scope:    "admin",
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.Iss,
			Subject:   sub,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return signed, exp, nil
}

// ParseAdmin valida firma, iss, exp/nbf y scope.
func (i *Issuer) ParseAdmin(token string) (*AdminClaims, error) {
	if !i.Enabled() {
		return nil, ErrNoSecret
	}

	var claims AdminClaims
	tok, err := jwtv5.ParseWithClaims(token, &claims, func(*jwtv5.Token) (any, error) {
		return i.secret, nil
	},
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithLeeway(leeway),
		jwtv5.WithTimeFunc(i.now),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if i.Iss != "" && claims.Issuer != i.Iss {
		return nil, ErrInvalidIssuer
	}
	if claims.Scope != "admin" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
