// Package auth issues and verifies the client review tokens.
//
// Tokens are HS256 JWTs whose subject is the client id. Only the
// daemon's client routes accept them; admin routes use the static API token.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"postflow/internal/config"
)

var (
	// ErrDisabled is returned when no signing secret is configured.
	ErrDisabled = errors.New("client tokens disabled: auth.jwt_secret not set")
	// ErrInvalidToken covers malformed, expired, or foreign tokens.
	ErrInvalidToken = errors.New("invalid client token")
)

// Claims identify the client a token was issued for.
type Claims struct {
	ClientID int64 `json:"cid"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies client tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an issuer from cfg.Auth.
func NewIssuer(cfg *config.Config) (*Issuer, error) {
	if cfg == nil || strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, ErrDisabled
	}
	ttl := time.Duration(cfg.Auth.TokenTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Issuer{
		secret: []byte(cfg.Auth.JWTSecret),
		issuer: cfg.Auth.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue returns a signed token for clientID and its expiry.
func (i *Issuer) Issue(clientID int64) (string, time.Time, error) {
	if clientID <= 0 {
		return "", time.Time{}, fmt.Errorf("issue token: invalid client id %d", clientID)
	}
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(clientID, 10),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses token and returns the client id it was issued for.
func (i *Issuer) Verify(token string) (int64, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return 0, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ClientID <= 0 || claims.Subject != strconv.FormatInt(claims.ClientID, 10) {
		return 0, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	return claims.ClientID, nil
}
