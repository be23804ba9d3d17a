package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"time"

	"github.com/djeeyo/nmreggae/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	adminSubject = "admin"
	issuer       = "nmreggae"
)

// Authentication errors
var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidSession  = errors.New("invalid session")
)

// Claims are carried by an admin session token
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator checks the shared admin secret and issues sessions
type Authenticator struct {
	password   []byte
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewAuthenticator builds an Authenticator from config. Without a JWT
// secret a random key is generated, so sessions do not survive a restart.
func NewAuthenticator(cfg config.AdminConfig) (*Authenticator, error) {
	key := []byte(cfg.JWTSecret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, errors.Wrap(err, "failed to generate session key")
		}
		log.Warn().Msg("admin.jwt_secret not set, using an ephemeral session key")
	}
	if cfg.Password == "" {
		log.Warn().Msg("admin.password not set, admin endpoints will reject every request")
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &Authenticator{
		password:   []byte(cfg.Password),
		signingKey: key,
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// CheckPassword compares in constant time. An empty configured password
// matches nothing.
func (a *Authenticator) CheckPassword(candidate string) bool {
	if len(a.password) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(a.password, []byte(candidate)) == 1
}

// IssueSession signs a new admin session token
func (a *Authenticator) IssueSession() (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := &Claims{
		Role: adminSubject,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   adminSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "failed to sign session")
	}
	return signed, expiresAt, nil
}

// ParseSession validates a session token
func (a *Authenticator) ParseSession(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return a.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(adminSubject),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSession, err.Error())
	}
	if !token.Valid || claims.Role != adminSubject {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
