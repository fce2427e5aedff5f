package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the authorisation tier carried in a token.
type Role string

const (
	// RoleViewer can read but not write to the bus.
	RoleViewer Role = "viewer"

	// RoleOperator can send group telegrams.
	RoleOperator Role = "operator"
)

// DefaultTokenTTL applies when a zero TTL is requested.
const DefaultTokenTTL = time.Hour

// Sentinel errors.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrForbidden    = errors.New("insufficient permissions")
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleViewer, RoleOperator:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q (want viewer or operator)", ErrInvalidRole, s)
	}
}

// CanWrite reports whether the role may send telegrams.
func (r Role) CanWrite() bool {
	return r == RoleOperator
}

// Claims extends the registered JWT claims with the caller's role.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// GenerateToken signs a token for subject with the given role.
func GenerateToken(subject string, role Role, secret string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrTokenInvalid)
	}
	if _, err := ParseRole(string(role)); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken checks the signature, expiry and required claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if _, err := ParseRole(string(claims.Role)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	return claims, nil
}
