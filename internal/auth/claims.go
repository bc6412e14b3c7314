package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ServiceClaims are the claims of a service bearer token. Service tokens
// are HS256 JWTs minted for internal callers (schedulers, back-office
// jobs). They act as system_admin, have no database row and cannot be
// logged out.
type ServiceClaims struct {
	jwt.RegisteredClaims
	Service string `json:"svc"`
}

var errServiceTokenInvalid = errors.New("invalid service token")

// ServiceTokens signs and verifies service bearer tokens.
type ServiceTokens struct {
	secret []byte
	issuer string
}

// NewServiceTokens returns nil when secret is empty, which disables service tokens.
func NewServiceTokens(secret, issuer string) *ServiceTokens {
	if secret == "" {
		return nil
	}
	return &ServiceTokens{secret: []byte(secret), issuer: issuer}
}

// Mint signs a token for a named service.
func (s *ServiceTokens) Mint(service string, ttl time.Duration) (string, error) {
	if service == "" {
		return "", fmt.Errorf("%w: missing service name", errServiceTokenInvalid)
	}

	now := time.Now()
	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   "svc-" + service,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Service: service,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing service token: %w", err)
	}
	return signed, nil
}

// Parse validates signature, expiry, issuer and required fields.
func (s *ServiceTokens) Parse(tokenString string) (*ServiceClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errServiceTokenInvalid, err)
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, errServiceTokenInvalid
	}
	if claims.Subject == "" || claims.Service == "" {
		return nil, fmt.Errorf("%w: missing subject", errServiceTokenInvalid)
	}
	return claims, nil
}

// identity builds the request principal for verified claims.
func (c *ServiceClaims) identity() *Identity {
	issued := time.Time{}
	if c.IssuedAt != nil {
		issued = c.IssuedAt.Time
	}
	return &Identity{
		User: &User{
			ID:        c.Subject,
			Name:      c.Service,
			Status:    StatusActive,
			CreatedAt: issued,
			UpdatedAt: issued,
		},
		Artifact: Ephemeral(),
		Channel:  ChannelMobile,
		Auth:     serviceAuthContext(),
	}
}
