package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// claimLifetime is how long an issued claim stays valid.
const claimLifetime = 1800 * time.Second

var (
	// ErrInvalidCredentials signals a wrong tenant name or shared secret.
	ErrInvalidCredentials = errors.New("tenant: invalid credentials")
	// ErrUnauthenticated signals an absent, malformed, expired, or
	// not-yet-valid claim.
	ErrUnauthenticated = errors.New("tenant: unauthenticated")
)

// Claims is the signed claim payload issued to an authenticated tenant.
type Claims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Service issues and verifies signed tenant claims.
type Service struct {
	repo      Repository
	jwtSecret []byte
	now       func() time.Time
}

// NewService creates a new tenant directory service.
func NewService(repo Repository, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Authenticate resolves the credential pair to a tenant and returns a
// signed claim valid for 30 minutes. No other operation reads the
// shared secret.
func (s *Service) Authenticate(ctx context.Context, name, secret string) (string, error) {
	t, err := s.repo.GetTenantByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(t.SecretHash), []byte(secret)); err != nil {
		return "", ErrInvalidCredentials
	}

	issued := s.now()
	claims := Claims{
		TenantID: t.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(claimLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("tenant: sign claim: %w", err)
	}

	return signed, nil
}

// VerifyClaim validates a presented claim and returns the acting tenant id.
func (s *Service) VerifyClaim(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrUnauthenticated
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TenantID == "" {
		return "", ErrUnauthenticated
	}

	return claims.TenantID, nil
}

// Provision creates a tenant with a bcrypt-hashed shared secret. This is
// an administrative operation and is not exposed on normal traffic.
func (s *Service) Provision(ctx context.Context, name, secret string) (Tenant, error) {
	if name == "" {
		return Tenant{}, fmt.Errorf("tenant: name is required")
	}
	if len(secret) < 8 {
		return Tenant{}, fmt.Errorf("tenant: shared secret must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return Tenant{}, fmt.Errorf("tenant: hash secret: %w", err)
	}

	return s.repo.CreateTenant(ctx, CreateTenantParams{
		Name:       name,
		SecretHash: string(hash),
	})
}
