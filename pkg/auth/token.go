package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/vfense-accounts/pkg/domain"
)

// DefaultAccessTokenTTL is used when TokenConfig.AccessTokenTTL is zero.
const DefaultAccessTokenTTL = 60 * time.Minute

// TokenConfig holds signing configuration for access tokens.
type TokenConfig struct {
	Secret         []byte
	Issuer         string
	AccessTokenTTL time.Duration
}

// AccessTokenClaims represents the claims in an access token.
// The subject is the username.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Customer string `json:"customer,omitempty"`
	FullName string `json:"name,omitempty"`
}

// TokenService issues and validates HS256 access tokens.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService creates a new token service.
func NewTokenService(config TokenConfig) (*TokenService, error) {
	if len(config.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	return &TokenService{config: config, now: time.Now}, nil
}

// AccessTokenTTL returns the access token TTL.
func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.config.AccessTokenTTL
}

// Issue signs an access token for user, scoped to their current customer.
func (s *TokenService) Issue(user *domain.User) (*domain.TokenPair, error) {
	now := s.now()
	expiresAt := now.Add(s.config.AccessTokenTTL)

	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    s.config.Issuer,
			ID:        uuid.NewString(),
		},
		Customer: user.CurrentCustomer,
		FullName: user.FullName,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.config.AccessTokenTTL.Seconds()),
		ExpiresAt:   expiresAt,
	}, nil
}

// Validate parses an access token and returns its claims.
func (s *TokenService) Validate(tokenString string) (*AccessTokenClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now)}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.config.Secret, nil
	}, opts...)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessTokenClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
