package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"realestate-token-api/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the JWT payload for both token kinds.
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	IsStaff   bool   `json:"is_staff"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 tokens.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (s *TokenService) Issue(user *models.User, tokenType string) (string, error) {
	ttl := s.accessTTL
	if tokenType == TokenTypeRefresh {
		ttl = s.refreshTTL
	}
	now := s.now()
	claims := Claims{
		UserID:    user.ID,
		Email:     user.Email,
		IsStaff:   user.IsStaff,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, expiry and the expected token type.
func (s *TokenService) Parse(tokenString, tokenType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: token is not an %s token", ErrUnauthorized, tokenType)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token has no user", ErrUnauthorized)
	}
	return claims, nil
}

// TokenPair is the login result.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type AuthService struct {
	Users  *UserService
	Tokens *TokenService
}

func NewAuthService(users *UserService, tokens *TokenService) *AuthService {
	return &AuthService{Users: users, Tokens: tokens}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	verr := &ValidationError{}
	if email == "" {
		verr.Add("email", "required", "This field is required")
	}
	if password == "" {
		verr.Add("password", "required", "This field is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	user, err := s.Users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	access, err := s.Tokens.Issue(user, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Tokens.Issue(user, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Issued token pair", zap.String("user_id", user.ID))
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a refresh token for a new access token. The user must
// still exist and be active.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", invalid("refresh", "required", "This field is required")
	}
	claims, err := s.Tokens.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", err
	}

	user, err := s.Users.GetActive(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: user no longer exists", ErrUnauthorized)
		}
		return "", err
	}
	return s.Tokens.Issue(user, TokenTypeAccess)
}

// IdentityFromToken resolves a bearer access token into a caller identity,
// re-reading the user so role changes and deactivation apply immediately.
func (s *AuthService) IdentityFromToken(ctx context.Context, accessToken string) (Identity, error) {
	claims, err := s.Tokens.Parse(accessToken, TokenTypeAccess)
	if err != nil {
		return Identity{}, err
	}
	user, err := s.Users.GetActive(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: user no longer exists", ErrUnauthorized)
		}
		return Identity{}, err
	}
	return Identity{UserID: user.ID, Email: user.Email, IsStaff: user.IsStaff}, nil
}
