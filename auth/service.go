package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-pkgz/auth/v2/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/krishkalaria12/snap-detect/models"
)

const (
	// CookieName is the cookie carrying the JWT for browser sessions.
	CookieName = "JWT"

	Issuer   = "snap-detect-app"
	Audience = "snap-detect-app"

	TokenDuration  = time.Hour * 24
	CookieDuration = time.Hour * 24 * 7
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token expired")
)

// Service issues and verifies the JWTs that identify logged in users.
type Service struct {
	tokens *token.Service
	now    func() time.Time
}

func NewService(secret string) *Service {
	tokens := token.NewService(token.Opts{
		SecretReader: token.SecretFunc(func(string) (string, error) {
			return secret, nil
		}),
		TokenDuration:  TokenDuration,
		CookieDuration: CookieDuration,
		Issuer:         Issuer,
		JWTCookieName:  CookieName,
	})
	return &Service{tokens: tokens, now: time.Now}
}

// Token creates a signed JWT for user.
func (s *Service) Token(user *models.User) (string, error) {
	now := s.now()
	claims := token.Claims{
		User: &token.User{
			ID:    strconv.FormatUint(uint64(user.ID), 10),
			Name:  user.Username,
			Email: user.Email,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  []string{Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	tokenStr, err := s.tokens.Token(claims)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenStr, nil
}

// Parse validates tokenStr and returns the id of the user it was issued to.
func (s *Service) Parse(tokenStr string) (uint, error) {
	claims, err := s.tokens.Parse(tokenStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.User == nil || claims.Issuer != Issuer {
		return 0, ErrInvalidToken
	}
	// token.Service.Parse does not check expiration
	if claims.ExpiresAt == nil || claims.ExpiresAt.Before(s.now()) {
		return 0, ErrTokenExpired
	}

	userID, err := strconv.ParseUint(claims.User.ID, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad user id %q", ErrInvalidToken, claims.User.ID)
	}
	return uint(userID), nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
