package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bookshelf/internal/config"
	"bookshelf/internal/model"
)

var (
	ErrTokenExpired = errors.New("access token has expired")
	ErrTokenInvalid = errors.New("invalid access token")
)

// AuthService issues and verifies stateless access tokens.
type AuthService struct {
	config *config.Config
	now    func() time.Time
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{
		config: cfg,
		now:    time.Now,
	}
}

// Login builds the response returned after successful authentication.
func (s *AuthService) Login(user *model.User) (*model.LoginResponse, error) {
	accessToken, err := s.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return &model.LoginResponse{
		User:        user,
		AccessToken: accessToken,
		ExpiresIn:   s.config.AccessTokenMaxAge,
	}, nil
}

// GenerateAccessToken signs an HS256 token carrying the user id and role.
func (s *AuthService) GenerateAccessToken(user *model.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    string(user.Role),
		"exp":     now.Add(time.Duration(s.config.AccessTokenMaxAge) * time.Second).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// ParseAccessToken verifies tokenString and extracts its claims.
// It returns ErrTokenExpired or ErrTokenInvalid.
func (s *AuthService) ParseAccessToken(tokenString string) (*model.Claims, error) {
	return ParseAccessToken(tokenString, s.config.JWTSecret)
}

// ParseAccessToken is the stateless form used by the HTTP middleware.
func ParseAccessToken(tokenString, secret string) (*model.Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	role := model.Role(fmt.Sprint(claims["role"]))
	if !role.Valid() {
		return nil, ErrTokenInvalid
	}

	return &model.Claims{
		UserID: int64(userIDFloat),
		Role:   role,
	}, nil
}
