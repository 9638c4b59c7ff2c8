package utils

import (
	"fmt"
	"time"

	"workhub-backend/pkg/models"

	"github.com/golang-jwt/jwt/v5"
)

// JWTService validates (and, for tooling and tests, mints) the access tokens
// the upstream identity provider issues. This backend never registers or
// logs in users; it only consumes verified identities.
type JWTService struct {
	secretKey []byte
}

func NewJWTService(secretKey string) *JWTService {
	return &JWTService{secretKey: []byte(secretKey)}
}

// GenerateAccessToken mints an access token for the given identity.
func (j *JWTService) GenerateAccessToken(userID, email string) (string, int64, error) {
	now := time.Now()
	expiry := now.Add(15 * time.Minute)

	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Type:   "access",
		Exp:    expiry.Unix(),
		Iat:    now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}
	return tokenString, expiry.Unix(), nil
}

// ValidateToken parses and verifies a token, returning its claims.
func (j *JWTService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if time.Now().Unix() > claims.Exp {
		return nil, fmt.Errorf("token expired")
	}
	return claims, nil
}

// ExtractUserFromToken resolves a token into the actor identity it names.
func (j *JWTService) ExtractUserFromToken(tokenString string) (*models.User, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &models.User{
		ID:    claims.UserID,
		Email: claims.Email,
	}, nil
}
