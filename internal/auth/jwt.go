package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/clubchat-server/internal/core"
)

// Claims represents JWT claims for club chat authentication.
type Claims struct {
	UserID      int64  `json:"user_id"`
	ProfileName string `json:"profile_name"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// GenerateToken creates a new JWT token for the given user.
func GenerateToken(cfg *JWTConfig, userID int64, profileName string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:      userID,
		ProfileName: profileName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(userID),
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// ValidateToken parses and validates a JWT token.
func ValidateToken(cfg *JWTConfig, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	// Validate issuer and audience if configured
	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, errors.New("invalid issuer")
	}
	if cfg.Audience != "" && !slices.Contains(claims.Audience, cfg.Audience) {
		return nil, errors.New("invalid audience")
	}
	if claims.UserID <= 0 || claims.ProfileName == "" {
		return nil, errors.New("token carries no identity")
	}

	return claims, nil
}

// JWTResolver resolves signed tokens without touching storage.
type JWTResolver struct {
	cfg *JWTConfig
}

// NewJWTResolver returns a resolver validating tokens against cfg.
func NewJWTResolver(cfg *JWTConfig) *JWTResolver {
	return &JWTResolver{cfg: cfg}
}

// Resolve implements core.IdentityResolver.
func (r *JWTResolver) Resolve(_ context.Context, credential string) (core.Identity, error) {
	claims, err := ValidateToken(r.cfg, credential)
	if err != nil {
		return core.Identity{}, fmt.Errorf("%w: %w", core.ErrInvalidCredential, err)
	}
	return core.Identity{UserID: claims.UserID, DisplayName: claims.ProfileName}, nil
}
