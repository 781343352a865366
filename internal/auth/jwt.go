package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrWrongKind    = errors.New("wrong token kind")
)

// TokenKind separates short-lived access tokens from long-lived refresh
// tokens so one can never stand in for the other.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

const issuer = "natural-twenty"

// Claims is the JWT payload: the user plus the kind of token carrying it.
type Claims struct {
	UserID string    `json:"uid"`
	Kind   TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates the API's bearer tokens with a shared
// HS256 secret.
type JWTManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewJWTManager creates a JWTManager with the given secret. Access tokens
// live 15 minutes, refresh tokens 7 days.
func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{
		secret:     []byte(secret),
		accessTTL:  15 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
	}
}

func (m *JWTManager) sign(userID string, kind TokenKind, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// GenerateAccessToken creates a short-lived access token for the user.
func (m *JWTManager) GenerateAccessToken(userID string) (string, error) {
	return m.sign(userID, KindAccess, m.accessTTL)
}

// GenerateRefreshToken creates a long-lived refresh token for the user.
func (m *JWTManager) GenerateRefreshToken(userID string) (string, error) {
	return m.sign(userID, KindRefresh, m.refreshTTL)
}

// parse checks the signature, expiry and issuer and returns the claims.
func (m *JWTManager) parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAccessToken accepts only access tokens; a refresh token presented
// as a bearer credential fails with ErrWrongKind.
func (m *JWTManager) ValidateAccessToken(tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Kind != KindAccess {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// ValidateRefreshToken accepts only refresh tokens.
func (m *JWTManager) ValidateRefreshToken(tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Kind != KindRefresh {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// TokenPair holds the tokens handed out after login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // access token lifetime, seconds
}

// GenerateTokenPair creates both tokens for a user.
func (m *JWTManager) GenerateTokenPair(userID string) (*TokenPair, error) {
	access, err := m.GenerateAccessToken(userID)
	if err != nil {
		return nil, err
	}
	refresh, err := m.GenerateRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(m.accessTTL.Seconds()),
	}, nil
}
