package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer is stamped on every operator token and required on validation
const tokenIssuer = "foodwaste-ussd"

var ErrInvalidToken = errors.New("invalid operator token")

// JWTClaims is the payload of an operator token. Subject repeats Phone.
type JWTClaims struct {
	Phone string `json:"phone"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTUtil signs and checks HS256 operator tokens with one shared secret
type JWTUtil struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTUtil(secretKey string, expirationHours int64) *JWTUtil {
	return &JWTUtil{secret: []byte(secretKey), ttl: time.Duration(expirationHours) * time.Hour}
}

// GenerateToken issues a token for the operator's phone and role
func (ju *JWTUtil) GenerateToken(phone, role string) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		Phone: phone,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   phone,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ju.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ju.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign operator token: %w", err)
	}
	return signed, nil
}

// ValidateToken returns the claims of a well-signed, unexpired operator token.
// Tokens signed with anything other than HS256 are rejected.
func (ju *JWTUtil) ValidateToken(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return ju.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Phone == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
