package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"amora/domain"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenValidator checks connection-time bearer tokens. The engine only
// ever sees the UserID extracted here; everything else about identity
// belongs to the auth collaborator.
type TokenValidator struct {
	key []byte
}

func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{key: []byte(secret)}
}

// Validate parses and validates the signature and expiration of a JWT
// string, returning the user identity it carries.
func (v *TokenValidator) Validate(tokenString string) (domain.UserID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", jwt.ErrSignatureInvalid
	}
	return domain.UserID(claims.UserID), nil
}

// GenerateToken creates a signed JWT for a specific user. Used by the
// test harness; production tokens are minted by the auth collaborator
// with the same shared secret.
func GenerateToken(secret string, userID domain.UserID, duration time.Duration) (string, error) {
	claims := &CustomClaims{
		UserID: string(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "amora",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
