package auth

import (
	"time"

	"github.com/finbright/bankcore/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const TokenTTL = time.Hour

// GenerateToken issues an HS256 token carrying the user id and role.
func GenerateToken(user *models.User, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    string(user.Role),
		"exp":     time.Now().Add(TokenTTL).Unix(),
	})
	return token.SignedString([]byte(secret))
}
