package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const AdminRole = "admin"

// GenerateAdminToken signs an HS256 token carrying the admin role, accepted
// by middleware.AdminRequired with the same secret.
func GenerateAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("admin jwt secret is empty")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": AdminRole,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
