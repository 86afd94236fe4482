package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}

// IsStudent reports whether the caller acts as a student.
func (c *JWTClaims) IsStudent() bool {
	return c != nil && c.Role == RoleStudent
}
