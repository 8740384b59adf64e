package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the JWT payload of admin access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// PretermClaims is the payload of a priority signup token; the subject is the invited mail.
type PretermClaims struct {
	Namespace string `json:"ns"`
	jwt.RegisteredClaims
}
