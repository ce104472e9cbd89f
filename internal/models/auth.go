package models

import "github.com/golang-jwt/jwt/v5"

// TutorClaims are the JWT claims issued to an authenticated tutor.
type TutorClaims struct {
	TutorID string `json:"tutor_id"`
	Name    string `json:"name"`
	jwt.RegisteredClaims
}

// LoginRequest authenticates a tutor with phone and PIN.
type LoginRequest struct {
	Phone string `json:"phone" validate:"required"`
	PIN   string `json:"pin" validate:"required,min=4"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	Token     string   `json:"token"`
	ExpiresIn int64    `json:"expires_in"`
	Tutor     TutorRef `json:"tutor"`
}
