package models

import "time"

// User is an account that owns folders, sessions, and artifacts.
// Authentication is deliberately minimal: the transfer subsystem only
// needs a resolved owner identity per request.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterRequest is the JSON body for POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest is the JSON body for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse returns the API token issued on register/login. The
// token is shown once; only its hash is stored.
type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}
