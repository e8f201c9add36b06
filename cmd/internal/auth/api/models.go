package authapi

import "time"

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type verifyResponse struct {
	Username      string `json:"username"`
	Authenticated bool   `json:"authenticated"`
}
