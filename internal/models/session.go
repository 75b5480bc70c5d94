package models

import "time"

// Session binds a cookie token to a user
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Guest     bool      `json:"guest"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OAuthToken is the stored Google token for a user
type OAuthToken struct {
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// LoginResult is returned by GET /login
type LoginResult struct {
	Status  string   `json:"status"`
	UserID  string   `json:"user_id,omitempty"`
	Guest   bool     `json:"guest,omitempty"`
	AuthURL string   `json:"auth_url,omitempty"`
	State   string   `json:"-"`
	Session *Session `json:"-"`
}
