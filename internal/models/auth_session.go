package models

import "time"

// AuthSession is a signed-in device. It lives in Redis, keyed by ID, and is
// reachable from the hash of its current refresh token.
type AuthSession struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	RefreshHash string    `json:"refresh_hash,omitempty"`
	UserAgent   string    `json:"user_agent"`
	IPAddress   string    `json:"ip_address"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenPair is returned by every successful sign-in or refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	SessionID    string    `json:"session_id"`
}
