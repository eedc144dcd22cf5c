package domain

import "time"

// TokenPair is the access/refresh credential pair handed to clients. It is
// never persisted; only a hash of the refresh token is stored.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Identity is the subject a token pair is minted for.
type Identity struct {
	ID       string
	Email    string
	UserType UserType
}

// Claims is the verified payload of a token.
type Claims struct {
	SubjectID string    `json:"id"`
	Email     string    `json:"email"`
	RoleTag   string    `json:"hashType"`
	ExpiresAt time.Time `json:"exp"`
}
