package model

type OAuthState struct {
	Nonce     string
	UserID    string
	Platform  string
	ExpiresAt int64
	CreatedAt int64
}
