package model

import "time"

// OAuthApp holds the client credentials a user registered for one platform.
// ClientSecret is the stored ciphertext, nil when no secret was supplied.
type OAuthApp struct {
	ID           string
	UserID       string
	Platform     string
	ClientID     string
	ClientSecret *string
	RedirectURI  string
	Scopes       []string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
