package model

import (
	"errors"
	"fmt"
	"time"
)

// Integration is a live or soft-disconnected connection to a platform.
// AccessToken and RefreshToken hold ciphertext. For API key platforms AccessToken
// holds the encrypted JSON of a CredentialBundle.
type Integration struct {
	ID           string
	UserID       string
	Platform     string
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
	IsActive     bool
	Metadata     IntegrationMetadata
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsExpired reports whether the access token expiry is strictly before now.
// Integrations without an expiry never expire.
func (i Integration) IsExpired(now time.Time) bool {
	if i.ExpiresAt == nil {
		return false
	}
	return i.ExpiresAt.Before(now)
}

type IntegrationMetadata struct {
	Audit AuditTrail `json:"audit"`
}

type AuditTrail struct {
	ConnectedAt          *time.Time `json:"connectedAt,omitempty"`
	DisconnectedAt       *time.Time `json:"disconnectedAt,omitempty"`
	DisconnectedManually bool       `json:"disconnectedManually,omitempty"`
	ReconnectedAt        *time.Time `json:"reconnectedAt,omitempty"`
	RefreshedAt          *time.Time `json:"refreshedAt,omitempty"`
	SyncedAt             *time.Time `json:"syncedAt,omitempty"`
	Scopes               []string   `json:"scopes,omitempty"`
}

// CredentialBundle is the credential set of a platform that uses API keys instead of OAuth.
type CredentialBundle struct {
	APIKey     string `json:"apiKey,omitempty"`
	APISecret  string `json:"apiSecret,omitempty"`
	AccountID  string `json:"accountId,omitempty"`
	ShopDomain string `json:"shopDomain,omitempty"`
}

var ErrMissingCredentialField = errors.New("missing credential field")

func (b CredentialBundle) Field(name string) (string, bool) {
	switch name {
	case "apiKey":
		return b.APIKey, true
	case "apiSecret":
		return b.APISecret, true
	case "accountId":
		return b.AccountID, true
	case "shopDomain":
		return b.ShopDomain, true
	}
	return "", false
}

// Validate checks that every required field is known and non-empty.
func (b CredentialBundle) Validate(required []string) error {
	for _, name := range required {
		value, known := b.Field(name)
		if !known || value == "" {
			return fmt.Errorf("%w: %s", ErrMissingCredentialField, name)
		}
	}
	return nil
}
