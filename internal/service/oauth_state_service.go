package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/steveiliop56/adhub/internal/model"
	"github.com/steveiliop56/adhub/internal/utils"
)

const stateKeyInfo = "adhub oauth state v1"

type OAuthStateServiceConfig struct {
	TTL time.Duration
}

// StateClaims is what a state token binds together.
type StateClaims struct {
	UserID    string `json:"uid"`
	Platform  string `json:"p"`
	Nonce     string `json:"n"`
	ExpiresAt int64  `json:"exp"`
}

// OAuthStateService issues and verifies the state parameter of the authorization flow.
// A token is base64url(json claims) + "." + base64url(hmac-sha256) and its nonce is single use.
type OAuthStateService struct {
	config  OAuthStateServiceConfig
	store   OAuthStateStore
	secrets *SecretCipherService
	key     []byte
	now     func() time.Time
}

func NewOAuthStateService(config OAuthStateServiceConfig, store OAuthStateStore, secrets *SecretCipherService) *OAuthStateService {
	return &OAuthStateService{
		config:  config,
		store:   store,
		secrets: secrets,
		now:     time.Now,
	}
}

func (states *OAuthStateService) Init() error {
	if states.config.TTL <= 0 {
		states.config.TTL = 10 * time.Minute
	}

	key, err := states.secrets.DeriveKey(stateKeyInfo, sha256.Size)
	if err != nil {
		return err
	}

	states.key = key
	return nil
}

func (states *OAuthStateService) Generate(ctx context.Context, userID string, platform string) (string, StateClaims, error) {
	nonce, err := utils.GetRandomString(32)
	if err != nil {
		return "", StateClaims{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := states.now()

	claims := StateClaims{
		UserID:    userID,
		Platform:  platform,
		Nonce:     nonce,
		ExpiresAt: now.Add(states.config.TTL).Unix(),
	}

	err = states.store.Save(ctx, model.OAuthState{
		Nonce:     nonce,
		UserID:    userID,
		Platform:  platform,
		ExpiresAt: claims.ExpiresAt,
		CreatedAt: now.Unix(),
	})
	if err != nil {
		return "", StateClaims{}, fmt.Errorf("failed to save oauth state: %w", err)
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", StateClaims{}, err
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + base64.RawURLEncoding.EncodeToString(states.sign(encoded)), claims, nil
}

// Verifier is the PKCE code verifier bound to a nonce. It is recomputed at exchange time instead of stored.
func (states *OAuthStateService) Verifier(nonce string) string {
	return base64.RawURLEncoding.EncodeToString(states.sign("pkce:" + nonce))
}

// Verify checks signature, expiry and that the state was issued to userID, then consumes the nonce.
// A state presented by another user is rejected without being consumed. Every rejection wraps ErrInvalidState.
func (states *OAuthStateService) Verify(ctx context.Context, userID string, token string) (StateClaims, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok {
		return StateClaims{}, fmt.Errorf("%w: malformed", ErrInvalidState)
	}

	mac, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil || !hmac.Equal(mac, states.sign(encoded)) {
		return StateClaims{}, fmt.Errorf("%w: bad signature", ErrInvalidState)
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return StateClaims{}, fmt.Errorf("%w: malformed payload", ErrInvalidState)
	}

	var claims StateClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return StateClaims{}, fmt.Errorf("%w: malformed payload", ErrInvalidState)
	}

	if claims.UserID != userID {
		return StateClaims{}, fmt.Errorf("%w: issued for another user", ErrInvalidState)
	}

	now := states.now()

	if now.Unix() > claims.ExpiresAt {
		return StateClaims{}, fmt.Errorf("%w: expired", ErrInvalidState)
	}

	consumed, err := states.store.Consume(ctx, claims.Nonce, claims.UserID, claims.Platform, now)
	if err != nil {
		return StateClaims{}, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	if !consumed {
		return StateClaims{}, fmt.Errorf("%w: unknown or already used", ErrInvalidState)
	}

	return claims, nil
}

func (states *OAuthStateService) Cleanup(ctx context.Context) error {
	return states.store.DeleteExpired(ctx, states.now())
}

func (states *OAuthStateService) sign(encoded string) []byte {
	h := hmac.New(sha256.New, states.key)
	h.Write([]byte(encoded))
	return h.Sum(nil)
}
