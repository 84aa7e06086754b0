package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/steveiliop56/adhub/internal/catalog"
	"github.com/steveiliop56/adhub/internal/model"
	"github.com/steveiliop56/adhub/internal/repository"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/google/uuid"
)

type TokenLifecycleServiceConfig struct {
	RevokeTimeout time.Duration
}

// TokenLifecycleService owns integrations: exchange, refresh, revocation and the soft disconnect.
type TokenLifecycleService struct {
	config  TokenLifecycleServiceConfig
	queries *repository.Queries
	catalog *catalog.Catalog
	secrets *SecretCipherService
	apps    *OAuthAppService
	states  *OAuthStateService
	broker  *PlatformBrokerService
	now     func() time.Time
}

func NewTokenLifecycleService(config TokenLifecycleServiceConfig, queries *repository.Queries, platforms *catalog.Catalog, secrets *SecretCipherService, apps *OAuthAppService, states *OAuthStateService, broker *PlatformBrokerService) *TokenLifecycleService {
	return &TokenLifecycleService{
		config:  config,
		queries: queries,
		catalog: platforms,
		secrets: secrets,
		apps:    apps,
		states:  states,
		broker:  broker,
		now:     time.Now,
	}
}

func (tokens *TokenLifecycleService) Init() error {
	if tokens.config.RevokeTimeout <= 0 {
		tokens.config.RevokeTimeout = 10 * time.Second
	}
	return nil
}

// Exchange trades an authorization code for tokens. Failures are ExchangeErrors with the platform response attached.
func (tokens *TokenLifecycleService) Exchange(ctx context.Context, platform string, code string, redirectURI string, app DecryptedOAuthApp, verifier string) (PlatformTokens, error) {
	return tokens.broker.GetService(platform).Exchange(ctx, oauthClient(app, redirectURI), code, verifier)
}

// IsExpired is true only when an expiry is set and strictly in the past.
func (tokens *TokenLifecycleService) IsExpired(integration model.Integration) bool {
	return integration.IsExpired(tokens.now())
}

// Revoke is best effort, failures are logged and reported as false.
func (tokens *TokenLifecycleService) Revoke(ctx context.Context, userID string, platform string, accessToken string) bool {
	app, err := tokens.apps.GetActiveForPlatform(ctx, userID, platform)
	if err != nil {
		tlog.App.Debug().Err(err).Str("platform", platform).Msg("No usable oauth app, skipping token revocation")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, tokens.config.RevokeTimeout)
	defer cancel()

	err = tokens.broker.GetService(platform).Revoke(ctx, oauthClient(app, app.RedirectURI), accessToken)
	if err != nil {
		tlog.App.Warn().Err(err).Str("platform", platform).Msg("Failed to revoke token upstream, continuing with local disconnect")
		tlog.AuditRevokeFailure(userID, platform, err.Error())
		return false
	}

	return true
}

// CompleteAuthorization handles the callback: it verifies the state, exchanges the code and stores the integration.
// Once the state is verified a failed result still carries the platform.
func (tokens *TokenLifecycleService) CompleteAuthorization(ctx context.Context, userID string, code string, state string) (model.Integration, error) {
	claims, err := tokens.states.Verify(ctx, userID, state)
	if err != nil {
		return model.Integration{}, err
	}

	app, err := tokens.apps.GetActiveForPlatform(ctx, userID, claims.Platform)
	if err != nil {
		return model.Integration{Platform: claims.Platform}, err
	}

	exchanged, err := tokens.Exchange(ctx, claims.Platform, code, app.RedirectURI, app, tokens.states.Verifier(claims.Nonce))
	if err != nil {
		return model.Integration{Platform: claims.Platform}, err
	}

	accessToken, err := tokens.secrets.Encrypt(exchanged.AccessToken)
	if err != nil {
		return model.Integration{Platform: claims.Platform}, err
	}

	refreshToken, err := tokens.secrets.EncryptOptional(exchanged.RefreshToken)
	if err != nil {
		return model.Integration{Platform: claims.Platform}, err
	}

	scopes := exchanged.Scopes
	if len(scopes) == 0 {
		scopes = app.Scopes
	}

	integration, err := tokens.activate(ctx, model.Integration{
		UserID:       userID,
		Platform:     claims.Platform,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    exchanged.ExpiresAt,
	}, scopes)
	if err != nil {
		return model.Integration{Platform: claims.Platform}, err
	}

	tlog.AuditConnect(userID, claims.Platform, "oauth")

	return integration, nil
}

// ConfigureCredentials stores the credential bundle of an API key platform and activates it.
func (tokens *TokenLifecycleService) ConfigureCredentials(ctx context.Context, userID string, platform string, bundle model.CredentialBundle) (model.Integration, error) {
	entry, ok := tokens.catalog.Get(platform)
	if !ok {
		return model.Integration{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}

	if !entry.RequiresAPIKey {
		return model.Integration{}, validationError("%s is connected through oauth", entry.ID)
	}

	if err := bundle.Validate(entry.APIKeyFields); err != nil {
		return model.Integration{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	payload, err := json.Marshal(bundle)
	if err != nil {
		return model.Integration{}, err
	}

	accessToken, err := tokens.secrets.Encrypt(string(payload))
	if err != nil {
		return model.Integration{}, err
	}

	integration, err := tokens.activate(ctx, model.Integration{
		UserID:      userID,
		Platform:    entry.ID,
		AccessToken: accessToken,
	}, nil)
	if err != nil {
		return model.Integration{}, err
	}

	tlog.AuditConnect(userID, entry.ID, "api_key")

	return integration, nil
}

// Disconnect deactivates the integration and keeps its tokens so it can be reconnected later.
// With revoke set the access token is also revoked upstream, which makes a later reconnect need a fresh authorization.
func (tokens *TokenLifecycleService) Disconnect(ctx context.Context, userID string, platform string, revoke bool) (model.Integration, error) {
	integration, err := tokens.get(ctx, userID, platform)
	if err != nil {
		return model.Integration{}, err
	}

	revoked := false
	if entry, ok := tokens.catalog.Get(platform); revoke && ok && entry.RequiresOAuth && integration.IsActive {
		accessToken, err := tokens.secrets.Decrypt(integration.AccessToken)
		if err != nil {
			tlog.App.Warn().Err(err).Str("platform", platform).Msg("Failed to decrypt access token, skipping revocation")
		} else {
			revoked = tokens.Revoke(ctx, userID, platform, accessToken)
		}
	}

	now := tokens.now().UTC().Truncate(time.Second)

	integration.IsActive = false
	integration.Metadata.Audit.DisconnectedAt = &now
	integration.Metadata.Audit.DisconnectedManually = true
	integration.UpdatedAt = now

	if err := tokens.updateState(ctx, integration); err != nil {
		return model.Integration{}, err
	}

	tlog.AuditDisconnect(userID, platform, revoked)

	return integration, nil
}

// Reconnect reactivates a soft disconnected integration with the tokens it still holds.
func (tokens *TokenLifecycleService) Reconnect(ctx context.Context, userID string, platform string) (model.Integration, error) {
	integration, err := tokens.get(ctx, userID, platform)
	if err != nil {
		return model.Integration{}, err
	}

	if integration.AccessToken == "" {
		return model.Integration{}, fmt.Errorf("%w: no stored credentials for %s", ErrNotFound, platform)
	}

	now := tokens.now().UTC().Truncate(time.Second)

	integration.IsActive = true
	integration.Metadata.Audit.DisconnectedManually = false
	integration.Metadata.Audit.ReconnectedAt = &now
	integration.UpdatedAt = now

	if err := tokens.updateState(ctx, integration); err != nil {
		return model.Integration{}, err
	}

	tlog.AuditReconnect(userID, platform)

	return integration, nil
}

// Refresh exchanges the stored refresh token. It only runs when asked to.
func (tokens *TokenLifecycleService) Refresh(ctx context.Context, userID string, platform string) (model.Integration, error) {
	integration, err := tokens.get(ctx, userID, platform)
	if err != nil {
		return model.Integration{}, err
	}

	if integration.RefreshToken == nil {
		return model.Integration{}, validationError("no refresh token stored for %s", platform)
	}

	refreshToken, err := tokens.secrets.Decrypt(*integration.RefreshToken)
	if err != nil {
		return model.Integration{}, err
	}

	app, err := tokens.apps.GetActiveForPlatform(ctx, userID, platform)
	if err != nil {
		return model.Integration{}, err
	}

	refreshed, err := tokens.broker.GetService(platform).Refresh(ctx, oauthClient(app, app.RedirectURI), refreshToken)
	if err != nil {
		return model.Integration{}, err
	}

	accessToken, err := tokens.secrets.Encrypt(refreshed.AccessToken)
	if err != nil {
		return model.Integration{}, err
	}

	newRefreshToken, err := tokens.secrets.EncryptOptional(refreshed.RefreshToken)
	if err != nil {
		return model.Integration{}, err
	}

	now := tokens.now().UTC().Truncate(time.Second)
	integration.Metadata.Audit.RefreshedAt = &now

	var expiresAt *int64
	if refreshed.ExpiresAt != nil {
		unix := refreshed.ExpiresAt.Unix()
		expiresAt = &unix
	}

	updated, err := tokens.queries.UpdateIntegrationTokens(ctx, repository.UpdateIntegrationTokensParams{
		ID:           integration.ID,
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresAt:    expiresAt,
		Metadata:     integration.Metadata,
		UpdatedAt:    now.Unix(),
	})
	if err != nil {
		return model.Integration{}, fmt.Errorf("failed to store refreshed tokens: %w", err)
	}

	if updated == 0 {
		return model.Integration{}, ErrNotFound
	}

	tlog.AuditRefresh(userID, platform)

	return tokens.get(ctx, userID, platform)
}

// Credentials decrypts what a data fetch needs for the integration.
func (tokens *TokenLifecycleService) Credentials(integration model.Integration) (PlatformCredentials, error) {
	plaintext, err := tokens.secrets.Decrypt(integration.AccessToken)
	if err != nil {
		return PlatformCredentials{}, err
	}

	entry, ok := tokens.catalog.Get(integration.Platform)
	if ok && entry.RequiresAPIKey {
		var bundle model.CredentialBundle
		if err := json.Unmarshal([]byte(plaintext), &bundle); err != nil {
			return PlatformCredentials{}, fmt.Errorf("failed to decode credential bundle: %w", err)
		}
		return PlatformCredentials{Bundle: bundle}, nil
	}

	return PlatformCredentials{AccessToken: plaintext}, nil
}

// activate upserts a connected integration, keeping the audit trail of an earlier connection.
func (tokens *TokenLifecycleService) activate(ctx context.Context, integration model.Integration, scopes []string) (model.Integration, error) {
	now := tokens.now().UTC().Truncate(time.Second)

	existing, err := tokens.get(ctx, integration.UserID, integration.Platform)
	switch {
	case err == nil:
		integration.Metadata = existing.Metadata
		if integration.RefreshToken == nil {
			integration.RefreshToken = existing.RefreshToken
		}
	case !errors.Is(err, ErrNotFound):
		return model.Integration{}, err
	}

	integration.ID = uuid.New().String()
	integration.IsActive = true
	integration.Metadata.Audit.ConnectedAt = &now
	integration.Metadata.Audit.DisconnectedAt = nil
	integration.Metadata.Audit.DisconnectedManually = false
	integration.Metadata.Audit.Scopes = scopes
	integration.CreatedAt = now
	integration.UpdatedAt = now

	stored, err := tokens.queries.UpsertIntegration(ctx, integration)
	if err != nil {
		return model.Integration{}, fmt.Errorf("failed to store integration: %w", err)
	}

	return stored, nil
}

func (tokens *TokenLifecycleService) get(ctx context.Context, userID string, platform string) (model.Integration, error) {
	integration, err := tokens.queries.GetIntegration(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Integration{}, ErrNotFound
		}
		return model.Integration{}, fmt.Errorf("failed to get integration: %w", err)
	}
	return integration, nil
}

func (tokens *TokenLifecycleService) updateState(ctx context.Context, integration model.Integration) error {
	updated, err := tokens.queries.UpdateIntegrationState(ctx, repository.UpdateIntegrationStateParams{
		ID:        integration.ID,
		UserID:    integration.UserID,
		IsActive:  integration.IsActive,
		Metadata:  integration.Metadata,
		UpdatedAt: integration.UpdatedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to update integration: %w", err)
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

func oauthClient(app DecryptedOAuthApp, redirectURI string) OAuthClient {
	client := OAuthClient{
		ClientID:    app.ClientID,
		RedirectURL: redirectURI,
		Scopes:      app.Scopes,
	}
	if app.PlainSecret != nil {
		client.ClientSecret = *app.PlainSecret
	}
	return client
}
