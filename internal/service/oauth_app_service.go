package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/steveiliop56/adhub/internal/catalog"
	"github.com/steveiliop56/adhub/internal/model"
	"github.com/steveiliop56/adhub/internal/repository"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/google/uuid"
)

type OAuthAppServiceConfig struct {
	CallbackURL string
}

type CreateOAuthAppParams struct {
	Platform     string
	ClientID     string
	ClientSecret *string
	Scopes       []string
}

type UpdateOAuthAppParams struct {
	ClientID     string
	ClientSecret *string
	Scopes       []string
	IsActive     *bool
}

// DecryptedOAuthApp carries the plaintext secret next to the stored row.
// It must not leave the service boundary unmasked.
type DecryptedOAuthApp struct {
	model.OAuthApp
	PlainSecret *string
}

type OAuthAppService struct {
	config  OAuthAppServiceConfig
	queries *repository.Queries
	secrets *SecretCipherService
	catalog *catalog.Catalog
}

func NewOAuthAppService(config OAuthAppServiceConfig, queries *repository.Queries, secrets *SecretCipherService, platforms *catalog.Catalog) *OAuthAppService {
	return &OAuthAppService{
		config:  config,
		queries: queries,
		secrets: secrets,
		catalog: platforms,
	}
}

func (apps *OAuthAppService) Init() error {
	if apps.config.CallbackURL == "" {
		return errors.New("callback url is required")
	}
	return nil
}

func (apps *OAuthAppService) CallbackURL() string {
	return apps.config.CallbackURL
}

func (apps *OAuthAppService) Create(ctx context.Context, userID string, params CreateOAuthAppParams) (DecryptedOAuthApp, error) {
	entry, ok := apps.catalog.Get(params.Platform)
	if !ok {
		return DecryptedOAuthApp{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, params.Platform)
	}

	if !entry.RequiresOAuth {
		return DecryptedOAuthApp{}, validationError("%s does not use oauth", entry.ID)
	}

	clientID := strings.TrimSpace(params.ClientID)
	if clientID == "" {
		return DecryptedOAuthApp{}, validationError("client id is required")
	}

	plainSecret := suppliedSecret(params.ClientSecret)

	secret, err := apps.secrets.EncryptOptional(plainSecret)
	if err != nil {
		return DecryptedOAuthApp{}, err
	}

	scopes := params.Scopes
	if len(scopes) == 0 {
		scopes = entry.DefaultScopes
	}

	now := time.Now().UTC().Truncate(time.Second)

	app := model.OAuthApp{
		ID:           uuid.New().String(),
		UserID:       userID,
		Platform:     entry.ID,
		ClientID:     clientID,
		ClientSecret: secret,
		RedirectURI:  apps.config.CallbackURL,
		Scopes:       append([]string{}, scopes...),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := apps.queries.CreateOAuthApp(ctx, app)
	if err != nil {
		return DecryptedOAuthApp{}, fmt.Errorf("failed to create oauth app: %w", err)
	}

	if created == 0 {
		return DecryptedOAuthApp{}, fmt.Errorf("%w: oauth app for %s", ErrConflict, entry.ID)
	}

	tlog.AuditOAuthApp("created", userID, app.Platform, app.ID)

	return DecryptedOAuthApp{OAuthApp: app, PlainSecret: plainSecret}, nil
}

func (apps *OAuthAppService) Update(ctx context.Context, userID string, appID string, params UpdateOAuthAppParams) (DecryptedOAuthApp, error) {
	clientID := strings.TrimSpace(params.ClientID)
	if clientID == "" {
		return DecryptedOAuthApp{}, validationError("client id is required")
	}

	// A blank secret leaves the stored one untouched
	secret, err := apps.secrets.EncryptOptional(suppliedSecret(params.ClientSecret))
	if err != nil {
		return DecryptedOAuthApp{}, err
	}

	updated, err := apps.queries.UpdateOAuthApp(ctx, repository.UpdateOAuthAppParams{
		ID:           appID,
		UserID:       userID,
		ClientID:     clientID,
		ClientSecret: secret,
		Scopes:       params.Scopes,
		IsActive:     params.IsActive,
		UpdatedAt:    time.Now().Unix(),
	})
	if err != nil {
		return DecryptedOAuthApp{}, fmt.Errorf("failed to update oauth app: %w", err)
	}

	if updated == 0 {
		return DecryptedOAuthApp{}, ErrNotFound
	}

	app, err := apps.Get(ctx, userID, appID)
	if err != nil {
		return DecryptedOAuthApp{}, err
	}

	tlog.AuditOAuthApp("updated", userID, app.Platform, app.ID)

	return app, nil
}

func (apps *OAuthAppService) Delete(ctx context.Context, userID string, appID string) error {
	deleted, err := apps.queries.DeleteOAuthApp(ctx, appID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete oauth app: %w", err)
	}

	if deleted == 0 {
		return ErrNotFound
	}

	tlog.AuditOAuthApp("deleted", userID, "", appID)

	return nil
}

func (apps *OAuthAppService) Get(ctx context.Context, userID string, appID string) (DecryptedOAuthApp, error) {
	app, err := apps.queries.GetOAuthApp(ctx, appID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DecryptedOAuthApp{}, ErrNotFound
		}
		return DecryptedOAuthApp{}, fmt.Errorf("failed to get oauth app: %w", err)
	}
	return apps.decrypt(app)
}

// GetActiveForPlatform returns ErrNotConfigured when the user has no active app for the platform.
func (apps *OAuthAppService) GetActiveForPlatform(ctx context.Context, userID string, platform string) (DecryptedOAuthApp, error) {
	app, err := apps.queries.GetOAuthAppByPlatform(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DecryptedOAuthApp{}, ErrNotConfigured
		}
		return DecryptedOAuthApp{}, fmt.Errorf("failed to get oauth app: %w", err)
	}

	if !app.IsActive {
		return DecryptedOAuthApp{}, ErrNotConfigured
	}

	return apps.decrypt(app)
}

func (apps *OAuthAppService) List(ctx context.Context, userID string) ([]DecryptedOAuthApp, error) {
	rows, err := apps.queries.ListOAuthApps(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list oauth apps: %w", err)
	}

	items := make([]DecryptedOAuthApp, 0, len(rows))
	for _, row := range rows {
		app, err := apps.decrypt(row)
		if err != nil {
			return nil, err
		}
		items = append(items, app)
	}

	return items, nil
}

func (apps *OAuthAppService) decrypt(app model.OAuthApp) (DecryptedOAuthApp, error) {
	secret, err := apps.secrets.DecryptOptional(app.ClientSecret)
	if err != nil {
		tlog.App.Error().Err(err).Str("id", app.ID).Str("platform", app.Platform).Msg("Failed to decrypt oauth app secret")
		return DecryptedOAuthApp{}, err
	}
	return DecryptedOAuthApp{OAuthApp: app, PlainSecret: secret}, nil
}

func suppliedSecret(secret *string) *string {
	if secret == nil || strings.TrimSpace(*secret) == "" {
		return nil
	}
	return secret
}
