package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/steveiliop56/adhub/internal/catalog"
)

// AuthorizationService builds consent URLs from the apps users registered.
type AuthorizationService struct {
	catalog *catalog.Catalog
	apps    *OAuthAppService
	states  *OAuthStateService
	broker  *PlatformBrokerService
}

func NewAuthorizationService(platforms *catalog.Catalog, apps *OAuthAppService, states *OAuthStateService, broker *PlatformBrokerService) *AuthorizationService {
	return &AuthorizationService{
		catalog: platforms,
		apps:    apps,
		states:  states,
		broker:  broker,
	}
}

// BuildAuthorizationURL fails with ErrNotConfigured when the user has no active app for the platform
// and with ErrUnsupportedPlatform for anything that is not an OAuth platform of the catalog.
func (auth *AuthorizationService) BuildAuthorizationURL(ctx context.Context, userID string, platform string) (string, error) {
	entry, ok := auth.catalog.Get(platform)
	if !ok || !entry.RequiresOAuth {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}

	app, err := auth.apps.GetActiveForPlatform(ctx, userID, entry.ID)
	if err != nil {
		return "", err
	}

	state, claims, err := auth.states.Generate(ctx, userID, entry.ID)
	if err != nil {
		return "", err
	}

	url, err := auth.broker.GetService(entry.ID).AuthURL(OAuthClient{
		ClientID:    app.ClientID,
		RedirectURL: app.RedirectURI,
		Scopes:      app.Scopes,
	}, AuthRequest{
		State:    state,
		Verifier: auth.states.Verifier(claims.Nonce),
	})
	if err != nil {
		if errors.Is(err, ErrUnsupportedPlatform) {
			return "", err
		}
		return "", fmt.Errorf("failed to build authorization url: %w", err)
	}

	return url, nil
}
