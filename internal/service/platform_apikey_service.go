package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/steveiliop56/adhub/internal/catalog"
	"github.com/steveiliop56/adhub/internal/model"
)

// apiKeyPlatformDefinition describes a platform that authenticates with a stored credential bundle.
type apiKeyPlatformDefinition struct {
	id       string
	required []string
	// builds the campaigns URL, baseURL is the configured override or empty
	endpoint  func(baseURL string, bundle model.CredentialBundle) string
	authorize func(req *http.Request, bundle model.CredentialBundle)
	fields    campaignFields
}

type APIKeyPlatformService struct {
	definition apiKeyPlatformDefinition
	baseURL    string
	client     *platformClient
}

func NewAPIKeyPlatformService(definition apiKeyPlatformDefinition, baseURL string, client *platformClient) *APIKeyPlatformService {
	return &APIKeyPlatformService{
		definition: definition,
		baseURL:    baseURL,
		client:     client,
	}
}

func (platform *APIKeyPlatformService) ID() string {
	return platform.definition.id
}

func (platform *APIKeyPlatformService) AuthURL(OAuthClient, AuthRequest) (string, error) {
	return "", fmt.Errorf("%w: %s uses api keys", ErrUnsupportedPlatform, platform.definition.id)
}

func (platform *APIKeyPlatformService) Exchange(context.Context, OAuthClient, string, string) (PlatformTokens, error) {
	return PlatformTokens{}, fmt.Errorf("%w: %s uses api keys", ErrUnsupportedPlatform, platform.definition.id)
}

func (platform *APIKeyPlatformService) Refresh(context.Context, OAuthClient, string) (PlatformTokens, error) {
	return PlatformTokens{}, fmt.Errorf("%w: %s uses api keys", ErrUnsupportedPlatform, platform.definition.id)
}

// Revoke is a no-op, keys are managed in the platform console.
func (platform *APIKeyPlatformService) Revoke(context.Context, OAuthClient, string) error {
	return nil
}

func (platform *APIKeyPlatformService) FetchCampaigns(ctx context.Context, creds PlatformCredentials) ([]model.CampaignRecord, error) {
	if err := creds.Bundle.Validate(platform.definition.required); err != nil {
		return nil, fmt.Errorf("%w: %w", errMissingCredentials, err)
	}

	target := platform.definition.endpoint(platform.baseURL, creds.Bundle)

	body, err := platform.client.do(ctx, "fetch campaigns", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		platform.definition.authorize(req, creds.Bundle)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	return platform.definition.fields.decode(platform.definition.id, body)
}

func shopifyDefinition(required []string) apiKeyPlatformDefinition {
	return apiKeyPlatformDefinition{
		id:       catalog.Shopify,
		required: required,
		endpoint: func(baseURL string, bundle model.CredentialBundle) string {
			if baseURL == "" {
				domain := strings.TrimSuffix(strings.TrimPrefix(bundle.ShopDomain, "https://"), "/")
				baseURL = "https://" + domain
			}
			return strings.TrimSuffix(baseURL, "/") + "/admin/api/2024-10/marketing_events.json"
		},
		authorize: func(req *http.Request, bundle model.CredentialBundle) {
			// Admin API access tokens are issued as the app password
			token := bundle.APISecret
			if token == "" {
				token = bundle.APIKey
			}
			req.Header.Set("X-Shopify-Access-Token", token)
		},
		fields: campaignFields{
			list:   "marketing_events",
			id:     "id",
			name:   "utm_campaign",
			status: "event_type",
			spend:  "budget",
		},
	}
}

func klaviyoDefinition(required []string) apiKeyPlatformDefinition {
	return apiKeyPlatformDefinition{
		id:       catalog.Klaviyo,
		required: required,
		endpoint: func(baseURL string, _ model.CredentialBundle) string {
			if baseURL == "" {
				baseURL = "https://a.klaviyo.com"
			}
			query := url.Values{"filter": {"equals(messages.channel,'email')"}}
			return strings.TrimSuffix(baseURL, "/") + "/api/campaigns?" + query.Encode()
		},
		authorize: func(req *http.Request, bundle model.CredentialBundle) {
			req.Header.Set("Authorization", "Klaviyo-API-Key "+bundle.APIKey)
			req.Header.Set("revision", "2024-10-15")
		},
		fields: campaignFields{
			list:   "data",
			id:     "id",
			name:   "attributes.name",
			status: "attributes.status",
		},
	}
}
