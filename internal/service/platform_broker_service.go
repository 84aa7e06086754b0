package service

import (
	"net/http"
	"net/url"
	"time"

	"github.com/steveiliop56/adhub/internal/catalog"
	"github.com/steveiliop56/adhub/internal/config"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"golang.org/x/exp/slices"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

type PlatformBrokerServiceConfig struct {
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64
	RateBurst  int
	Overrides  map[string]config.PlatformOverrideConfig
}

// PlatformBrokerService holds one capability variant per catalog platform.
type PlatformBrokerService struct {
	config     PlatformBrokerServiceConfig
	catalog    *catalog.Catalog
	services   map[string]PlatformService
	httpClient *http.Client
}

func NewPlatformBrokerService(config PlatformBrokerServiceConfig, platforms *catalog.Catalog) *PlatformBrokerService {
	return &PlatformBrokerService{
		config:   config,
		catalog:  platforms,
		services: make(map[string]PlatformService),
	}
}

func (broker *PlatformBrokerService) Init() error {
	timeout := broker.config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	broker.httpClient = &http.Client{
		Timeout: timeout,
	}

	for _, entry := range broker.catalog.All() {
		override := broker.config.Overrides[entry.ID]
		client := newPlatformClient(entry.ID, broker.httpClient, broker.config.RateLimit, broker.config.RateBurst, broker.config.MaxRetries)

		switch entry.ID {
		case catalog.Shopify:
			broker.services[entry.ID] = NewAPIKeyPlatformService(shopifyDefinition(entry.APIKeyFields), override.APIBaseURL, client)
		case catalog.Klaviyo:
			broker.services[entry.ID] = NewAPIKeyPlatformService(klaviyoDefinition(entry.APIKeyFields), override.APIBaseURL, client)
		default:
			definition, ok := oauthPlatformDefinitions()[entry.ID]
			if !ok {
				tlog.App.Warn().Str("platform", entry.ID).Msg("No implementation for catalog platform, it will be reported as unsupported")
				broker.services[entry.ID] = unsupportedPlatform{id: entry.ID}
				continue
			}
			broker.services[entry.ID] = NewOAuthPlatformService(applyOverride(definition, override), broker.httpClient, client)
		}

		tlog.App.Debug().Str("platform", entry.ID).Msg("Initialized platform service")
	}

	return nil
}

// GetService never returns nil. Unknown platforms get a variant that fails every call.
func (broker *PlatformBrokerService) GetService(id string) PlatformService {
	service, exists := broker.services[id]
	if !exists {
		return unsupportedPlatform{id: id}
	}
	return service
}

func (broker *PlatformBrokerService) GetConfiguredServices() []string {
	services := make([]string, 0, len(broker.services))
	for name := range broker.services {
		services = append(services, name)
	}
	slices.Sort(services)
	return services
}

func applyOverride(definition oauthPlatformDefinition, override config.PlatformOverrideConfig) oauthPlatformDefinition {
	if override.AuthURL != "" {
		definition.endpoint.AuthURL = override.AuthURL
	}
	if override.TokenURL != "" {
		definition.endpoint.TokenURL = override.TokenURL
	}
	if override.RevokeURL != "" {
		definition.revokeURL = override.RevokeURL
	}
	if override.APIBaseURL != "" {
		definition.apiBaseURL = override.APIBaseURL
	}
	return definition
}

func oauthPlatformDefinitions() map[string]oauthPlatformDefinition {
	return map[string]oauthPlatformDefinition{
		catalog.Meta: {
			id:             catalog.Meta,
			endpoint:       endpoints.Facebook,
			revoke:         revokeDelete,
			revokeURL:      "https://graph.facebook.com/v19.0/me/permissions",
			apiBaseURL:     "https://graph.facebook.com/v19.0",
			campaignsPath:  "/me/campaigns",
			campaignsQuery: url.Values{"fields": {"id,name,status,insights{spend,clicks,impressions,conversions}"}},
			scopeSeparator: ",",
			fields: campaignFields{
				list:        "data",
				id:          "id",
				name:        "name",
				status:      "status",
				spend:       "insights.data.0.spend",
				clicks:      "insights.data.0.clicks",
				impressions: "insights.data.0.impressions",
				conversions: "insights.data.0.conversions",
			},
		},
		catalog.Google: {
			id:            catalog.Google,
			endpoint:      endpoints.Google,
			revoke:        revokeForm,
			revokeURL:     "https://oauth2.googleapis.com/revoke",
			apiBaseURL:    "https://googleads.googleapis.com/v17",
			campaignsPath: "/campaigns",
			authParams:    map[string]string{"access_type": "offline", "prompt": "consent"},
			fields: campaignFields{
				list:        "results",
				id:          "campaign.id",
				name:        "campaign.name",
				status:      "campaign.status",
				spend:       "metrics.costMicros",
				spendShift:  -6,
				clicks:      "metrics.clicks",
				impressions: "metrics.impressions",
				conversions: "metrics.conversions",
			},
		},
		catalog.TikTok: {
			id: catalog.TikTok,
			endpoint: oauth2.Endpoint{
				AuthURL:   "https://www.tiktok.com/v2/auth/authorize/",
				TokenURL:  "https://open.tiktokapis.com/v2/oauth/token/",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			revoke:         revokeForm,
			revokeURL:      "https://open.tiktokapis.com/v2/oauth/revoke/",
			apiBaseURL:     "https://business-api.tiktok.com/open_api/v1.3",
			campaignsPath:  "/campaign/get/",
			clientIDParam:  "client_key",
			scopeSeparator: ",",
			authorize: func(req *http.Request, token string) {
				req.Header.Set("Access-Token", token)
			},
			fields: campaignFields{
				list:        "data.list",
				id:          "campaign_id",
				name:        "campaign_name",
				status:      "operation_status",
				spend:       "metrics.spend",
				clicks:      "metrics.clicks",
				impressions: "metrics.impressions",
				conversions: "metrics.conversion",
			},
		},
		catalog.LinkedIn: {
			id:             catalog.LinkedIn,
			endpoint:       endpoints.LinkedIn,
			revoke:         revokeForm,
			revokeURL:      "https://www.linkedin.com/oauth/v2/revoke",
			apiBaseURL:     "https://api.linkedin.com/rest",
			campaignsPath:  "/adCampaigns",
			campaignsQuery: url.Values{"q": {"search"}},
			fields: campaignFields{
				list:        "elements",
				id:          "id",
				name:        "name",
				status:      "status",
				spend:       "analytics.costInLocalCurrency",
				clicks:      "analytics.clicks",
				impressions: "analytics.impressions",
				conversions: "analytics.externalWebsiteConversions",
			},
		},
		catalog.Twitter: {
			id: catalog.Twitter,
			endpoint: oauth2.Endpoint{
				AuthURL:   "https://twitter.com/i/oauth2/authorize",
				TokenURL:  "https://api.twitter.com/2/oauth2/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
			revoke:        revokeForm,
			revokeURL:     "https://api.twitter.com/2/oauth2/revoke",
			apiBaseURL:    "https://ads-api.twitter.com/12",
			campaignsPath: "/accounts/campaigns",
			pkce:          true,
			fields: campaignFields{
				list:        "data",
				id:          "id",
				name:        "name",
				status:      "entity_status",
				spend:       "stats.billed_charge_local_micro",
				spendShift:  -6,
				clicks:      "stats.clicks",
				impressions: "stats.impressions",
				conversions: "stats.conversions",
			},
		},
		catalog.Pinterest: {
			id: catalog.Pinterest,
			endpoint: oauth2.Endpoint{
				AuthURL:   "https://www.pinterest.com/oauth/",
				TokenURL:  "https://api.pinterest.com/v5/oauth/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
			apiBaseURL:     "https://api.pinterest.com/v5",
			campaignsPath:  "/ad_accounts/campaigns",
			scopeSeparator: ",",
			fields: campaignFields{
				list:        "items",
				id:          "id",
				name:        "name",
				status:      "status",
				spend:       "metrics.SPEND_IN_DOLLAR",
				clicks:      "metrics.TOTAL_CLICKTHROUGH",
				impressions: "metrics.TOTAL_IMPRESSION",
				conversions: "metrics.TOTAL_CONVERSIONS",
			},
		},
		catalog.Snapchat: {
			id: catalog.Snapchat,
			endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.snapchat.com/login/oauth2/authorize",
				TokenURL: "https://accounts.snapchat.com/login/oauth2/access_token",
			},
			apiBaseURL:    "https://adsapi.snapchat.com/v1",
			campaignsPath: "/me/campaigns",
			fields: campaignFields{
				list:        "campaigns",
				id:          "campaign.id",
				name:        "campaign.name",
				status:      "campaign.status",
				spend:       "campaign.stats.spend",
				spendShift:  -6,
				clicks:      "campaign.stats.swipes",
				impressions: "campaign.stats.impressions",
				conversions: "campaign.stats.conversion_purchases",
			},
		},
		catalog.Amazon: {
			id:            catalog.Amazon,
			endpoint:      endpoints.Amazon,
			apiBaseURL:    "https://advertising-api.amazon.com",
			campaignsPath: "/v2/sp/campaigns",
			fields: campaignFields{
				id:          "campaignId",
				name:        "name",
				status:      "state",
				spend:       "cost",
				clicks:      "clicks",
				impressions: "impressions",
				conversions: "purchases",
			},
		},
	}
}
