package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/steveiliop56/adhub/internal/model"

	"golang.org/x/oauth2"
	"gotest.tools/v3/assert"
)

func TestCampaignFieldsDecode(t *testing.T) {
	type testCase struct {
		description string
		fields      campaignFields
		body        string
		expected    []model.CampaignRecord
	}

	tests := []testCase{
		{
			description: "Nested insights",
			fields: campaignFields{
				list:   "data",
				id:     "id",
				name:   "name",
				status: "status",
				spend:  "insights.data.0.spend",
				clicks: "insights.data.0.clicks",
			},
			body: `{"data":[{"id":"1","name":"Spring","status":"PAUSED","insights":{"data":[{"spend":"12.345","clicks":"40"}]}},{"name":"no id"}]}`,
			expected: []model.CampaignRecord{
				{Platform: "test", PlatformCampaignID: "1", Name: "Spring", Status: model.CampaignStatusPaused, Spend: "12.35", Clicks: 40},
			},
		},
		{
			description: "Micros and numeric ids",
			fields: campaignFields{
				list:        "results",
				id:          "campaign.id",
				name:        "campaign.name",
				status:      "campaign.status",
				spend:       "metrics.costMicros",
				spendShift:  -6,
				impressions: "metrics.impressions",
			},
			body: `{"results":[{"campaign":{"id":123,"name":"Search","status":"ENABLED"},"metrics":{"costMicros":"2500000","impressions":1000}}]}`,
			expected: []model.CampaignRecord{
				{Platform: "test", PlatformCampaignID: "123", Name: "Search", Status: model.CampaignStatusActive, Spend: "2.50", Impressions: 1000},
			},
		},
		{
			description: "Top level array",
			fields: campaignFields{
				id:    "campaignId",
				name:  "name",
				spend: "cost",
			},
			body: `[{"campaignId":"a","name":"Prime","cost":1.5}]`,
			expected: []model.CampaignRecord{
				{Platform: "test", PlatformCampaignID: "a", Name: "Prime", Status: model.CampaignStatusActive, Spend: "1.50"},
			},
		},
		{
			description: "Missing list",
			fields:      campaignFields{list: "data", id: "id"},
			body:        `{"paging":{}}`,
			expected:    []model.CampaignRecord{},
		},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			records, err := test.fields.decode("test", []byte(test.body))
			assert.NilError(t, err)
			assert.DeepEqual(t, test.expected, records)
		})
	}

	_, err := campaignFields{list: "data"}.decode("test", []byte(`{"data":{}}`))
	assert.ErrorContains(t, err, "expected a list")

	_, err = campaignFields{}.decode("test", []byte(`not json`))
	assert.ErrorContains(t, err, "decode test campaigns")
}

func TestPlatformClientRetries(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/flaky":
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`ok`))
		case "/denied":
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"denied"}`))
		case "/down":
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client := newPlatformClient("test", server.Client(), 100, 100, 3)
	ctx := context.Background()

	get := func(path string) func(ctx context.Context) (*http.Request, error) {
		return func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, server.URL+path, nil)
		}
	}

	body, err := client.do(ctx, "fetch", get("/flaky"))
	assert.NilError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())

	// Client errors are not retried
	calls.Store(0)
	_, err = client.do(ctx, "fetch", get("/denied"))
	var upstream *UpstreamError
	assert.Assert(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusForbidden, upstream.StatusCode)
	assert.Equal(t, `{"error":"denied"}`, upstream.Body)
	assert.Equal(t, int32(1), calls.Load())

	// Server errors give up after the configured attempts
	calls.Store(0)
	_, err = client.do(ctx, "fetch", get("/down"))
	assert.Assert(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusServiceUnavailable, upstream.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func newTestOAuthPlatform(t *testing.T, handler http.HandlerFunc, modify func(*oauthPlatformDefinition)) *OAuthPlatformService {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	definition := oauthPlatformDefinition{
		id: "test",
		endpoint: oauth2.Endpoint{
			AuthURL:   server.URL + "/authorize",
			TokenURL:  server.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		revoke:        revokeForm,
		revokeURL:     server.URL + "/revoke",
		apiBaseURL:    server.URL,
		campaignsPath: "/campaigns",
		fields:        campaignFields{list: "data", id: "id", name: "name"},
	}

	if modify != nil {
		modify(&definition)
	}

	return NewOAuthPlatformService(definition, server.Client(), newPlatformClient("test", server.Client(), 100, 100, 1))
}

func TestOAuthPlatformAuthURL(t *testing.T) {
	platform := newTestOAuthPlatform(t, nil, func(definition *oauthPlatformDefinition) {
		definition.clientIDParam = "client_key"
		definition.scopeSeparator = ","
		definition.pkce = true
		definition.authParams = map[string]string{"prompt": "consent"}
	})

	client := OAuthClient{
		ClientID:    "client",
		RedirectURL: "https://adhub.example.com/api/oauth/callback",
		Scopes:      []string{"ads.read", "ads.write"},
	}

	_, err := platform.AuthURL(client, AuthRequest{State: "state"})
	assert.ErrorContains(t, err, "pkce verifier is required")

	raw, err := platform.AuthURL(client, AuthRequest{State: "state", Verifier: oauth2.GenerateVerifier()})
	assert.NilError(t, err)

	parsed, err := url.Parse(raw)
	assert.NilError(t, err)

	query := parsed.Query()
	assert.Equal(t, "client", query.Get("client_id"))
	assert.Equal(t, "client", query.Get("client_key"))
	assert.Equal(t, "ads.read,ads.write", query.Get("scope"))
	assert.Equal(t, "state", query.Get("state"))
	assert.Equal(t, "consent", query.Get("prompt"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.Assert(t, query.Get("code_challenge") != "")
	assert.Equal(t, client.RedirectURL, query.Get("redirect_uri"))

	_, err = platform.AuthURL(OAuthClient{}, AuthRequest{State: "state"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOAuthPlatformExchange(t *testing.T) {
	platform := newTestOAuthPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NilError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("code") {
		case "good":
			w.Write([]byte(`{"access_token":"access","refresh_token":"refresh","expires_in":3600,"token_type":"bearer","scope":"ads.read ads.write"}`))
		case "empty":
			w.Write([]byte(`{"token_type":"bearer"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
		}
	}, nil)

	ctx := context.Background()
	client := OAuthClient{ClientID: "client", ClientSecret: "secret"}

	tokens, err := platform.Exchange(ctx, client, "good", "")
	assert.NilError(t, err)
	assert.Equal(t, "access", tokens.AccessToken)
	assert.Equal(t, "refresh", *tokens.RefreshToken)
	assert.Assert(t, tokens.ExpiresAt != nil)
	assert.DeepEqual(t, []string{"ads.read", "ads.write"}, tokens.Scopes)

	_, err = platform.Exchange(ctx, client, "bad", "")
	var exchangeErr *ExchangeError
	assert.Assert(t, errors.As(err, &exchangeErr))
	assert.Equal(t, http.StatusBadRequest, exchangeErr.StatusCode)
	assert.Assert(t, exchangeErr.Body != "")
	assert.ErrorContains(t, err, "code expired")

	_, err = platform.Exchange(ctx, client, "empty", "")
	assert.Assert(t, errors.As(err, &exchangeErr))

	_, err = platform.Exchange(ctx, client, "", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOAuthPlatformRefreshAndRevoke(t *testing.T) {
	var revoked atomic.Value

	platform := newTestOAuthPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NilError(t, r.ParseForm())
		switch r.URL.Path {
		case "/token":
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"new-access","expires_in":60,"token_type":"bearer"}`))
		case "/revoke":
			revoked.Store(r.PostForm.Get("token"))
		}
	}, nil)

	ctx := context.Background()
	client := OAuthClient{ClientID: "client", ClientSecret: "secret"}

	tokens, err := platform.Refresh(ctx, client, "old-refresh")
	assert.NilError(t, err)
	assert.Equal(t, "new-access", tokens.AccessToken)

	_, err = platform.Refresh(ctx, client, "")
	assert.ErrorIs(t, err, ErrValidation)

	assert.NilError(t, platform.Revoke(ctx, client, "new-access"))
	assert.Equal(t, "new-access", revoked.Load())
}

func TestOAuthPlatformFetchCampaigns(t *testing.T) {
	platform := newTestOAuthPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Access-Token") != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":[{"id":"c1","name":"One"},{"id":"c2","name":"Two"}]}`))
	}, func(definition *oauthPlatformDefinition) {
		definition.authorize = func(req *http.Request, token string) {
			req.Header.Set("Access-Token", token)
		}
	})

	ctx := context.Background()

	records, err := platform.FetchCampaigns(ctx, PlatformCredentials{AccessToken: "token"})
	assert.NilError(t, err)
	assert.Equal(t, 2, len(records))
	assert.Equal(t, "c2", records[1].PlatformCampaignID)

	_, err = platform.FetchCampaigns(ctx, PlatformCredentials{AccessToken: "wrong"})
	var upstream *UpstreamError
	assert.Assert(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusUnauthorized, upstream.StatusCode)

	_, err = platform.FetchCampaigns(ctx, PlatformCredentials{})
	assert.ErrorIs(t, err, errMissingCredentials)
}

func TestAPIKeyPlatformFetchCampaigns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-10/marketing_events.json", r.URL.Path)
		assert.Equal(t, "shop-token", r.Header.Get("X-Shopify-Access-Token"))
		w.Write([]byte(`{"marketing_events":[{"id":7,"utm_campaign":"summer","event_type":"ad","budget":"250.5"}]}`))
	}))
	defer server.Close()

	platform := NewAPIKeyPlatformService(shopifyDefinition([]string{"apiKey", "apiSecret", "shopDomain"}), server.URL, newPlatformClient("shopify", server.Client(), 100, 100, 1))
	ctx := context.Background()

	records, err := platform.FetchCampaigns(ctx, PlatformCredentials{Bundle: model.CredentialBundle{
		APIKey:     "key",
		APISecret:  "shop-token",
		ShopDomain: "test.myshopify.com",
	}})
	assert.NilError(t, err)
	assert.Equal(t, 1, len(records))
	assert.Equal(t, "7", records[0].PlatformCampaignID)
	assert.Equal(t, "summer", records[0].Name)
	assert.Equal(t, "250.50", records[0].Spend)

	_, err = platform.FetchCampaigns(ctx, PlatformCredentials{Bundle: model.CredentialBundle{APIKey: "key"}})
	assert.ErrorIs(t, err, errMissingCredentials)

	_, err = platform.AuthURL(OAuthClient{}, AuthRequest{})
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)

	assert.NilError(t, platform.Revoke(ctx, OAuthClient{}, "token"))
}

func TestUnsupportedPlatform(t *testing.T) {
	platform := unsupportedPlatform{id: "myspace"}
	ctx := context.Background()

	_, err := platform.AuthURL(OAuthClient{}, AuthRequest{})
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)

	_, err = platform.Exchange(ctx, OAuthClient{}, "code", "")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)

	_, err = platform.FetchCampaigns(ctx, PlatformCredentials{AccessToken: "token"})
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)

	assert.ErrorIs(t, platform.Revoke(ctx, OAuthClient{}, "token"), ErrUnsupportedPlatform)
}
