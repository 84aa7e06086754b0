package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/steveiliop56/adhub/internal/bootstrap"
	"github.com/steveiliop56/adhub/internal/catalog"
	"github.com/steveiliop56/adhub/internal/config"
	"github.com/steveiliop56/adhub/internal/model"
	"github.com/steveiliop56/adhub/internal/repository"
	"github.com/steveiliop56/adhub/internal/service"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"
)

const testCallbackURL = "https://adhub.example.com/api/oauth/callback"

type testServices struct {
	queries       *repository.Queries
	catalog       *catalog.Catalog
	secrets       *service.SecretCipherService
	apps          *service.OAuthAppService
	states        *service.OAuthStateService
	broker        *service.PlatformBrokerService
	authorization *service.AuthorizationService
	tokens        *service.TokenLifecycleService
	status        *service.IntegrationStatusService
	campaigns     *service.CampaignService
}

// newTestServices wires every service on a fresh in memory database. Overrides point platforms at test servers.
func newTestServices(t *testing.T, overrides map[string]config.PlatformOverrideConfig) testServices {
	t.Helper()

	tlog.NewSimpleLogger().Init()

	app := bootstrap.NewBootstrapApp(config.Config{})

	db, err := app.SetupDatabase(":memory:")
	assert.NilError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	s := testServices{
		queries: repository.New(db),
		catalog: catalog.Default(),
	}

	s.secrets = newTestCipher(t, "test-encryption-secret")

	s.apps = service.NewOAuthAppService(service.OAuthAppServiceConfig{
		CallbackURL: testCallbackURL,
	}, s.queries, s.secrets, s.catalog)
	assert.NilError(t, s.apps.Init())

	s.states = service.NewOAuthStateService(service.OAuthStateServiceConfig{
		TTL: time.Minute,
	}, service.NewDatabaseStateStore(s.queries), s.secrets)
	assert.NilError(t, s.states.Init())

	s.broker = service.NewPlatformBrokerService(service.PlatformBrokerServiceConfig{
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		RateLimit:  100,
		RateBurst:  100,
		Overrides:  overrides,
	}, s.catalog)
	assert.NilError(t, s.broker.Init())

	s.authorization = service.NewAuthorizationService(s.catalog, s.apps, s.states, s.broker)

	s.tokens = service.NewTokenLifecycleService(service.TokenLifecycleServiceConfig{
		RevokeTimeout: 5 * time.Second,
	}, s.queries, s.catalog, s.secrets, s.apps, s.states, s.broker)
	assert.NilError(t, s.tokens.Init())

	s.status = service.NewIntegrationStatusService(s.queries, s.catalog)

	s.campaigns = service.NewCampaignService(service.CampaignServiceConfig{
		FetchTimeout: 5 * time.Second,
	}, s.queries, s.catalog, s.tokens, s.broker)
	assert.NilError(t, s.campaigns.Init())

	return s
}

func ptr[T any](v T) *T {
	return &v
}

// fakePlatforms serves the token, revoke and campaign endpoints of every overridden platform under /<platform>/.
type fakePlatforms struct {
	server    *httptest.Server
	mutex     sync.Mutex
	campaigns map[string]string
	failures  map[string]int
	revoked   []string
	// campaign requests of stalled platforms never get an answer
	stalled map[string]bool
	// campaign requests of barrier platforms wait until every one of them has arrived
	barrier  map[string]bool
	released chan struct{}
}

func newFakePlatforms(t *testing.T) *fakePlatforms {
	t.Helper()

	fake := &fakePlatforms{
		campaigns: map[string]string{},
		failures:  map[string]int{},
		stalled:   map[string]bool{},
		barrier:   map[string]bool{},
	}

	fake.server = httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(fake.server.Close)

	return fake
}

func (fake *fakePlatforms) overrides(platforms ...string) map[string]config.PlatformOverrideConfig {
	overrides := map[string]config.PlatformOverrideConfig{}
	for _, platform := range platforms {
		base := fake.server.URL + "/" + platform
		overrides[platform] = config.PlatformOverrideConfig{
			APIBaseURL: base,
			AuthURL:    base + "/authorize",
			TokenURL:   base + "/token",
			RevokeURL:  base + "/revoke",
		}
	}
	return overrides
}

func (fake *fakePlatforms) setCampaigns(platform string, body string) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	fake.campaigns[platform] = body
}

func (fake *fakePlatforms) fail(platform string, status int) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	fake.failures[platform] = status
}

func (fake *fakePlatforms) stall(platform string) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	fake.stalled[platform] = true
}

// await holds campaign answers of the given platforms until all of them were requested.
func (fake *fakePlatforms) await(platforms ...string) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	fake.released = make(chan struct{})
	for _, platform := range platforms {
		fake.barrier[platform] = true
	}
}

// hold reports false when the caller gave up before the answer was released.
func (fake *fakePlatforms) hold(r *http.Request, platform string) bool {
	fake.mutex.Lock()
	stalled := fake.stalled[platform]
	var released chan struct{}
	if fake.barrier[platform] {
		released = fake.released
		delete(fake.barrier, platform)
		if len(fake.barrier) == 0 {
			close(released)
		}
	}
	fake.mutex.Unlock()

	if stalled {
		<-r.Context().Done()
		return false
	}

	if released == nil {
		return true
	}

	select {
	case <-released:
		return true
	case <-r.Context().Done():
		return false
	}
}

func (fake *fakePlatforms) revokedTokens() []string {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	return append([]string{}, fake.revoked...)
}

func (fake *fakePlatforms) serve(w http.ResponseWriter, r *http.Request) {
	platform, rest, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")

	fake.mutex.Lock()
	status := fake.failures[platform]
	body, hasCampaigns := fake.campaigns[platform]
	fake.mutex.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		w.Write([]byte(`{"error":"platform unavailable"}`))
		return
	}

	switch rest {
	case "token":
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.PostForm.Get("grant_type") == "refresh_token":
			w.Write([]byte(`{"access_token":"refreshed-access","refresh_token":"rotated-refresh","expires_in":7200,"token_type":"bearer"}`))
		case r.PostForm.Get("code") == "good-code":
			w.Write([]byte(`{"access_token":"` + platform + `-access","refresh_token":"` + platform + `-refresh","expires_in":3600,"token_type":"bearer"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"authorization code expired"}`))
		}
	case "revoke":
		token := r.URL.Query().Get("access_token")
		if token == "" {
			_ = r.ParseForm()
			token = r.PostForm.Get("token")
		}
		fake.mutex.Lock()
		fake.revoked = append(fake.revoked, token)
		fake.mutex.Unlock()
		w.Write([]byte(`{"success":true}`))
	default:
		if !fake.hold(r, platform) {
			return
		}
		if !hasCampaigns {
			w.Write([]byte(`{}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

// connect stores an active integration holding the given plaintext token.
func connect(t *testing.T, s testServices, userID string, platform string, accessToken string, expiresAt *time.Time) model.Integration {
	t.Helper()

	encrypted, err := s.secrets.Encrypt(accessToken)
	assert.NilError(t, err)

	now := time.Now().UTC().Truncate(time.Second)

	integration, err := s.queries.UpsertIntegration(context.Background(), model.Integration{
		ID:          uuid.New().String(),
		UserID:      userID,
		Platform:    platform,
		AccessToken: encrypted,
		ExpiresAt:   expiresAt,
		IsActive:    true,
		Metadata: model.IntegrationMetadata{
			Audit: model.AuditTrail{ConnectedAt: &now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	assert.NilError(t, err)

	return integration
}
