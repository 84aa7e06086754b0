package controller_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/steveiliop56/adhub/internal/bootstrap"
	"github.com/steveiliop56/adhub/internal/catalog"
	"github.com/steveiliop56/adhub/internal/config"
	"github.com/steveiliop56/adhub/internal/controller"
	"github.com/steveiliop56/adhub/internal/middleware"
	"github.com/steveiliop56/adhub/internal/repository"
	"github.com/steveiliop56/adhub/internal/service"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/gin-gonic/gin"
	"gotest.tools/v3/assert"
)

const testAppURL = "https://adhub.example.com"

// newTestPlatform answers token exchanges and campaign listings for meta.
func newTestPlatform(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/token"):
			_ = r.ParseForm()
			if r.PostForm.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			w.Write([]byte(`{"access_token":"meta-access","expires_in":3600,"token_type":"bearer"}`))
		case strings.HasSuffix(r.URL.Path, "/me/campaigns"):
			w.Write([]byte(`{"data":[{"id":"1","name":"Launch","status":"ACTIVE","insights":{"data":[{"spend":"20.00","clicks":"5"}]}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	t.Cleanup(server.Close)

	return server
}

func newTestRouter(t *testing.T, platform *httptest.Server) *gin.Engine {
	t.Helper()

	tlog.NewSimpleLogger().Init()

	app := bootstrap.NewBootstrapApp(config.Config{})

	db, err := app.SetupDatabase(":memory:")
	assert.NilError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	queries := repository.New(db)
	platforms := catalog.Default()

	secrets := service.NewSecretCipherService(service.SecretCipherServiceConfig{Secret: "controller-secret"})
	assert.NilError(t, secrets.Init())

	apps := service.NewOAuthAppService(service.OAuthAppServiceConfig{CallbackURL: testAppURL + config.CallbackPath}, queries, secrets, platforms)
	assert.NilError(t, apps.Init())

	states := service.NewOAuthStateService(service.OAuthStateServiceConfig{}, service.NewDatabaseStateStore(queries), secrets)
	assert.NilError(t, states.Init())

	broker := service.NewPlatformBrokerService(service.PlatformBrokerServiceConfig{
		MaxRetries: 1,
		Overrides: map[string]config.PlatformOverrideConfig{
			catalog.Meta: {
				APIBaseURL: platform.URL,
				AuthURL:    platform.URL + "/authorize",
				TokenURL:   platform.URL + "/token",
				RevokeURL:  platform.URL + "/revoke",
			},
		},
	}, platforms)
	assert.NilError(t, broker.Init())

	authorization := service.NewAuthorizationService(platforms, apps, states, broker)

	tokens := service.NewTokenLifecycleService(service.TokenLifecycleServiceConfig{}, queries, platforms, secrets, apps, states, broker)
	assert.NilError(t, tokens.Init())

	status := service.NewIntegrationStatusService(queries, platforms)

	campaigns := service.NewCampaignService(service.CampaignServiceConfig{}, queries, platforms, tokens, broker)
	assert.NilError(t, campaigns.Init())

	gin.SetMode(gin.TestMode)
	router := gin.New()

	contextMiddleware := middleware.NewContextMiddleware(middleware.HeaderUserResolver{Header: "Remote-User"})
	assert.NilError(t, contextMiddleware.Init())
	router.Use(contextMiddleware.Middleware())

	group := router.Group("/api")

	controller.NewOAuthAppController(group, apps).SetupRoutes()
	controller.NewOAuthController(controller.OAuthControllerConfig{AppURL: testAppURL}, group, authorization, tokens).SetupRoutes()
	controller.NewIntegrationController(group, status, tokens).SetupRoutes()
	controller.NewCampaignController(group, campaigns).SetupRoutes()
	controller.NewHealthController(group, db).SetupRoutes()

	return router
}

func request(t *testing.T, router *gin.Engine, method string, path string, user string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, reader)
	assert.NilError(t, err)

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if user != "" {
		req.Header.Set("Remote-User", user)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	return recorder
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	res := map[string]any{}
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &res))
	return res
}

func TestOAuthAppController(t *testing.T) {
	router := newTestRouter(t, newTestPlatform(t))

	recorder := request(t, router, "GET", "/api/oauth-apps", "", "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = request(t, router, "POST", "/api/oauth-apps", "alice", `{"platform":"meta","clientId":"meta-client","clientSecret":"super-secret-value"}`)
	assert.Equal(t, http.StatusCreated, recorder.Code)

	created := decode(t, recorder)["app"].(map[string]any)
	assert.Equal(t, "••••alue", created["clientSecret"])
	assert.Equal(t, true, created["hasSecret"])
	assert.Equal(t, testAppURL+config.CallbackPath, created["redirectUri"])
	id := created["id"].(string)

	// The plaintext never leaves the server
	assert.Assert(t, !strings.Contains(recorder.Body.String(), "super-secret-value"))

	recorder = request(t, router, "POST", "/api/oauth-apps", "alice", `{"platform":"meta","clientId":"again"}`)
	assert.Equal(t, http.StatusConflict, recorder.Code)

	recorder = request(t, router, "POST", "/api/oauth-apps", "alice", `{"platform":"myspace","clientId":"id"}`)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = request(t, router, "POST", "/api/oauth-apps", "alice", `{"platform":"meta"}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = request(t, router, "PUT", "/api/oauth-apps/"+id, "bob", `{"clientId":"stolen"}`)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = request(t, router, "DELETE", "/api/oauth-apps/"+id, "bob", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = request(t, router, "PUT", "/api/oauth-apps/"+id, "alice", `{"clientId":"meta-client-2"}`)
	assert.Equal(t, http.StatusOK, recorder.Code)

	updated := decode(t, recorder)["app"].(map[string]any)
	assert.Equal(t, "meta-client-2", updated["clientId"])
	assert.Equal(t, true, updated["hasSecret"])

	recorder = request(t, router, "GET", "/api/oauth-apps", "alice", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, len(decode(t, recorder)["apps"].([]any)))

	recorder = request(t, router, "GET", "/api/oauth-apps", "bob", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 0, len(decode(t, recorder)["apps"].([]any)))

	recorder = request(t, router, "DELETE", "/api/oauth-apps/"+id, "alice", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestOAuthFlow(t *testing.T) {
	router := newTestRouter(t, newTestPlatform(t))

	recorder := request(t, router, "GET", "/api/oauth/url/meta", "alice", "")
	assert.Equal(t, http.StatusPreconditionFailed, recorder.Code)
	assert.Equal(t, true, decode(t, recorder)["needsConfiguration"])

	recorder = request(t, router, "GET", "/api/oauth/url/myspace", "alice", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = request(t, router, "POST", "/api/oauth-apps", "alice", `{"platform":"meta","clientId":"meta-client"}`)
	assert.Equal(t, http.StatusCreated, recorder.Code)

	recorder = request(t, router, "GET", "/api/oauth/url/meta", "alice", "")
	assert.Equal(t, http.StatusOK, recorder.Code)

	authURL, err := url.Parse(decode(t, recorder)["url"].(string))
	assert.NilError(t, err)
	state := authURL.Query().Get("state")
	assert.Assert(t, state != "")

	// Someone else cannot complete it
	recorder = request(t, router, "GET", "/api/oauth/callback?"+url.Values{"code": {"good-code"}, "state": {state}}.Encode(), "bob", "")
	assert.Equal(t, http.StatusTemporaryRedirect, recorder.Code)
	assert.Equal(t, testAppURL+"/integrations?error=invalid_state", recorder.Header().Get("Location"))

	recorder = request(t, router, "GET", "/api/oauth/url/meta", "alice", "")
	authURL, err = url.Parse(decode(t, recorder)["url"].(string))
	assert.NilError(t, err)
	state = authURL.Query().Get("state")

	recorder = request(t, router, "GET", "/api/oauth/callback?"+url.Values{"code": {"good-code"}, "state": {state}}.Encode(), "alice", "")
	assert.Equal(t, http.StatusTemporaryRedirect, recorder.Code)
	assert.Equal(t, testAppURL+"/integrations?connected=meta", recorder.Header().Get("Location"))

	recorder = request(t, router, "GET", "/api/oauth/callback?error=access_denied", "alice", "")
	assert.Equal(t, testAppURL+"/integrations?error=access_denied", recorder.Header().Get("Location"))

	recorder = request(t, router, "GET", "/api/oauth/callback", "alice", "")
	assert.Equal(t, testAppURL+"/integrations?error=invalid_request", recorder.Header().Get("Location"))

	recorder = request(t, router, "GET", "/api/oauth/callback?code=x&state=y", "", "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestIntegrationController(t *testing.T) {
	router := newTestRouter(t, newTestPlatform(t))

	recorder := request(t, router, "GET", "/api/integrations/status", "alice", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 10, len(decode(t, recorder)["platforms"].([]any)))

	recorder = request(t, router, "POST", "/api/integrations/shopify/credentials", "alice", `{"apiKey":"key"}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Assert(t, strings.Contains(decode(t, recorder)["error"].(string), "apiSecret"))

	recorder = request(t, router, "POST", "/api/integrations/shopify/credentials", "alice", `{"apiKey":"key","apiSecret":"shpss-plaintext","shopDomain":"test.myshopify.com"}`)
	assert.Equal(t, http.StatusOK, recorder.Code)

	integration := decode(t, recorder)["integration"].(map[string]any)
	assert.Equal(t, true, integration["isActive"])
	assert.Assert(t, !strings.Contains(recorder.Body.String(), "shpss-plaintext"))

	recorder = request(t, router, "POST", "/api/integrations/shopify/disconnect", "alice", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, false, decode(t, recorder)["integration"].(map[string]any)["isActive"])

	recorder = request(t, router, "GET", "/api/integrations/status", "alice", "")
	for _, row := range decode(t, recorder)["platforms"].([]any) {
		status := row.(map[string]any)
		if status["platform"] == catalog.Shopify {
			assert.Equal(t, service.StatusDisconnected, status["status"])
			assert.Equal(t, true, status["canReconnect"])
		}
	}

	recorder = request(t, router, "POST", "/api/integrations/shopify/reconnect", "alice", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, true, decode(t, recorder)["integration"].(map[string]any)["isActive"])

	recorder = request(t, router, "POST", "/api/integrations/meta/reconnect", "alice", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = request(t, router, "POST", "/api/integrations/shopify/refresh", "alice", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = request(t, router, "POST", "/api/integrations/shopify/disconnect", "", "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestCampaignController(t *testing.T) {
	router := newTestRouter(t, newTestPlatform(t))

	recorder := request(t, router, "GET", "/api/campaigns?platforms=meta,myspace", "alice", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	// Nothing connected and nothing requested
	recorder = request(t, router, "GET", "/api/campaigns", "alice", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	res := decode(t, recorder)
	assert.Equal(t, 0, len(res["campaigns"].([]any)))
	assert.Equal(t, 12, len(res["monthly"].([]any)))

	recorder = request(t, router, "POST", "/api/oauth-apps", "alice", `{"platform":"meta","clientId":"meta-client"}`)
	assert.Equal(t, http.StatusCreated, recorder.Code)

	recorder = request(t, router, "GET", "/api/oauth/url/meta", "alice", "")
	authURL, err := url.Parse(decode(t, recorder)["url"].(string))
	assert.NilError(t, err)

	recorder = request(t, router, "GET", "/api/oauth/callback?"+url.Values{"code": {"good-code"}, "state": {authURL.Query().Get("state")}}.Encode(), "alice", "")
	assert.Equal(t, testAppURL+"/integrations?connected=meta", recorder.Header().Get("Location"))

	recorder = request(t, router, "GET", "/api/campaigns?platforms=meta,tiktok", "alice", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	res = decode(t, recorder)
	assert.Equal(t, 4, len(res["campaigns"].([]any)))
	assert.Equal(t, false, res["synthetic"])

	recorder = request(t, router, "POST", "/api/campaigns/sync", "alice", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, float64(1), decode(t, recorder)["synced"].(map[string]any)[catalog.Meta])
}

func TestHealthController(t *testing.T) {
	router := newTestRouter(t, newTestPlatform(t))

	recorder := request(t, router, "GET", "/api/health", "", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "Healthy", decode(t, recorder)["message"])

	recorder = request(t, router, "HEAD", "/api/health", "", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
}
