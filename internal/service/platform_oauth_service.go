package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/steveiliop56/adhub/internal/model"

	"golang.org/x/oauth2"
)

type revokeStyle int

const (
	revokeNone revokeStyle = iota
	// POST form with token and client credentials
	revokeForm
	// DELETE on the permissions edge with the token as a query parameter
	revokeDelete
)

// oauthPlatformDefinition describes one OAuth platform. Everything platform specific lives here.
type oauthPlatformDefinition struct {
	id             string
	endpoint       oauth2.Endpoint
	revokeURL      string
	revoke         revokeStyle
	apiBaseURL     string
	campaignsPath  string
	campaignsQuery url.Values
	fields         campaignFields
	// client id parameter name when the platform does not follow the standard client_id
	clientIDParam  string
	scopeSeparator string
	pkce           bool
	authParams     map[string]string
	authorize      func(req *http.Request, token string)
}

type OAuthPlatformService struct {
	definition oauthPlatformDefinition
	httpClient *http.Client
	client     *platformClient
}

func NewOAuthPlatformService(definition oauthPlatformDefinition, httpClient *http.Client, client *platformClient) *OAuthPlatformService {
	if definition.scopeSeparator == "" {
		definition.scopeSeparator = " "
	}
	if definition.authorize == nil {
		definition.authorize = func(req *http.Request, token string) {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return &OAuthPlatformService{
		definition: definition,
		httpClient: httpClient,
		client:     client,
	}
}

func (platform *OAuthPlatformService) ID() string {
	return platform.definition.id
}

func (platform *OAuthPlatformService) oauthConfig(client OAuthClient) oauth2.Config {
	return oauth2.Config{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		RedirectURL:  client.RedirectURL,
		Endpoint:     platform.definition.endpoint,
	}
}

func (platform *OAuthPlatformService) commonOptions(client OAuthClient) []oauth2.AuthCodeOption {
	opts := []oauth2.AuthCodeOption{}
	if platform.definition.clientIDParam != "" {
		opts = append(opts, oauth2.SetAuthURLParam(platform.definition.clientIDParam, client.ClientID))
	}
	return opts
}

func (platform *OAuthPlatformService) AuthURL(client OAuthClient, req AuthRequest) (string, error) {
	if client.ClientID == "" {
		return "", validationError("client id is required")
	}

	cfg := platform.oauthConfig(client)

	opts := platform.commonOptions(client)
	if len(client.Scopes) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("scope", strings.Join(client.Scopes, platform.definition.scopeSeparator)))
	}
	for key, value := range platform.definition.authParams {
		opts = append(opts, oauth2.SetAuthURLParam(key, value))
	}
	if platform.definition.pkce {
		if req.Verifier == "" {
			return "", errors.New("pkce verifier is required")
		}
		opts = append(opts, oauth2.S256ChallengeOption(req.Verifier))
	}

	return cfg.AuthCodeURL(req.State, opts...), nil
}

func (platform *OAuthPlatformService) Exchange(ctx context.Context, client OAuthClient, code string, verifier string) (PlatformTokens, error) {
	if code == "" {
		return PlatformTokens{}, validationError("authorization code is required")
	}

	cfg := platform.oauthConfig(client)

	opts := platform.commonOptions(client)
	if platform.definition.pkce {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := cfg.Exchange(platform.context(ctx), code, opts...)
	if err != nil {
		return PlatformTokens{}, platform.exchangeError(err)
	}

	return platform.tokens(token)
}

func (platform *OAuthPlatformService) Refresh(ctx context.Context, client OAuthClient, refreshToken string) (PlatformTokens, error) {
	if refreshToken == "" {
		return PlatformTokens{}, validationError("no refresh token stored")
	}

	cfg := platform.oauthConfig(client)

	// An expired token forces the source to hit the token endpoint
	source := cfg.TokenSource(platform.context(ctx), &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	})

	token, err := source.Token()
	if err != nil {
		return PlatformTokens{}, platform.exchangeError(err)
	}

	return platform.tokens(token)
}

func (platform *OAuthPlatformService) Revoke(ctx context.Context, client OAuthClient, accessToken string) error {
	switch platform.definition.revoke {
	case revokeForm:
		form := url.Values{}
		form.Set("token", accessToken)
		form.Set("client_id", client.ClientID)
		if client.ClientSecret != "" {
			form.Set("client_secret", client.ClientSecret)
		}
		if platform.definition.clientIDParam != "" {
			form.Set(platform.definition.clientIDParam, client.ClientID)
		}
		_, err := platform.client.do(ctx, "revoke", func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, platform.definition.revokeURL, strings.NewReader(form.Encode()))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return req, nil
		})
		return err
	case revokeDelete:
		_, err := platform.client.do(ctx, "revoke", func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodDelete, platform.definition.revokeURL+"?"+url.Values{"access_token": {accessToken}}.Encode(), nil)
		})
		return err
	}
	return nil
}

func (platform *OAuthPlatformService) FetchCampaigns(ctx context.Context, creds PlatformCredentials) ([]model.CampaignRecord, error) {
	if creds.AccessToken == "" {
		return nil, errMissingCredentials
	}

	target := strings.TrimSuffix(platform.definition.apiBaseURL, "/") + platform.definition.campaignsPath
	if len(platform.definition.campaignsQuery) > 0 {
		target += "?" + platform.definition.campaignsQuery.Encode()
	}

	body, err := platform.client.do(ctx, "fetch campaigns", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		platform.definition.authorize(req, creds.AccessToken)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	return platform.definition.fields.decode(platform.definition.id, body)
}

func (platform *OAuthPlatformService) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, platform.httpClient)
}

func (platform *OAuthPlatformService) tokens(token *oauth2.Token) (PlatformTokens, error) {
	if token.AccessToken == "" {
		return PlatformTokens{}, &ExchangeError{
			Platform: platform.definition.id,
			Err:      errors.New("response did not contain an access token"),
		}
	}

	tokens := PlatformTokens{
		AccessToken: token.AccessToken,
	}

	if token.RefreshToken != "" {
		refresh := token.RefreshToken
		tokens.RefreshToken = &refresh
	}

	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		tokens.ExpiresAt = &expiry
	}

	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		tokens.Scopes = strings.FieldsFunc(scope, func(r rune) bool {
			return r == ' ' || r == ','
		})
	}

	return tokens, nil
}

func (platform *OAuthPlatformService) exchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &ExchangeError{
			Platform:   platform.definition.id,
			StatusCode: status,
			Body:       string(retrieveErr.Body),
			Err:        err,
		}
	}
	return &ExchangeError{
		Platform: platform.definition.id,
		Err:      fmt.Errorf("token request failed: %w", err),
	}
}
