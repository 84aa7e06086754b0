package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/steveiliop56/adhub/internal/model"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const maxPlatformResponseSize = 1 << 20

// OAuthClient is a registered app with its secret decrypted.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// AuthRequest carries the per flow values of an authorization round trip.
type AuthRequest struct {
	State    string
	Verifier string
}

type PlatformTokens struct {
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
	Scopes       []string
}

// PlatformCredentials is what a data fetch runs with, OAuth platforms use the token and API key platforms the bundle.
type PlatformCredentials struct {
	AccessToken string
	Bundle      model.CredentialBundle
}

type PlatformService interface {
	ID() string
	AuthURL(client OAuthClient, req AuthRequest) (string, error)
	Exchange(ctx context.Context, client OAuthClient, code string, verifier string) (PlatformTokens, error)
	Refresh(ctx context.Context, client OAuthClient, refreshToken string) (PlatformTokens, error)
	Revoke(ctx context.Context, client OAuthClient, accessToken string) error
	FetchCampaigns(ctx context.Context, creds PlatformCredentials) ([]model.CampaignRecord, error)
}

type unsupportedPlatform struct {
	id string
}

func (p unsupportedPlatform) ID() string {
	return p.id
}

func (p unsupportedPlatform) AuthURL(OAuthClient, AuthRequest) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p.id)
}

func (p unsupportedPlatform) Exchange(context.Context, OAuthClient, string, string) (PlatformTokens, error) {
	return PlatformTokens{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p.id)
}

func (p unsupportedPlatform) Refresh(context.Context, OAuthClient, string) (PlatformTokens, error) {
	return PlatformTokens{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p.id)
}

func (p unsupportedPlatform) Revoke(context.Context, OAuthClient, string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p.id)
}

func (p unsupportedPlatform) FetchCampaigns(context.Context, PlatformCredentials) ([]model.CampaignRecord, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p.id)
}

// platformClient is the rate limited, retrying HTTP client every platform variant calls through.
type platformClient struct {
	platform   string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

func newPlatformClient(platform string, httpClient *http.Client, limit float64, burst int, maxRetries int) *platformClient {
	if limit <= 0 {
		limit = 10
	}
	if burst <= 0 {
		burst = 5
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &platformClient{
		platform:   platform,
		http:       httpClient,
		limiter:    rate.NewLimiter(rate.Limit(limit), burst),
		maxRetries: maxRetries,
	}
}

// do retries transport errors and 5xx answers. 4xx answers fail at once with an UpstreamError.
func (client *platformClient) do(ctx context.Context, operation string, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.RandomizationFactor = 0.1
	exp.Multiplier = 2
	exp.Reset()

	attempt := func() ([]byte, error) {
		if err := client.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}

		req, err := build(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		res, err := client.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		defer res.Body.Close()

		body, err := io.ReadAll(io.LimitReader(res.Body, maxPlatformResponseSize))
		if err != nil {
			return nil, err
		}

		if res.StatusCode >= 200 && res.StatusCode < 300 {
			return body, nil
		}

		upstream := &UpstreamError{
			Platform:   client.platform,
			Operation:  operation,
			StatusCode: res.StatusCode,
			Body:       string(body),
		}

		if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
			return nil, upstream
		}

		return nil, backoff.Permanent(upstream)
	}

	return backoff.Retry(ctx, attempt, backoff.WithBackOff(exp), backoff.WithMaxTries(uint(client.maxRetries)))
}

// campaignFields locates campaign values inside a platform response.
// Paths are dot separated, numeric segments index into arrays. An empty list path means the body itself is the array.
type campaignFields struct {
	list        string
	id          string
	name        string
	status      string
	spend       string
	spendShift  int32
	clicks      string
	impressions string
	conversions string
}

func (fields campaignFields) decode(platform string, body []byte) ([]model.CampaignRecord, error) {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("decode %s campaigns: %w", platform, err)
	}

	listValue := root
	if fields.list != "" {
		value, ok := lookupPath(root, fields.list)
		if !ok {
			return []model.CampaignRecord{}, nil
		}
		listValue = value
	}

	items, ok := listValue.([]any)
	if !ok {
		return nil, fmt.Errorf("decode %s campaigns: expected a list at %q", platform, fields.list)
	}

	records := make([]model.CampaignRecord, 0, len(items))
	for _, item := range items {
		id := stringAt(item, fields.id)
		if id == "" {
			continue
		}

		spend := decimalAt(item, fields.spend)
		if fields.spendShift != 0 {
			spend = spend.Shift(fields.spendShift)
		}

		records = append(records, model.CampaignRecord{
			Platform:           platform,
			PlatformCampaignID: id,
			Name:               stringAt(item, fields.name),
			Status:             model.NormalizeStatus(stringAt(item, fields.status)),
			Spend:              spend.StringFixed(2),
			Clicks:             intAt(item, fields.clicks),
			Impressions:        intAt(item, fields.impressions),
			Conversions:        intAt(item, fields.conversions),
		})
	}

	return records, nil
}

func lookupPath(value any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	current := value
	for segment := range strings.SplitSeq(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}
			current = node[index]
		default:
			return nil, false
		}
	}
	return current, true
}

func stringAt(value any, path string) string {
	found, ok := lookupPath(value, path)
	if !ok || found == nil {
		return ""
	}
	switch v := found.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func decimalAt(value any, path string) decimal.Decimal {
	found, ok := lookupPath(value, path)
	if !ok || found == nil {
		return decimal.Zero
	}
	switch v := found.(type) {
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return parsed
	case float64:
		return decimal.NewFromFloat(v)
	}
	return decimal.Zero
}

func intAt(value any, path string) int64 {
	return decimalAt(value, path).IntPart()
}

var errMissingCredentials = errors.New("missing credentials")
