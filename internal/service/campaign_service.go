package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/steveiliop56/adhub/internal/catalog"
	"github.com/steveiliop56/adhub/internal/model"
	"github.com/steveiliop56/adhub/internal/repository"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

const monthsInSeries = 12

type CampaignServiceConfig struct {
	FetchTimeout time.Duration
}

type CampaignTotals struct {
	Spend       string `json:"spend"`
	Clicks      int64  `json:"clicks"`
	Impressions int64  `json:"impressions"`
	Conversions int64  `json:"conversions"`
}

type MonthlyMetrics struct {
	Month       string `json:"month"`
	Spend       string `json:"spend"`
	Clicks      int64  `json:"clicks"`
	Impressions int64  `json:"impressions"`
	Conversions int64  `json:"conversions"`
}

type CampaignOverview struct {
	Campaigns       []model.CampaignRecord `json:"campaigns"`
	Totals          CampaignTotals         `json:"totals"`
	Monthly         []MonthlyMetrics       `json:"monthly"`
	Synthetic       bool                   `json:"synthetic"`
	FailedPlatforms []string               `json:"failedPlatforms"`
}

type SyncResult struct {
	Synced          map[string]int `json:"synced"`
	FailedPlatforms []string       `json:"failedPlatforms"`
}

// fetchResult is what one platform task of the fan-out produced.
type fetchResult struct {
	integration model.Integration
	records     []model.CampaignRecord
	err         error
}

// CampaignService fans out to the connected platforms and merges their campaigns with the stored ones.
type CampaignService struct {
	config  CampaignServiceConfig
	queries *repository.Queries
	catalog *catalog.Catalog
	tokens  *TokenLifecycleService
	broker  *PlatformBrokerService
	now     func() time.Time
	rand    *rand.Rand
	mutex   sync.Mutex
}

func NewCampaignService(config CampaignServiceConfig, queries *repository.Queries, platforms *catalog.Catalog, tokens *TokenLifecycleService, broker *PlatformBrokerService) *CampaignService {
	return &CampaignService{
		config:  config,
		queries: queries,
		catalog: platforms,
		tokens:  tokens,
		broker:  broker,
		now:     time.Now,
		rand:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (campaigns *CampaignService) Init() error {
	if campaigns.config.FetchTimeout <= 0 {
		campaigns.config.FetchTimeout = 15 * time.Second
	}
	return nil
}

// FetchAll returns stored and live campaigns of the requested platforms. A failing platform contributes
// zero records and never fails the call. Platforms left without any record get synthetic rows.
func (campaigns *CampaignService) FetchAll(ctx context.Context, userID string, platforms []string) (CampaignOverview, error) {
	requested, err := campaigns.resolvePlatforms(ctx, userID, platforms)
	if err != nil {
		return CampaignOverview{}, err
	}

	stored := []model.CampaignRecord{}
	if len(requested) > 0 {
		stored, err = campaigns.queries.ListCampaignRecords(ctx, userID, requested)
		if err != nil {
			return CampaignOverview{}, fmt.Errorf("failed to list campaign records: %w", err)
		}
	}

	results, err := campaigns.fanOut(ctx, userID, requested)
	if err != nil {
		return CampaignOverview{}, err
	}

	live := []model.CampaignRecord{}
	failed := []string{}
	failedPlatforms := map[string]bool{}
	for _, result := range results {
		if result.err != nil {
			failed = append(failed, result.integration.Platform)
			failedPlatforms[result.integration.Platform] = true
			continue
		}
		live = append(live, result.records...)
	}

	merged := mergeCampaigns(stored, live)

	perPlatform := make(map[string]int, len(requested))
	for _, record := range merged {
		perPlatform[record.Platform]++
	}

	// A failed platform is reported instead of being padded with placeholders
	hasRealData := len(merged) > 0
	for _, platform := range requested {
		if perPlatform[platform] == 0 && !failedPlatforms[platform] {
			merged = append(merged, campaigns.syntheticCampaigns(userID, platform)...)
		}
	}

	totals := sumCampaigns(merged)

	synthetic := !hasRealData && len(merged) > 0

	var monthly []MonthlyMetrics
	if synthetic {
		monthly = campaigns.syntheticMonthly(campaigns.now())
	} else {
		monthly = distributeMonthly(totals, campaigns.now())
	}

	return CampaignOverview{
		Campaigns:       merged,
		Totals:          totals,
		Monthly:         monthly,
		Synthetic:       synthetic,
		FailedPlatforms: failed,
	}, nil
}

// Sync fetches the live campaigns and stores them, keyed by the platform campaign id.
func (campaigns *CampaignService) Sync(ctx context.Context, userID string, platforms []string) (SyncResult, error) {
	requested, err := campaigns.resolvePlatforms(ctx, userID, platforms)
	if err != nil {
		return SyncResult{}, err
	}

	results, err := campaigns.fanOut(ctx, userID, requested)
	if err != nil {
		return SyncResult{}, err
	}

	summary := SyncResult{
		Synced:          map[string]int{},
		FailedPlatforms: []string{},
	}

	now := campaigns.now().UTC().Truncate(time.Second)

	for _, result := range results {
		platform := result.integration.Platform
		if result.err != nil {
			summary.FailedPlatforms = append(summary.FailedPlatforms, platform)
			continue
		}

		integrationID := result.integration.ID
		for _, record := range result.records {
			record.ID = uuid.New().String()
			record.UserID = userID
			record.IntegrationID = &integrationID
			record.CreatedAt = now
			record.UpdatedAt = now
			if err := campaigns.queries.UpsertCampaignRecord(ctx, record); err != nil {
				return SyncResult{}, fmt.Errorf("failed to store campaign record: %w", err)
			}
		}

		audit := result.integration.Metadata
		audit.Audit.SyncedAt = &now
		_, err := campaigns.queries.UpdateIntegrationState(ctx, repository.UpdateIntegrationStateParams{
			ID:        result.integration.ID,
			UserID:    userID,
			IsActive:  result.integration.IsActive,
			Metadata:  audit,
			UpdatedAt: now.Unix(),
		})
		if err != nil {
			return SyncResult{}, fmt.Errorf("failed to update integration: %w", err)
		}

		summary.Synced[platform] = len(result.records)
	}

	return summary, nil
}

// resolvePlatforms validates the requested ids. Without any, every active integration of the user is used.
func (campaigns *CampaignService) resolvePlatforms(ctx context.Context, userID string, platforms []string) ([]string, error) {
	if len(platforms) > 0 {
		requested := make([]string, 0, len(platforms))
		for _, platform := range platforms {
			if !campaigns.catalog.Has(platform) {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
			}
			if !slices.Contains(requested, platform) {
				requested = append(requested, platform)
			}
		}
		return requested, nil
	}

	integrations, err := campaigns.queries.ListIntegrations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}

	requested := []string{}
	for _, integration := range integrations {
		if integration.IsActive {
			requested = append(requested, integration.Platform)
		}
	}
	return requested, nil
}

// fanOut runs one task per active integration of the requested platforms, all at once.
// Each task has its own timeout and its failure only shows up in its own result.
func (campaigns *CampaignService) fanOut(ctx context.Context, userID string, platforms []string) ([]fetchResult, error) {
	integrations, err := campaigns.queries.ListIntegrations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}

	wanted := make(map[string]bool, len(platforms))
	for _, platform := range platforms {
		wanted[platform] = true
	}

	targets := []model.Integration{}
	for _, integration := range integrations {
		if integration.IsActive && wanted[integration.Platform] {
			targets = append(targets, integration)
		}
	}

	results := make([]fetchResult, len(targets))

	var group errgroup.Group

	for i, integration := range targets {
		group.Go(func() error {
			records, err := campaigns.fetchOne(ctx, integration)
			if err != nil {
				tlog.App.Warn().Err(err).Str("platform", integration.Platform).Msg("Failed to fetch campaigns, continuing without them")
			}
			results[i] = fetchResult{integration: integration, records: records, err: err}
			return nil
		})
	}

	// Tasks never return errors
	_ = group.Wait()

	return results, nil
}

func (campaigns *CampaignService) fetchOne(ctx context.Context, integration model.Integration) (records []model.CampaignRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("platform fetch panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, campaigns.config.FetchTimeout)
	defer cancel()

	creds, err := campaigns.tokens.Credentials(integration)
	if err != nil {
		return nil, err
	}

	records, err = campaigns.broker.GetService(integration.Platform).FetchCampaigns(ctx, creds)
	if err != nil {
		return nil, err
	}

	now := campaigns.now().UTC().Truncate(time.Second)
	for i := range records {
		records[i].ID = uuid.New().String()
		records[i].UserID = integration.UserID
		records[i].Platform = integration.Platform
		records[i].CreatedAt = now
		records[i].UpdatedAt = now
	}

	return records, nil
}

// mergeCampaigns appends live rows to the stored ones. A live row replaces the stored row of the same campaign.
func mergeCampaigns(stored []model.CampaignRecord, live []model.CampaignRecord) []model.CampaignRecord {
	index := make(map[string]int, len(stored))
	merged := make([]model.CampaignRecord, 0, len(stored)+len(live))

	for _, record := range stored {
		index[record.Platform+"/"+record.PlatformCampaignID] = len(merged)
		merged = append(merged, record)
	}

	for _, record := range live {
		key := record.Platform + "/" + record.PlatformCampaignID
		if position, ok := index[key]; ok {
			record.ID = merged[position].ID
			record.IntegrationID = merged[position].IntegrationID
			record.CreatedAt = merged[position].CreatedAt
			merged[position] = record
			continue
		}
		index[key] = len(merged)
		merged = append(merged, record)
	}

	return merged
}

func sumCampaigns(records []model.CampaignRecord) CampaignTotals {
	spend := decimal.Zero
	totals := CampaignTotals{}

	for _, record := range records {
		value, err := decimal.NewFromString(record.Spend)
		if err != nil {
			tlog.App.Debug().Str("platform", record.Platform).Str("spend", record.Spend).Msg("Ignoring unparsable spend")
			value = decimal.Zero
		}
		spend = spend.Add(value)
		totals.Clicks += record.Clicks
		totals.Impressions += record.Impressions
		totals.Conversions += record.Conversions
	}

	totals.Spend = spend.StringFixed(2)
	return totals
}

// monthLabels returns the trailing months ending with the month of now, oldest first.
func monthLabels(now time.Time) []string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	labels := make([]string, monthsInSeries)
	for i := range monthsInSeries {
		labels[i] = first.AddDate(0, i-(monthsInSeries-1), 0).Format("2006-01")
	}
	return labels
}

// distributeMonthly spreads the totals evenly over the series. No history is kept, so this is a flat
// approximation. Remainders go to the most recent months so every column still sums to its total.
func distributeMonthly(totals CampaignTotals, now time.Time) []MonthlyMetrics {
	labels := monthLabels(now)
	months := int64(monthsInSeries)

	spend, err := decimal.NewFromString(totals.Spend)
	if err != nil {
		spend = decimal.Zero
	}
	cents := spend.Shift(2).Round(0).IntPart()

	split := func(total int64, i int) int64 {
		share := total / months
		if int64(i) >= months-total%months {
			share++
		}
		return share
	}

	series := make([]MonthlyMetrics, monthsInSeries)
	for i, label := range labels {
		series[i] = MonthlyMetrics{
			Month:       label,
			Spend:       decimal.NewFromInt(split(cents, i)).Shift(-2).StringFixed(2),
			Clicks:      split(totals.Clicks, i),
			Impressions: split(totals.Impressions, i),
			Conversions: split(totals.Conversions, i),
		}
	}
	return series
}

func (campaigns *CampaignService) syntheticCampaigns(userID string, platform string) []model.CampaignRecord {
	campaigns.mutex.Lock()
	defer campaigns.mutex.Unlock()

	name := platform
	if entry, ok := campaigns.catalog.Get(platform); ok {
		name = entry.Name
	}

	now := campaigns.now().UTC().Truncate(time.Second)
	statuses := []model.CampaignStatus{model.CampaignStatusActive, model.CampaignStatusPaused, model.CampaignStatusDelivered}
	labels := []string{"Awareness", "Retargeting", "Seasonal Promotion"}

	records := make([]model.CampaignRecord, 0, len(statuses))
	for i, status := range statuses {
		records = append(records, model.CampaignRecord{
			ID:                 uuid.New().String(),
			UserID:             userID,
			Platform:           platform,
			PlatformCampaignID: fmt.Sprintf("synthetic-%s-%d", platform, i+1),
			Name:               fmt.Sprintf("%s %s", name, labels[i]),
			Status:             status,
			Spend:              decimal.NewFromInt(campaigns.between(100_00, 5_000_00)).Shift(-2).StringFixed(2),
			Clicks:             campaigns.between(100, 10_000),
			Impressions:        campaigns.between(1_000, 100_000),
			Conversions:        campaigns.between(1, 500),
			Synthetic:          true,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
	}
	return records
}

func (campaigns *CampaignService) syntheticMonthly(now time.Time) []MonthlyMetrics {
	campaigns.mutex.Lock()
	defer campaigns.mutex.Unlock()

	labels := monthLabels(now)
	series := make([]MonthlyMetrics, len(labels))
	for i, label := range labels {
		series[i] = MonthlyMetrics{
			Month:       label,
			Spend:       decimal.NewFromInt(campaigns.between(500_00, 5_000_00)).Shift(-2).StringFixed(2),
			Clicks:      campaigns.between(500, 5_000),
			Impressions: campaigns.between(10_000, 100_000),
			Conversions: campaigns.between(10, 200),
		}
	}
	return series
}

// between returns a value in [low, high]. Callers hold the mutex.
func (campaigns *CampaignService) between(low int64, high int64) int64 {
	return low + campaigns.rand.Int64N(high-low+1)
}
