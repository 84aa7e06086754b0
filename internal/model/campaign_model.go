package model

import "time"

type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusDelivered CampaignStatus = "delivered"
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusArchived  CampaignStatus = "archived"
)

// CampaignRecord is a metric row, persisted by a sync or freshly fetched.
// Spend is a decimal string.
type CampaignRecord struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"userId"`
	IntegrationID      *string        `json:"integrationId"`
	Platform           string         `json:"platform"`
	PlatformCampaignID string         `json:"platformCampaignId"`
	Name               string         `json:"name"`
	Status             CampaignStatus `json:"status"`
	Spend              string         `json:"spend"`
	Clicks             int64          `json:"clicks"`
	Impressions        int64          `json:"impressions"`
	Conversions        int64          `json:"conversions"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	Synthetic          bool           `json:"synthetic"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// NormalizeStatus maps platform specific status strings onto the shared set.
func NormalizeStatus(raw string) CampaignStatus {
	switch raw {
	case "ACTIVE", "active", "ENABLED", "enabled", "ENABLE", "CAMPAIGN_STATUS_ENABLE", "RUNNING", "running", "live", "LIVE", "scheduled", "sending":
		return CampaignStatusActive
	case "PAUSED", "paused", "DISABLED", "disabled", "DISABLE", "CAMPAIGN_STATUS_DISABLE", "SUSPENDED", "suspended", "cancelled":
		return CampaignStatusPaused
	case "COMPLETED", "completed", "ENDED", "ended", "delivered", "DELIVERED", "sent", "FINISHED":
		return CampaignStatusDelivered
	case "DRAFT", "draft", "PENDING", "pending":
		return CampaignStatusDraft
	case "ARCHIVED", "archived", "DELETED", "deleted", "REMOVED", "removed":
		return CampaignStatusArchived
	}
	return CampaignStatusActive
}
