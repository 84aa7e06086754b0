package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/steveiliop56/adhub/internal/model"
)

const campaignColumns = `id, user_id, integration_id, platform, platform_campaign_id, name, status, spend, clicks, impressions, conversions, metadata, created_at, updated_at`

func scanCampaignRecord(row scanner) (model.CampaignRecord, error) {
	var (
		record        model.CampaignRecord
		integrationID sql.NullString
		status        string
		metadata      string
		createdAt     int64
		updatedAt     int64
	)
	err := row.Scan(&record.ID, &record.UserID, &integrationID, &record.Platform, &record.PlatformCampaignID, &record.Name, &status, &record.Spend, &record.Clicks, &record.Impressions, &record.Conversions, &metadata, &createdAt, &updatedAt)
	if err != nil {
		return record, err
	}
	record.IntegrationID = stringPtr(integrationID)
	record.Status = model.CampaignStatus(status)
	record.CreatedAt = fromUnix(createdAt)
	record.UpdatedAt = fromUnix(updatedAt)
	if err := json.Unmarshal([]byte(metadata), &record.Metadata); err != nil {
		return record, fmt.Errorf("decode metadata: %w", err)
	}
	return record, nil
}

// ListCampaignRecords returns the stored rows of a user, limited to the given platforms when any are given.
func (q *Queries) ListCampaignRecords(ctx context.Context, userID string, platforms []string) ([]model.CampaignRecord, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaign_records WHERE user_id = ?`
	args := []any{userID}
	if len(platforms) > 0 {
		query += ` AND platform IN (` + strings.TrimSuffix(strings.Repeat("?, ", len(platforms)), ", ") + `)`
		for _, platform := range platforms {
			args = append(args, platform)
		}
	}
	query += ` ORDER BY platform, name`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []model.CampaignRecord{}
	for rows.Next() {
		record, err := scanCampaignRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, record)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertCampaignRecord = `INSERT INTO campaign_records (` + campaignColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, platform, platform_campaign_id) DO UPDATE SET
    integration_id = excluded.integration_id,
    name = excluded.name,
    status = excluded.status,
    spend = excluded.spend,
    clicks = excluded.clicks,
    impressions = excluded.impressions,
    conversions = excluded.conversions,
    metadata = excluded.metadata,
    updated_at = excluded.updated_at`

func (q *Queries) UpsertCampaignRecord(ctx context.Context, arg model.CampaignRecord) error {
	metadata := "{}"
	if arg.Metadata != nil {
		encoded, err := encodeJSON(arg.Metadata)
		if err != nil {
			return err
		}
		metadata = encoded
	}
	_, err := q.db.ExecContext(ctx, upsertCampaignRecord,
		arg.ID,
		arg.UserID,
		nullString(arg.IntegrationID),
		arg.Platform,
		arg.PlatformCampaignID,
		arg.Name,
		string(arg.Status),
		arg.Spend,
		arg.Clicks,
		arg.Impressions,
		arg.Conversions,
		metadata,
		arg.CreatedAt.Unix(),
		arg.UpdatedAt.Unix(),
	)
	return err
}
