package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/steveiliop56/adhub/internal/model"
)

const integrationColumns = `id, user_id, platform, access_token, refresh_token, expires_at, is_active, metadata, created_at, updated_at`

func scanIntegration(row scanner) (model.Integration, error) {
	var (
		integration model.Integration
		refresh     sql.NullString
		expiresAt   sql.NullInt64
		metadata    string
		createdAt   int64
		updatedAt   int64
	)
	err := row.Scan(&integration.ID, &integration.UserID, &integration.Platform, &integration.AccessToken, &refresh, &expiresAt, &integration.IsActive, &metadata, &createdAt, &updatedAt)
	if err != nil {
		return integration, err
	}
	integration.RefreshToken = stringPtr(refresh)
	integration.ExpiresAt = timePtr(expiresAt)
	integration.CreatedAt = fromUnix(createdAt)
	integration.UpdatedAt = fromUnix(updatedAt)
	if err := json.Unmarshal([]byte(metadata), &integration.Metadata); err != nil {
		return integration, fmt.Errorf("decode metadata: %w", err)
	}
	return integration, nil
}

const getIntegration = `SELECT ` + integrationColumns + ` FROM integrations WHERE user_id = ? AND platform = ?`

func (q *Queries) GetIntegration(ctx context.Context, userID string, platform string) (model.Integration, error) {
	return scanIntegration(q.db.QueryRowContext(ctx, getIntegration, userID, platform))
}

const listIntegrations = `SELECT ` + integrationColumns + ` FROM integrations WHERE user_id = ? ORDER BY platform`

func (q *Queries) ListIntegrations(ctx context.Context, userID string) ([]model.Integration, error) {
	rows, err := q.db.QueryContext(ctx, listIntegrations, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []model.Integration{}
	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, integration)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// The existing row keeps its id and created_at on conflict.
const upsertIntegration = `INSERT INTO integrations (` + integrationColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, platform) DO UPDATE SET
    access_token = excluded.access_token,
    refresh_token = excluded.refresh_token,
    expires_at = excluded.expires_at,
    is_active = excluded.is_active,
    metadata = excluded.metadata,
    updated_at = excluded.updated_at
RETURNING ` + integrationColumns

func (q *Queries) UpsertIntegration(ctx context.Context, arg model.Integration) (model.Integration, error) {
	metadata, err := encodeJSON(arg.Metadata)
	if err != nil {
		return model.Integration{}, err
	}
	row := q.db.QueryRowContext(ctx, upsertIntegration,
		arg.ID,
		arg.UserID,
		arg.Platform,
		arg.AccessToken,
		nullString(arg.RefreshToken),
		nullUnix(arg.ExpiresAt),
		arg.IsActive,
		metadata,
		arg.CreatedAt.Unix(),
		arg.UpdatedAt.Unix(),
	)
	return scanIntegration(row)
}

// State changes never touch the token columns.
const updateIntegrationState = `UPDATE integrations
SET is_active = ?, metadata = ?, updated_at = ?
WHERE id = ? AND user_id = ?`

type UpdateIntegrationStateParams struct {
	ID        string
	UserID    string
	IsActive  bool
	Metadata  model.IntegrationMetadata
	UpdatedAt int64
}

func (q *Queries) UpdateIntegrationState(ctx context.Context, arg UpdateIntegrationStateParams) (int64, error) {
	metadata, err := encodeJSON(arg.Metadata)
	if err != nil {
		return 0, err
	}
	result, err := q.db.ExecContext(ctx, updateIntegrationState, arg.IsActive, metadata, arg.UpdatedAt, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateIntegrationTokens = `UPDATE integrations
SET access_token = ?, refresh_token = COALESCE(?, refresh_token), expires_at = ?, metadata = ?, updated_at = ?
WHERE id = ? AND user_id = ?`

type UpdateIntegrationTokensParams struct {
	ID           string
	UserID       string
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *int64
	Metadata     model.IntegrationMetadata
	UpdatedAt    int64
}

func (q *Queries) UpdateIntegrationTokens(ctx context.Context, arg UpdateIntegrationTokensParams) (int64, error) {
	metadata, err := encodeJSON(arg.Metadata)
	if err != nil {
		return 0, err
	}
	var expiresAt sql.NullInt64
	if arg.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: *arg.ExpiresAt, Valid: true}
	}
	result, err := q.db.ExecContext(ctx, updateIntegrationTokens,
		arg.AccessToken,
		nullString(arg.RefreshToken),
		expiresAt,
		metadata,
		arg.UpdatedAt,
		arg.ID,
		arg.UserID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
