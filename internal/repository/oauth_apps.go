package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/steveiliop56/adhub/internal/model"
)

const oauthAppColumns = `id, user_id, platform, client_id, client_secret, redirect_uri, scopes, is_active, created_at, updated_at`

func scanOAuthApp(row scanner) (model.OAuthApp, error) {
	var (
		app       model.OAuthApp
		secret    sql.NullString
		scopes    string
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&app.ID, &app.UserID, &app.Platform, &app.ClientID, &secret, &app.RedirectURI, &scopes, &app.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return app, err
	}
	app.ClientSecret = stringPtr(secret)
	app.CreatedAt = fromUnix(createdAt)
	app.UpdatedAt = fromUnix(updatedAt)
	if err := json.Unmarshal([]byte(scopes), &app.Scopes); err != nil {
		return app, fmt.Errorf("decode scopes: %w", err)
	}
	return app, nil
}

const createOAuthApp = `INSERT INTO oauth_apps (` + oauthAppColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, platform) DO NOTHING`

// CreateOAuthApp inserts the app unless one exists for the same user and platform.
// Zero rows affected means the pair is taken.
func (q *Queries) CreateOAuthApp(ctx context.Context, arg model.OAuthApp) (int64, error) {
	scopes, err := encodeJSON(arg.Scopes)
	if err != nil {
		return 0, err
	}
	result, err := q.db.ExecContext(ctx, createOAuthApp,
		arg.ID,
		arg.UserID,
		arg.Platform,
		arg.ClientID,
		nullString(arg.ClientSecret),
		arg.RedirectURI,
		scopes,
		arg.IsActive,
		arg.CreatedAt.Unix(),
		arg.UpdatedAt.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getOAuthApp = `SELECT ` + oauthAppColumns + ` FROM oauth_apps WHERE id = ? AND user_id = ?`

func (q *Queries) GetOAuthApp(ctx context.Context, id string, userID string) (model.OAuthApp, error) {
	return scanOAuthApp(q.db.QueryRowContext(ctx, getOAuthApp, id, userID))
}

const getOAuthAppByPlatform = `SELECT ` + oauthAppColumns + ` FROM oauth_apps WHERE user_id = ? AND platform = ?`

func (q *Queries) GetOAuthAppByPlatform(ctx context.Context, userID string, platform string) (model.OAuthApp, error) {
	return scanOAuthApp(q.db.QueryRowContext(ctx, getOAuthAppByPlatform, userID, platform))
}

const listOAuthApps = `SELECT ` + oauthAppColumns + ` FROM oauth_apps WHERE user_id = ? ORDER BY platform`

func (q *Queries) ListOAuthApps(ctx context.Context, userID string) ([]model.OAuthApp, error) {
	rows, err := q.db.QueryContext(ctx, listOAuthApps, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []model.OAuthApp{}
	for rows.Next() {
		app, err := scanOAuthApp(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, app)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// The secret, scopes and active flag keep their stored values when the argument is NULL.
const updateOAuthApp = `UPDATE oauth_apps
SET client_id = ?, client_secret = COALESCE(?, client_secret), scopes = COALESCE(?, scopes), is_active = COALESCE(?, is_active), updated_at = ?
WHERE id = ? AND user_id = ?`

type UpdateOAuthAppParams struct {
	ID           string
	UserID       string
	ClientID     string
	ClientSecret *string
	Scopes       []string
	IsActive     *bool
	UpdatedAt    int64
}

func (q *Queries) UpdateOAuthApp(ctx context.Context, arg UpdateOAuthAppParams) (int64, error) {
	var scopes sql.NullString
	if arg.Scopes != nil {
		encoded, err := encodeJSON(arg.Scopes)
		if err != nil {
			return 0, err
		}
		scopes = sql.NullString{String: encoded, Valid: true}
	}
	var active sql.NullBool
	if arg.IsActive != nil {
		active = sql.NullBool{Bool: *arg.IsActive, Valid: true}
	}
	result, err := q.db.ExecContext(ctx, updateOAuthApp,
		arg.ClientID,
		nullString(arg.ClientSecret),
		scopes,
		active,
		arg.UpdatedAt,
		arg.ID,
		arg.UserID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteOAuthApp = `DELETE FROM oauth_apps WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteOAuthApp(ctx context.Context, id string, userID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteOAuthApp, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
