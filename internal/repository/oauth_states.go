package repository

import (
	"context"

	"github.com/steveiliop56/adhub/internal/model"
)

const createOAuthState = `INSERT INTO oauth_states (nonce, user_id, platform, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateOAuthState(ctx context.Context, arg model.OAuthState) error {
	_, err := q.db.ExecContext(ctx, createOAuthState, arg.Nonce, arg.UserID, arg.Platform, arg.ExpiresAt, arg.CreatedAt)
	return err
}

// Deleting is the consumption: a nonce can match at most once.
const consumeOAuthState = `DELETE FROM oauth_states WHERE nonce = ? AND user_id = ? AND platform = ? AND expires_at >= ?`

type ConsumeOAuthStateParams struct {
	Nonce    string
	UserID   string
	Platform string
	Now      int64
}

func (q *Queries) ConsumeOAuthState(ctx context.Context, arg ConsumeOAuthStateParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, consumeOAuthState, arg.Nonce, arg.UserID, arg.Platform, arg.Now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteExpiredOAuthStates = `DELETE FROM oauth_states WHERE expires_at < ?`

func (q *Queries) DeleteExpiredOAuthStates(ctx context.Context, now int64) error {
	_, err := q.db.ExecContext(ctx, deleteExpiredOAuthStates, now)
	return err
}
