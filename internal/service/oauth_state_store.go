package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/steveiliop56/adhub/internal/model"
	"github.com/steveiliop56/adhub/internal/repository"

	"github.com/redis/go-redis/v9"
)

// OAuthStateStore keeps issued state nonces until the callback consumes them.
type OAuthStateStore interface {
	Save(ctx context.Context, state model.OAuthState) error
	// Consume removes the nonce and reports whether it was present, unexpired and bound to the user and platform.
	Consume(ctx context.Context, nonce string, userID string, platform string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) error
}

type DatabaseStateStore struct {
	queries *repository.Queries
}

func NewDatabaseStateStore(queries *repository.Queries) *DatabaseStateStore {
	return &DatabaseStateStore{queries: queries}
}

func (store *DatabaseStateStore) Save(ctx context.Context, state model.OAuthState) error {
	return store.queries.CreateOAuthState(ctx, state)
}

func (store *DatabaseStateStore) Consume(ctx context.Context, nonce string, userID string, platform string, now time.Time) (bool, error) {
	consumed, err := store.queries.ConsumeOAuthState(ctx, repository.ConsumeOAuthStateParams{
		Nonce:    nonce,
		UserID:   userID,
		Platform: platform,
		Now:      now.Unix(),
	})
	if err != nil {
		return false, err
	}
	return consumed == 1, nil
}

func (store *DatabaseStateStore) DeleteExpired(ctx context.Context, now time.Time) error {
	return store.queries.DeleteExpiredOAuthStates(ctx, now.Unix())
}

const redisStatePrefix = "adhub:oauth-state:"

type redisStateEntry struct {
	UserID   string `json:"userId"`
	Platform string `json:"platform"`
}

// RedisStateStore lets several instances share issued states. Keys expire on their own.
type RedisStateStore struct {
	client redis.UniversalClient
}

func NewRedisStateStore(client redis.UniversalClient) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (store *RedisStateStore) Save(ctx context.Context, state model.OAuthState) error {
	payload, err := json.Marshal(redisStateEntry{
		UserID:   state.UserID,
		Platform: state.Platform,
	})
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	ttl := time.Until(time.Unix(state.ExpiresAt, 0))
	if ttl <= 0 {
		return errors.New("state already expired")
	}

	if err := store.client.Set(ctx, redisStatePrefix+state.Nonce, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}

	return nil
}

func (store *RedisStateStore) Consume(ctx context.Context, nonce string, userID string, platform string, _ time.Time) (bool, error) {
	payload, err := store.client.GetDel(ctx, redisStatePrefix+nonce).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("load state: %w", err)
	}

	var entry redisStateEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return false, fmt.Errorf("decode state: %w", err)
	}

	return entry.UserID == userID && entry.Platform == platform, nil
}

func (store *RedisStateStore) DeleteExpired(context.Context, time.Time) error {
	return nil
}
