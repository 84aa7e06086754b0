package service_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/steveiliop56/adhub/internal/catalog"
	"github.com/steveiliop56/adhub/internal/model"
	"github.com/steveiliop56/adhub/internal/service"

	"github.com/redis/go-redis/v9"
	"gotest.tools/v3/assert"
)

func TestOAuthStateRoundTrip(t *testing.T) {
	s := newTestServices(t, nil)
	ctx := context.Background()

	token, claims, err := s.states.Generate(ctx, "user-1", catalog.Meta)
	assert.NilError(t, err)
	assert.Equal(t, 2, len(strings.Split(token, ".")))

	verified, err := s.states.Verify(ctx, "user-1", token)
	assert.NilError(t, err)
	assert.Equal(t, claims, verified)
	assert.Equal(t, "user-1", verified.UserID)
	assert.Equal(t, catalog.Meta, verified.Platform)

	// Single use
	_, err = s.states.Verify(ctx, "user-1", token)
	assert.ErrorIs(t, err, service.ErrInvalidState)
}

func TestOAuthStateRejectsTampering(t *testing.T) {
	s := newTestServices(t, nil)
	ctx := context.Background()

	token, _, err := s.states.Generate(ctx, "user-1", catalog.Google)
	assert.NilError(t, err)

	encoded, signature, _ := strings.Cut(token, ".")

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	assert.NilError(t, err)

	var claims service.StateClaims
	assert.NilError(t, json.Unmarshal(payload, &claims))

	claims.UserID = "user-2"
	forged, err := json.Marshal(claims)
	assert.NilError(t, err)

	type testCase struct {
		description string
		token       string
	}

	tests := []testCase{
		{
			description: "Empty",
			token:       "",
		},
		{
			description: "No signature",
			token:       encoded,
		},
		{
			description: "Garbage signature",
			token:       encoded + ".!!!",
		},
		{
			description: "Swapped user",
			token:       base64.RawURLEncoding.EncodeToString(forged) + "." + signature,
		},
		{
			description: "Truncated signature",
			token:       encoded + "." + signature[:len(signature)-2],
		},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			_, err := s.states.Verify(ctx, "user-1", test.token)
			assert.ErrorIs(t, err, service.ErrInvalidState)
		})
	}

	// The untouched token is still valid
	_, err = s.states.Verify(ctx, "user-1", token)
	assert.NilError(t, err)
}

func TestOAuthStateRejectsOtherKeys(t *testing.T) {
	s := newTestServices(t, nil)
	ctx := context.Background()

	other := service.NewOAuthStateService(service.OAuthStateServiceConfig{}, service.NewDatabaseStateStore(s.queries), newTestCipher(t, "another-secret"))
	assert.NilError(t, other.Init())

	token, _, err := other.Generate(ctx, "user-1", catalog.Meta)
	assert.NilError(t, err)

	_, err = s.states.Verify(ctx, "user-1", token)
	assert.ErrorIs(t, err, service.ErrInvalidState)
}

func TestOAuthStateVerifierIsStable(t *testing.T) {
	s := newTestServices(t, nil)

	first := s.states.Verifier("nonce")
	assert.Equal(t, first, s.states.Verifier("nonce"))
	assert.Assert(t, first != s.states.Verifier("other-nonce"))

	// RFC 7636 requires 43 to 128 characters
	assert.Assert(t, len(first) >= 43 && len(first) <= 128)
}

func TestDatabaseStateStoreBindsUserAndPlatform(t *testing.T) {
	s := newTestServices(t, nil)
	ctx := context.Background()
	store := service.NewDatabaseStateStore(s.queries)
	now := time.Now()

	assert.NilError(t, store.Save(ctx, model.OAuthState{
		Nonce:     "nonce-1",
		UserID:    "user-1",
		Platform:  catalog.Meta,
		ExpiresAt: now.Add(time.Minute).Unix(),
		CreatedAt: now.Unix(),
	}))

	consumed, err := store.Consume(ctx, "nonce-1", "user-1", catalog.Google, now)
	assert.NilError(t, err)
	assert.Assert(t, !consumed)

	consumed, err = store.Consume(ctx, "nonce-1", "user-2", catalog.Meta, now)
	assert.NilError(t, err)
	assert.Assert(t, !consumed)

	consumed, err = store.Consume(ctx, "nonce-1", "user-1", catalog.Meta, now)
	assert.NilError(t, err)
	assert.Assert(t, consumed)

	// Expired states are neither consumable nor kept by cleanup
	assert.NilError(t, store.Save(ctx, model.OAuthState{
		Nonce:     "nonce-2",
		UserID:    "user-1",
		Platform:  catalog.Meta,
		ExpiresAt: now.Add(-time.Minute).Unix(),
		CreatedAt: now.Add(-2 * time.Minute).Unix(),
	}))

	consumed, err = store.Consume(ctx, "nonce-2", "user-1", catalog.Meta, now)
	assert.NilError(t, err)
	assert.Assert(t, !consumed)

	assert.NilError(t, store.DeleteExpired(ctx, now))
}

func TestRedisStateStore(t *testing.T) {
	redisURL := os.Getenv("ADHUB_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("ADHUB_TEST_REDIS_URL is not set")
	}

	options, err := redis.ParseURL(redisURL)
	assert.NilError(t, err)

	client := redis.NewClient(options)
	t.Cleanup(func() {
		client.Close()
	})

	ctx := context.Background()
	store := service.NewRedisStateStore(client)
	nonce := "test-" + time.Now().Format("150405.000000000")

	assert.NilError(t, store.Save(ctx, model.OAuthState{
		Nonce:     nonce,
		UserID:    "user-1",
		Platform:  catalog.Meta,
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
	}))

	consumed, err := store.Consume(ctx, nonce, "user-1", catalog.Meta, time.Now())
	assert.NilError(t, err)
	assert.Assert(t, consumed)

	consumed, err = store.Consume(ctx, nonce, "user-1", catalog.Meta, time.Now())
	assert.NilError(t, err)
	assert.Assert(t, !consumed)
}

func TestOAuthStateOtherUserDoesNotConsume(t *testing.T) {
	s := newTestServices(t, nil)
	ctx := context.Background()

	token, _, err := s.states.Generate(ctx, "user-1", catalog.Meta)
	assert.NilError(t, err)

	_, err = s.states.Verify(ctx, "user-2", token)
	assert.ErrorIs(t, err, service.ErrInvalidState)

	// The owner can still complete the flow
	claims, err := s.states.Verify(ctx, "user-1", token)
	assert.NilError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}
