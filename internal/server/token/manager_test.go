package token

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/accountd/internal/models"
	"github.com/iudanet/accountd/internal/server/storage"
	"github.com/iudanet/accountd/internal/server/storage/sqlite"
)

func TestManager_IssueAndVerify(t *testing.T) {
	ctx := context.Background()
	s, manager, cleanup := setupTestManager(t, 0)
	defer cleanup()

	userID := createTestUser(t, ctx, s)

	value, err := manager.Issue(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, value, 32, "token is 32 hex characters")

	gotID, err := manager.Verify(ctx, value)
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
}

func TestManager_Issue_IndependentTokens(t *testing.T) {
	ctx := context.Background()
	s, manager, cleanup := setupTestManager(t, 0)
	defer cleanup()

	userID := createTestUser(t, ctx, s)

	first, err := manager.Issue(ctx, userID)
	require.NoError(t, err)
	second, err := manager.Issue(ctx, userID)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	// Обе сессии живут независимо
	_, err = manager.Verify(ctx, first)
	assert.NoError(t, err)
	_, err = manager.Verify(ctx, second)
	assert.NoError(t, err)

	// Отзыв одной не трогает другую
	require.NoError(t, manager.Revoke(ctx, first))
	_, err = manager.Verify(ctx, first)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = manager.Verify(ctx, second)
	assert.NoError(t, err)
}

func TestManager_Verify_Unknown(t *testing.T) {
	ctx := context.Background()
	_, manager, cleanup := setupTestManager(t, 0)
	defer cleanup()

	_, err := manager.Verify(ctx, "deadbeefdeadbeefdeadbeefdeadbeef")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = manager.Verify(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_Verify_SlidingWindow(t *testing.T) {
	ctx := context.Background()
	s, manager, cleanup := setupTestManager(t, 0)
	defer cleanup()

	userID := createTestUser(t, ctx, s)

	tests := []struct {
		name     string
		lastUsed time.Time
		wantErr  error
	}{
		{
			name:     "used an hour ago",
			lastUsed: time.Now().Add(-time.Hour),
		},
		{
			name:     "just inside the window",
			lastUsed: time.Now().Add(-DefaultTTL + time.Minute),
		},
		{
			name:     "exactly at the window edge",
			lastUsed: time.Now().Add(-DefaultTTL),
			wantErr:  ErrInvalidToken,
		},
		{
			name:     "long stale",
			lastUsed: time.Now().Add(-30 * 24 * time.Hour),
			wantErr:  ErrInvalidToken,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value := fmt.Sprintf("token-%d", i)
			sessionToken := &models.SessionToken{
				Token:      value,
				UserID:     userID,
				LastUsedAt: tt.lastUsed,
			}
			require.NoError(t, s.SaveSessionToken(ctx, sessionToken))

			gotID, err := manager.Verify(ctx, value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, gotID)
		})
	}
}

func TestManager_Verify_RefreshesWindow(t *testing.T) {
	ctx := context.Background()
	s, manager, cleanup := setupTestManager(t, 0)
	defer cleanup()

	userID := createTestUser(t, ctx, s)

	// Токен на краю окна: еще одна проверка должна его оживить
	stale := time.Now().Add(-DefaultTTL + time.Minute)
	sessionToken := &models.SessionToken{Token: "edge", UserID: userID, LastUsedAt: stale}
	require.NoError(t, s.SaveSessionToken(ctx, sessionToken))

	_, err := manager.Verify(ctx, "edge")
	require.NoError(t, err)

	got, err := s.GetSessionToken(ctx, "edge")
	require.NoError(t, err)
	assert.Greater(t, got.LastUsedAt.UnixMilli(), stale.UnixMilli(),
		"successful verify must bump last_used_at")

	// После обновления токен снова далеко от края
	_, err = manager.Verify(ctx, "edge")
	assert.NoError(t, err)
}

func TestManager_Verify_DeletedUser(t *testing.T) {
	ctx := context.Background()
	s, manager, cleanup := setupTestManager(t, 0)
	defer cleanup()

	userID := createTestUser(t, ctx, s)

	value, err := manager.Issue(ctx, userID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, userID))

	_, err = manager.Verify(ctx, value)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_Revoke(t *testing.T) {
	ctx := context.Background()
	s, manager, cleanup := setupTestManager(t, 0)
	defer cleanup()

	userID := createTestUser(t, ctx, s)

	value, err := manager.Issue(ctx, userID)
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(ctx, value))

	_, err = manager.Verify(ctx, value)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Идемпотентность: повторный отзыв и отзыв неизвестного — no-op
	assert.NoError(t, manager.Revoke(ctx, value))
	assert.NoError(t, manager.Revoke(ctx, "never-existed"))
}

func TestManager_RevokeAll(t *testing.T) {
	ctx := context.Background()
	s, manager, cleanup := setupTestManager(t, 0)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	otherID := createTestUser(t, ctx, s)

	var values []string
	for i := 0; i < 3; i++ {
		value, err := manager.Issue(ctx, userID)
		require.NoError(t, err)
		values = append(values, value)
	}
	otherValue, err := manager.Issue(ctx, otherID)
	require.NoError(t, err)

	require.NoError(t, manager.RevokeAll(ctx, userID))

	for _, value := range values {
		_, err := manager.Verify(ctx, value)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}

	// Чужая сессия жива
	_, err = manager.Verify(ctx, otherValue)
	assert.NoError(t, err)

	// Безопасен при нуле токенов
	assert.NoError(t, manager.RevokeAll(ctx, userID))
}

func TestManager_Sweep(t *testing.T) {
	ctx := context.Background()
	s, manager, cleanup := setupTestManager(t, 0)
	defer cleanup()

	userID := createTestUser(t, ctx, s)

	now := time.Now()
	tokens := []*models.SessionToken{
		{Token: "stale1", UserID: userID, LastUsedAt: now.Add(-8 * 24 * time.Hour)},
		{Token: "stale2", UserID: userID, LastUsedAt: now.Add(-DefaultTTL - time.Minute)},
		{Token: "fresh1", UserID: userID, LastUsedAt: now.Add(-time.Hour)},
		{Token: "fresh2", UserID: userID, LastUsedAt: now},
	}
	for _, sessionToken := range tokens {
		require.NoError(t, s.SaveSessionToken(ctx, sessionToken))
	}

	deleted, err := manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted, "sweep removes exactly the stale tokens")

	_, err = manager.Verify(ctx, "fresh1")
	assert.NoError(t, err)
	_, err = manager.Verify(ctx, "fresh2")
	assert.NoError(t, err)

	deleted, err = manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestManager_CustomTTL(t *testing.T) {
	ctx := context.Background()
	s, manager, cleanup := setupTestManager(t, time.Minute)
	defer cleanup()

	assert.Equal(t, time.Minute, manager.TTL())

	userID := createTestUser(t, ctx, s)

	sessionToken := &models.SessionToken{
		Token:      "short",
		UserID:     userID,
		LastUsedAt: time.Now().Add(-2 * time.Minute),
	}
	require.NoError(t, s.SaveSessionToken(ctx, sessionToken))

	_, err := manager.Verify(ctx, "short")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewManager_DefaultTTL(t *testing.T) {
	manager := NewManager(slog.Default(), nil, 0)
	assert.Equal(t, DefaultTTL, manager.TTL())

	manager = NewManager(slog.Default(), nil, -time.Hour)
	assert.Equal(t, DefaultTTL, manager.TTL())
}

// setupTestManager собирает менеджер поверх in-memory хранилища
func setupTestManager(t *testing.T, ttl time.Duration) (*sqlite.Storage, *Manager, func()) {
	ctx := context.Background()

	s, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)

	manager := NewManager(slog.Default(), s, ttl)

	cleanup := func() {
		_ = s.Close()
	}

	return s, manager, cleanup
}

var testUserSeq int

func createTestUser(t *testing.T, ctx context.Context, s storage.UserStorage) int64 {
	testUserSeq++
	user := &models.User{
		Username:     fmt.Sprintf("tokenuser_%d", testUserSeq),
		Email:        fmt.Sprintf("tokenuser_%d@example.com", testUserSeq),
		PasswordHash: "hash",
		Active:       true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	require.NoError(t, s.CreateUser(ctx, user))

	return user.ID
}
