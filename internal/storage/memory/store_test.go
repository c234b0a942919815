package memory

import (
	"testing"
	"time"

	"timecapsule/backend/internal/domain"
	"timecapsule/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CapsuleOperations(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	capsule := &domain.Capsule{
		ID:         "capsule-1",
		Title:      "hello",
		Content:    "future",
		Visibility: domain.VisibilityPrivate,
		Senders:    []string{"user-1"},
		Receivers:  []string{"user-2"},
		CreatedAt:  now,
	}

	err := store.SaveCapsule(capsule)
	require.NoError(t, err)

	retrieved, err := store.GetCapsule("capsule-1")
	require.NoError(t, err)
	assert.Equal(t, capsule.Title, retrieved.Title)
	assert.Equal(t, capsule.Senders, retrieved.Senders)

	// 返回的是副本：改动不会写回存储
	retrieved.Title = "mutated"
	retrieved.Senders[0] = "someone-else"
	again, err := store.GetCapsule("capsule-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", again.Title)
	assert.Equal(t, []string{"user-1"}, again.Senders)

	err = store.DeleteCapsule("capsule-1")
	require.NoError(t, err)

	_, err = store.GetCapsule("capsule-1")
	assert.ErrorIs(t, err, storage.ErrCapsuleNotFound)
	assert.ErrorIs(t, store.DeleteCapsule("capsule-1"), storage.ErrCapsuleNotFound)
}

func TestMemoryStore_ListCapsules(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	in2days := now.Add(2 * 24 * time.Hour)
	in5days := now.Add(5 * 24 * time.Hour)

	require.NoError(t, store.SaveCapsule(&domain.Capsule{
		ID: "A", Senders: []string{"user-1"}, Visibility: domain.VisibilityPrivate,
		OpenDate: &in2days, SealedAt: &now, CreatedAt: now,
	}))
	require.NoError(t, store.SaveCapsule(&domain.Capsule{
		ID: "B", Senders: []string{"user-1"}, Visibility: domain.VisibilityPrivate,
		OpenDate: &in5days, SealedAt: &now, CreatedAt: now,
	}))
	require.NoError(t, store.SaveCapsule(&domain.Capsule{
		ID: "C", Senders: []string{"user-1"}, Visibility: domain.VisibilityPrivate,
		CreatedAt: now,
	}))
	require.NoError(t, store.SaveCapsule(&domain.Capsule{
		ID: "other", Senders: []string{"user-2"}, Visibility: domain.VisibilityPrivate,
		CreatedAt: now,
	}))

	filter, ok := domain.UserCapsuleFilter("user-1", "")
	require.True(t, ok)

	capsules, err := store.ListCapsules(domain.ListQuery{Filter: filter}, now)
	require.NoError(t, err)
	require.Len(t, capsules, 3)

	// 默认排序：有开启日期者优先，最先开启在前
	assert.Equal(t, "A", capsules[0].ID)
	assert.Equal(t, "B", capsules[1].ID)
	assert.Equal(t, "C", capsules[2].ID)

	// 分页在排序之后应用
	page, err := store.ListCapsules(domain.ListQuery{Filter: filter, Skip: 1, Take: 1}, now)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "B", page[0].ID)
}

func TestMemoryStore_UserOperations(t *testing.T) {
	store := NewStore()

	user := &domain.User{
		ID:       "user-1",
		Email:    "a@example.com",
		Username: "alice",
	}
	require.NoError(t, store.CreateUser(user))

	assert.ErrorIs(t, store.CreateUser(&domain.User{ID: "user-2", Email: "a@example.com"}), storage.ErrEmailExists)
	assert.ErrorIs(t, store.CreateUser(&domain.User{ID: "user-2", Email: "b@example.com", Username: "alice"}), storage.ErrUsernameExists)

	byEmail, err := store.GetUserByEmail("a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", byEmail.ID)

	byName, err := store.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, "user-1", byName.ID)

	user.Username = "alice2"
	require.NoError(t, store.UpdateUser(user))
	_, err = store.GetUserByUsername("alice")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	require.NoError(t, store.UpdateLastLogin("user-1"))
	updated, err := store.GetUserByID("user-1")
	require.NoError(t, err)
	assert.NotNil(t, updated.LastLoginAt)
}

func TestMemoryStore_TokenBlacklist(t *testing.T) {
	store := NewStore()

	blacklisted, err := store.IsBlacklisted("jti-1")
	require.NoError(t, err)
	assert.False(t, blacklisted)

	require.NoError(t, store.AddToBlacklist("jti-1", time.Minute))
	blacklisted, err = store.IsBlacklisted("jti-1")
	require.NoError(t, err)
	assert.True(t, blacklisted)

	// 过期条目视为不在黑名单
	require.NoError(t, store.AddToBlacklist("jti-2", -time.Second))
	blacklisted, err = store.IsBlacklisted("jti-2")
	require.NoError(t, err)
	assert.False(t, blacklisted)
}

func TestMemoryStore_RateLimit(t *testing.T) {
	store := NewStore()

	count, err := store.IncrementRateLimit("ip:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = store.IncrementRateLimit("ip:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	current, err := store.GetRateLimit("ip:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, int64(2), current)

	current, err = store.GetRateLimit("ip:unknown")
	require.NoError(t, err)
	assert.Equal(t, int64(0), current)
}
