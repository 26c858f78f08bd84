package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samruddhi2909/gitlabhq/internal/rbac"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t)
	require.NoError(t, store.Ping(context.Background()))
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	_, err := NewRedisStore("not a url", time.Minute)
	require.Error(t, err)
}

func TestProjectMembersMiss(t *testing.T) {
	store, _ := setupTestRedis(t)

	members, ok, err := store.ProjectMembers(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, members)
}

func TestSaveAndLoadProjectMembers(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	err := store.SaveProjectMembers(ctx, 7, map[int64]rbac.AccessLevel{
		1: rbac.Maintainer,
		2: rbac.Reporter,
	})
	require.NoError(t, err)

	members, ok, err := store.ProjectMembers(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[int64]rbac.AccessLevel{1: rbac.Maintainer, 2: rbac.Reporter}, members)
	assert.Equal(t, time.Minute, s.TTL("project:7:members"))
}

func TestSaveReplacesPreviousMembers(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProjectMembers(ctx, 7, map[int64]rbac.AccessLevel{1: rbac.Maintainer}))
	require.NoError(t, store.SaveProjectMembers(ctx, 7, map[int64]rbac.AccessLevel{2: rbac.Developer}))

	members, ok, err := store.ProjectMembers(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[int64]rbac.AccessLevel{2: rbac.Developer}, members)
}

func TestEmptyTeamIsCached(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProjectMembers(ctx, 9, map[int64]rbac.AccessLevel{}))

	members, ok, err := store.ProjectMembers(ctx, 9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, members)
}

func TestCachedMembersExpire(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProjectMembers(ctx, 7, map[int64]rbac.AccessLevel{1: rbac.Owner}))
	s.FastForward(2 * time.Minute)

	_, ok, err := store.ProjectMembers(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProjectMembers(ctx, 7, map[int64]rbac.AccessLevel{1: rbac.Owner}))
	require.NoError(t, store.SaveProjectMembers(ctx, 8, map[int64]rbac.AccessLevel{1: rbac.Guest}))
	require.NoError(t, store.Invalidate(ctx, 7))

	_, ok, err := store.ProjectMembers(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	members, ok, err := store.ProjectMembers(ctx, 8)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rbac.Guest, members[1])

	require.NoError(t, store.Invalidate(ctx, 404))
}

func TestCorruptCacheEntry(t *testing.T) {
	store, s := setupTestRedis(t)
	s.HSet("project:7:members", "abc", "40")

	_, _, err := store.ProjectMembers(context.Background(), 7)
	require.Error(t, err)
}
