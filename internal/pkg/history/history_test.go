package history

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func TestStore_AppendAndReadAll(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewStore(client)
	ctx := context.Background()

	t.Run("read your writes in append order", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, "conv-1", "USER", "hello"))
		require.NoError(t, store.Append(ctx, "conv-1", "AI", "hi there"))
		require.NoError(t, store.Append(ctx, "conv-1", "USER", "summarize the video"))

		entries, err := store.ReadAll(ctx, "conv-1")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, Entry{Sender: "USER", Content: "hello"}, entries[0])
		assert.Equal(t, Entry{Sender: "AI", Content: "hi there"}, entries[1])
		assert.Equal(t, Entry{Sender: "USER", Content: "summarize the video"}, entries[2])
	})

	t.Run("conversations are isolated", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, "conv-2", "USER", "other conversation"))

		entries, err := store.ReadAll(ctx, "conv-2")
		require.NoError(t, err)
		require.Len(t, entries, 1)

		entries, err = store.ReadAll(ctx, "conv-1")
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("empty conversation reads empty", func(t *testing.T) {
		entries, err := store.ReadAll(ctx, "no-such-conv")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestStore_Clear(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewStore(client)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "conv-1", "USER", "hello"))
	require.NoError(t, store.Append(ctx, "conv-1", "AI", "hi"))

	require.NoError(t, store.Clear(ctx, "conv-1"))

	entries, err := store.ReadAll(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Clearing an already-empty buffer is fine
	require.NoError(t, store.Clear(ctx, "conv-1"))
}

func TestStore_Len(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewStore(client)
	ctx := context.Background()

	n, err := store.Len(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, store.Append(ctx, "conv-1", "USER", "hello"))
	require.NoError(t, store.Append(ctx, "conv-1", "AI", "hi"))

	n, err = store.Len(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStore_Keys(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewStore(client)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "conv-a", "USER", "x"))
	require.NoError(t, store.Append(ctx, "conv-b", "USER", "y"))

	ids, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"conv-a", "conv-b"}, ids)
}

func TestStore_SkipsMalformedEntries(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewStore(client)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "conv-1", "USER", "good"))
	require.NoError(t, client.RPush(ctx, "chat_history:conv-1", "not-json").Err())
	require.NoError(t, store.Append(ctx, "conv-1", "AI", "also good"))

	entries, err := store.ReadAll(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "good", entries[0].Content)
	assert.Equal(t, "also good", entries[1].Content)
}
