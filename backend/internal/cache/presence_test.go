package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvasServer/backend/internal/canvas"
)

func newTestPresence(t *testing.T) (PresenceCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisPresence(rdb), mr
}

func TestPresence_AddAndList(t *testing.T) {
	p, mr := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.AddParticipant(ctx, "board", "alice", "#e6194b", time.Minute))
	require.NoError(t, p.AddParticipant(ctx, "board", "bob", "#3cb44b", time.Minute))

	alive, err := p.GetAliveParticipants(ctx, "board")
	require.NoError(t, err)
	assert.ElementsMatch(t, []canvas.Participant{
		{ID: "alice", Color: "#e6194b"},
		{ID: "bob", Color: "#3cb44b"},
	}, alive)

	assert.True(t, mr.Exists(roomKey("board")))
	assert.Equal(t, "#3cb44b", mr.HGet(colorsKey("board"), "bob"))

	canvases, err := p.GetCanvases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"board"}, canvases)
}

func TestPresence_ExpiredMembersCleaned(t *testing.T) {
	p, mr := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.AddParticipant(ctx, "board", "alive", "#000", time.Minute))
	// 负 TTL：expireAt 已经过去
	require.NoError(t, p.AddParticipant(ctx, "board", "stale", "#fff", -time.Minute))

	alive, err := p.GetAliveParticipants(ctx, "board")
	require.NoError(t, err)
	require.Len(t, alive, 1)
	assert.Equal(t, "alive", alive[0].ID)

	// Lua 清理脚本同时删掉了颜色表里的条目
	assert.Equal(t, "", mr.HGet(colorsKey("board"), "stale"))
	members, err := mr.ZMembers(roomKey("board"))
	require.NoError(t, err)
	assert.Equal(t, []string{"alive"}, members)
}

func TestPresence_Remove(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.AddParticipant(ctx, "board", "alice", "#000", time.Minute))
	require.NoError(t, p.RemoveParticipant(ctx, "board", "alice"))
	require.NoError(t, p.RemoveParticipant(ctx, "board", "never-joined"))

	alive, err := p.GetAliveParticipants(ctx, "board")
	require.NoError(t, err)
	assert.Empty(t, alive)
}

func TestPresence_RefreshKeepsSingleEntry(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.AddParticipant(ctx, "board", "alice", "#000", -time.Minute))
	// 心跳刷新
	require.NoError(t, p.AddParticipant(ctx, "board", "alice", "#000", time.Minute))

	alive, err := p.GetAliveParticipants(ctx, "board")
	require.NoError(t, err)
	assert.Equal(t, []canvas.Participant{{ID: "alice", Color: "#000"}}, alive)
}

func TestPresence_CanvasesIsolated(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.AddParticipant(ctx, "a", "x", "#000", time.Minute))
	require.NoError(t, p.AddParticipant(ctx, "b", "y", "#111", time.Minute))

	alive, err := p.GetAliveParticipants(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []canvas.Participant{{ID: "x", Color: "#000"}}, alive)

	canvases, err := p.GetCanvases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, canvases)
}
