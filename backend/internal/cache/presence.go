package cache

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"canvasServer/backend/internal/canvas"
)

// PresenceCache 把参与者在线状态镜像到 Redis，多实例部署时可查看全部在线者。
// 光标不写入：光标只在内存中转发。
type PresenceCache interface {
	AddParticipant(ctx context.Context, canvasID, participantID, color string, ttl time.Duration) error
	RemoveParticipant(ctx context.Context, canvasID, participantID string) error
	GetAliveParticipants(ctx context.Context, canvasID string) ([]canvas.Participant, error)
	GetCanvases(ctx context.Context) ([]string, error)
}

// 具体实现：基于 redis 的 PresenceCache；单机和 cluster 都走 UniversalClient
type redisPresence struct {
	rdb redis.UniversalClient
}

func NewRedisPresence(rdb redis.UniversalClient) PresenceCache {
	return &redisPresence{rdb: rdb}
}

// 清理过期成员
// KEYS[1] = roomKey   KEYS[2] = colorsKey   ARGV[1] = now (unix seconds)
var cleanupScript = redis.NewScript(`
local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
if #expired > 0 then
	redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
	redis.call("HDEL", KEYS[2], unpack(expired))
end
return #expired
`)

func (p *redisPresence) AddParticipant(ctx context.Context, canvasID, participantID, color string, ttl time.Duration) error {
	// 刷新 TTL 也直接调用 AddParticipant
	tx := p.rdb.TxPipeline()
	// score 使用 expireAt（Unix 秒），表达“逻辑 TTL”
	expireAt := time.Now().Add(ttl).Unix()
	tx.ZAdd(ctx, roomKey(canvasID), redis.Z{Score: float64(expireAt), Member: participantID})
	tx.HSet(ctx, colorsKey(canvasID), participantID, color)
	if _, err := tx.Exec(ctx); err != nil {
		return err
	}
	// 索引集合不在同一个 slot，不能放进同一个事务
	return p.rdb.SAdd(ctx, canvasesKey(), canvasID).Err()
}

func (p *redisPresence) RemoveParticipant(ctx context.Context, canvasID, participantID string) error {
	tx := p.rdb.TxPipeline()
	tx.ZRem(ctx, roomKey(canvasID), participantID)
	tx.HDel(ctx, colorsKey(canvasID), participantID)
	_, err := tx.Exec(ctx)
	return err
}

func (p *redisPresence) GetCanvases(ctx context.Context) ([]string, error) {
	canvases, err := p.rdb.SMembers(ctx, canvasesKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	sort.Strings(canvases)
	return canvases, nil
}

func (p *redisPresence) GetAliveParticipants(ctx context.Context, canvasID string) ([]canvas.Participant, error) {
	// step1: 清理过期成员
	now := time.Now().Unix()
	_, err := cleanupScript.Run(ctx, p.rdb, []string{roomKey(canvasID), colorsKey(canvasID)}, now).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	// step2: 查询在线成员（expireAt > now）
	aliveIDs, err := p.rdb.ZRangeByScore(ctx, roomKey(canvasID), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now, 10),
		Max: "+inf",
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if len(aliveIDs) == 0 {
		return nil, nil
	}

	// step3: 批量获取颜色
	colors, err := p.rdb.HMGet(ctx, colorsKey(canvasID), aliveIDs...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	members := make([]canvas.Participant, 0, len(aliveIDs))
	for i, id := range aliveIDs {
		color := ""
		if i < len(colors) && colors[i] != nil {
			color, _ = colors[i].(string)
		}
		members = append(members, canvas.Participant{ID: id, Color: color})
	}
	return members, nil
}
