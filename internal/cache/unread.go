package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// UnreadCache 私聊未读计数：recipient 的 Hash 中按 sender 计数
type UnreadCache struct {
	client *redis.Client
}

// NewUnreadCache 创建未读计数缓存
func NewUnreadCache(client *redis.Client) *UnreadCache {
	return &UnreadCache{client: client}
}

// Increment 未读 +1，返回新值
func (c *UnreadCache) Increment(ctx context.Context, recipientId, senderId int64) (int64, error) {
	n, err := c.client.HIncrBy(ctx, BuildUnreadKey(recipientId), strconv.FormatInt(senderId, 10), 1).Result()
	if err != nil {
		return 0, fmt.Errorf("increment unread: %w", err)
	}
	return n, nil
}

// Read 读取 recipient 来自 sender 的未读数，不存在为 0
func (c *UnreadCache) Read(ctx context.Context, recipientId, senderId int64) (int64, error) {
	n, err := c.client.HGet(ctx, BuildUnreadKey(recipientId), strconv.FormatInt(senderId, 10)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read unread: %w", err)
	}
	return n, nil
}

// ReadMany 一次 HMGET 读取多个发送方的未读数
func (c *UnreadCache) ReadMany(ctx context.Context, recipientId int64, senderIds []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(senderIds))
	if len(senderIds) == 0 {
		return result, nil
	}

	fields := make([]string, len(senderIds))
	for i, id := range senderIds {
		fields[i] = strconv.FormatInt(id, 10)
	}

	values, err := c.client.HMGet(ctx, BuildUnreadKey(recipientId), fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("read unread: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		result[senderIds[i]] = n
	}
	return result, nil
}

// Reset 清空 recipient 来自 sender 的未读
func (c *UnreadCache) Reset(ctx context.Context, recipientId, senderId int64) error {
	if err := c.client.HDel(ctx, BuildUnreadKey(recipientId), strconv.FormatInt(senderId, 10)).Err(); err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	return nil
}
