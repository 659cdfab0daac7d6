package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"sudooom.im.talk/internal/model"
)

// LastMessageCache 会话最后一条消息预览，不设过期
type LastMessageCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewLastMessageCache 创建预览缓存
func NewLastMessageCache(client *redis.Client) *LastMessageCache {
	return &LastMessageCache{
		client: client,
		logger: slog.Default(),
	}
}

// Save 覆盖写入预览
func (c *LastMessageCache) Save(ctx context.Context, conversation string, msg model.LastMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, BuildLastMessageKey(conversation), data, 0).Err(); err != nil {
		return fmt.Errorf("save last message: %w", err)
	}
	return nil
}

// Read 读取预览，不存在返回 nil
func (c *LastMessageCache) Read(ctx context.Context, conversation string) (*model.LastMessage, error) {
	data, err := c.client.Get(ctx, BuildLastMessageKey(conversation)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read last message: %w", err)
	}

	var msg model.LastMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode last message: %w", err)
	}
	return &msg, nil
}

// ReadMany 批量读取，一次 MGET；缺失或损坏的条目不出现在结果中
func (c *LastMessageCache) ReadMany(ctx context.Context, conversations []string) (map[string]model.LastMessage, error) {
	result := make(map[string]model.LastMessage, len(conversations))
	if len(conversations) == 0 {
		return result, nil
	}

	keys := make([]string, len(conversations))
	for i, conv := range conversations {
		keys[i] = BuildLastMessageKey(conv)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read last messages: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		var msg model.LastMessage
		if err := json.Unmarshal([]byte(s), &msg); err != nil {
			c.logger.Warn("Failed to unmarshal last message",
				"conversation", conversations[i],
				"error", err)
			continue
		}
		result[conversations[i]] = msg
	}
	return result, nil
}
