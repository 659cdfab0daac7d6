package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ServerRegistry 服务实例注册表，按心跳判断存活
type ServerRegistry struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewServerRegistry 创建实例注册表，ttl 内有心跳的实例视为存活
func NewServerRegistry(client *redis.Client, ttl time.Duration) *ServerRegistry {
	return &ServerRegistry{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Heartbeat 记录实例心跳
func (r *ServerRegistry) Heartbeat(ctx context.Context, instanceId string) error {
	err := r.client.ZAdd(ctx, ServerRunIdsKey, redis.Z{
		Score:  float64(r.now().Unix()),
		Member: instanceId,
	}).Err()
	if err != nil {
		return fmt.Errorf("server heartbeat: %w", err)
	}
	return nil
}

// ActiveInstances 心跳未过期的实例
func (r *ServerRegistry) ActiveInstances(ctx context.Context) ([]string, error) {
	min := r.now().Add(-r.ttl).Unix()
	ids, err := r.client.ZRangeByScore(ctx, ServerRunIdsKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(min, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list active instances: %w", err)
	}
	return ids, nil
}

// pruneScript 在一次脚本内选出并删除过期实例，期间的心跳不会被误删
// KEYS[1] 实例 ZSET；ARGV[1] 过期上界；ARGV[2]、ARGV[3] 用户集合 Key 的前后缀
var pruneScript = redis.NewScript(`
local stale = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(stale) do
	redis.call('DEL', ARGV[2] .. id .. ARGV[3])
	redis.call('ZREM', KEYS[1], id)
end
return stale
`)

// Prune 清理心跳过期的实例及其在线用户集合，返回清理的实例
func (r *ServerRegistry) Prune(ctx context.Context) ([]string, error) {
	max := "(" + strconv.FormatInt(r.now().Add(-r.ttl).Unix(), 10)
	stale, err := pruneScript.Run(ctx, r.client,
		[]string{ServerRunIdsKey},
		max, ServerUsersKeyPrefix, serverUsersKeySuffix,
	).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("prune instances: %w", err)
	}
	return stale, nil
}

// InstanceSessions 各实例上的在线用户集合
type InstanceSessions struct {
	client *redis.Client
}

// NewInstanceSessions 创建实例会话集合
func NewInstanceSessions(client *redis.Client) *InstanceSessions {
	return &InstanceSessions{client: client}
}

// Add 用户连接到实例
func (s *InstanceSessions) Add(ctx context.Context, instanceId string, userId int64) error {
	if err := s.client.SAdd(ctx, BuildServerUsersKey(instanceId), userId).Err(); err != nil {
		return fmt.Errorf("add session: %w", err)
	}
	return nil
}

// Remove 用户从实例断开
func (s *InstanceSessions) Remove(ctx context.Context, instanceId string, userId int64) error {
	if err := s.client.SRem(ctx, BuildServerUsersKey(instanceId), userId).Err(); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Contains 一次 SMISMEMBER 判断多个用户是否连在该实例上，结果与 userIds 一一对应
func (s *InstanceSessions) Contains(ctx context.Context, instanceId string, userIds []int64) ([]bool, error) {
	if len(userIds) == 0 {
		return nil, nil
	}
	members := make([]any, len(userIds))
	for i, id := range userIds {
		members[i] = id
	}
	found, err := s.client.SMIsMember(ctx, BuildServerUsersKey(instanceId), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	return found, nil
}
