package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// InstanceRegistry 枚举存活的服务实例
type InstanceRegistry interface {
	ActiveInstances(ctx context.Context) ([]string, error)
	Heartbeat(ctx context.Context, instanceId string) error
	Prune(ctx context.Context) ([]string, error)
}

// InstanceSessions 查询/维护实例上的在线用户
type InstanceSessions interface {
	Contains(ctx context.Context, instanceId string, userIds []int64) ([]bool, error)
	Add(ctx context.Context, instanceId string, userId int64) error
	Remove(ctx context.Context, instanceId string, userId int64) error
}

// ErrorCounter 实例查询失败计数
type ErrorCounter interface {
	Inc()
}

// Tracker 在线状态：用户只要连在任一存活实例上即视为在线
type Tracker struct {
	registry InstanceRegistry
	sessions InstanceSessions
	timeout  time.Duration
	errors   ErrorCounter
	logger   *slog.Logger
}

// NewTracker 创建在线状态查询器，timeout 为单个实例的查询时限
func NewTracker(registry InstanceRegistry, sessions InstanceSessions, timeout time.Duration, errors ErrorCounter) *Tracker {
	return &Tracker{
		registry: registry,
		sessions: sessions,
		timeout:  timeout,
		errors:   errors,
		logger:   slog.Default(),
	}
}

// IsOnline 用户是否在线；查询失败按离线处理
func (t *Tracker) IsOnline(ctx context.Context, userId int64) bool {
	return t.OnlineSet(ctx, []int64{userId})[userId]
}

// OnlineSet 批量查询在线状态。
// 并发询问所有存活实例，超时或出错的实例视为没有这些用户。
func (t *Tracker) OnlineSet(ctx context.Context, userIds []int64) map[int64]bool {
	online := make(map[int64]bool, len(userIds))
	if len(userIds) == 0 {
		return online
	}

	instances, err := t.registry.ActiveInstances(ctx)
	if err != nil {
		t.logger.Warn("Failed to list active instances", "error", err)
		return online
	}
	if len(instances) == 0 {
		return online
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, instance := range instances {
		g.Go(func() error {
			qctx, cancel := context.WithTimeout(gctx, t.timeout)
			defer cancel()

			found, err := t.sessions.Contains(qctx, instance, userIds)
			if err != nil {
				t.countError()
				t.logger.Debug("Presence query failed",
					"instance", instance,
					"error", err)
				return nil
			}

			mu.Lock()
			for i, ok := range found {
				if ok && i < len(userIds) {
					online[userIds[i]] = true
				}
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return online
}

// Heartbeat 实例心跳
func (t *Tracker) Heartbeat(ctx context.Context, instanceId string) error {
	return t.registry.Heartbeat(ctx, instanceId)
}

// Connect 用户连接到实例
func (t *Tracker) Connect(ctx context.Context, instanceId string, userId int64) error {
	return t.sessions.Add(ctx, instanceId, userId)
}

// Disconnect 用户从实例断开
func (t *Tracker) Disconnect(ctx context.Context, instanceId string, userId int64) error {
	return t.sessions.Remove(ctx, instanceId, userId)
}

// Prune 清理心跳过期的实例
func (t *Tracker) Prune(ctx context.Context) error {
	pruned, err := t.registry.Prune(ctx)
	if err != nil {
		return err
	}
	if len(pruned) > 0 {
		t.logger.Info("Pruned stale instances", "instances", pruned)
	}
	return nil
}

func (t *Tracker) countError() {
	if t.errors != nil {
		t.errors.Inc()
	}
}
