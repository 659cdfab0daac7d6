// Package repotest 启动一次性的 PostgreSQL 容器供集成测试使用
package repotest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"sudooom.im.talk/internal/repository"
)

// NewPool 启动 postgres:16-alpine 并执行迁移。
// -short 或 Docker 不可用时跳过测试。
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("跳过集成测试：-short")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "talk",
			"POSTGRES_PASSWORD": "talk",
			"POSTGRES_DB":       "talk",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("跳过集成测试：无法启动 PostgreSQL 容器: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://talk:talk@%s:%s/talk?sslmode=disable", host, port.Port())

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	deadline := time.Now().Add(30 * time.Second)
	for {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("ping postgres: %v", err)
		}
		time.Sleep(200 * time.Millisecond)
	}

	if err := repository.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// SeedGroup 写入群及成员，quit 中的成员标记为已退群
func SeedGroup(t *testing.T, pool *pgxpool.Pool, groupId int64, name string, members []int64, quit ...int64) {
	t.Helper()
	ctx := context.Background()

	if _, err := pool.Exec(ctx, `INSERT INTO groups (id, group_name, avatar) VALUES ($1, $2, '')`, groupId, name); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	for _, id := range members {
		if _, err := pool.Exec(ctx, `INSERT INTO group_members (group_id, user_id, is_quit) VALUES ($1, $2, 0)`, groupId, id); err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
	for _, id := range quit {
		if _, err := pool.Exec(ctx, `INSERT INTO group_members (group_id, user_id, is_quit) VALUES ($1, $2, 1)`, groupId, id); err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
}

// SeedUser 写入用户
func SeedUser(t *testing.T, pool *pgxpool.Pool, userId int64, nickname string) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), `INSERT INTO users (id, nickname, avatar) VALUES ($1, $2, '')`, userId, nickname); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

// SeedFriend 写入单向好友关系
func SeedFriend(t *testing.T, pool *pgxpool.Pool, userId, friendId int64, remark string) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users_friends (user_id, friend_id, remark, status) VALUES ($1, $2, $3, 1)`,
		userId, friendId, remark)
	if err != nil {
		t.Fatalf("seed friend: %v", err)
	}
}
