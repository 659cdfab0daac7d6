package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"sudooom.im.talk/internal/cache"
	"sudooom.im.talk/internal/config"
	"sudooom.im.talk/internal/handler"
	"sudooom.im.talk/internal/health"
	"sudooom.im.talk/internal/metrics"
	imNats "sudooom.im.talk/internal/nats"
	"sudooom.im.talk/internal/presence"
	"sudooom.im.talk/internal/repository"
	"sudooom.im.talk/internal/service"
	"sudooom.im.talk/internal/snowflake"
)

func main() {
	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.App.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接 NATS
	natsClient, err := imNats.NewClient(cfg.NATS, cfg.App.Name)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	logger.Info("Connected to NATS", "url", cfg.NATS.URL)

	// 连接 Redis
	redisClient := connectRedis(cfg.Redis)
	defer redisClient.Close()
	logger.Info("Connected to Redis", "host", cfg.Redis.Host)

	// 连接数据库
	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

	if err := repository.Migrate(ctx, db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	node, err := snowflake.NewNode(cfg.App.NodeID)
	if err != nil {
		logger.Error("Failed to create snowflake node", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	// 缓存与在线状态
	previews := cache.NewLastMessageCache(redisClient)
	unread := cache.NewUnreadCache(redisClient)
	registry := cache.NewServerRegistry(redisClient, cfg.Presence.HeartbeatTTL)
	tracker := presence.NewTracker(
		registry,
		cache.NewInstanceSessions(redisClient),
		cfg.Presence.InstanceTimeout,
		m.PresenceInstanceErrors,
	)

	// 初始化服务
	members := repository.NewMembershipRepository(db)
	publisher := imNats.NewTalkPublisher(natsClient.Conn())
	messageService := service.NewMessageService(db, members, node, publisher, previews, unread, m)
	voteService := service.NewVoteService(db, members, cfg.Vote.MaxRetries, m)
	talkListService := service.NewTalkListService(
		repository.NewTalkListRepository(db),
		members,
		previews,
		unread,
		tracker,
	)

	talkHandler := handler.NewTalkHandler(
		messageService,
		voteService,
		talkListService,
		unread,
		tracker,
		publisher,
		m,
	)

	// 启动订阅者
	subscriber := imNats.NewMessageSubscriber(natsClient.Conn(), talkHandler, imNats.SubscriberConfig{
		WorkerCount: cfg.Subscriber.WorkerCount,
		BufferSize:  cfg.Subscriber.BufferSize,
	})
	if err := subscriber.Start(ctx); err != nil {
		logger.Error("Failed to start subscriber", "error", err)
		os.Exit(1)
	}

	go pruneLoop(ctx, tracker, cfg.Presence.PruneInterval, logger)

	// 健康检查与指标
	healthServer := &http.Server{
		Addr:    cfg.App.HealthAddr,
		Handler: health.NewMux(health.NewChecker(natsClient.Conn(), redisClient, db), m.Handler()),
	}
	go func() {
		logger.Info("Health check server started", "addr", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed", "error", err)
		}
	}()

	logger.Info("Talk service started", "name", cfg.App.Name, "node_id", cfg.App.NodeID)

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	if err := subscriber.Stop(); err != nil {
		logger.Warn("Failed to stop subscriber", "error", err)
	}
	messageService.Wait()
	messageService.Close()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = healthServer.Shutdown(shutdownCtx)

	logger.Info("Talk service stopped")
}

// pruneLoop 定期清理心跳过期的连接节点
func pruneLoop(ctx context.Context, tracker *presence.Tracker, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := tracker.Prune(ctx); err != nil {
				logger.Warn("Failed to prune instances", "error", err)
			}
		}
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// connectRedis 连接 Redis
func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// connectDatabase 连接 PostgreSQL
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolConfig)
}
