package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Presence   PresenceConfig   `mapstructure:"presence"`
	Subscriber SubscriberConfig `mapstructure:"subscriber"`
	Vote       VoteConfig       `mapstructure:"vote"`
}

type AppConfig struct {
	Name       string `mapstructure:"name"`
	NodeID     int64  `mapstructure:"node_id"`
	LogLevel   string `mapstructure:"log_level"`
	HealthAddr string `mapstructure:"health_addr"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// PresenceConfig 在线状态配置
type PresenceConfig struct {
	InstanceTimeout time.Duration `mapstructure:"instance_timeout"` // 单个连接节点查询超时
	HeartbeatTTL    time.Duration `mapstructure:"heartbeat_ttl"`    // 节点心跳有效期
	PruneInterval   time.Duration `mapstructure:"prune_interval"`   // 过期节点清理周期
}

// SubscriberConfig Worker Pool 配置
type SubscriberConfig struct {
	WorkerCount int `mapstructure:"worker_count"`
	BufferSize  int `mapstructure:"buffer_size"`
}

// VoteConfig 投票配置
type VoteConfig struct {
	MaxRetries int `mapstructure:"max_retries"` // 序列化冲突最大重试次数
}

// Load 从指定路径加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "talk")
	v.SetDefault("app.node_id", 1)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.health_addr", ":8082")

	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.max_reconnects", 60)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 50)

	v.SetDefault("presence.instance_timeout", 200*time.Millisecond)
	v.SetDefault("presence.heartbeat_ttl", 35*time.Second)
	v.SetDefault("presence.prune_interval", 30*time.Second)

	v.SetDefault("subscriber.worker_count", 100)
	v.SetDefault("subscriber.buffer_size", 10000)

	v.SetDefault("vote.max_retries", 3)
}
