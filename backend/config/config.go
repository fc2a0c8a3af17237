package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

type Config struct {
	Running struct {
		Port           int `mapstructure:"port"`
		MaxConnections int `mapstructure:"maxConnections"`
	} `mapstructure:"running"`
	Canvas struct {
		Name        string        `mapstructure:"name"`
		SendQueue   int           `mapstructure:"sendQueue"`
		PresenceTTL time.Duration `mapstructure:"presenceTTL"`
	} `mapstructure:"canvas"`
	Redis struct {
		Addrs    []string `mapstructure:"addrs"`
		Password string   `mapstructure:"password"`
	} `mapstructure:"redis"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"mysql"`
	Kafka struct {
		Brokers   []string `mapstructure:"brokers"`
		Topic     string   `mapstructure:"topic"`
		Workers   int      `mapstructure:"workers"`
		QueueSize int      `mapstructure:"queueSize"`
	} `mapstructure:"kafka"`
	Cors struct {
		AllowOrigins []string `mapstructure:"allowOrigins"`
	} `mapstructure:"cors"`
	Static struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"static"`
}

const masked = "***"

// String 隐去 Redis 密码和 DSN 中的密码，可以直接打到日志里
func (c Config) String() string {
	safe := c
	if safe.Redis.Password != "" {
		safe.Redis.Password = masked
	}
	safe.Mysql.DSN = maskDSN(c.Mysql.DSN)
	// plain 没有 String 方法，避免递归
	type plain Config
	return fmt.Sprintf("%+v", plain(safe))
}

func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return masked
	}
	if mc.Passwd != "" {
		mc.Passwd = masked
	}
	return mc.FormatDSN()
}

// Load 读取 canvasConfig.yaml；文件不存在时只用默认值和环境变量。
// 环境变量以 CANVAS_ 开头，"." 换成 "_"，例如 CANVAS_KAFKA_TOPIC；端口另外兼容 PORT
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("canvasConfig")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		// 兼容从项目根目录或 backend 目录启动
		paths = []string{"./backend/config", "./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvPrefix("CANVAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("running.port", "CANVAS_RUNNING_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("running.port", 3000)
	v.SetDefault("running.maxConnections", 100)

	v.SetDefault("canvas.name", "default")
	v.SetDefault("canvas.sendQueue", 256)
	v.SetDefault("canvas.presenceTTL", 600*time.Second)

	// 为空表示不启用对应组件
	v.SetDefault("redis.addrs", []string{})
	v.SetDefault("redis.password", "")
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("kafka.brokers", []string{})

	v.SetDefault("kafka.topic", "canvas-events")
	v.SetDefault("kafka.workers", 2)
	v.SetDefault("kafka.queueSize", 10_000)

	v.SetDefault("cors.allowOrigins", []string{})
	v.SetDefault("static.dir", "")
}
