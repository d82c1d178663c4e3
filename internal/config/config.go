package config

import (
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// Addr 返回监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // mysql 或 sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	// DSN 直接指定连接串，优先于上面的字段
	DSN   string `mapstructure:"dsn"`
	Debug bool   `mapstructure:"debug"`
}

type SyncConfig struct {
	BulkSyncThreshold int           `mapstructure:"bulk_sync_threshold"`
	MaxBulkLimit      int           `mapstructure:"max_bulk_limit"`
	JobWorkers        int           `mapstructure:"job_workers"`
	JobQueueSize      int           `mapstructure:"job_queue_size"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"` // text 或 json
}

// LoadConfig 加载配置，configPath 为空时只使用默认值和环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 基本配置
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
	}

	// 环境变量配置
	v.SetEnvPrefix("LIVESYNC")                         // 环境变量前缀 LIVESYNC_
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置 使用 _ 分隔
	v.AutomaticEnv()                                   // 自动读取环境变量

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 验证配置
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 28081)
	v.SetDefault("server.host", "0.0.0.0")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "livesync.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.debug", false)

	v.SetDefault("sync.bulk_sync_threshold", 50)
	v.SetDefault("sync.max_bulk_limit", 500)
	v.SetDefault("sync.job_workers", 2)
	v.SetDefault("sync.job_queue_size", 100)
	v.SetDefault("sync.rate_limit_window", time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.format", "text")
}

func validateConfig(cfg *Config) error {
	// 验证数据库配置
	switch cfg.Database.Driver {
	case "mysql":
		if cfg.Database.DSN == "" && cfg.Database.Password == "" {
			return fmt.Errorf("database password is required for mysql")
		}
	case "sqlite":
		if cfg.Database.DSN == "" && cfg.Database.Database == "" {
			return fmt.Errorf("database file is required for sqlite")
		}
	default:
		return fmt.Errorf("invalid database driver: %s", cfg.Database.Driver)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	// 验证同步配置
	if cfg.Sync.BulkSyncThreshold <= 0 {
		return fmt.Errorf("bulk_sync_threshold must be greater than 0")
	}
	if cfg.Sync.MaxBulkLimit < cfg.Sync.BulkSyncThreshold {
		return fmt.Errorf("max_bulk_limit must not be less than bulk_sync_threshold")
	}
	if cfg.Sync.JobWorkers <= 0 {
		return fmt.Errorf("job_workers must be greater than 0")
	}
	if cfg.Sync.RateLimitWindow < 0 {
		return fmt.Errorf("rate_limit_window must not be negative")
	}

	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", cfg.Log.Format)
	}

	return nil
}

// GetDSN 返回数据库连接字符串
func (d *DatabaseConfig) GetDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Driver == "sqlite" {
		return d.Database
	}

	c := mysqldriver.NewConfig()
	c.User = d.User
	c.Passwd = d.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", d.Host, d.Port)
	c.DBName = d.Database
	c.ParseTime = true
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}
