package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 TASKBOT_STORAGE_DRIVER
const EnvPrefix = "TASKBOT"

// 存储驱动
const (
	DriverFile   = "file"
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config 应用程序配置
type Config struct {
	TelegramToken string // Telegram Bot API Token
	Debug         bool   // Bot API 调试日志

	Storage StorageConfig
	Mongo   MongoConfig
	Log     LogConfig

	Workers   int // worker 协程数量
	QueueSize int // 每个 worker 的队列大小
	SendRate  int // 每秒最多发送的消息数
	SendBurst int // 允许连续突发的消息数

	Triage TriageConfig
}

// StorageConfig 持久化配置
type StorageConfig struct {
	Driver  string // file | mongo | sqlite
	DataDir string // file / sqlite 的数据目录
}

// MongoConfig MongoDB 连接配置
type MongoConfig struct {
	URI     string
	DBName  string
	Timeout time.Duration
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string
	Format string
}

// TriageConfig 消息分拣的时间窗口与清理间隔
type TriageConfig struct {
	ForwardWindow   time.Duration
	ForwardMax      int
	MediaGroupDelay time.Duration
	MediaGroupTTL   time.Duration
	AttachmentTTL   time.Duration
	AttachmentSweep time.Duration
	MediaGroupSweep time.Duration
}

// legacyEnv 沿用的无前缀环境变量
var legacyEnv = map[string]string{
	"telegram_token": "TELEGRAM_TOKEN",
	"mongo.uri":      "MONGO_URI",
	"mongo.db_name":  "MONGO_DB_NAME",
	"log.level":      "LOG_LEVEL",
}

// SetDefaults 注册默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.data_dir", "./data")

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.db_name", "task_bot")
	v.SetDefault("mongo.timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("workers", 4)
	v.SetDefault("queue_size", 256)
	v.SetDefault("send_rate", 30)
	v.SetDefault("send_burst", 30)

	v.SetDefault("triage.forward_window", 30*time.Second)
	v.SetDefault("triage.forward_max", 10)
	v.SetDefault("triage.media_group_delay", 3*time.Second)
	v.SetDefault("triage.media_group_ttl", 5*time.Minute)
	v.SetDefault("triage.attachment_ttl", 30*time.Minute)
	v.SetDefault("triage.attachment_sweep", 10*time.Minute)
	v.SetDefault("triage.media_group_sweep", 5*time.Minute)
}

// BindEnv 绑定 TASKBOT_ 前缀变量，并兼容无前缀的旧变量名
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		_ = v.BindEnv(key, prefixed, legacy)
	}
}

// New 创建带默认值与环境变量绑定的 viper 实例；configFile 为空时不读取文件
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	if configFile = strings.TrimSpace(configFile); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load 从 viper 读取并校验配置
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		TelegramToken: strings.TrimSpace(v.GetString("telegram_token")),
		Debug:         v.GetBool("debug"),
		Storage: StorageConfig{
			Driver:  strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))),
			DataDir: strings.TrimSpace(v.GetString("storage.data_dir")),
		},
		Mongo: MongoConfig{
			URI:     strings.TrimSpace(v.GetString("mongo.uri")),
			DBName:  strings.TrimSpace(v.GetString("mongo.db_name")),
			Timeout: v.GetDuration("mongo.timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Workers:   v.GetInt("workers"),
		QueueSize: v.GetInt("queue_size"),
		SendRate:  v.GetInt("send_rate"),
		SendBurst: v.GetInt("send_burst"),
		Triage: TriageConfig{
			ForwardWindow:   v.GetDuration("triage.forward_window"),
			ForwardMax:      v.GetInt("triage.forward_max"),
			MediaGroupDelay: v.GetDuration("triage.media_group_delay"),
			MediaGroupTTL:   v.GetDuration("triage.media_group_ttl"),
			AttachmentTTL:   v.GetDuration("triage.attachment_ttl"),
			AttachmentSweep: v.GetDuration("triage.attachment_sweep"),
			MediaGroupSweep: v.GetDuration("triage.media_group_sweep"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir is required for the %s driver", c.Storage.Driver)
		}
	case DriverMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo driver")
		}
		if c.Mongo.DBName == "" {
			return fmt.Errorf("mongo.db_name cannot be empty")
		}
	default:
		return fmt.Errorf("unknown storage driver %q (want file, mongo or sqlite)", c.Storage.Driver)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be >= 1, got %d", c.QueueSize)
	}
	if c.SendRate < 1 {
		return fmt.Errorf("send_rate must be >= 1, got %d", c.SendRate)
	}
	if c.SendBurst < 1 {
		return fmt.Errorf("send_burst must be >= 1, got %d", c.SendBurst)
	}
	if c.Triage.ForwardMax < 1 {
		return fmt.Errorf("triage.forward_max must be >= 1, got %d", c.Triage.ForwardMax)
	}

	durations := map[string]time.Duration{
		"triage.forward_window":    c.Triage.ForwardWindow,
		"triage.media_group_delay": c.Triage.MediaGroupDelay,
		"triage.media_group_ttl":   c.Triage.MediaGroupTTL,
		"triage.attachment_ttl":    c.Triage.AttachmentTTL,
		"triage.attachment_sweep":  c.Triage.AttachmentSweep,
		"triage.media_group_sweep": c.Triage.MediaGroupSweep,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	return nil
}

// Summary 不含密钥的配置摘要（check-config 输出）
func (c *Config) Summary() []string {
	lines := []string{
		fmt.Sprintf("telegram_token: %s", maskToken(c.TelegramToken)),
		fmt.Sprintf("storage.driver: %s", c.Storage.Driver),
	}
	switch c.Storage.Driver {
	case DriverMongo:
		lines = append(lines, fmt.Sprintf("mongo.db_name: %s", c.Mongo.DBName))
	default:
		lines = append(lines, fmt.Sprintf("storage.data_dir: %s", c.Storage.DataDir))
	}
	lines = append(lines,
		fmt.Sprintf("log: level=%s format=%s", c.Log.Level, c.Log.Format),
		fmt.Sprintf("workers: %d, queue_size: %d, send_rate: %d/s, send_burst: %d", c.Workers, c.QueueSize, c.SendRate, c.SendBurst),
		fmt.Sprintf("triage.forward: window=%s max=%d", c.Triage.ForwardWindow, c.Triage.ForwardMax),
		fmt.Sprintf("triage.media_group: delay=%s ttl=%s sweep=%s", c.Triage.MediaGroupDelay, c.Triage.MediaGroupTTL, c.Triage.MediaGroupSweep),
		fmt.Sprintf("triage.attachments: ttl=%s sweep=%s", c.Triage.AttachmentTTL, c.Triage.AttachmentSweep),
	)
	return lines
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
