package config

import (
	"errors"
	"fmt"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	AI        AIConfig        `mapstructure:"ai"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Guard     GuardConfig     `mapstructure:"guard"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"` // 允许的跨域来源，空表示 *
}

// AIConfig AI 推理服务配置
type AIConfig struct {
	Provider     string                 `mapstructure:"provider"` // openai, azure, ark
	APIKey       string                 `mapstructure:"api_key"`
	Model        string                 `mapstructure:"model"` // 默认模型，路由未命中时使用
	BaseURL      string                 `mapstructure:"base_url"`
	Timeout      time.Duration          `mapstructure:"timeout"`       // 单次推理超时
	SystemPrompt string                 `mapstructure:"system_prompt"` // 助手人设
	Options      AIOptionsConfig        `mapstructure:"options"`
	Routes       map[string]RouteConfig `mapstructure:"routes"` // 任务类别 -> 模型
	DefaultRoute string                 `mapstructure:"default_route"`
}

// AIOptionsConfig AI 模型参数
type AIOptionsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// RouteConfig 单个任务类别的模型路由
type RouteConfig struct {
	Target      string `mapstructure:"target"`       // 推理后端的模型名
	DisplayName string `mapstructure:"display_name"` // 返回给调用方的模型名
	MaxTokens   int    `mapstructure:"max_tokens"`
}

// EmbeddingConfig 向量化服务配置 (Ark)
type EmbeddingConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Enabled 是否配置了向量化服务
func (c EmbeddingConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// RetrievalConfig 检索增强配置
type RetrievalConfig struct {
	VectorsPath string   `mapstructure:"vectors_path"`
	DocsPath    string   `mapstructure:"docs_path"`
	TopK        int      `mapstructure:"top_k"`
	Keywords    []string `mapstructure:"keywords"` // 领域关键词，命中即检索
}

// LimitsConfig 限流与配额配置
type LimitsConfig struct {
	Rate   RateConfig   `mapstructure:"rate"`
	Budget BudgetConfig `mapstructure:"budget"`
}

// RateConfig 滑动窗口限流
type RateConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
}

// BudgetConfig token 配额
type BudgetConfig struct {
	Anonymous          int    `mapstructure:"anonymous"`  // 匿名用户每日额度
	Registered         int    `mapstructure:"registered"` // 注册用户每月额度
	Estimator          string `mapstructure:"estimator"`  // words, segments
	EstimateMultiplier int    `mapstructure:"estimate_multiplier"`
}

// GuardConfig 输入校验配置
type GuardConfig struct {
	MaxMessages      int      `mapstructure:"max_messages"`
	MaxMessageLength int      `mapstructure:"max_message_length"`
	DenyPatterns     []string `mapstructure:"deny_patterns"` // 为空时使用内置规则
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// StoreConfig 会话存储配置
type StoreConfig struct {
	Driver string       `mapstructure:"driver"` // sqlite, mongo
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite 配置
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	ListTTL  time.Duration `mapstructure:"list_ttl"` // 会话列表缓存时间
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"` // JWT密钥
}

// UploadConfig 文件上传配置
type UploadConfig struct {
	MaxGuestBytes int64            `mapstructure:"max_guest_bytes"`
	MaxUserBytes  int64            `mapstructure:"max_user_bytes"`
	Extraction    ExtractionConfig `mapstructure:"extraction"`
}

// ExtractionConfig 内容提取服务配置
type ExtractionConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint64        `mapstructure:"max_retries"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type  string       `mapstructure:"type"` // local, oss
	Local *LocalConfig `mapstructure:"local,omitempty"`
	OSS   *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地文件系统配置
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"` // 基础路径
	BaseURL  string `mapstructure:"base_url"`  // 基础URL（用于生成访问URL）
}

// OSSConfig 阿里云OSS配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`          // OSS端点
	Bucket          string `mapstructure:"bucket"`            // Bucket名称
	AccessKeyID     string `mapstructure:"access_key_id"`     // AccessKey ID
	AccessKeySecret string `mapstructure:"access_key_secret"` // AccessKey Secret
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	if c.Limits.Rate.Window <= 0 || c.Limits.Rate.MaxRequests <= 0 {
		return errors.New("rate limit window and max_requests must be positive")
	}
	if c.Limits.Budget.Anonymous <= 0 || c.Limits.Budget.Registered <= 0 {
		return errors.New("token budgets must be positive")
	}
	if c.Guard.MaxMessages <= 0 || c.Guard.MaxMessageLength <= 0 {
		return errors.New("guard limits must be positive")
	}
	if c.Retrieval.TopK <= 0 {
		return errors.New("retrieval top_k must be positive")
	}

	if _, ok := c.AI.Routes[c.AI.DefaultRoute]; !ok {
		return fmt.Errorf("default route %q is not configured", c.AI.DefaultRoute)
	}

	switch c.Store.Driver {
	case "sqlite", "mongo":
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}

	return nil
}
