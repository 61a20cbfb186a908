package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mentor/internal/config"
	"mentor/internal/pkg/logger"
	"mentor/internal/pkg/sanitize"
	"mentor/internal/retrieval"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mentor",
	Short: "Mentor - chat admission and augmentation service",
	Long: `Mentor fronts a conversational AI backend. It rate limits callers,
accounts token budgets, injects retrieved domain context and threads
exchanges into persisted conversations for registered users.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./configs/config.yaml)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.mentor")
	}

	// 环境变量设置
	viper.SetEnvPrefix("MENTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 设置默认值
	setDefaults()

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Fprintln(os.Stderr, "No config file found, using defaults and environment variables")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	// 反序列化到结构体
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "150s")

	// AI，默认指向 Ollama 的 OpenAI 兼容接口
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.base_url", "http://localhost:11434/v1")
	viper.SetDefault("ai.api_key", "ollama")
	viper.SetDefault("ai.model", "gemma2:2b")
	viper.SetDefault("ai.timeout", "120s")
	viper.SetDefault("ai.system_prompt", defaultSystemPrompt)
	viper.SetDefault("ai.options.temperature", 0.7)
	viper.SetDefault("ai.default_route", "general")
	viper.SetDefault("ai.routes", map[string]any{
		"general": map[string]any{"target": "gemma2:2b", "display_name": "men.01", "max_tokens": 2000},
		"code":    map[string]any{"target": "phi3.5:3.8b", "display_name": "men.02", "max_tokens": 2000},
		"image":   map[string]any{"target": "gemma2:2b", "display_name": "men.03", "max_tokens": 1500},
	})

	// Embedding
	viper.SetDefault("embedding.base_url", "https://ark.cn-beijing.volces.com/api/v3")
	viper.SetDefault("embedding.timeout", "10s")

	// Retrieval
	viper.SetDefault("retrieval.vectors_path", "./data/vectors.json")
	viper.SetDefault("retrieval.docs_path", "./data/docs.json")
	viper.SetDefault("retrieval.top_k", 4)
	viper.SetDefault("retrieval.keywords", retrieval.DefaultKeywords)

	// Limits
	viper.SetDefault("limits.rate.window", "60s")
	viper.SetDefault("limits.rate.max_requests", 30)
	viper.SetDefault("limits.budget.anonymous", 100)
	viper.SetDefault("limits.budget.registered", 80000)
	viper.SetDefault("limits.budget.estimator", "words")
	viper.SetDefault("limits.budget.estimate_multiplier", 2)

	// Guard
	viper.SetDefault("guard.max_messages", 20)
	viper.SetDefault("guard.max_message_length", 2000)
	viper.SetDefault("guard.deny_patterns", sanitize.DefaultDenyPatterns)

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.time_format", "RFC3339")

	// Store
	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.sqlite.path", "./data/mentor.db")

	// MongoDB
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "mentor")
	viper.SetDefault("mongo.max_pool_size", 100)
	viper.SetDefault("mongo.min_pool_size", 10)

	// Redis，addr 为空时不启用缓存
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.list_ttl", "30m")

	// Upload
	viper.SetDefault("upload.max_guest_bytes", 2<<20)
	viper.SetDefault("upload.max_user_bytes", 10<<20)
	viper.SetDefault("upload.extraction.base_url", "http://localhost:8090")
	viper.SetDefault("upload.extraction.timeout", "60s")
	viper.SetDefault("upload.extraction.max_retries", 3)

	// Storage
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local.base_path", "./data/uploads")
}

const defaultSystemPrompt = `You are Mentor, a caring and supportive AI teacher for university students.
- Always greet back warmly when someone says hi or hello
- Be like a friendly, encouraging teacher who genuinely cares about students
- Be conversational and approachable, never formal or distant
- Make every student feel valued and supported`

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}
