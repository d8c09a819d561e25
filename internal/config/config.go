package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/kelseyhightower/envconfig"

	speechmodel "github.com/zhouzirui/botrix/backend/internal/model/speech"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Store     StoreConfig
	Redis     RedisConfig
	Widget    WidgetConfig
	Analytics AnalyticsConfig
	AI        AIConfig
	Speech    speechmodel.ASRConfig
}

// envSpec 是可直接由 envconfig 解析的扁平配置。
type envSpec struct {
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"botrix.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisChannel  string `envconfig:"REDIS_CHANNEL" default:"botrix:events"`

	WidgetReplyDelay  time.Duration `envconfig:"WIDGET_REPLY_DELAY" default:"1s"`
	WidgetMaxIdle     time.Duration `envconfig:"WIDGET_MAX_IDLE" default:"30m"`
	WidgetEvictSpec   string        `envconfig:"WIDGET_EVICT" default:"@every 1m"`
	WebhookTimeout    time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"0s"`
	RecorderQueueSize int           `envconfig:"RECORDER_QUEUE_SIZE" default:"256"`
	DemoWebhookURL    string        `envconfig:"DEMO_WEBHOOK_URL"`

	AnalyticsRefresh      string        `envconfig:"ANALYTICS_REFRESH" default:"@every 10s"`
	AnalyticsActiveWindow time.Duration `envconfig:"ANALYTICS_ACTIVE_WINDOW" default:"30m"`
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var spec envSpec
	if err := envconfig.Process("", &spec); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}
	server.CORSOrigins = spec.CORSOrigins

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	if spec.RecorderQueueSize < 1 {
		return nil, fmt.Errorf("invalid RECORDER_QUEUE_SIZE value %d", spec.RecorderQueueSize)
	}

	demoURL := spec.DemoWebhookURL
	if demoURL == "" {
		demoURL = "http://localhost" + server.Addr + "/api/demo/webhook"
		if !strings.HasPrefix(server.Addr, ":") {
			demoURL = "http://" + server.Addr + "/api/demo/webhook"
		}
	}

	return &Config{
		Server: server,
		Log: LogConfig{
			Level:       spec.LogLevel,
			Development: spec.LogDevelopment,
		},
		Store: StoreConfig{
			Driver:      spec.StoreDriver,
			SQLitePath:  spec.SQLitePath,
			PostgresDSN: spec.PostgresDSN,
		},
		Redis: RedisConfig{
			Addr:     spec.RedisAddr,
			Password: spec.RedisPassword,
			Channel:  spec.RedisChannel,
		},
		Widget: WidgetConfig{
			ReplyDelay:     spec.WidgetReplyDelay,
			MaxIdle:        spec.WidgetMaxIdle,
			EvictSpec:      spec.WidgetEvictSpec,
			WebhookTimeout: spec.WebhookTimeout,
			QueueSize:      spec.RecorderQueueSize,
			DemoWebhookURL: demoURL,
		},
		Analytics: AnalyticsConfig{
			RefreshSpec:  spec.AnalyticsRefresh,
			ActiveWindow: spec.AnalyticsActiveWindow,
		},
		AI:     ai,
		Speech: speech,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// LogConfig 日志级别与输出格式
type LogConfig struct {
	Level       string
	Development bool
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// RedisConfig 为空地址时使用进程内 broker。
type RedisConfig struct {
	Addr     string
	Password string
	Channel  string
}

// Enabled reports whether a Redis address was given.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// WidgetConfig 组件运行参数
type WidgetConfig struct {
	ReplyDelay     time.Duration
	MaxIdle        time.Duration
	EvictSpec      string
	WebhookTimeout time.Duration
	QueueSize      int
	DemoWebhookURL string
}

type AnalyticsConfig struct {
	RefreshSpec  string
	ActiveWindow time.Duration
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述演示 webhook 使用的大模型配置。
type AIConfig struct {
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	HistoryLimit int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	history := 10
	if override, err := parseOptionalIntEnv("AI_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		history = max(*override, 1)
	}

	return AIConfig{
		APIKey:       strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:        strings.TrimSpace(os.Getenv("Model")),
		BaseURL:      getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		HistoryLimit: history,
	}, nil
}

func loadSpeechConfig() (speechmodel.ASRConfig, error) {
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return speechmodel.ASRConfig{}, err
	}
	timeoutSeconds := 30 // 默认30秒
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	sampleRate, err := parseOptionalIntEnv("SPEECH_ASR_SAMPLE_RATE")
	if err != nil {
		return speechmodel.ASRConfig{}, err
	}
	rate := 16000
	if sampleRate != nil {
		rate = *sampleRate
	}

	accessToken := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN"))
	if accessToken == "" {
		accessToken = strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	}

	return speechmodel.ASRConfig{
		AppID:       strings.TrimSpace(os.Getenv("SPEECH_APP_ID")),
		AccessToken: accessToken,
		ResourceID:  getEnvOrDefault("SPEECH_ASR_RESOURCE_ID", ""),
		Endpoint:    getEnvOrDefault("SPEECH_ASR_ENDPOINT", ""),
		Language:    getEnvOrDefault("SPEECH_ASR_LANGUAGE", "zh-CN"),
		Format:      getEnvOrDefault("SPEECH_ASR_FORMAT", "pcm"),
		SampleRate:  rate,
		Timeout:     time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
