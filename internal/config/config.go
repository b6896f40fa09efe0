package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	AI      AIConfig      `yaml:"ai"`
	Storage StorageConfig `yaml:"storage"`
	Memory  MemoryConfig  `yaml:"memory"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// AIConfig 描述大模型相关配置。Provider 为 openai、ark 或 gemini。
type AIConfig struct {
	Provider        string        `yaml:"provider"`
	APIKey          string        `yaml:"apiKey"`
	BaseURL         string        `yaml:"baseURL"`
	Model           string        `yaml:"model"`
	MaxTokens       int           `yaml:"maxTokens"`
	Timeout         time.Duration `yaml:"timeout"`
	AccessKey       string        `yaml:"accessKey"`
	SecretKey       string        `yaml:"secretKey"`
	Region          string        `yaml:"region"`
	FallbackMessage string        `yaml:"fallbackMessage"`
}

// StorageConfig 选择键值存储后端；都为空时使用内存。
type StorageConfig struct {
	DatabaseURL string `yaml:"databaseURL"`
	SQLitePath  string `yaml:"sqlitePath"`
}

// MemoryConfig 控制对话记忆、检索与用户画像分析。
type MemoryConfig struct {
	MinLength        int    `yaml:"minLength"`
	RetrievalScope   string `yaml:"retrievalScope"`
	HistoryLimit     int    `yaml:"historyLimit"`
	RetrievalLimit   int    `yaml:"retrievalLimit"`
	AnalysisInterval int    `yaml:"analysisInterval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080", AllowedOrigins: []string{"*"}},
		AI: AIConfig{
			Provider:  "openai",
			MaxTokens: 1024,
			Timeout:   60 * time.Second,
			Region:    "cn-beijing",
		},
		Memory: MemoryConfig{
			MinLength:        10,
			RetrievalScope:   "global",
			HistoryLimit:     10,
			RetrievalLimit:   5,
			AnalysisInterval: 5,
		},
		Log:     LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Namespace: "mentor"},
	}
}

// Load 依次应用默认值、CONFIG_FILE 指定的 YAML 文件和环境变量。
func Load() (*Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "openai", "ark", "gemini":
	default:
		return fmt.Errorf("invalid AI_PROVIDER value %q", c.AI.Provider)
	}
	switch c.Memory.RetrievalScope {
	case "global", "conversation":
	default:
		return fmt.Errorf("invalid MEMORY_RETRIEVAL_SCOPE value %q", c.Memory.RetrievalScope)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("invalid AI_TIMEOUT value %s", c.AI.Timeout)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	addr, err := serverAddr(c.Server.Addr)
	if err != nil {
		return err
	}
	c.Server.Addr = addr
	if origins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.AI.Provider = strings.ToLower(getEnvOrDefault("AI_PROVIDER", c.AI.Provider))
	c.AI.APIKey = firstNonEmpty(os.Getenv("AI_API_KEY"), providerKey(c.AI.Provider), c.AI.APIKey)
	c.AI.BaseURL = firstNonEmpty(os.Getenv("AI_BASE_URL"), arkOnly(c.AI.Provider, "ARK_BASE_URL"), c.AI.BaseURL)
	// Model 沿用早期的环境变量名。
	c.AI.Model = firstNonEmpty(os.Getenv("AI_MODEL"), os.Getenv("Model"), c.AI.Model)
	c.AI.AccessKey = getEnvOrDefault("ARK_ACCESS_KEY", c.AI.AccessKey)
	c.AI.SecretKey = getEnvOrDefault("ARK_SECRET_KEY", c.AI.SecretKey)
	c.AI.Region = getEnvOrDefault("ARK_REGION", c.AI.Region)
	c.AI.FallbackMessage = getEnvOrDefault("CHAT_FALLBACK_MESSAGE", c.AI.FallbackMessage)

	if err := overrideInt("AI_MAX_TOKENS", &c.AI.MaxTokens); err != nil {
		return err
	}
	timeout, err := parseOptionalDurationEnv("AI_TIMEOUT")
	if err != nil {
		return err
	}
	if timeout != nil {
		c.AI.Timeout = *timeout
	}

	c.Storage.DatabaseURL = getEnvOrDefault("DATABASE_URL", c.Storage.DatabaseURL)
	c.Storage.SQLitePath = getEnvOrDefault("STORAGE_SQLITE_PATH", c.Storage.SQLitePath)

	c.Memory.RetrievalScope = strings.ToLower(getEnvOrDefault("MEMORY_RETRIEVAL_SCOPE", c.Memory.RetrievalScope))
	for key, dst := range map[string]*int{
		"MEMORY_MIN_LENGTH":         &c.Memory.MinLength,
		"MEMORY_HISTORY_LIMIT":      &c.Memory.HistoryLimit,
		"MEMORY_RETRIEVAL_LIMIT":    &c.Memory.RetrievalLimit,
		"PROFILE_ANALYSIS_INTERVAL": &c.Memory.AnalysisInterval,
	} {
		if err := overrideInt(key, dst); err != nil {
			return err
		}
	}

	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)
	c.Metrics.Namespace = getEnvOrDefault("METRICS_NAMESPACE", c.Metrics.Namespace)
	return nil
}

// serverAddr 解析服务器监听地址，PORT 优先。
func serverAddr(fallback string) (string, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		if fallback == "" {
			return ":8080", nil
		}
		return fallback, nil
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

func providerKey(provider string) string {
	switch provider {
	case "ark":
		return os.Getenv("ARK_API_KEY")
	case "gemini":
		return firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

func arkOnly(provider, key string) string {
	if provider != "ark" {
		return ""
	}
	return os.Getenv(key)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func overrideInt(key string, dst *int) error {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return err
	}
	if val != nil {
		*dst = *val
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
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

// parseOptionalDurationEnv accepts a Go duration ("45s") or a bare number of seconds.
func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		d := time.Duration(seconds) * time.Second
		return &d, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &d, nil
}
