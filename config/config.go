// Package config 加载 YAML 配置文件并应用环境变量覆盖
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pdf-translator/logging"
	"pdf-translator/pipeline"
	"pdf-translator/translator"
	"pdf-translator/writer"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "PDFT_"

// Config 应用配置
type Config struct {
	Server   ServerConfig              `yaml:"server"`
	Pipeline PipelineConfig            `yaml:"pipeline"`
	Provider translator.ProviderConfig `yaml:"provider"`
	Retry    RetryConfig               `yaml:"retry"`
	Cache    CacheConfig               `yaml:"cache"`
	Output   OutputConfig              `yaml:"output"`
	Log      logging.Config            `yaml:"log"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	DataDir        string        `yaml:"data_dir"`
	MaxUploadMB    int64         `yaml:"max_upload_mb"`
	DevMode        bool          `yaml:"dev_mode"`
	FrontendURL    string        `yaml:"frontend_url"` // 开发模式下反向代理的前端地址
	StaticDir      string        `yaml:"static_dir"`   // 生产模式下的前端静态文件目录
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

// PipelineConfig 批量翻译配置
type PipelineConfig struct {
	MaxChars       int           `yaml:"max_chars"`
	Separator      string        `yaml:"separator"`
	Workers        int           `yaml:"workers"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	SourceLanguage string        `yaml:"source_language"`
	TargetLanguage string        `yaml:"target_language"`
	Prompt         string        `yaml:"prompt"`
}

// RetryConfig 翻译请求重试配置
type RetryConfig struct {
	Times    int           `yaml:"times"`
	Interval time.Duration `yaml:"interval"`
}

// CacheConfig 翻译缓存配置
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"` // 为空时使用 data_dir 下的 cache
}

// OutputConfig 输出配置
type OutputConfig struct {
	Format   string `yaml:"format"`
	FontPath string `yaml:"font_path"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			DataDir:        "data",
			MaxUploadMB:    100,
			FrontendURL:    "http://localhost:3000",
			StaticDir:      "./frontend/dist",
			SessionTimeout: 24 * time.Hour,
		},
		Pipeline: PipelineConfig{
			MaxChars:       pipeline.DefaultMaxChars,
			Separator:      pipeline.DefaultSeparator,
			Workers:        1,
			CallTimeout:    60 * time.Second,
			SourceLanguage: translator.AutoDetect,
			TargetLanguage: "id",
		},
		Provider: translator.ProviderConfig{
			Type:        translator.ProviderGoogle,
			Temperature: 0.3,
		},
		Retry: RetryConfig{
			Times:    2,
			Interval: 2 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Output: OutputConfig{
			Format: string(writer.FormatText),
		},
		Log: logging.Config{
			Level:   "info",
			Format:  "text",
			Console: true,
		},
	}
}

// Load 读取配置文件（path 为空时只使用默认值），然后应用环境变量并校验
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv 应用环境变量覆盖，DEV_MODE 兼容旧的开发模式开关
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := getenv(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := getenv(EnvPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("ADDR", &c.Server.Addr)
	str("DATA_DIR", &c.Server.DataDir)
	str("STATIC_DIR", &c.Server.StaticDir)
	str("FRONTEND_URL", &c.Server.FrontendURL)

	integer("MAX_CHARS", &c.Pipeline.MaxChars)
	integer("WORKERS", &c.Pipeline.Workers)
	duration("CALL_TIMEOUT", &c.Pipeline.CallTimeout)
	str("SOURCE_LANG", &c.Pipeline.SourceLanguage)
	str("TARGET_LANG", &c.Pipeline.TargetLanguage)

	var provider string
	str("PROVIDER", &provider)
	if provider != "" {
		c.Provider.Type = translator.ProviderType(provider)
	}
	str("API_KEY", &c.Provider.APIKey)
	str("API_URL", &c.Provider.APIURL)
	str("MODEL", &c.Provider.Model)
	str("LAMBDA_FUNCTION", &c.Provider.Function)

	integer("RETRY_TIMES", &c.Retry.Times)
	duration("RETRY_INTERVAL", &c.Retry.Interval)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_FILE", &c.Log.File)

	if getenv("DEV_MODE") == "true" || getenv(EnvPrefix+"DEV_MODE") == "true" {
		c.Server.DevMode = true
	}

	return errors.Join(errs...)
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []error

	if c.Pipeline.MaxChars <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_chars 必须大于 0，当前为 %d", c.Pipeline.MaxChars))
	}
	if strings.TrimSpace(c.Pipeline.Separator) == "" {
		errs = append(errs, errors.New("pipeline.separator 必须包含非空白字符"))
	}
	if c.Pipeline.Workers <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers 必须大于 0，当前为 %d", c.Pipeline.Workers))
	}
	if c.Pipeline.CallTimeout < 0 {
		errs = append(errs, errors.New("pipeline.call_timeout 不能为负数"))
	}
	if _, err := translator.NormalizeLanguage(c.Pipeline.SourceLanguage); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.source_language: %w", err))
	}
	if c.Pipeline.TargetLanguage == "" || strings.EqualFold(c.Pipeline.TargetLanguage, translator.AutoDetect) {
		errs = append(errs, errors.New("pipeline.target_language 不能为空或 auto"))
	} else if _, err := translator.NormalizeLanguage(c.Pipeline.TargetLanguage); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.target_language: %w", err))
	}

	if !translator.IsSupported(c.Provider.Type) {
		errs = append(errs, fmt.Errorf("provider.type: %w: %s", translator.ErrUnsupportedProvider, c.Provider.Type))
	}
	if c.Provider.Type == translator.ProviderLambda && c.Provider.Function == "" {
		errs = append(errs, errors.New("provider.function 在 lambda 提供商下必填"))
	}

	if c.Retry.Times < 0 {
		errs = append(errs, errors.New("retry.times 不能为负数"))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("server.max_upload_mb 必须大于 0"))
	}
	if _, err := writer.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, fmt.Errorf("output.format: %w", err))
	}

	return errors.Join(errs...)
}

// CacheDir 翻译缓存目录
func (c *Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return c.Server.DataDir + "/cache"
}

// PipelineOptions 流水线参数
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		MaxChars:  c.Pipeline.MaxChars,
		Separator: c.Pipeline.Separator,
		Workers:   c.Pipeline.Workers,
	}
}

// NewClient 按配置创建翻译客户端，prompt 为空时使用 pipeline.prompt
func (c *Config) NewClient(ctx context.Context, pc translator.ProviderConfig, cache *translator.Cache, prompt string, log *logging.Logger) (*translator.Client, error) {
	client, err := translator.NewClientFromConfig(ctx, pc, cache, log)
	if err != nil {
		return nil, err
	}
	if prompt == "" {
		prompt = c.Pipeline.Prompt
	}
	return client.
		WithRetry(c.Retry.Times, c.Retry.Interval).
		WithTimeout(c.Pipeline.CallTimeout).
		WithSeparator(c.Pipeline.Separator).
		WithPrompt(prompt), nil
}
