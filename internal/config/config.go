package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	APIStyleChat      = "chat"
	APIStyleResponses = "responses"

	defaultBaseURL      = "https://api.openai.com/v1"
	defaultAPIKeyEnv    = "CHATGPT_API_KEY"
	defaultLogLevel     = "info"
	defaultMaxBodyBytes = 10 << 20 // 10 MiB
	defaultPreviewRows  = 50
	defaultPreviewCols  = 26
	maxAttempts         = 10
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Upstream  UpstreamConfig `yaml:"upstream"`
	Generator EndpointConfig `yaml:"generator"`
	Assistant EndpointConfig `yaml:"assistant"`
	Workbook  WorkbookConfig `yaml:"workbook"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	LogLevel     string `yaml:"log_level"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// UpstreamConfig captures authentication and routing info for the model provider.
type UpstreamConfig struct {
	BaseURL   string  `yaml:"base_url"`
	APIKeyEnv string  `yaml:"api_key_env"`
	ProxyURL  string  `yaml:"proxy_url"`
	Headers   Headers `yaml:"headers"`
}

// Headers contains additional HTTP headers to send with a provider request.
type Headers map[string]string

// EndpointConfig describes how one handler talks to the upstream model.
type EndpointConfig struct {
	Model           string        `yaml:"model"`
	APIStyle        string        `yaml:"api_style"`
	Temperature     *float64      `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
	ReasoningEffort string        `yaml:"reasoning_effort"`
	Attempts        int           `yaml:"attempts"`
	Timeout         time.Duration `yaml:"timeout"`
	FinalTimeout    time.Duration `yaml:"final_timeout"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
}

// WorkbookConfig bounds the spreadsheet preview embedded into prompts.
type WorkbookConfig struct {
	PreviewRows int `yaml:"preview_rows"`
	PreviewCols int `yaml:"preview_cols"`
}

// Default returns the configuration used when a key is absent from YAML.
func Default() Config {
	generatorTemp := 0.3
	return Config{
		Server: ServerConfig{
			Port:         8080,
			LogLevel:     defaultLogLevel,
			MaxBodyBytes: defaultMaxBodyBytes,
		},
		Upstream: UpstreamConfig{
			BaseURL:   defaultBaseURL,
			APIKeyEnv: defaultAPIKeyEnv,
		},
		Generator: EndpointConfig{
			Model:       "gpt-4o-mini",
			APIStyle:    APIStyleChat,
			Temperature: &generatorTemp,
			MaxTokens:   1000,
			Attempts:    2,
			Timeout:     20 * time.Second,
			RetryDelay:  time.Second,
		},
		Assistant: EndpointConfig{
			Model:           "gpt-5-mini",
			APIStyle:        APIStyleResponses,
			MaxTokens:       4000,
			ReasoningEffort: "low",
			Attempts:        3,
			Timeout:         25 * time.Second,
			FinalTimeout:    120 * time.Second,
			RetryDelay:      time.Second,
		},
		Workbook: WorkbookConfig{
			PreviewRows: defaultPreviewRows,
			PreviewCols: defaultPreviewCols,
		},
	}
}

// Load reads YAML configuration from disk and validates the result.
// Keys missing from the file keep their Default values.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level %q must be one of debug, info, warn or error", c.Server.LogLevel)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}

	if err := validateUpstream(c.Upstream); err != nil {
		return err
	}

	endpoints := map[string]EndpointConfig{
		"generator": c.Generator,
		"assistant": c.Assistant,
	}
	for name, endpoint := range endpoints {
		if err := validateEndpoint(name, endpoint); err != nil {
			return err
		}
	}

	if c.Workbook.PreviewRows <= 0 {
		return fmt.Errorf("workbook.preview_rows must be positive, got %d", c.Workbook.PreviewRows)
	}
	if c.Workbook.PreviewCols <= 0 {
		return fmt.Errorf("workbook.preview_cols must be positive, got %d", c.Workbook.PreviewCols)
	}

	return nil
}

func validateUpstream(upstream UpstreamConfig) error {
	if strings.TrimSpace(upstream.BaseURL) == "" {
		return fmt.Errorf("upstream.base_url must be provided")
	}
	if _, err := url.ParseRequestURI(upstream.BaseURL); err != nil {
		return fmt.Errorf("upstream.base_url %q is not a valid URL: %w", upstream.BaseURL, err)
	}
	if strings.TrimSpace(upstream.APIKeyEnv) == "" {
		return fmt.Errorf("upstream.api_key_env must name an environment variable")
	}
	if upstream.ProxyURL != "" {
		u, err := url.Parse(upstream.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("upstream.proxy_url must be an absolute URL")
		}
	}

	for headerKey := range upstream.Headers {
		if !isCanonicalHTTPHeader(headerKey) {
			return fmt.Errorf("upstream: header %q is not a valid canonical HTTP header", headerKey)
		}
	}
	return nil
}

func validateEndpoint(name string, endpoint EndpointConfig) error {
	if strings.TrimSpace(endpoint.Model) == "" {
		return fmt.Errorf("%s.model must not be empty", name)
	}
	if err := validateAPIStyle(name, endpoint.APIStyle); err != nil {
		return err
	}
	if endpoint.Attempts <= 0 || endpoint.Attempts > maxAttempts {
		return fmt.Errorf("%s.attempts must be between 1 and %d, got %d", name, maxAttempts, endpoint.Attempts)
	}
	if endpoint.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be positive", name)
	}
	if endpoint.FinalTimeout < 0 {
		return fmt.Errorf("%s.final_timeout must not be negative", name)
	}
	if endpoint.RetryDelay < 0 {
		return fmt.Errorf("%s.retry_delay must not be negative", name)
	}
	if endpoint.MaxTokens < 0 {
		return fmt.Errorf("%s.max_tokens must not be negative", name)
	}
	if endpoint.Temperature != nil && (*endpoint.Temperature < 0 || *endpoint.Temperature > 2) {
		return fmt.Errorf("%s.temperature must be between 0 and 2", name)
	}
	return nil
}

func validateAPIStyle(endpointName, style string) error {
	switch style {
	case APIStyleChat, APIStyleResponses:
		return nil
	default:
		return fmt.Errorf("%s.api_style %q must be one of %q or %q", endpointName, style, APIStyleChat, APIStyleResponses)
	}
}

func isCanonicalHTTPHeader(header string) bool {
	if header == "" {
		return false
	}

	for _, r := range header {
		if !(r == '-' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return false
		}
	}
	return true
}
