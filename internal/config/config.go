package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zacy-Sokach/ThinkChat/internal/ollama"
	"github.com/Zacy-Sokach/ThinkChat/internal/utils"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel         = "qwen3:0.6b"
	DefaultOllamaHost    = ollama.DefaultHost
	DefaultLogLevel      = "info"
	DefaultMaxTurnsShown = 50
)

type Config struct {
	Model         string `yaml:"model"`
	OllamaHost    string `yaml:"ollama_host"`
	Think         *bool  `yaml:"think,omitempty"`
	SaveHistory   bool   `yaml:"save_history"`
	LogLevel      string `yaml:"log_level"`
	MaxTurnsShown int    `yaml:"max_turns_shown"`
}

// Default 返回默认配置
func Default() *Config {
	think := true
	return &Config{
		Model:         DefaultModel,
		OllamaHost:    DefaultOllamaHost,
		Think:         &think,
		SaveHistory:   true,
		LogLevel:      DefaultLogLevel,
		MaxTurnsShown: DefaultMaxTurnsShown,
	}
}

// ThinkEnabled 是否请求思考过程，未配置时开启
func (c *Config) ThinkEnabled() bool {
	return c.Think == nil || *c.Think
}

// SlogLevel 把 log_level 转成 slog.Level
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func LoadConfig() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	config.fillDefaults()

	return config, nil
}

func (c *Config) fillDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.OllamaHost == "" {
		c.OllamaHost = DefaultOllamaHost
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.MaxTurnsShown <= 0 {
		c.MaxTurnsShown = DefaultMaxTurnsShown
	}
}

func SaveConfig(config *Config) error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// Marshal 输出 YAML，供 config 子命令显示
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Path 配置文件路径
func Path() (string, error) {
	return getConfigPath()
}

func getConfigPath() (string, error) {
	configDir, err := utils.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("获取配置目录失败: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
