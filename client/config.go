package client

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 客户端配置：YAML 文件 + 环境变量回退 + 默认值
type Config struct {
	ServerURL string `yaml:"server_url"`
	AuthURL   string `yaml:"auth_url"`
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`

	LogFile   string `yaml:"log_file"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// DebugAddr 为空时不启动调试 HTTP 服务
	DebugAddr string `yaml:"debug_addr"`

	Viewport  ViewportConfig  `yaml:"viewport"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Movement  MovementConfig  `yaml:"movement"`
	Proximity ProximityConfig `yaml:"proximity"`
}

// ViewportConfig 本地可移动区域（世界坐标）
type ViewportConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type ReconnectConfig struct {
	DelayMs     int `yaml:"delay_ms"`
	MaxAttempts int `yaml:"max_attempts"`
}

type MovementConfig struct {
	StepSpeed      float64 `yaml:"step_speed"`
	MoveIntervalMs int     `yaml:"move_interval_ms"`
}

type ProximityConfig struct {
	PollIntervalMs int `yaml:"poll_interval_ms"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		ServerURL: "ws://localhost:8080/ws",
		AuthURL:   "http://localhost:8080/api/auth/verify",
		LogFile:   "client.log",
		LogLevel:  "debug",
		Viewport:  ViewportConfig{Width: 1200, Height: 800},
		Reconnect: ReconnectConfig{DelayMs: 3000, MaxAttempts: 5},
		Movement:  MovementConfig{StepSpeed: 8, MoveIntervalMs: 50},
		Proximity: ProximityConfig{PollIntervalMs: 1000},
	}
}

// Load 读取 YAML 配置文件。
// path 为空时尝试 ENV REALM_CONFIG；都为空则只使用默认值与环境变量
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	defaults := *cfg
	// 地址类配置先留空，才能区分“文件未设置”与“文件写了默认值”
	cfg.ServerURL, cfg.AuthURL = "", ""
	if path == "" {
		path = os.Getenv("REALM_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaults.ServerURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 环境变量只在文件未设置该项时生效：config -> env -> default
func (c *Config) applyEnv() {
	if v := os.Getenv("REALM_SERVER_URL"); v != "" && c.ServerURL == "" {
		c.ServerURL = v
	}
	if v := os.Getenv("REALM_AUTH_URL"); v != "" && c.AuthURL == "" {
		c.AuthURL = v
	}
	if v := os.Getenv("REALM_TOKEN"); v != "" && c.Token == "" {
		c.Token = v
	}
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server_url: invalid ws url: %s", c.ServerURL)
	}
	if c.Viewport.Width <= 2*BoundaryMargin || c.Viewport.Height <= 2*BoundaryMargin {
		return errors.New("viewport: too small for boundary margin")
	}
	if c.Reconnect.DelayMs < 0 || c.Reconnect.MaxAttempts < 0 {
		return errors.New("reconnect: negative values")
	}
	if c.Movement.StepSpeed <= 0 || c.Movement.MoveIntervalMs < 0 {
		return errors.New("movement: step_speed must be positive")
	}
	if c.Proximity.PollIntervalMs <= 0 {
		return errors.New("proximity: poll_interval_ms must be positive")
	}
	return nil
}

// ResolveToken 返回 token；配置为空时读取 token_file（由外部登录流程写入）
func (c *Config) ResolveToken() (string, error) {
	if c.Token != "" {
		return c.Token, nil
	}
	if c.TokenFile == "" {
		return "", ErrMissingToken
	}
	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrMissingToken
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Reconnect.DelayMs) * time.Millisecond
}

func (c *Config) MoveInterval() time.Duration {
	return time.Duration(c.Movement.MoveIntervalMs) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Proximity.PollIntervalMs) * time.Millisecond
}
