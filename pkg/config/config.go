package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig 后端服务地址配置
type ServerConfig struct {
	APIBaseURL string `yaml:"api_base_url"` // REST 基础地址，例如 http://127.0.0.1:8000
	WSBaseURL  string `yaml:"ws_base_url"`  // WebSocket 基础地址，例如 ws://127.0.0.1:8000
}

// MarketConfig 行情订阅配置
type MarketConfig struct {
	Symbol       string `yaml:"symbol"`        // 交易对，例如 BTC-USDT
	Interval     string `yaml:"interval"`      // K 线周期，例如 1m
	KlineLimit   int    `yaml:"kline_limit"`   // 启动时拉取的 K 线快照条数
	WindowSize   int    `yaml:"window_size"`   // 本地保留的 K 线显示窗口（条）
	StrategyType string `yaml:"strategy_type"` // 策略类型，例如 deepseek
}

// PollConfig 各轮询器的周期（秒）
type PollConfig struct {
	PriceInterval    int `yaml:"price_interval"` // 行情兜底轮询周期
	BalanceInterval  int `yaml:"balance_interval"`
	TradesInterval   int `yaml:"trades_interval"`
	StrategyInterval int `yaml:"strategy_interval"`
	AnalysisInterval int `yaml:"analysis_interval"`
	KlineInterval    int `yaml:"kline_interval"` // K 线快照兜底刷新周期
}

// StreamConfig WebSocket 连接配置
type StreamConfig struct {
	ReconnectDelay   int `yaml:"reconnect_delay"`   // 重连固定延迟（秒），有效区间 1-5
	HandshakeTimeout int `yaml:"handshake_timeout"` // 握手超时（秒）
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Config 应用配置
type Config struct {
	Server ServerConfig `yaml:"server"`
	Market MarketConfig `yaml:"market"`
	Poll   PollConfig   `yaml:"poll"`
	Stream StreamConfig `yaml:"stream"`
	Log    LogConfig    `yaml:"log"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			APIBaseURL: "http://127.0.0.1:8000",
			WSBaseURL:  "ws://127.0.0.1:8000",
		},
		Market: MarketConfig{
			Symbol:       "BTC-USDT",
			Interval:     "1m",
			KlineLimit:   100,
			WindowSize:   120,
			StrategyType: "deepseek",
		},
		Poll: PollConfig{
			PriceInterval:    5,
			BalanceInterval:  5,
			TradesInterval:   10,
			StrategyInterval: 5,
			AnalysisInterval: 30,
			KlineInterval:    60,
		},
		Stream: StreamConfig{
			ReconnectDelay:   3,
			HandshakeTimeout: 10,
		},
		Log: LogConfig{
			Level:      "info",
			File:       "logs/dashboard.log",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Load 加载配置：默认值 <- 配置文件 <- 环境变量，逐层覆盖
func Load(filePath string) (*Config, error) {
	cfg := Default()

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败 %s: %w", filePath, err)
			}
			// 配置文件不存在时静默使用默认值，允许纯环境变量部署
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败 %s: %w", filePath, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

// applyEnv 用环境变量覆盖配置
func applyEnv(cfg *Config) {
	cfg.Server.APIBaseURL = getEnv("DASHBOARD_API_URL", cfg.Server.APIBaseURL)
	cfg.Server.WSBaseURL = getEnv("DASHBOARD_WS_URL", cfg.Server.WSBaseURL)
	cfg.Market.Symbol = getEnv("DASHBOARD_SYMBOL", cfg.Market.Symbol)
	cfg.Market.Interval = getEnv("DASHBOARD_INTERVAL", cfg.Market.Interval)
	cfg.Market.StrategyType = getEnv("DASHBOARD_STRATEGY_TYPE", cfg.Market.StrategyType)
	cfg.Market.KlineLimit = parseIntEnv("DASHBOARD_KLINE_LIMIT", cfg.Market.KlineLimit)
	cfg.Market.WindowSize = parseIntEnv("DASHBOARD_WINDOW_SIZE", cfg.Market.WindowSize)
	cfg.Stream.ReconnectDelay = parseIntEnv("DASHBOARD_RECONNECT_DELAY", cfg.Stream.ReconnectDelay)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Server.APIBaseURL == "" {
		return fmt.Errorf("server.api_base_url 未配置")
	}
	if c.Server.WSBaseURL == "" {
		return fmt.Errorf("server.ws_base_url 未配置")
	}
	if !strings.HasPrefix(c.Server.WSBaseURL, "ws://") && !strings.HasPrefix(c.Server.WSBaseURL, "wss://") {
		return fmt.Errorf("server.ws_base_url 必须以 ws:// 或 wss:// 开头: %s", c.Server.WSBaseURL)
	}
	if c.Market.Symbol == "" {
		return fmt.Errorf("market.symbol 未配置")
	}
	if c.Market.Interval == "" {
		return fmt.Errorf("market.interval 未配置")
	}
	if c.Market.KlineLimit <= 0 {
		return fmt.Errorf("market.kline_limit 必须大于 0")
	}
	if c.Market.WindowSize <= 0 {
		return fmt.Errorf("market.window_size 必须大于 0")
	}
	if c.Stream.ReconnectDelay < 1 || c.Stream.ReconnectDelay > 5 {
		return fmt.Errorf("stream.reconnect_delay 必须在 1 到 5 秒之间: %d", c.Stream.ReconnectDelay)
	}
	for name, v := range map[string]int{
		"poll.price_interval":    c.Poll.PriceInterval,
		"poll.balance_interval":  c.Poll.BalanceInterval,
		"poll.trades_interval":   c.Poll.TradesInterval,
		"poll.strategy_interval": c.Poll.StrategyInterval,
		"poll.analysis_interval": c.Poll.AnalysisInterval,
		"poll.kline_interval":    c.Poll.KlineInterval,
	} {
		if v <= 0 {
			return fmt.Errorf("%s 必须大于 0", name)
		}
	}
	return nil
}

// ReconnectDelayDuration 返回重连固定延迟
func (c *StreamConfig) ReconnectDelayDuration() time.Duration {
	return time.Duration(c.ReconnectDelay) * time.Second
}

// HandshakeTimeoutDuration 返回握手超时
func (c *StreamConfig) HandshakeTimeoutDuration() time.Duration {
	return time.Duration(c.HandshakeTimeout) * time.Second
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
