package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Provider string `yaml:"provider"` // LOCAL, REMOTE, or MOCK
	Twitter  struct {
		BaseURL       string `yaml:"base_url"`
		APIKeyEnv     string `yaml:"api_key_env"`
		MaxTweets     int    `yaml:"max_tweets"`
		MinIntervalMS int    `yaml:"min_interval_ms"`
		TimeoutSec    int    `yaml:"timeout_sec"`
	} `yaml:"twitter"`
	Market struct {
		BaseURL       string `yaml:"base_url"`
		MinIntervalMS int    `yaml:"min_interval_ms"`
		TimeoutSec    int    `yaml:"timeout_sec"`
	} `yaml:"market"`
	Directory struct {
		URL        string `yaml:"url"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"directory"`
	LLM struct {
		Enabled        bool   `yaml:"enabled"`
		BaseURL        string `yaml:"base_url"`
		Model          string `yaml:"model"`
		APIKeyEnv      string `yaml:"api_key_env"`
		BatchSize      int    `yaml:"batch_size"`
		RequestsPerMin int    `yaml:"requests_per_min"`
		TimeoutSec     int    `yaml:"timeout_sec"`
	} `yaml:"llm"`
	Pipeline struct {
		TimelineMonths   int    `yaml:"timeline_months"`
		BatchSize        int    `yaml:"batch_size"`
		CacheTTLHours    int    `yaml:"cache_ttl_hours"`
		BenchmarkSymbol  string `yaml:"benchmark_symbol"`
		HitRatioPolicy   string `yaml:"hit_ratio_policy"` // PER_TRADE_ALPHA or FIXED_BENCHMARK
		IncludeDividends bool   `yaml:"include_dividends"`
	} `yaml:"pipeline"`
	Server struct {
		Port       int    `yaml:"port"`
		RemoteBase string `yaml:"remote_base"`
	} `yaml:"server"`
}

func (c *Config) Validate() error {
	switch c.Provider {
	case "LOCAL", "REMOTE", "MOCK":
	default:
		return fmt.Errorf("invalid provider '%s': must be 'LOCAL', 'REMOTE', or 'MOCK'", c.Provider)
	}
	if c.Provider == "REMOTE" && c.Server.RemoteBase == "" {
		return errors.New("server.remote_base required for REMOTE provider")
	}
	if c.Pipeline.TimelineMonths <= 0 {
		return fmt.Errorf("pipeline.timeline_months must be positive, got %d", c.Pipeline.TimelineMonths)
	}
	switch c.Pipeline.HitRatioPolicy {
	case "PER_TRADE_ALPHA", "FIXED_BENCHMARK":
	default:
		return fmt.Errorf("pipeline.hit_ratio_policy must be 'PER_TRADE_ALPHA' or 'FIXED_BENCHMARK', got '%s'", c.Pipeline.HitRatioPolicy)
	}
	if c.LLM.Enabled && c.LLM.Model == "" {
		return errors.New("llm.model required when llm.enabled is true")
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	applyDefaults(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Provider == "" {
		c.Provider = "LOCAL"
	}
	if c.Twitter.BaseURL == "" {
		c.Twitter.BaseURL = "https://api.twitterapi.io"
	}
	if c.Twitter.APIKeyEnv == "" {
		c.Twitter.APIKeyEnv = "TWITTER_API_KEY"
	}
	if c.Twitter.MaxTweets == 0 {
		c.Twitter.MaxTweets = 3000
	}
	if c.Twitter.MinIntervalMS == 0 {
		c.Twitter.MinIntervalMS = 500
	}
	if c.Twitter.TimeoutSec == 0 {
		c.Twitter.TimeoutSec = 10
	}
	if c.Market.BaseURL == "" {
		c.Market.BaseURL = "http://localhost:8000"
	}
	if c.Market.MinIntervalMS == 0 {
		c.Market.MinIntervalMS = 200
	}
	if c.Market.TimeoutSec == 0 {
		c.Market.TimeoutSec = 10
	}
	if c.Directory.URL == "" {
		c.Directory.URL = "https://www.sec.gov/files/company_tickers.json"
	}
	if c.Directory.TimeoutSec == 0 {
		c.Directory.TimeoutSec = 30
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.deepseek.com"
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = "DEEPSEEK_API_KEY"
	}
	if c.LLM.BatchSize == 0 {
		c.LLM.BatchSize = 20
	}
	if c.LLM.RequestsPerMin == 0 {
		c.LLM.RequestsPerMin = 50
	}
	if c.LLM.TimeoutSec == 0 {
		c.LLM.TimeoutSec = 30
	}
	if c.Pipeline.TimelineMonths == 0 {
		c.Pipeline.TimelineMonths = 12
	}
	if c.Pipeline.BatchSize == 0 {
		c.Pipeline.BatchSize = 50
	}
	if c.Pipeline.CacheTTLHours == 0 {
		c.Pipeline.CacheTTLHours = 24
	}
	if c.Pipeline.BenchmarkSymbol == "" {
		c.Pipeline.BenchmarkSymbol = "SPY"
	}
	if c.Pipeline.HitRatioPolicy == "" {
		c.Pipeline.HitRatioPolicy = "PER_TRADE_ALPHA"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8002
	}
}
