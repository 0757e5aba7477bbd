package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	CachePath   string `mapstructure:"cache_path"`
	TradingPath string `mapstructure:"trading_path"`
}

type OandaConfig struct {
	APIKey      string `mapstructure:"api_key"`
	AccountID   string `mapstructure:"account_id"`
	Environment string `mapstructure:"environment"`
	BaseURL     string `mapstructure:"base_url"`
}

type BitunixConfig struct {
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
}

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Oanda    OandaConfig    `mapstructure:"oanda"`
	Bitunix  BitunixConfig  `mapstructure:"bitunix"`
}

// Load reads the YAML config file, layering BROKERD_* environment variables
// over it, then applies defaults and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BROKERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Database.CachePath == "" {
		c.Database.CachePath = "data/market.db"
	}
	if c.Database.TradingPath == "" {
		c.Database.TradingPath = "data/trading.db"
	}
	if c.Oanda.Environment == "" {
		c.Oanda.Environment = "practice"
	}
}

func validate(c *Config) error {
	switch c.Oanda.Environment {
	case "practice", "live":
	default:
		return fmt.Errorf("oanda.environment must be practice or live, got %q", c.Oanda.Environment)
	}
	if c.Database.CachePath == c.Database.TradingPath {
		return fmt.Errorf("database.cache_path and database.trading_path must differ")
	}
	return nil
}
