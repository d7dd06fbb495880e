package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML values like "15m" decode directly.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type DatabaseConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}

type RedemptionConfig struct {
	TokenTTL            Duration `toml:"token_ttl"`
	AllowedPegSizesML   []int64  `toml:"allowed_peg_sizes_ml"`
	BottleShelfLifeDays int      `toml:"bottle_shelf_life_days"`
}

type SweeperConfig struct {
	Enabled      bool     `toml:"enabled"`
	BatchSize    int      `toml:"batch_size"`
	PollInterval Duration `toml:"poll_interval"`
}

// Config is the full service configuration, loaded from an optional TOML
// file with environment variable overrides.
type Config struct {
	Environment string           `toml:"environment"`
	HTTP        HTTPConfig       `toml:"http"`
	Database    DatabaseConfig   `toml:"database"`
	Redemption  RedemptionConfig `toml:"redemption"`
	Sweeper     SweeperConfig    `toml:"sweeper"`
}

func Default() Config {
	return Config{
		Environment: "development",
		HTTP:        HTTPConfig{Addr: ":8080"},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file:storemybottle.db?_busy_timeout=5000",
		},
		Redemption: RedemptionConfig{
			TokenTTL:            Duration(15 * time.Minute),
			AllowedPegSizesML:   []int64{30, 45, 60},
			BottleShelfLifeDays: 30,
		},
		Sweeper: SweeperConfig{
			Enabled:      true,
			BatchSize:    100,
			PollInterval: Duration(30 * time.Second),
		},
	}
}

// Load builds a Config from defaults, an optional TOML file pointed at by
// SMB_CONFIG_FILE (or the given path), and environment overrides, in that
// order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("SMB_CONFIG_FILE")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("SMB_ENVIRONMENT")); v != "" {
		cfg.Environment = v
	}
	if v := strings.TrimSpace(os.Getenv("SMB_HTTP_ADDR")); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("SMB_DB_DRIVER")); v != "" {
		cfg.Database.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv("SMB_DB_DSN")); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("SMB_TOKEN_TTL")); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			cfg.Redemption.TokenTTL = Duration(parsed)
		}
	}
	if v := strings.TrimSpace(os.Getenv("SMB_SWEEPER_ENABLED")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Sweeper.Enabled = parsed
		}
	}
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Redemption.TokenTTL <= 0 {
		return fmt.Errorf("redemption token_ttl must be positive")
	}
	if len(c.Redemption.AllowedPegSizesML) == 0 {
		return fmt.Errorf("redemption allowed_peg_sizes_ml must not be empty")
	}
	for _, size := range c.Redemption.AllowedPegSizesML {
		if size <= 0 {
			return fmt.Errorf("peg size %d is not positive", size)
		}
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// PegSizeAllowed reports whether the requested pour size is in the policy set.
func (c Config) PegSizeAllowed(sizeML int64) bool {
	for _, allowed := range c.Redemption.AllowedPegSizesML {
		if allowed == sizeML {
			return true
		}
	}
	return false
}

// BottleShelfLife returns how long a confirmed bottle stays redeemable.
func (c Config) BottleShelfLife() time.Duration {
	days := c.Redemption.BottleShelfLifeDays
	if days <= 0 {
		days = Default().Redemption.BottleShelfLifeDays
	}
	return time.Duration(days) * 24 * time.Hour
}
