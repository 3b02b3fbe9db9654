// Package config loads the Ringscope configuration.
//
// The tier default is chosen first, then an optional YAML file is laid
// over it, then RINGSCOPE_* environment variables win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/ringscope/internal/domain"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RINGSCOPE_"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load builds the configuration. path may be empty.
func Load(path string) (*domain.Config, error) {
	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		data = b
	}

	tier, err := resolveTier(data)
	if err != nil {
		return nil, err
	}

	cfg := domain.DefaultConfig()
	if tier == domain.TierPro {
		cfg = domain.ProConfig()
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	cfg.Tier = tier

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveTier picks the tier from the environment, then the file.
func resolveTier(data []byte) (domain.Tier, error) {
	tier := domain.TierCommunity
	if len(data) > 0 {
		var head struct {
			Tier domain.Tier `yaml:"tier"`
		}
		if err := yaml.Unmarshal(data, &head); err != nil {
			return "", fmt.Errorf("failed to parse config file: %w", err)
		}
		if head.Tier != "" {
			tier = head.Tier
		}
	}
	if v := os.Getenv(EnvPrefix + "TIER"); v != "" {
		tier = domain.Tier(strings.ToLower(v))
	}

	switch tier {
	case domain.TierCommunity, domain.TierPro:
		return tier, nil
	default:
		return "", fmt.Errorf("%w: unknown tier %q", ErrInvalidConfig, tier)
	}
}

func applyEnv(cfg *domain.Config) error {
	setString(&cfg.Server.Host, "HOST")
	if err := setInt(&cfg.Server.Port, "PORT"); err != nil {
		return err
	}

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	if os.Getenv(EnvPrefix+"DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}

	setString(&cfg.Repository.Driver, "DB_DRIVER")
	setString(&cfg.Repository.SQLitePath, "DB_PATH")
	setString(&cfg.Repository.PostgresHost, "POSTGRES_HOST")
	if err := setInt(&cfg.Repository.PostgresPort, "POSTGRES_PORT"); err != nil {
		return err
	}
	setString(&cfg.Repository.PostgresUser, "POSTGRES_USER")
	setString(&cfg.Repository.PostgresPassword, "POSTGRES_PASSWORD")
	setString(&cfg.Repository.PostgresDB, "POSTGRES_DB")
	setString(&cfg.Repository.PostgresSSLMode, "POSTGRES_SSLMODE")

	setString(&cfg.Cache.Type, "CACHE")
	setString(&cfg.Cache.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Cache.RedisPassword, "REDIS_PASSWORD")

	setString(&cfg.EventBus.Type, "BUS")
	setString(&cfg.EventBus.NATSUrl, "NATS_URL")
	setString(&cfg.EventBus.NATSToken, "NATS_TOKEN")

	if v := os.Getenv(EnvPrefix + "PROJECTION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %sPROJECTION_TTL: %v", ErrInvalidConfig, EnvPrefix, err)
		}
		cfg.View.ProjectionTTL = d
	}
	if v := os.Getenv(EnvPrefix + "TRACING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sTRACING: %v", ErrInvalidConfig, EnvPrefix, err)
		}
		cfg.Tracing.Enabled = b
	}
	return nil
}

// Validate checks values that would fail later at startup.
func Validate(cfg *domain.Config) error {
	var problems []string
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server port %d out of range", cfg.Server.Port))
	}
	if cfg.View.MinZoom <= 0 {
		problems = append(problems, "view.minZoom must be positive")
	}
	if cfg.View.MaxZoom < cfg.View.MinZoom {
		problems = append(problems, "view.maxZoom must not be below view.minZoom")
	}
	if cfg.View.TooltipOffset < 0 {
		problems = append(problems, "view.tooltipOffset must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s%s: %v", ErrInvalidConfig, EnvPrefix, key, err)
	}
	*dst = n
	return nil
}
