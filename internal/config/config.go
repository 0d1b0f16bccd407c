// Package config loads the daemon configuration: where schedule state lives,
// per-tier tuning, and the declared errands.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"errands/internal/domain"
)

// ErrandSpec declares one errand in the config file. Type selects the
// callable builder ("shell" or "http"); Params is passed to it verbatim.
type ErrandSpec struct {
	Name    string         `mapstructure:"name"`
	Cron    string         `mapstructure:"cron"`
	Tier    string         `mapstructure:"tier"`
	Type    string         `mapstructure:"type"`
	Timeout time.Duration  `mapstructure:"timeout"`
	Params  map[string]any `mapstructure:"params"`
}

type Config struct {
	// BaseDir is the directory holding persisted schedule state. It is
	// shared by all three tier daemons.
	BaseDir string `mapstructure:"base_dir"`

	// StatusAddr maps a lower-case tier name to its status server listen
	// address. A missing entry disables the server for that tier.
	StatusAddr map[string]string `mapstructure:"status_addr"`

	// Workers overrides the executor pool size per lower-case tier name.
	Workers map[string]int `mapstructure:"workers"`

	Errands []ErrandSpec `mapstructure:"errands"`
}

// Load reads and validates the YAML config at path.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %v", domain.ErrConfiguration, path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", domain.ErrConfiguration, path, err)
	}

	if cfg.BaseDir == "" {
		return Config{}, fmt.Errorf("%w: base_dir is required", domain.ErrConfiguration)
	}
	for _, spec := range cfg.Errands {
		if spec.Name == "" {
			return Config{}, fmt.Errorf("%w: errand without a name", domain.ErrConfiguration)
		}
		if _, err := domain.ParseTier(spec.Tier); err != nil {
			return Config{}, fmt.Errorf("errand %s: %w", spec.Name, err)
		}
	}
	return cfg, nil
}

func (c Config) StatusAddrFor(tier domain.Tier) string {
	return c.StatusAddr[strings.ToLower(string(tier))]
}

// WorkersFor returns the configured pool size for the tier, or 0 when the
// default should apply.
func (c Config) WorkersFor(tier domain.Tier) int {
	return c.Workers[strings.ToLower(string(tier))]
}
