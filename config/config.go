// Package config loads runtime configuration from defaults, an optional
// ladder.yaml file, and LADDER_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pyran19/multi-account/rating"
)

type Config struct {
	// CacheDir is the persistent result cache directory. Always explicit;
	// the engine never writes relative to an implicit working directory.
	CacheDir string `mapstructure:"cache-dir"`
	// ResultsDB is the sqlite file for recorded simulation experiments.
	ResultsDB string `mapstructure:"results-db"`

	RatingStep int     `mapstructure:"rating-step"`
	KCoeff     float64 `mapstructure:"k-coeff"`
	Mu         float64 `mapstructure:"mu"`

	Threads int    `mapstructure:"threads"`
	Seed    uint64 `mapstructure:"seed"`
	Debug   bool   `mapstructure:"debug"`
}

// Load reads configuration. configPath optionally points at an explicit
// config file; otherwise ./ladder.yaml is used when present.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetDefault("cache-dir", "results/cache")
	v.SetDefault("results-db", "results/experiments.db")
	v.SetDefault("rating-step", rating.DefaultStep)
	v.SetDefault("k-coeff", rating.DefaultK)
	v.SetDefault("mu", float64(rating.DefaultMu))
	v.SetDefault("threads", 0)
	v.SetDefault("seed", 0)
	v.SetDefault("debug", false)

	v.SetEnvPrefix("ladder")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("ladder")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		var nf viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Parameters builds the solver parameter set, validating the slope and step.
func (c *Config) Parameters() (rating.Parameters, error) {
	return rating.New(c.RatingStep, c.KCoeff, c.Mu)
}
