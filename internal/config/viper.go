package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// MatchingConfig externalizes every scoring weight and threshold of the
// reconciliation engine. None of these values may be hard-coded downstream.
type MatchingConfig struct {
	ExactReferenceWeight float64 `mapstructure:"exact_reference_weight" yaml:"exact_reference_weight"`
	TightBandPct         float64 `mapstructure:"tight_band_pct" yaml:"tight_band_pct"`
	TightBandWeight      float64 `mapstructure:"tight_band_weight" yaml:"tight_band_weight"`
	LooseBandPct         float64 `mapstructure:"loose_band_pct" yaml:"loose_band_pct"`
	LooseBandWeight      float64 `mapstructure:"loose_band_weight" yaml:"loose_band_weight"`
	ExactPartnerWeight   float64 `mapstructure:"exact_partner_weight" yaml:"exact_partner_weight"`
	FuzzyPartnerWeight   float64 `mapstructure:"fuzzy_partner_weight" yaml:"fuzzy_partner_weight"`
	FuzzyRatioThreshold  float64 `mapstructure:"fuzzy_ratio_threshold" yaml:"fuzzy_ratio_threshold"`
	DateWindowWeight     float64 `mapstructure:"date_window_weight" yaml:"date_window_weight"`
	GraceDays            int     `mapstructure:"grace_days" yaml:"grace_days"`
	AutoMatchThreshold   float64 `mapstructure:"auto_match_threshold" yaml:"auto_match_threshold"`
	SuggestThreshold     float64 `mapstructure:"suggest_threshold" yaml:"suggest_threshold"`
	AmbiguityMargin      float64 `mapstructure:"ambiguity_margin" yaml:"ambiguity_margin"`
	MaxCandidates        int     `mapstructure:"max_candidates" yaml:"max_candidates"`
	RetryLimit           int     `mapstructure:"retry_limit" yaml:"retry_limit"`
	Workers              int     `mapstructure:"workers" yaml:"workers"`
	BalanceEpsilon       string  `mapstructure:"balance_epsilon" yaml:"balance_epsilon"`
	AliasFile            string  `mapstructure:"alias_file" yaml:"alias_file"`
}

// Config represents the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Database struct {
		DSN string `mapstructure:"dsn" yaml:"-"` // never serialize credentials
	} `mapstructure:"database" yaml:"database"`

	HTTP struct {
		Addr           string   `mapstructure:"addr" yaml:"addr"`
		AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	} `mapstructure:"http" yaml:"http"`

	Matching MatchingConfig `mapstructure:"matching" yaml:"matching"`
}

// Load initializes Viper configuration with hierarchical loading:
// defaults, then an optional yaml config file, then BANKRECON_* environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.bankrecon")
	v.AddConfigPath(".bankrecon")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BANKRECON")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
		// No config file is fine, defaults and env vars apply.
	}

	if err := v.BindEnv("database.dsn", "DATABASE_URL"); err != nil {
		Logger.Warnf("failed to bind DATABASE_URL: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// DefaultMatching returns the matching configuration with all defaults
// applied, for callers that do not go through Load.
func DefaultMatching() MatchingConfig {
	return MatchingConfig{
		ExactReferenceWeight: 60,
		TightBandPct:         0.5,
		TightBandWeight:      30,
		LooseBandPct:         5,
		LooseBandWeight:      15,
		ExactPartnerWeight:   20,
		FuzzyPartnerWeight:   10,
		FuzzyRatioThreshold:  0.82,
		DateWindowWeight:     10,
		GraceDays:            30,
		AutoMatchThreshold:   90,
		SuggestThreshold:     70,
		AmbiguityMargin:      5,
		MaxCandidates:        20,
		RetryLimit:           3,
		Workers:              4,
		BalanceEpsilon:       "0.05",
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000"})

	m := DefaultMatching()
	v.SetDefault("matching.exact_reference_weight", m.ExactReferenceWeight)
	v.SetDefault("matching.tight_band_pct", m.TightBandPct)
	v.SetDefault("matching.tight_band_weight", m.TightBandWeight)
	v.SetDefault("matching.loose_band_pct", m.LooseBandPct)
	v.SetDefault("matching.loose_band_weight", m.LooseBandWeight)
	v.SetDefault("matching.exact_partner_weight", m.ExactPartnerWeight)
	v.SetDefault("matching.fuzzy_partner_weight", m.FuzzyPartnerWeight)
	v.SetDefault("matching.fuzzy_ratio_threshold", m.FuzzyRatioThreshold)
	v.SetDefault("matching.date_window_weight", m.DateWindowWeight)
	v.SetDefault("matching.grace_days", m.GraceDays)
	v.SetDefault("matching.auto_match_threshold", m.AutoMatchThreshold)
	v.SetDefault("matching.suggest_threshold", m.SuggestThreshold)
	v.SetDefault("matching.ambiguity_margin", m.AmbiguityMargin)
	v.SetDefault("matching.max_candidates", m.MaxCandidates)
	v.SetDefault("matching.retry_limit", m.RetryLimit)
	v.SetDefault("matching.workers", m.Workers)
	v.SetDefault("matching.balance_epsilon", m.BalanceEpsilon)
	v.SetDefault("matching.alias_file", "")
}

func validate(cfg *Config) error {
	m := cfg.Matching
	if m.AutoMatchThreshold < 0 || m.AutoMatchThreshold > 100 {
		return fmt.Errorf("matching.auto_match_threshold must be in [0,100], got %v", m.AutoMatchThreshold)
	}
	if m.AmbiguityMargin < 0 {
		return fmt.Errorf("matching.ambiguity_margin must not be negative, got %v", m.AmbiguityMargin)
	}
	if m.TightBandPct > m.LooseBandPct {
		return fmt.Errorf("matching.tight_band_pct (%v) must not exceed loose_band_pct (%v)", m.TightBandPct, m.LooseBandPct)
	}
	if m.MaxCandidates <= 0 {
		return fmt.Errorf("matching.max_candidates must be positive, got %d", m.MaxCandidates)
	}
	if m.Workers <= 0 {
		return fmt.Errorf("matching.workers must be positive, got %d", m.Workers)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug|info|warn|error, got %q", cfg.Log.Level)
	}
	return nil
}
