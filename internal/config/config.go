// Package config loads and freezes the core's hyperparameters at startup:
// per spec §6, the core recognizes no environment variables on its own,
// so any host-injected values must be parsed once here, never read again
// mid-run.
//
// Grounded on stormlightlabs-baseball/internal/config/config.go's
// viper-backed Load/Get/MustLoad pattern.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the frozen set of hyperparameters and defaults the core reads
// at startup. Nothing in the pipeline re-reads the environment after Load.
type Config struct {
	Strength    StrengthConfig
	Blend       BlendConfig
	Calibration CalibrationConfig
	Decision    DecisionConfig
	Portfolio   PortfolioConfig
}

// StrengthConfig mirrors pkg/strength.Hyperparameters (spec §4.1).
type StrengthConfig struct {
	Xi            float64
	RhoPrior      float64
	GammaPrior    float64
	MaxIterations int
	L2Penalty     float64
}

// BlendConfig mirrors model.BlendCoefficients (spec §4.3).
type BlendConfig struct {
	Variant                string
	EntropyMin             float64
	EntropyMax             float64
	MarketDomModel         float64
	DrawBoostLeagueDefault float64
	SharpenTemperature     float64
	KellyEnabled           bool
}

// CalibrationConfig mirrors pkg/calibrator's minimum-sample and bin
// defaults (spec §4.4).
type CalibrationConfig struct {
	MinSamples int
	ECEBins    int
}

// DecisionConfig mirrors decision.Weights plus the threshold-learning
// defaults (spec §4.5).
type DecisionConfig struct {
	EVThreshold          float64
	EntropyPenalty       float64
	ContradictionPenalty float64
	MaxContradictions    int
	TargetHitRate        float64
	MinBucketSize         int
	UDSQuantileBuckets    int
}

// PortfolioConfig mirrors spec §4.6's bundle size and late-shock defaults.
type PortfolioConfig struct {
	BundleSize          int
	LateShockThreshold  float64
}

var globalConfig *Config

// Load reads configuration from configPath (or "config.toml" in the
// working directory when empty), falling back to the documented spec
// defaults for every unset key.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.football-prob-engine")
		v.AddConfigPath("/etc/football-prob-engine")
	}

	v.SetDefault("strength.xi", 0.0065)
	v.SetDefault("strength.rho_prior", -0.1)
	v.SetDefault("strength.gamma_prior", 0.3)
	v.SetDefault("strength.max_iterations", 500)
	v.SetDefault("strength.l2_penalty", 1e-4)

	v.SetDefault("blend.variant", "entropy-weighted")
	v.SetDefault("blend.entropy_min", 0.3)
	v.SetDefault("blend.entropy_max", 0.8)
	v.SetDefault("blend.market_dom_model", 0.2)
	v.SetDefault("blend.draw_boost_league_default", 0.15)
	v.SetDefault("blend.sharpen_temperature", 1.0/1.5)
	v.SetDefault("blend.kelly_enabled", true)

	v.SetDefault("calibration.min_samples", 200)
	v.SetDefault("calibration.ece_bins", 10)

	v.SetDefault("decision.ev_threshold", 0.0)
	v.SetDefault("decision.entropy_penalty", 0.05)
	v.SetDefault("decision.contradiction_penalty", 0.1)
	v.SetDefault("decision.max_contradictions", 2)
	v.SetDefault("decision.target_hit_rate", 0.38)
	v.SetDefault("decision.min_bucket_size", 50)
	v.SetDefault("decision.uds_quantile_buckets", 10)

	v.SetDefault("portfolio.bundle_size", 5)
	v.SetDefault("portfolio.late_shock_threshold", 0.15)

	v.AutomaticEnv()
	v.BindEnv("strength.xi", "FPE_STRENGTH_XI")
	v.BindEnv("strength.rho_prior", "FPE_STRENGTH_RHO_PRIOR")
	v.BindEnv("strength.gamma_prior", "FPE_STRENGTH_GAMMA_PRIOR")
	v.BindEnv("decision.ev_threshold", "FPE_DECISION_EV_THRESHOLD")
	v.BindEnv("portfolio.bundle_size", "FPE_PORTFOLIO_BUNDLE_SIZE")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		fmt.Fprintln(os.Stderr, "no config file found, using defaults and environment variables")
	}

	cfg := &Config{
		Strength: StrengthConfig{
			Xi:            v.GetFloat64("strength.xi"),
			RhoPrior:      v.GetFloat64("strength.rho_prior"),
			GammaPrior:    v.GetFloat64("strength.gamma_prior"),
			MaxIterations: v.GetInt("strength.max_iterations"),
			L2Penalty:     v.GetFloat64("strength.l2_penalty"),
		},
		Blend: BlendConfig{
			Variant:                v.GetString("blend.variant"),
			EntropyMin:             v.GetFloat64("blend.entropy_min"),
			EntropyMax:             v.GetFloat64("blend.entropy_max"),
			MarketDomModel:         v.GetFloat64("blend.market_dom_model"),
			DrawBoostLeagueDefault: v.GetFloat64("blend.draw_boost_league_default"),
			SharpenTemperature:     v.GetFloat64("blend.sharpen_temperature"),
			KellyEnabled:           v.GetBool("blend.kelly_enabled"),
		},
		Calibration: CalibrationConfig{
			MinSamples: v.GetInt("calibration.min_samples"),
			ECEBins:    v.GetInt("calibration.ece_bins"),
		},
		Decision: DecisionConfig{
			EVThreshold:          v.GetFloat64("decision.ev_threshold"),
			EntropyPenalty:       v.GetFloat64("decision.entropy_penalty"),
			ContradictionPenalty: v.GetFloat64("decision.contradiction_penalty"),
			MaxContradictions:    v.GetInt("decision.max_contradictions"),
			TargetHitRate:        v.GetFloat64("decision.target_hit_rate"),
			MinBucketSize:        v.GetInt("decision.min_bucket_size"),
			UDSQuantileBuckets:   v.GetInt("decision.uds_quantile_buckets"),
		},
		Portfolio: PortfolioConfig{
			BundleSize:         v.GetInt("portfolio.bundle_size"),
			LateShockThreshold: v.GetFloat64("portfolio.late_shock_threshold"),
		},
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the frozen global configuration; panics if Load has not run.
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded; call config.Load() first")
	}
	return globalConfig
}

// MustLoad loads configuration or panics.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
