// Package config defines all configuration for the market maker.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via MAKER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	API       APIConfig       `mapstructure:"api"`
	Market    MarketConfig    `mapstructure:"market"`
	Warmup    WarmupConfig    `mapstructure:"warmup"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Quote     QuoteConfig     `mapstructure:"quote"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// WalletConfig holds the Ethereum wallet used for signing orders.
// PrivateKey signs L1 (EIP-712) auth and derives L2 API keys.
// FunderAddress is the on-chain address that funds orders (may differ from signer if using a proxy).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// APIConfig holds venue API endpoints and optional pre-derived L2 credentials.
// If ApiKey/Secret/Passphrase are empty, the bot derives them via L1 auth on startup.
type APIConfig struct {
	CLOBBaseURL string `mapstructure:"clob_base_url"`
	WSMarketURL string `mapstructure:"ws_market_url"`
	WSUserURL   string `mapstructure:"ws_user_url"`
	ApiKey      string `mapstructure:"api_key"`
	Secret      string `mapstructure:"secret"`
	Passphrase  string `mapstructure:"passphrase"`
}

// MarketConfig identifies the single market this process trades and its
// active window. StartTimeMs and ResolveTimeMs bound the risk engine's time
// factor, which shrinks quoting size as resolution approaches.
type MarketConfig struct {
	ConditionID   string `mapstructure:"condition_id"`
	AssetIDYes    string `mapstructure:"asset_id_yes"`
	AssetIDNo     string `mapstructure:"asset_id_no"`
	StartTimeMs   int64  `mapstructure:"start_time_ms"`
	ResolveTimeMs int64  `mapstructure:"resolve_time_ms"`
}

// WarmupConfig tunes the calibration phase that runs before quoting starts:
// the engine samples the book until it has enough return history to trust
// its volatility estimate, or until MaxWarmup elapses.
type WarmupConfig struct {
	SampleInterval     time.Duration `mapstructure:"sample_interval"`
	MinReturnSamples   int           `mapstructure:"min_return_samples"`
	MaxWarmup          time.Duration `mapstructure:"max_warmup"`
	TauFast            time.Duration `mapstructure:"tau_fast"`
	TauSlow            time.Duration `mapstructure:"tau_slow"`
	MarkoutHorizon1    time.Duration `mapstructure:"markout_horizon_1"`
	MarkoutHorizon2    time.Duration `mapstructure:"markout_horizon_2"`
	MarkoutWeight1     float64       `mapstructure:"markout_weight_1"`
	MarkoutWeight2     float64       `mapstructure:"markout_weight_2"`
}

// RiskConfig parameterizes the volatility/toxicity/sizing engine — the
// Kelly-style bankroll split, the gamma/lambda risk-scaling terms, and the
// asymmetric volatility smoothing constants.
type RiskConfig struct {
	BankrollUSD     float64       `mapstructure:"bankroll_usd"`
	NumConcurrent   int           `mapstructure:"num_concurrent_plays"`
	EtaTime         float64       `mapstructure:"eta_time"`
	SlippageBuffer  float64       `mapstructure:"slippage_buffer"`
	GammaA          float64       `mapstructure:"gamma_a"`
	GammaMax        float64       `mapstructure:"gamma_max"`
	LambdaMin       float64       `mapstructure:"lambda_min"`
	LambdaMax       float64       `mapstructure:"lambda_max"`
	BetaP           float64       `mapstructure:"beta_p"`
	AlphaU          float64       `mapstructure:"alpha_u"`
	URef            float64       `mapstructure:"u_ref"`
	WeightA         float64       `mapstructure:"weight_a"`
	WeightL         float64       `mapstructure:"weight_l"`
	StructScale     float64       `mapstructure:"struct_scale"`
	ToxicityIMax    float64       `mapstructure:"toxicity_i_max"`
	ToxicityWeight  float64       `mapstructure:"toxicity_weight"`
	SigmaWeight     float64       `mapstructure:"sigma_weight"`
	SigmaExponent   float64       `mapstructure:"sigma_exponent"`
	SigmaMax        float64       `mapstructure:"sigma_max"`
	SigmaTauUp      time.Duration `mapstructure:"sigma_tau_up"`
	SigmaTauDown    time.Duration `mapstructure:"sigma_tau_down"`
}

// QuoteConfig tunes the quoter and ladder builder.
type QuoteConfig struct {
	RiskSpreadCoeff      float64       `mapstructure:"risk_spread_coeff"`
	Kappa0               float64       `mapstructure:"kappa_0"`
	RateRefPerSec        float64       `mapstructure:"rate_ref_per_sec"`
	MinHalfSpreadProb    float64       `mapstructure:"min_half_spread_prob"`
	MaxHalfSpreadLogit   float64       `mapstructure:"max_half_spread_logit"`
	LadderDecay          float64       `mapstructure:"ladder_decay"`
	LadderStepMult       float64       `mapstructure:"ladder_step_mult"`
	LadderMinStepLogit   float64       `mapstructure:"ladder_min_step_logit"`
	LadderMaxLevels      int           `mapstructure:"ladder_max_levels"`
	MinOrderSize         float64       `mapstructure:"min_order_size"`
	MaxOrderNotionalSide float64       `mapstructure:"max_order_notional_side"`
	RefreshInterval      time.Duration `mapstructure:"refresh_interval"`
	PriceMoveRequoteTicks int          `mapstructure:"price_move_requote_ticks"`
}

// TelemetryConfig sets where persisted state (event log, calibration
// snapshot) lives on disk.
type TelemetryConfig struct {
	EventLogPath      string `mapstructure:"event_log_path"`
	CalibrationPath   string `mapstructure:"calibration_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the optional read-only status dashboard.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: MAKER_PRIVATE_KEY, MAKER_API_KEY,
// MAKER_API_SECRET, MAKER_PASSPHRASE, MAKER_DRY_RUN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("MAKER_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("MAKER_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("MAKER_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("MAKER_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if os.Getenv("MAKER_DRY_RUN") == "true" || os.Getenv("MAKER_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// setDefaults mirrors the numeric defaults of the reference implementation
// this engine's formulas are ported from, so a minimal YAML file (just
// wallet/api/market) still produces a sane, previously-calibrated bot.
func setDefaults(v *viper.Viper) {
	v.SetDefault("warmup.sample_interval", 5*time.Second)
	v.SetDefault("warmup.min_return_samples", 360)
	v.SetDefault("warmup.max_warmup", 2*time.Hour)
	v.SetDefault("warmup.tau_fast", 30*time.Second)
	v.SetDefault("warmup.tau_slow", 30*time.Minute)
	v.SetDefault("warmup.markout_horizon_1", 10*time.Second)
	v.SetDefault("warmup.markout_horizon_2", 60*time.Second)
	v.SetDefault("warmup.markout_weight_1", 0.6)
	v.SetDefault("warmup.markout_weight_2", 0.4)

	v.SetDefault("risk.bankroll_usd", 50.0)
	v.SetDefault("risk.num_concurrent_plays", 3)
	v.SetDefault("risk.eta_time", 0.5)
	v.SetDefault("risk.slippage_buffer", 0.10)
	v.SetDefault("risk.gamma_a", 1.0)
	v.SetDefault("risk.gamma_max", 50.0)
	v.SetDefault("risk.lambda_min", 0.8)
	v.SetDefault("risk.lambda_max", 2.0)
	v.SetDefault("risk.beta_p", 0.7)
	v.SetDefault("risk.alpha_u", 0.5)
	v.SetDefault("risk.u_ref", 50.0)
	v.SetDefault("risk.weight_a", 1.0)
	v.SetDefault("risk.weight_l", 1.0)
	v.SetDefault("risk.struct_scale", 1.0)
	v.SetDefault("risk.toxicity_i_max", 3.0)
	v.SetDefault("risk.toxicity_weight", 1.0)
	v.SetDefault("risk.sigma_weight", 1.0)
	v.SetDefault("risk.sigma_exponent", 1.4)
	v.SetDefault("risk.sigma_max", 6.0)
	v.SetDefault("risk.sigma_tau_up", 10*time.Second)
	v.SetDefault("risk.sigma_tau_down", 90*time.Second)

	v.SetDefault("quote.risk_spread_coeff", 0.2)
	v.SetDefault("quote.kappa_0", 1.0)
	v.SetDefault("quote.rate_ref_per_sec", 0.05)
	v.SetDefault("quote.min_half_spread_prob", 0.01)
	v.SetDefault("quote.max_half_spread_logit", 1.5)
	v.SetDefault("quote.ladder_decay", 0.8)
	v.SetDefault("quote.ladder_step_mult", 0.5)
	v.SetDefault("quote.ladder_min_step_logit", 0.05)
	v.SetDefault("quote.ladder_max_levels", 5)
	v.SetDefault("quote.min_order_size", 1.0)
	v.SetDefault("quote.max_order_notional_side", 100.0)
	v.SetDefault("quote.refresh_interval", 2*time.Second)
	v.SetDefault("quote.price_move_requote_ticks", 1)

	v.SetDefault("telemetry.event_log_path", "./data/mm_events.jsonl")
	v.SetDefault("telemetry.calibration_path", "./data/warm_calibration.json")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set MAKER_PRIVATE_KEY)")
	}
	if c.Wallet.ChainID == 0 {
		return fmt.Errorf("wallet.chain_id is required (137 for mainnet)")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (POLY_PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		return fmt.Errorf("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.Market.ConditionID == "" {
		return fmt.Errorf("market.condition_id is required")
	}
	if c.Market.AssetIDYes == "" || c.Market.AssetIDNo == "" {
		return fmt.Errorf("market.asset_id_yes and market.asset_id_no are required")
	}
	if c.Risk.BankrollUSD <= 0 {
		return fmt.Errorf("risk.bankroll_usd must be > 0")
	}
	if c.Risk.NumConcurrent <= 0 {
		return fmt.Errorf("risk.num_concurrent_plays must be > 0")
	}
	if c.Quote.LadderMaxLevels <= 0 {
		return fmt.Errorf("quote.ladder_max_levels must be > 0")
	}
	if c.Quote.MaxOrderNotionalSide <= 0 {
		return fmt.Errorf("quote.max_order_notional_side must be > 0")
	}
	return nil
}
