package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete startup configuration. Every component receives its
// own typed section; validation runs once at load time so bad thresholds fail
// fast instead of surfacing mid-run.
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Signals SignalConfig  `json:"signals" yaml:"signals"`
	Margin  MarginConfig  `json:"margin" yaml:"margin"`
	Capital CapitalConfig `json:"capital" yaml:"capital"`
	Rules   RulesConfig   `json:"rules" yaml:"rules"`
	Gate    GateConfig    `json:"gate" yaml:"gate"`
	Tracker TrackerConfig `json:"tracker" yaml:"tracker"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
}

// AccountConfig contains account initialization parameters.
type AccountConfig struct {
	ID             string  `json:"id" yaml:"id"`
	Currency       string  `json:"currency" yaml:"currency"`
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
}

// SignalConfig holds the z-score thresholds and the post-close re-entry
// quiescence windows. The win/loss asymmetry is strategy tuning, so both
// day-counts are configuration rather than logic.
type SignalConfig struct {
	EntryZ           float64 `json:"entry_z" yaml:"entry_z"`
	ExitZ            float64 `json:"exit_z" yaml:"exit_z"`
	StopZ            float64 `json:"stop_z" yaml:"stop_z"`
	CooldownDaysWin  int     `json:"cooldown_days_win" yaml:"cooldown_days_win"`
	CooldownDaysLoss int     `json:"cooldown_days_loss" yaml:"cooldown_days_loss"`
}

// MarginConfig carries the default per-direction collateral rates and trade
// size constraints applied to instruments without explicit metadata.
type MarginConfig struct {
	LongRate     float64 `json:"long_rate" yaml:"long_rate"`
	ShortRate    float64 `json:"short_rate" yaml:"short_rate"`
	LotSize      float64 `json:"lot_size" yaml:"lot_size"`
	MinimumTrade float64 `json:"minimum_trade" yaml:"minimum_trade"`
}

// CapitalConfig parameterizes the allocator. All ratios are fractions of
// initial capital, fixed at startup.
type CapitalConfig struct {
	ReserveRatio       float64 `json:"reserve_ratio" yaml:"reserve_ratio"`
	MaxPairFraction    float64 `json:"max_pair_fraction" yaml:"max_pair_fraction"`
	MinInvestmentRatio float64 `json:"min_investment_ratio" yaml:"min_investment_ratio"`
}

// RuleConfig parameterizes one risk rule.
type RuleConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	Priority     int     `json:"priority" yaml:"priority"`
	Threshold    float64 `json:"threshold" yaml:"threshold"`
	CooldownDays int     `json:"cooldown_days" yaml:"cooldown_days"`
}

// RulesConfig lists every rule in the engine. Portfolio rules first, then
// pair rules.
type RulesConfig struct {
	MaxLoss           RuleConfig `json:"max_loss" yaml:"max_loss"`
	PortfolioDrawdown RuleConfig `json:"portfolio_drawdown" yaml:"portfolio_drawdown"`
	HoldingTimeout    RuleConfig `json:"holding_timeout" yaml:"holding_timeout"`
	PairDrawdown      RuleConfig `json:"pair_drawdown" yaml:"pair_drawdown"`
	PositionAnomaly   RuleConfig `json:"position_anomaly" yaml:"position_anomaly"`
}

// GateConfig parameterizes the market-condition gate that suppresses new
// opens. OR logic: breaching either threshold closes the gate.
type GateConfig struct {
	Enabled       bool    `json:"enabled" yaml:"enabled"`
	MaxVolatility float64 `json:"max_volatility" yaml:"max_volatility"`
	MaxFearIndex  float64 `json:"max_fear_index" yaml:"max_fear_index"`
}

// TrackerConfig bounds the order tracker's memory and the fill queue.
type TrackerConfig struct {
	RetentionDays int `json:"retention_days" yaml:"retention_days"`
	FillQueueSize int `json:"fill_queue_size" yaml:"fill_queue_size"`
}

// JournalConfig selects the analytics backend.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON based on
// content) and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON.
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration, YAML for .yaml/.yml, JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks every section. Configuration errors are fatal at startup,
// never recoverable at runtime.
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("account.initial_capital must be positive")
	}

	s := c.Signals
	if s.ExitZ < 0 {
		return fmt.Errorf("signals.exit_z must be non-negative")
	}
	if s.EntryZ <= s.ExitZ {
		return fmt.Errorf("signals.entry_z (%v) must exceed exit_z (%v)", s.EntryZ, s.ExitZ)
	}
	if s.StopZ <= s.EntryZ {
		return fmt.Errorf("signals.stop_z (%v) must exceed entry_z (%v)", s.StopZ, s.EntryZ)
	}
	if s.CooldownDaysWin <= 0 || s.CooldownDaysLoss <= 0 {
		return fmt.Errorf("signals cooldown day-counts must be positive")
	}

	if c.Margin.LongRate <= 0 || c.Margin.ShortRate <= 0 {
		return fmt.Errorf("margin rates must be positive")
	}
	if c.Margin.LotSize <= 0 {
		return fmt.Errorf("margin.lot_size must be positive")
	}
	if c.Margin.MinimumTrade < 0 {
		return fmt.Errorf("margin.minimum_trade must be non-negative")
	}

	cap := c.Capital
	if cap.ReserveRatio < 0 || cap.ReserveRatio >= 1 {
		return fmt.Errorf("capital.reserve_ratio must be in [0, 1)")
	}
	if cap.MaxPairFraction <= 0 || cap.MaxPairFraction > 1 {
		return fmt.Errorf("capital.max_pair_fraction must be in (0, 1]")
	}
	if cap.MinInvestmentRatio < 0 || cap.MinInvestmentRatio >= 1 {
		return fmt.Errorf("capital.min_investment_ratio must be in [0, 1)")
	}

	rules := map[string]RuleConfig{
		"max_loss":           c.Rules.MaxLoss,
		"portfolio_drawdown": c.Rules.PortfolioDrawdown,
		"holding_timeout":    c.Rules.HoldingTimeout,
		"pair_drawdown":      c.Rules.PairDrawdown,
		"position_anomaly":   c.Rules.PositionAnomaly,
	}
	for name, r := range rules {
		if !r.Enabled {
			continue
		}
		if r.CooldownDays <= 0 {
			return fmt.Errorf("rules.%s.cooldown_days must be positive", name)
		}
		if name != "position_anomaly" && r.Threshold <= 0 {
			return fmt.Errorf("rules.%s.threshold must be positive", name)
		}
	}

	if c.Gate.Enabled {
		if c.Gate.MaxVolatility <= 0 || c.Gate.MaxFearIndex <= 0 {
			return fmt.Errorf("gate thresholds must be positive when enabled")
		}
	}

	if c.Tracker.RetentionDays <= 0 {
		return fmt.Errorf("tracker.retention_days must be positive")
	}
	if c.Tracker.FillQueueSize <= 0 {
		return fmt.Errorf("tracker.fill_queue_size must be positive")
	}

	switch c.Journal.Type {
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv' or 'sqlite'")
	}
	return nil
}

// Default returns a runnable baseline configuration.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:             "PAIR-001",
			Currency:       "USD",
			InitialCapital: 1_000_000,
		},
		Signals: SignalConfig{
			EntryZ:           1.2,
			ExitZ:            0.3,
			StopZ:            2.5,
			CooldownDaysWin:  5,
			CooldownDaysLoss: 15,
		},
		Margin: MarginConfig{
			LongRate:     0.6,
			ShortRate:    0.5,
			LotSize:      100,
			MinimumTrade: 100,
		},
		Capital: CapitalConfig{
			ReserveRatio:       0.2,
			MaxPairFraction:    0.25,
			MinInvestmentRatio: 0.01,
		},
		Rules: RulesConfig{
			MaxLoss:           RuleConfig{Enabled: true, Priority: 100, Threshold: 0.10, CooldownDays: 30},
			PortfolioDrawdown: RuleConfig{Enabled: true, Priority: 90, Threshold: 0.15, CooldownDays: 30},
			PositionAnomaly:   RuleConfig{Enabled: true, Priority: 100, CooldownDays: 1},
			PairDrawdown:      RuleConfig{Enabled: true, Priority: 80, Threshold: 0.15, CooldownDays: 10},
			HoldingTimeout:    RuleConfig{Enabled: true, Priority: 60, Threshold: 30, CooldownDays: 5},
		},
		Gate: GateConfig{
			Enabled:       true,
			MaxVolatility: 0.04,
			MaxFearIndex:  40,
		},
		Tracker: TrackerConfig{
			RetentionDays: 30,
			FillQueueSize: 1024,
		},
		Journal: JournalConfig{
			Type:       "csv",
			TradesFile: "./trades.csv",
			EquityFile: "./equity.csv",
		},
	}
}
