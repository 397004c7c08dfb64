package scoring

import (
	"fmt"
	"math"

	"riskwatch/internal/domain"
)

// Weights splits the composite across the four source components. They must
// sum to 1.0; validation failures are fatal at startup, not per-call.
type Weights struct {
	News   float64 `yaml:"news"`
	Breach float64 `yaml:"breach"`
	Filing float64 `yaml:"filing"`
	Cyber  float64 `yaml:"cyber"`
}

// Thresholds map a composite score onto a risk level. They must be strictly
// descending: critical > high > medium.
type Thresholds struct {
	Critical float64 `yaml:"critical"`
	High     float64 `yaml:"high"`
	Medium   float64 `yaml:"medium"`
}

// Config carries every tunable of the calculator. All fields have working
// defaults; operators override them through the YAML tuning file.
type Config struct {
	Weights           Weights    `yaml:"weights"`
	CriticalDecayDays float64    `yaml:"critical_decay_days"`
	HighDecayDays     float64    `yaml:"high_decay_days"`
	MaxAlertAgeDays   float64    `yaml:"max_alert_age_days"`
	Thresholds        Thresholds `yaml:"thresholds"`
	StormWindowDays   float64    `yaml:"storm_window_days"`
	StormTriggerCount int        `yaml:"storm_trigger_count"`
}

// DefaultConfig returns the tuning the engine ships with.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			News:   0.20,
			Breach: 0.35,
			Filing: 0.15,
			Cyber:  0.30,
		},
		CriticalDecayDays: 30,
		HighDecayDays:     60,
		MaxAlertAgeDays:   365,
		Thresholds: Thresholds{
			Critical: 75,
			High:     50,
			Medium:   25,
		},
		StormWindowDays:   7,
		StormTriggerCount: 5,
	}
}

// Validate rejects configurations the calculator cannot score with.
func (c Config) Validate() error {
	sum := c.Weights.News + c.Weights.Breach + c.Weights.Filing + c.Weights.Cyber
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scoring config: source weights sum to %.4f, want 1.0", sum)
	}
	if c.Weights.News < 0 || c.Weights.Breach < 0 || c.Weights.Filing < 0 || c.Weights.Cyber < 0 {
		return fmt.Errorf("scoring config: source weights must be non-negative")
	}
	if !(c.Thresholds.Critical > c.Thresholds.High && c.Thresholds.High > c.Thresholds.Medium && c.Thresholds.Medium > 0) {
		return fmt.Errorf("scoring config: thresholds out of order: critical=%.1f high=%.1f medium=%.1f",
			c.Thresholds.Critical, c.Thresholds.High, c.Thresholds.Medium)
	}
	if c.CriticalDecayDays <= 0 || c.HighDecayDays <= 0 {
		return fmt.Errorf("scoring config: decay windows must be positive")
	}
	if c.MaxAlertAgeDays <= c.lowDecayDays() {
		return fmt.Errorf("scoring config: max_alert_age_days %.0f must exceed the widest decay window %.0f",
			c.MaxAlertAgeDays, c.lowDecayDays())
	}
	if c.StormWindowDays <= 0 || c.StormTriggerCount < 1 {
		return fmt.Errorf("scoring config: storm window and trigger must be positive")
	}
	return nil
}

// lowDecayDays is the decay window for medium and low severities.
func (c Config) lowDecayDays() float64 {
	return c.HighDecayDays * 1.5
}

// decayDays returns the full-weight window for a severity.
func (c Config) decayDays(s domain.Severity) float64 {
	switch s {
	case domain.SeverityCritical:
		return c.CriticalDecayDays
	case domain.SeverityHigh:
		return c.HighDecayDays
	default:
		return c.lowDecayDays()
	}
}
