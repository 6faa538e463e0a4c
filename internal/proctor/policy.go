package proctor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Policy holds the weights and thresholds used by the risk tracker.
type Policy struct {
	TabSwitchWeight int `mapstructure:"tab_switch_weight"`
	IdleWeight      int `mapstructure:"idle_weight"`
	TypingWeight    int `mapstructure:"typing_weight"`
	MouseWeight     int `mapstructure:"mouse_weight"`

	MaxTabSwitches         int `mapstructure:"max_tab_switches"`
	TerminationTabSwitches int `mapstructure:"termination_tab_switches"`
	MaxRiskScore           int `mapstructure:"max_risk_score"`

	HighRisk     int `mapstructure:"high_risk"`
	ModerateRisk int `mapstructure:"moderate_risk"`

	IdleWindow time.Duration `mapstructure:"idle_window"`

	TypingPause    time.Duration `mapstructure:"typing_pause"`
	TypingWindow   time.Duration `mapstructure:"typing_window"`
	TypingMaxWPM   float64       `mapstructure:"typing_max_wpm"`
	TypingMinChars int           `mapstructure:"typing_min_chars"`

	EdgeMargin             int           `mapstructure:"edge_margin"`
	ApproachCooldown       time.Duration `mapstructure:"approach_cooldown"`
	ApproachesPerViolation int           `mapstructure:"approaches_per_violation"`

	RiskInterval   time.Duration `mapstructure:"risk_interval"`
	TimeLeftNotice time.Duration `mapstructure:"time_left_notice"`
}

func DefaultPolicy() Policy {
	return Policy{
		TabSwitchWeight:        15,
		IdleWeight:             3,
		TypingWeight:           5,
		MouseWeight:            4,
		MaxTabSwitches:         2,
		TerminationTabSwitches: 3,
		MaxRiskScore:           80,
		HighRisk:               70,
		ModerateRisk:           40,
		IdleWindow:             10 * time.Second,
		TypingPause:            5 * time.Second,
		TypingWindow:           30 * time.Second,
		TypingMaxWPM:           50,
		TypingMinChars:         20,
		EdgeMargin:             5,
		ApproachCooldown:       5 * time.Second,
		ApproachesPerViolation: 3,
		RiskInterval:           5 * time.Second,
		TimeLeftNotice:         5 * time.Minute,
	}
}

// LoadPolicy reads an optional YAML/JSON file and PROCTOR_* env overrides
// on top of DefaultPolicy. An empty path means defaults plus env.
func LoadPolicy(path string) (Policy, error) {
	v := viper.New()
	def := DefaultPolicy()
	v.SetDefault("tab_switch_weight", def.TabSwitchWeight)
	v.SetDefault("idle_weight", def.IdleWeight)
	v.SetDefault("typing_weight", def.TypingWeight)
	v.SetDefault("mouse_weight", def.MouseWeight)
	v.SetDefault("max_tab_switches", def.MaxTabSwitches)
	v.SetDefault("termination_tab_switches", def.TerminationTabSwitches)
	v.SetDefault("max_risk_score", def.MaxRiskScore)
	v.SetDefault("high_risk", def.HighRisk)
	v.SetDefault("moderate_risk", def.ModerateRisk)
	v.SetDefault("idle_window", def.IdleWindow)
	v.SetDefault("typing_pause", def.TypingPause)
	v.SetDefault("typing_window", def.TypingWindow)
	v.SetDefault("typing_max_wpm", def.TypingMaxWPM)
	v.SetDefault("typing_min_chars", def.TypingMinChars)
	v.SetDefault("edge_margin", def.EdgeMargin)
	v.SetDefault("approach_cooldown", def.ApproachCooldown)
	v.SetDefault("approaches_per_violation", def.ApproachesPerViolation)
	v.SetDefault("risk_interval", def.RiskInterval)
	v.SetDefault("time_left_notice", def.TimeLeftNotice)

	v.SetEnvPrefix("PROCTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Policy{}, fmt.Errorf("proctor: read policy %s: %w", path, err)
		}
	}

	var p Policy
	if err := v.Unmarshal(&p); err != nil {
		return Policy{}, fmt.Errorf("proctor: decode policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func (p Policy) Validate() error {
	var errs []error
	if p.TabSwitchWeight < 0 || p.IdleWeight < 0 || p.TypingWeight < 0 || p.MouseWeight < 0 {
		errs = append(errs, errors.New("weights must be non-negative"))
	}
	if p.MaxTabSwitches < 1 || p.TerminationTabSwitches <= p.MaxTabSwitches {
		errs = append(errs, errors.New("termination_tab_switches must exceed max_tab_switches >= 1"))
	}
	if p.MaxRiskScore <= 0 || p.MaxRiskScore > 100 {
		errs = append(errs, errors.New("max_risk_score must be in (0,100]"))
	}
	if p.ModerateRisk >= p.HighRisk {
		errs = append(errs, errors.New("moderate_risk must be below high_risk"))
	}
	if p.IdleWindow <= 0 || p.RiskInterval <= 0 || p.TypingPause <= 0 || p.TypingWindow <= 0 {
		errs = append(errs, errors.New("durations must be positive"))
	}
	if p.ApproachesPerViolation < 1 {
		errs = append(errs, errors.New("approaches_per_violation must be >= 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("proctor: invalid policy: %w", errors.Join(errs...))
	}
	return nil
}
