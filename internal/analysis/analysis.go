// Package analysis turns a session's behaviour record into a post-exam risk
// assessment: a score, a level and human-readable flags.
package analysis

import (
	"math"
	"time"

	"github.com/Vaibhav2824/IntegriGuard/internal/proctor"
)

// Features is the behaviour summary an assessment is computed from.
type Features struct {
	MouseErratic    float64 `json:"mouse_erratic_behavior" validate:"min=0,max=100"`
	MouseInactivity float64 `json:"mouse_inactivity_time" validate:"min=0"` // seconds
	TypingSpeed     float64 `json:"typing_speed" validate:"min=0"`          // characters per minute
	TypingVariance  float64 `json:"typing_consistency" validate:"min=0,max=100"`
	UnnaturalPauses float64 `json:"unnatural_pauses" validate:"min=0"`
	WindowSwitches  float64 `json:"window_switches" validate:"min=0"`
}

const (
	FlagMouse        = "Suspicious Mouse Movement"
	FlagFastTyping   = "Unusually Fast Typing"
	FlagInconsistent = "Inconsistent Typing Pattern"
	FlagPauses       = "Frequent Unnatural Pauses"
	FlagTabSwitches  = "Excessive Tab Switching"
)

type Assessment struct {
	RiskScore float64  `json:"risk_score"`
	RiskLevel string   `json:"risk_level"`
	Flags     []string `json:"behavioral_flags"`
}

type weighted struct {
	value, scale, weight float64
}

// Assess scores f on [0,100]. Each feature is scaled to a 0..100 range and
// combined with fixed weights.
func Assess(f Features) Assessment {
	parts := []weighted{
		{f.MouseErratic, 100, 0.25},
		{f.MouseInactivity, 120, 0.10},
		{f.TypingSpeed, 400, 0.15},
		{f.TypingVariance, 100, 0.15},
		{f.UnnaturalPauses, 60, 0.15},
		{f.WindowSwitches, 40, 0.20},
	}
	var score float64
	for _, p := range parts {
		score += math.Min(math.Max(p.value, 0)/p.scale, 1) * 100 * p.weight
	}
	score = math.Round(score*100) / 100
	return Assessment{RiskScore: score, RiskLevel: Level(score), Flags: Flags(f)}
}

func Level(score float64) string {
	switch {
	case score < 50:
		return "Low Risk"
	case score < 75:
		return "Medium Risk"
	default:
		return "High Risk"
	}
}

// Flags lists every feature strictly above its threshold.
func Flags(f Features) []string {
	flags := []string{}
	if f.MouseErratic > 70 {
		flags = append(flags, FlagMouse)
	}
	if f.TypingSpeed > 300 {
		flags = append(flags, FlagFastTyping)
	}
	if f.TypingVariance > 40 {
		flags = append(flags, FlagInconsistent)
	}
	if f.UnnaturalPauses > 40 {
		flags = append(flags, FlagPauses)
	}
	if f.WindowSwitches > 30 {
		flags = append(flags, FlagTabSwitches)
	}
	return flags
}

// pauseThreshold marks a gap between keystrokes as unnatural.
const pauseThreshold = 3.0

// FromBehavior derives features from a proctoring record. idle is the
// length of one idle window.
func FromBehavior(b proctor.BehaviorData, idle time.Duration) Features {
	f := Features{
		MouseErratic:    mouseReversals(b.MouseMovements),
		MouseInactivity: float64(b.InactivityCount) * idle.Seconds(),
		WindowSwitches:  float64(b.TabSwitches),
	}
	if n := len(b.TypingSpeeds); n > 0 {
		var sum float64
		for _, s := range b.TypingSpeeds {
			sum += s.WPM
		}
		f.TypingSpeed = sum / float64(n) * 5
	}
	if len(b.Pauses) > 1 {
		var sum float64
		for _, p := range b.Pauses {
			sum += p
			if p > pauseThreshold {
				f.UnnaturalPauses++
			}
		}
		mean := sum / float64(len(b.Pauses))
		var sq float64
		for _, p := range b.Pauses {
			sq += (p - mean) * (p - mean)
		}
		if mean > 0 {
			cv := math.Sqrt(sq/float64(len(b.Pauses))) / mean
			f.TypingVariance = math.Min(cv*100, 100)
		}
	} else if len(b.Pauses) == 1 && b.Pauses[0] > pauseThreshold {
		f.UnnaturalPauses = 1
	}
	return f
}

// mouseReversals is the percentage of movement steps that turn back on
// the previous step.
func mouseReversals(ms []proctor.MouseSample) float64 {
	if len(ms) < 3 {
		return 0
	}
	var turns, steps int
	for i := 2; i < len(ms); i++ {
		dx1, dy1 := ms[i-1].X-ms[i-2].X, ms[i-1].Y-ms[i-2].Y
		dx2, dy2 := ms[i].X-ms[i-1].X, ms[i].Y-ms[i-1].Y
		if (dx1 == 0 && dy1 == 0) || (dx2 == 0 && dy2 == 0) {
			continue
		}
		steps++
		if dx1*dx2+dy1*dy2 < 0 {
			turns++
		}
	}
	if steps == 0 {
		return 0
	}
	return float64(turns) / float64(steps) * 100
}
