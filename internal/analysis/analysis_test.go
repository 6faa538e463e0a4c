package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vaibhav2824/IntegriGuard/internal/proctor"
)

func TestFlagsUseStrictThresholds(t *testing.T) {
	atLimit := Features{MouseErratic: 70, TypingSpeed: 300, TypingVariance: 40, UnnaturalPauses: 40, WindowSwitches: 30}
	assert.Empty(t, Flags(atLimit))

	over := Features{MouseErratic: 71, TypingSpeed: 301, TypingVariance: 41, UnnaturalPauses: 41, WindowSwitches: 31}
	assert.Equal(t, []string{FlagMouse, FlagFastTyping, FlagInconsistent, FlagPauses, FlagTabSwitches}, Flags(over))
}

func TestLevelBands(t *testing.T) {
	assert.Equal(t, "Low Risk", Level(0))
	assert.Equal(t, "Low Risk", Level(49.99))
	assert.Equal(t, "Medium Risk", Level(50))
	assert.Equal(t, "Medium Risk", Level(74.99))
	assert.Equal(t, "High Risk", Level(75))
}

func TestAssessBounds(t *testing.T) {
	calm := Assess(Features{})
	assert.Equal(t, 0.0, calm.RiskScore)
	assert.Equal(t, "Low Risk", calm.RiskLevel)
	assert.NotNil(t, calm.Flags)

	worst := Assess(Features{MouseErratic: 100, MouseInactivity: 1e6, TypingSpeed: 1e6, TypingVariance: 100, UnnaturalPauses: 1e6, WindowSwitches: 1e6})
	assert.InDelta(t, 100, worst.RiskScore, 0.001)
	assert.Equal(t, "High Risk", worst.RiskLevel)
	assert.Len(t, worst.Flags, 5)
}

func TestFromBehavior(t *testing.T) {
	t0 := time.Unix(0, 0)
	b := proctor.BehaviorData{
		MouseMovements: []proctor.MouseSample{
			{X: 0, Y: 0, At: t0},
			{X: 10, Y: 0, At: t0},
			{X: 0, Y: 0, At: t0},  // reversal
			{X: 0, Y: 10, At: t0}, // right angle
			{X: 0, Y: 20, At: t0}, // straight
		},
		TypingSpeeds:    []proctor.TypingSample{{WPM: 40}, {WPM: 80}},
		TabSwitches:     2,
		InactivityCount: 3,
		Pauses:          []float64{1, 1, 7, 1},
	}
	f := FromBehavior(b, 10*time.Second)

	assert.InDelta(t, 100.0/3, f.MouseErratic, 0.01)
	assert.Equal(t, 30.0, f.MouseInactivity)
	assert.Equal(t, 300.0, f.TypingSpeed)
	assert.Equal(t, 2.0, f.WindowSwitches)
	assert.Equal(t, 1.0, f.UnnaturalPauses)
	// pauses mean 2.5, stddev sqrt(6.75) ~ 2.598
	assert.InDelta(t, 100, f.TypingVariance, 0.01)

	a := Assess(f)
	require.NotNil(t, a.Flags)
	assert.Equal(t, []string{FlagInconsistent}, a.Flags)
}

func TestFromEmptyBehavior(t *testing.T) {
	f := FromBehavior(proctor.BehaviorData{}, 10*time.Second)
	assert.Equal(t, Features{}, f)
}
