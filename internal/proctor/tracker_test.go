package proctor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func startedTracker(p Policy, duration time.Duration) *Tracker {
	tr := NewTracker(p, duration)
	tr.Apply(Signal{Kind: SignalStart, At: t0})
	return tr
}

func countKind(effs []Effect, k EffectKind) int {
	n := 0
	for _, e := range effs {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func findCode(effs []Effect, code string) (Effect, bool) {
	for _, e := range effs {
		if e.Code == code {
			return e, true
		}
	}
	return Effect{}, false
}

func TestTabSwitchThresholds(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	assert.Equal(t, PhaseActive, tr.Phase())

	effs := tr.Apply(Signal{Kind: SignalVisibilityHidden, At: at(time.Second)})
	assert.Equal(t, 1, tr.Counters().TabSwitches)
	_, ok := findCode(effs, CodeTabFirstWarning)
	assert.True(t, ok, "first switch raises a notice")
	assert.Zero(t, countKind(effs, EffectSubmit))

	effs = tr.Apply(Signal{Kind: SignalVisibilityHidden, At: at(2 * time.Second)})
	assert.Equal(t, 2, tr.Counters().TabSwitches)
	assert.Equal(t, PhaseWarning, tr.Phase())
	d, ok := findCode(effs, CodeTabFinalWarning)
	require.True(t, ok)
	assert.Equal(t, EffectDialog, d.Kind)
	assert.Zero(t, countKind(effs, EffectSubmit))

	effs = tr.Apply(Signal{Kind: SignalVisibilityHidden, At: at(3 * time.Second)})
	assert.Equal(t, 3, tr.Counters().TabSwitches)
	require.Equal(t, 1, countKind(effs, EffectSubmit))
	assert.Equal(t, PhaseTerminated, tr.Phase())
	out, ok := tr.Outcome()
	require.True(t, ok)
	assert.True(t, out.Terminated)
	assert.True(t, out.Forced)
	assert.Equal(t, ReasonTabSwitches, out.Reason)

	// nothing after the decision can submit again
	for i := 4; i < 8; i++ {
		effs = tr.Apply(Signal{Kind: SignalVisibilityHidden, At: at(time.Duration(i) * time.Second)})
		assert.Empty(t, effs)
	}
	assert.Equal(t, 3, tr.Counters().TabSwitches)
	assert.Empty(t, tr.RequestSubmit(at(10*time.Second), ReasonManual))
}

func TestTabSwitchCountMatchesEvents(t *testing.T) {
	for n := 0; n < 3; n++ {
		tr := startedTracker(DefaultPolicy(), 0)
		submits := 0
		for i := 0; i < n; i++ {
			submits += countKind(tr.Apply(Signal{Kind: SignalVisibilityHidden, At: at(time.Duration(i+1) * time.Second)}), EffectSubmit)
		}
		assert.Equal(t, n, tr.Counters().TabSwitches)
		assert.Zero(t, submits, "no submit below the termination count")
	}
}

func TestKeyboardTabSwitches(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)

	tr.Apply(Signal{Kind: SignalKeyDown, Key: "Tab", At: at(time.Second)})
	tr.Apply(Signal{Kind: SignalKeyDown, Key: "a", AltKey: true, At: at(time.Second)})
	assert.Equal(t, 0, tr.Counters().TabSwitches)

	tr.Apply(Signal{Kind: SignalKeyDown, Key: "Tab", AltKey: true, At: at(2 * time.Second)})
	assert.Equal(t, 1, tr.Counters().TabSwitches)

	tr.Apply(Signal{Kind: SignalKeyDown, Key: "Meta", At: at(3 * time.Second)})
	assert.Equal(t, 2, tr.Counters().TabSwitches)
}

func TestAckWarningReturnsToActive(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalVisibilityHidden, At: at(time.Second)})
	tr.Apply(Signal{Kind: SignalVisibilityHidden, At: at(2 * time.Second)})
	require.Equal(t, PhaseWarning, tr.Phase())

	tr.Apply(Signal{Kind: SignalAckWarning, At: at(3 * time.Second)})
	assert.Equal(t, PhaseActive, tr.Phase())
}

func TestComputeRisk(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		name string
		c    Counters
		want int
	}{
		{"zero", Counters{}, 0},
		{"one of each", Counters{1, 1, 1, 1}, 27},
		{"mixed", Counters{TabSwitches: 2, InactiveTime: 3, SuspiciousTyping: 1}, 44},
		{"clamped high", Counters{TabSwitches: 5, InactiveTime: 10}, 100},
		{"clamped low", Counters{TabSwitches: -3}, 0},
		{"threshold", Counters{TabSwitches: 2, InactiveTime: 10, SuspiciousTyping: 4}, 80},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeRisk(tc.c, p))
		})
	}
}

func TestRiskLevel(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, "High", RiskLevel(71, p))
	assert.Equal(t, "Moderate", RiskLevel(70, p))
	assert.Equal(t, "Moderate", RiskLevel(41, p))
	assert.Equal(t, "Low", RiskLevel(40, p))
	assert.Equal(t, "Low", RiskLevel(0, p))
}

func TestRiskRecomputedOnIntervalOnly(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalVisibilityHidden, At: at(time.Second)})
	assert.Equal(t, 0, tr.Risk(), "signals do not recompute risk")

	effs := tr.Apply(Signal{Kind: SignalTick, At: at(3 * time.Second)})
	assert.Zero(t, countKind(effs, EffectRisk))
	assert.Equal(t, 0, tr.Risk())

	effs = tr.Apply(Signal{Kind: SignalTick, At: at(5 * time.Second)})
	require.Equal(t, 1, countKind(effs, EffectRisk))
	assert.Equal(t, 15, tr.Risk())
}

func TestRiskThresholdForcesOneSubmission(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.counters = Counters{TabSwitches: 2, InactiveTime: 10, SuspiciousTyping: 4}

	effs := tr.Apply(Signal{Kind: SignalTick, At: at(5 * time.Second)})
	require.Equal(t, 1, countKind(effs, EffectSubmit))
	assert.Equal(t, 80, tr.Risk())
	out, _ := tr.Outcome()
	assert.True(t, out.Terminated)
	assert.Equal(t, ReasonRisk, out.Reason)

	assert.Empty(t, tr.Apply(Signal{Kind: SignalTick, At: at(10 * time.Second)}))
}

func TestRiskBelowThresholdContinues(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.counters = Counters{TabSwitches: 2, InactiveTime: 9, SuspiciousTyping: 4, MouseViolations: 0}

	effs := tr.Apply(Signal{Kind: SignalTick, At: at(5 * time.Second)})
	assert.Equal(t, 77, tr.Risk())
	assert.Zero(t, countKind(effs, EffectSubmit))
	assert.False(t, tr.Submitting())
}

func TestIdleWindowsCountedOnce(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	for s := 1; s <= 35; s++ {
		tr.Apply(Signal{Kind: SignalTick, At: at(time.Duration(s) * time.Second)})
	}
	assert.Equal(t, 3, tr.Counters().InactiveTime)
}

func TestIdleWithoutTicks(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalTick, At: at(35 * time.Second)})
	assert.Equal(t, 3, tr.Counters().InactiveTime)
}

func TestActivityResetsIdleWindow(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalClick, At: at(8 * time.Second)})
	tr.Apply(Signal{Kind: SignalScroll, At: at(16 * time.Second)})
	tr.Apply(Signal{Kind: SignalKeyPress, At: at(24 * time.Second)})
	assert.Equal(t, 0, tr.Counters().InactiveTime)

	tr.Apply(Signal{Kind: SignalTick, At: at(45 * time.Second)})
	assert.Equal(t, 2, tr.Counters().InactiveTime)
}

func typeChars(tr *Tracker, from time.Duration, every time.Duration, n, startLen int) int {
	flags := 0
	for i := 0; i <= n; i++ {
		effs := tr.Apply(Signal{Kind: SignalTextInput, Length: startLen + i, At: at(from + time.Duration(i)*every)})
		if _, ok := findCode(effs, CodeTypingSpeed); ok {
			flags++
		}
	}
	return flags
}

func TestTypingSpeedFlag(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalQuestionChange, QuestionType: QuestionTypeText, At: at(time.Second)})

	// first keystroke sets the base, then 20 chars at 60 wpm
	flags := typeChars(tr, time.Second, 200*time.Millisecond, 20, 0)
	assert.Equal(t, 1, flags)
	assert.Equal(t, 1, tr.Counters().SuspiciousTyping)

	// window was reset: the next keystroke alone cannot flag
	effs := tr.Apply(Signal{Kind: SignalTextInput, Length: 21, At: at(time.Second + 4200*time.Millisecond)})
	_, ok := findCode(effs, CodeTypingSpeed)
	assert.False(t, ok)
}

func TestTypingBelowMinChars(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalQuestionChange, QuestionType: QuestionTypeText, At: at(time.Second)})

	flags := typeChars(tr, time.Second, 100*time.Millisecond, 19, 0)
	assert.Zero(t, flags, "19 chars at 120 wpm stays unflagged")
}

func TestTypingAtLimitNotFlagged(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalQuestionChange, QuestionType: QuestionTypeText, At: at(time.Second)})

	// 20 chars in 4.8s is exactly 50 wpm
	flags := typeChars(tr, time.Second, 240*time.Millisecond, 20, 0)
	assert.Zero(t, flags)
}

func TestTypingIgnoredOutsideTextQuestions(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalQuestionChange, QuestionType: "multiple-choice", At: at(time.Second)})

	flags := typeChars(tr, time.Second, 50*time.Millisecond, 40, 0)
	assert.Zero(t, flags)
	assert.Equal(t, 0, tr.Counters().SuspiciousTyping)
}

func TestTypingPauseRebasesWindow(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalQuestionChange, QuestionType: QuestionTypeText, At: at(time.Second)})

	typeChars(tr, time.Second, 200*time.Millisecond, 10, 0)
	// a 6s pause rebases; a pasted burst right after only counts from the new base
	tr.Apply(Signal{Kind: SignalTextInput, Length: 40, At: at(9 * time.Second)})
	effs := tr.Apply(Signal{Kind: SignalTextInput, Length: 41, At: at(9*time.Second + 200*time.Millisecond)})
	_, ok := findCode(effs, CodeTypingSpeed)
	assert.False(t, ok)
}

func TestMouseBoundaryEveryThirdApproach(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalFullscreenChange, Fullscreen: true, At: at(time.Second)})

	edge := func(d time.Duration) []Effect {
		return tr.Apply(Signal{Kind: SignalMouseMove, X: 1917, Y: 500, ViewportW: 1920, ViewportH: 1080, At: at(d)})
	}

	assert.Len(t, edge(6*time.Second), 1)
	assert.Empty(t, edge(8*time.Second), "rate limited")
	assert.Len(t, edge(12*time.Second), 1)
	assert.Equal(t, 0, tr.Counters().MouseViolations)
	assert.Len(t, edge(18*time.Second), 1)
	assert.Equal(t, 1, tr.Counters().MouseViolations)

	// centre of the screen is not an approach
	assert.Empty(t, tr.Apply(Signal{Kind: SignalMouseMove, X: 900, Y: 500, ViewportW: 1920, ViewportH: 1080, At: at(30 * time.Second)}))
}

func TestMouseBoundaryIgnoredOutsideFullscreen(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	for i := 1; i <= 6; i++ {
		tr.Apply(Signal{Kind: SignalMouseMove, X: 0, Y: 0, At: at(time.Duration(i*6) * time.Second)})
	}
	assert.Equal(t, 0, tr.Counters().MouseViolations)
}

func TestMouseMoveWithoutViewportIsNotAnApproach(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalFullscreenChange, Fullscreen: true, At: at(time.Second)})

	for i := 1; i <= 3; i++ {
		effs := tr.Apply(Signal{Kind: SignalMouseMove, At: at(time.Duration(i*6) * time.Second)})
		assert.Empty(t, effs)
	}
	assert.Equal(t, 0, tr.Counters().MouseViolations)
	assert.Zero(t, tr.Behavior().BoundaryApproaches)
	assert.Len(t, tr.Behavior().MouseMovements, 3)
}

func TestFullscreenExitAndReentry(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalFullscreenChange, Fullscreen: true, At: at(time.Second)})

	effs := tr.Apply(Signal{Kind: SignalFullscreenChange, Fullscreen: false, At: at(2 * time.Second)})
	assert.Equal(t, 1, countKind(effs, EffectDialog))
	_, ok := findCode(effs, CodeFullscreenRequired)
	assert.True(t, ok)
	assert.Equal(t, 1, tr.Counters().TabSwitches)

	effs = tr.Apply(Signal{Kind: SignalFullscreenChange, Fullscreen: true, At: at(3 * time.Second)})
	assert.Empty(t, effs)
	assert.True(t, tr.Fullscreen())
	assert.False(t, tr.Submitting())
	assert.Equal(t, PhaseActive, tr.Phase())
}

func TestFullscreenExitDuringSubmissionIgnored(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalFullscreenChange, Fullscreen: true, At: at(time.Second)})
	require.Equal(t, 1, countKind(tr.RequestSubmit(at(2*time.Second), ReasonManual), EffectSubmit))

	effs := tr.Apply(Signal{Kind: SignalFullscreenChange, Fullscreen: false, At: at(3 * time.Second)})
	assert.Empty(t, effs)
	assert.Equal(t, 0, tr.Counters().TabSwitches)
}

func TestFullscreenExitsShareTabThresholds(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalVisibilityHidden, At: at(time.Second)})
	tr.Apply(Signal{Kind: SignalVisibilityHidden, At: at(2 * time.Second)})
	tr.Apply(Signal{Kind: SignalFullscreenChange, Fullscreen: true, At: at(3 * time.Second)})

	effs := tr.Apply(Signal{Kind: SignalFullscreenChange, Fullscreen: false, At: at(4 * time.Second)})
	require.Equal(t, 1, countKind(effs, EffectSubmit))
	out, _ := tr.Outcome()
	assert.True(t, out.Terminated)
}

func TestEscapeIsNoticeOnly(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalFullscreenChange, Fullscreen: true, At: at(time.Second)})

	effs := tr.Apply(Signal{Kind: SignalKeyDown, Key: "Escape", At: at(2 * time.Second)})
	require.Len(t, effs, 1)
	assert.Equal(t, EffectNotice, effs[0].Kind)
	assert.Equal(t, CodeEscapeKey, effs[0].Code)
	assert.Equal(t, 0, tr.Counters().TabSwitches)
}

func TestFullscreenErrorIsSoftDialog(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	effs := tr.Apply(Signal{Kind: SignalFullscreenError, At: at(time.Second)})
	require.Len(t, effs, 1)
	assert.Equal(t, EffectDialog, effs[0].Kind)
	assert.True(t, effs[0].Soft)
}

func TestMediaSignalsAreNotices(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	effs := tr.Apply(Signal{Kind: SignalMediaDenied, At: at(time.Second)})
	require.Len(t, effs, 1)
	assert.Equal(t, CodeMediaError, effs[0].Code)
	assert.Equal(t, Counters{}, tr.Counters())
	assert.Equal(t, PhaseActive, tr.Phase())
}

func TestCountdownSubmitsCompleted(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 90*time.Minute)
	assert.Equal(t, at(90*time.Minute), tr.Deadline())

	effs := tr.Apply(Signal{Kind: SignalTick, At: at(90 * time.Minute)})
	require.Equal(t, 1, countKind(effs, EffectSubmit))
	out, _ := tr.Outcome()
	assert.False(t, out.Forced)
	assert.False(t, out.Terminated)
	assert.Equal(t, ReasonTimeUp, out.Reason)
}

func TestTimeWarningRaisedOnce(t *testing.T) {
	p := DefaultPolicy()
	p.IdleWeight = 0
	tr := startedTracker(p, 10*time.Minute)

	effs := tr.Apply(Signal{Kind: SignalTick, At: at(5 * time.Minute)})
	e, ok := findCode(effs, CodeTimeWarning)
	assert.True(t, ok)
	assert.Equal(t, "5 minutes remaining.", e.Message)

	effs = tr.Apply(Signal{Kind: SignalTick, At: at(6 * time.Minute)})
	_, ok = findCode(effs, CodeTimeWarning)
	assert.False(t, ok)
}

func TestTimeWarningFollowsPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.IdleWeight = 0
	p.TimeLeftNotice = 90 * time.Second
	tr := startedTracker(p, 10*time.Minute)

	effs := tr.Apply(Signal{Kind: SignalTick, At: at(8 * time.Minute)})
	_, ok := findCode(effs, CodeTimeWarning)
	assert.False(t, ok)

	effs = tr.Apply(Signal{Kind: SignalTick, At: at(8*time.Minute + 30*time.Second)})
	e, ok := findCode(effs, CodeTimeWarning)
	require.True(t, ok)
	assert.Equal(t, "1 minute remaining.", e.Message)
}

func TestTimeLeftMessage(t *testing.T) {
	assert.Equal(t, "10 minutes remaining.", timeLeftMessage(10*time.Minute))
	assert.Equal(t, "1 minute remaining.", timeLeftMessage(time.Minute))
	assert.Equal(t, "45 seconds remaining.", timeLeftMessage(45*time.Second))
}

func TestBehaviorSnapshot(t *testing.T) {
	tr := startedTracker(DefaultPolicy(), 0)
	tr.Apply(Signal{Kind: SignalMouseMove, X: 10, Y: 20, At: at(time.Second)})
	tr.Apply(Signal{Kind: SignalVisibilityHidden, At: at(2 * time.Second)})

	b := tr.Behavior()
	require.Len(t, b.MouseMovements, 1)
	assert.Equal(t, 10, b.MouseMovements[0].X)
	assert.Equal(t, 1, b.TabSwitches)

	b.MouseMovements[0].X = 99
	assert.Equal(t, 10, tr.Behavior().MouseMovements[0].X, "Behavior returns a copy")
}
