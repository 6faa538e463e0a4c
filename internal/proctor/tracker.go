package proctor

import (
	"fmt"
	"math"
	"time"
)

type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseActive       Phase = "active"
	PhaseWarning      Phase = "warning"
	PhaseTerminated   Phase = "terminated"
	PhaseSubmitted    Phase = "submitted"
)

const QuestionTypeText = "text"

// maxSamples bounds each behaviour sample slice.
const maxSamples = 1000

type Counters struct {
	TabSwitches      int `json:"tabSwitches"`
	InactiveTime     int `json:"inactiveTime"`
	SuspiciousTyping int `json:"suspiciousTypingCount"`
	MouseViolations  int `json:"mouseBoundaryViolations"`
}

type MouseSample struct {
	X  int       `json:"x"`
	Y  int       `json:"y"`
	At time.Time `json:"at"`
}

type KeystrokeSample struct {
	Length int       `json:"length"`
	At     time.Time `json:"at"`
}

type TypingSample struct {
	WPM   float64   `json:"wpm"`
	Chars int       `json:"chars"`
	At    time.Time `json:"at"`
}

// BehaviorData is the raw material persisted with a result at submission.
type BehaviorData struct {
	MouseMovements     []MouseSample     `json:"mouseMovements"`
	Keystrokes         []KeystrokeSample `json:"keystrokes"`
	TypingSpeeds       []TypingSample    `json:"typingSpeeds"`
	TabSwitches        int               `json:"tabSwitches"`
	InactivityCount    int               `json:"inactivityCount"`
	FullscreenExits    int               `json:"fullscreenExits"`
	BoundaryApproaches int               `json:"boundaryApproaches"`
	Pauses             []float64         `json:"pauses"` // seconds between keystrokes
}

// Outcome records why and when the session stopped accepting signals.
type Outcome struct {
	Forced     bool      `json:"forced"`
	Terminated bool      `json:"terminated"`
	Reason     string    `json:"reason"`
	Risk       int       `json:"risk"`
	At         time.Time `json:"at"`
}

// ComputeRisk is the weighted sum of the counters clamped to [0,100].
func ComputeRisk(c Counters, p Policy) int {
	score := c.TabSwitches*p.TabSwitchWeight +
		c.InactiveTime*p.IdleWeight +
		c.SuspiciousTyping*p.TypingWeight +
		c.MouseViolations*p.MouseWeight
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// RiskLevel labels a score for display.
func RiskLevel(score int, p Policy) string {
	switch {
	case score > p.HighRisk:
		return "High"
	case score > p.ModerateRisk:
		return "Moderate"
	default:
		return "Low"
	}
}

// Tracker is the proctoring reducer. It is not safe for concurrent use;
// Session serialises every call on one goroutine.
type Tracker struct {
	p Policy

	phase      Phase
	counters   Counters
	risk       int
	fullscreen bool
	submitting bool
	outcome    *Outcome

	duration  time.Duration
	startedAt time.Time
	deadline  time.Time

	lastActivity time.Time
	idleWindows  int
	lastRisk     time.Time
	timeWarned   bool

	questionType string
	typingOn     bool
	typingStart  time.Time
	typingLast   time.Time
	typingBase   int

	approaches   int
	lastApproach time.Time

	behavior BehaviorData
}

// NewTracker returns a tracker in the Initializing phase. The countdown is
// anchored at the first signal; a zero duration means no countdown.
func NewTracker(p Policy, duration time.Duration) *Tracker {
	return &Tracker{p: p, phase: PhaseInitializing, duration: duration}
}

func (t *Tracker) begin(at time.Time) {
	if t.phase != PhaseInitializing {
		return
	}
	t.phase = PhaseActive
	t.startedAt = at
	t.lastActivity = at
	t.lastRisk = at
	if t.duration > 0 {
		t.deadline = at.Add(t.duration)
	}
}

// Apply feeds one signal through the state machine and returns the effects
// it produced. Once a submission has been decided every signal is ignored.
func (t *Tracker) Apply(sig Signal) []Effect {
	if t.submitting {
		return nil
	}
	t.begin(sig.At)
	t.advanceIdle(sig.At)

	switch sig.Kind {
	case SignalStart:
		return nil
	case SignalTick:
		return t.tick(sig.At)
	case SignalVisibilityHidden:
		return t.tabSwitch(sig.At)
	case SignalKeyDown:
		if sig.isTabSwitch() {
			return t.tabSwitch(sig.At)
		}
		if sig.Key == "Escape" && t.fullscreen {
			return []Effect{notice(sig.At, CodeEscapeKey, "Warning: Escape Key Detected",
				"Exiting fullscreen is not allowed during the exam.")}
		}
		return nil
	case SignalKeyPress:
		t.activity(sig.At)
		return nil
	case SignalClick, SignalScroll:
		t.activity(sig.At)
		return nil
	case SignalMouseMove:
		return t.mouse(sig)
	case SignalTextInput:
		return t.typing(sig)
	case SignalQuestionChange:
		t.questionType = sig.QuestionType
		t.typingOn = false
		return nil
	case SignalFullscreenChange:
		return t.fullscreenChange(sig)
	case SignalFullscreenError:
		return []Effect{{Kind: EffectDialog, Code: CodeFullscreenRequired, Soft: true, At: sig.At,
			Title:   "Fullscreen Required",
			Message: "Fullscreen mode could not be enabled. Retry to continue the exam."}}
	case SignalMediaGranted:
		return []Effect{notice(sig.At, CodeMediaConnected, "Media Connected",
			"Camera and microphone are now active.")}
	case SignalMediaDenied:
		return []Effect{notice(sig.At, CodeMediaError, "Media Access Error",
			"Please enable camera and microphone access to continue the exam.")}
	case SignalClipboard:
		return []Effect{notice(sig.At, CodeClipboardBlocked, "Action Blocked",
			"Copy and paste are not allowed during the exam.")}
	case SignalAckWarning:
		if t.phase == PhaseWarning {
			t.phase = PhaseActive
		}
		return nil
	}
	return nil
}

// RequestSubmit asks for a normal (not forced) submission.
func (t *Tracker) RequestSubmit(at time.Time, reason string) []Effect {
	t.begin(at)
	return t.submit(at, false, reason)
}

// MarkSubmitted moves a decided submission into the terminal phase.
func (t *Tracker) MarkSubmitted() {
	if t.submitting {
		t.phase = PhaseSubmitted
	}
}

func (t *Tracker) submit(at time.Time, terminated bool, reason string) []Effect {
	if t.submitting {
		return nil
	}
	t.submitting = true
	if terminated {
		t.phase = PhaseTerminated
	}
	t.outcome = &Outcome{
		Forced:     terminated,
		Terminated: terminated,
		Reason:     reason,
		Risk:       ComputeRisk(t.counters, t.p),
		At:         at,
	}
	return []Effect{{Kind: EffectSubmit, At: at, Forced: terminated, Terminated: terminated, Reason: reason}}
}

func (t *Tracker) tick(at time.Time) []Effect {
	var out []Effect
	if !t.deadline.IsZero() {
		left := t.deadline.Sub(at)
		if left <= 0 {
			return t.submit(at, false, ReasonTimeUp)
		}
		if !t.timeWarned && left <= t.p.TimeLeftNotice {
			t.timeWarned = true
			out = append(out, Effect{Kind: EffectDialog, Code: CodeTimeWarning, Soft: true, At: at,
				Title:   "Time Warning",
				Message: timeLeftMessage(t.p.TimeLeftNotice)})
		}
	}
	if at.Sub(t.lastRisk) >= t.p.RiskInterval {
		t.lastRisk = at
		t.risk = ComputeRisk(t.counters, t.p)
		out = append(out, Effect{Kind: EffectRisk, Risk: t.risk, At: at})
		if t.risk >= t.p.MaxRiskScore {
			out = append(out, notice(at, CodeRiskTerminated, "Exam Terminated",
				"Your exam has been automatically submitted due to high risk score."))
			out = append(out, t.submit(at, true, ReasonRisk)...)
		}
	}
	return out
}

func (t *Tracker) tabSwitch(at time.Time) []Effect {
	t.counters.TabSwitches++
	n := t.counters.TabSwitches
	switch {
	case n >= t.p.TerminationTabSwitches:
		out := []Effect{notice(at, CodeTabTerminated, "Exam Terminated",
			"Your exam has been automatically submitted due to suspicious behavior.")}
		return append(out, t.submit(at, true, ReasonTabSwitches)...)
	case n == t.p.MaxTabSwitches:
		t.phase = PhaseWarning
		return []Effect{{Kind: EffectDialog, Code: CodeTabFinalWarning, At: at,
			Title:   "Final Warning",
			Message: "Switching tabs again will result in automatic exam submission."}}
	case n > 1:
		return []Effect{notice(at, CodeTabWarning, "Warning",
			"Switching tabs during an exam is considered suspicious behavior.")}
	default:
		return []Effect{notice(at, CodeTabFirstWarning, "First Warning",
			"Switching tabs is not allowed during the exam. This action has been recorded.")}
	}
}

func (t *Tracker) fullscreenChange(sig Signal) []Effect {
	was := t.fullscreen
	t.fullscreen = sig.Fullscreen
	if !was || sig.Fullscreen {
		return nil
	}
	t.behavior.FullscreenExits++

	t.counters.TabSwitches++
	n := t.counters.TabSwitches
	if n >= t.p.TerminationTabSwitches {
		out := []Effect{notice(sig.At, CodeTabTerminated, "Exam Terminated",
			"Your exam has been automatically submitted due to suspicious behavior.")}
		return append(out, t.submit(sig.At, true, ReasonTabSwitches)...)
	}
	out := []Effect{
		notice(sig.At, CodeFullscreenExited, "Warning: Fullscreen Exited",
			"Exiting fullscreen mode during an exam is not allowed and may result in termination."),
		{Kind: EffectDialog, Code: CodeFullscreenRequired, At: sig.At,
			Title:   "Fullscreen Required",
			Message: "Return to fullscreen mode to continue the exam."},
	}
	if n == t.p.MaxTabSwitches {
		t.phase = PhaseWarning
		out = append(out, Effect{Kind: EffectDialog, Code: CodeTabFinalWarning, At: sig.At,
			Title:   "Final Warning",
			Message: "Leaving the exam again will result in automatic exam submission."})
	}
	return out
}

func (t *Tracker) activity(at time.Time) {
	t.lastActivity = at
	t.idleWindows = 0
}

// advanceIdle counts idle windows completed since the last activity.
// Each window is counted once however many signals observe it.
func (t *Tracker) advanceIdle(at time.Time) {
	if at.Before(t.lastActivity) {
		return
	}
	n := int(at.Sub(t.lastActivity) / t.p.IdleWindow)
	if n > t.idleWindows {
		t.counters.InactiveTime += n - t.idleWindows
		t.behavior.InactivityCount += n - t.idleWindows
		t.idleWindows = n
	}
}

func (t *Tracker) mouse(sig Signal) []Effect {
	t.activity(sig.At)
	t.behavior.MouseMovements = capped(t.behavior.MouseMovements, MouseSample{X: sig.X, Y: sig.Y, At: sig.At})

	if !t.fullscreen || !t.nearEdge(sig) {
		return nil
	}
	if !t.lastApproach.IsZero() && sig.At.Sub(t.lastApproach) <= t.p.ApproachCooldown {
		return nil
	}
	t.lastApproach = sig.At
	t.approaches++
	t.behavior.BoundaryApproaches++
	if t.approaches >= t.p.ApproachesPerViolation {
		t.approaches = 0
		t.counters.MouseViolations++
	}
	return []Effect{notice(sig.At, CodeMouseBoundary, "Mouse Warning",
		"Please keep your cursor within the exam area.")}
}

// nearEdge needs the viewport size; moves without one are never approaches.
func (t *Tracker) nearEdge(sig Signal) bool {
	if sig.ViewportW <= 0 || sig.ViewportH <= 0 {
		return false
	}
	m := t.p.EdgeMargin
	return sig.X <= m || sig.Y <= m || sig.X >= sig.ViewportW-m || sig.Y >= sig.ViewportH-m
}

func (t *Tracker) typing(sig Signal) []Effect {
	if t.questionType != QuestionTypeText {
		return nil
	}
	at := sig.At
	t.behavior.Keystrokes = capped(t.behavior.Keystrokes, KeystrokeSample{Length: sig.Length, At: at})
	if t.typingOn {
		t.behavior.Pauses = capped(t.behavior.Pauses, at.Sub(t.typingLast).Seconds())
	}

	if !t.typingOn || at.Sub(t.typingLast) > t.p.TypingPause {
		t.rebaseTyping(at, sig.Length)
		return nil
	}
	t.typingLast = at

	elapsed := at.Sub(t.typingStart)
	chars := sig.Length - t.typingBase
	if elapsed <= 0 || chars <= 0 {
		return nil
	}
	wpm := math.Round(float64(chars) / 5 / elapsed.Minutes())
	t.behavior.TypingSpeeds = capped(t.behavior.TypingSpeeds, TypingSample{WPM: wpm, Chars: chars, At: at})

	var out []Effect
	if wpm > t.p.TypingMaxWPM && chars >= t.p.TypingMinChars {
		t.counters.SuspiciousTyping++
		out = append(out, notice(at, CodeTypingSpeed, "Unusual Typing Speed Detected",
			"Your typing speed appears unusually fast. This may be flagged as suspicious behavior."))
		t.rebaseTyping(at, sig.Length)
		return out
	}
	if elapsed >= t.p.TypingWindow {
		t.rebaseTyping(at, sig.Length)
	}
	return out
}

func (t *Tracker) rebaseTyping(at time.Time, length int) {
	t.typingOn = true
	t.typingStart = at
	t.typingLast = at
	t.typingBase = length
}

func (t *Tracker) Phase() Phase         { return t.phase }
func (t *Tracker) Counters() Counters   { return t.counters }
func (t *Tracker) Risk() int            { return t.risk }
func (t *Tracker) Fullscreen() bool     { return t.fullscreen }
func (t *Tracker) Submitting() bool     { return t.submitting }
func (t *Tracker) StartedAt() time.Time { return t.startedAt }
func (t *Tracker) Deadline() time.Time  { return t.deadline }

func (t *Tracker) Outcome() (Outcome, bool) {
	if t.outcome == nil {
		return Outcome{}, false
	}
	return *t.outcome, true
}

// Behavior returns a copy of the accumulated behaviour data.
func (t *Tracker) Behavior() BehaviorData {
	b := t.behavior
	b.TabSwitches = t.counters.TabSwitches
	b.MouseMovements = append([]MouseSample(nil), b.MouseMovements...)
	b.Keystrokes = append([]KeystrokeSample(nil), b.Keystrokes...)
	b.TypingSpeeds = append([]TypingSample(nil), b.TypingSpeeds...)
	b.Pauses = append([]float64(nil), b.Pauses...)
	return b
}

func timeLeftMessage(d time.Duration) string {
	switch {
	case d >= 2*time.Minute:
		return fmt.Sprintf("%d minutes remaining.", int(d/time.Minute))
	case d >= time.Minute:
		return "1 minute remaining."
	default:
		return fmt.Sprintf("%d seconds remaining.", int(d/time.Second))
	}
}

func notice(at time.Time, code, title, msg string) Effect {
	return Effect{Kind: EffectNotice, Code: code, Title: title, Message: msg, At: at}
}

func capped[T any](s []T, v T) []T {
	s = append(s, v)
	if len(s) > maxSamples {
		s = s[len(s)-maxSamples:]
	}
	return s
}
