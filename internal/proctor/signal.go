package proctor

import "time"

// SignalKind names a browser event forwarded by the exam client.
type SignalKind string

const (
	SignalStart            SignalKind = "start"
	SignalVisibilityHidden SignalKind = "visibility_hidden"
	SignalKeyDown          SignalKind = "keydown"
	SignalKeyPress         SignalKind = "keypress"
	SignalMouseMove        SignalKind = "mousemove"
	SignalClick            SignalKind = "click"
	SignalScroll           SignalKind = "scroll"
	SignalTextInput        SignalKind = "text_input"
	SignalQuestionChange   SignalKind = "question_change"
	SignalFullscreenChange SignalKind = "fullscreen_change"
	SignalFullscreenError  SignalKind = "fullscreen_error"
	SignalMediaGranted     SignalKind = "media_granted"
	SignalMediaDenied      SignalKind = "media_denied"
	SignalAckWarning       SignalKind = "ack_warning"
	SignalClipboard        SignalKind = "clipboard"
	SignalTick             SignalKind = "tick"
)

// ClientKinds are the kinds a client may post; start and tick are internal.
var ClientKinds = map[SignalKind]bool{
	SignalVisibilityHidden: true,
	SignalKeyDown:          true,
	SignalKeyPress:         true,
	SignalMouseMove:        true,
	SignalClick:            true,
	SignalScroll:           true,
	SignalTextInput:        true,
	SignalQuestionChange:   true,
	SignalFullscreenChange: true,
	SignalFullscreenError:  true,
	SignalMediaGranted:     true,
	SignalMediaDenied:      true,
	SignalAckWarning:       true,
	SignalClipboard:        true,
}

// Signal is one observation. At is set by the session when zero.
type Signal struct {
	Kind SignalKind `json:"kind"`
	At   time.Time  `json:"at"`

	// keydown
	Key     string `json:"key,omitempty"`
	AltKey  bool   `json:"altKey,omitempty"`
	MetaKey bool   `json:"metaKey,omitempty"`

	// mousemove
	X         int `json:"x,omitempty"`
	Y         int `json:"y,omitempty"`
	ViewportW int `json:"viewportW,omitempty"`
	ViewportH int `json:"viewportH,omitempty"`

	// fullscreen_change
	Fullscreen bool `json:"fullscreen,omitempty"`

	// text_input: current answer length. question_change: new index.
	Length        int `json:"length,omitempty"`
	QuestionIndex int `json:"questionIndex,omitempty"`

	// QuestionType is filled in by the session from the exam's questions.
	QuestionType string `json:"-"`
}

func (s Signal) isActivity() bool {
	switch s.Kind {
	case SignalMouseMove, SignalKeyPress, SignalClick, SignalScroll:
		return true
	}
	return false
}

func (s Signal) isTabSwitch() bool {
	switch s.Kind {
	case SignalVisibilityHidden:
		return true
	case SignalKeyDown:
		return (s.AltKey && s.Key == "Tab") || s.Key == "Meta"
	}
	return false
}

type EffectKind string

const (
	EffectNotice         EffectKind = "notice"
	EffectDialog         EffectKind = "dialog"
	EffectRisk           EffectKind = "risk"
	EffectSubmit         EffectKind = "submit"
	EffectExitFullscreen EffectKind = "exit_fullscreen"
	EffectNavigate       EffectKind = "navigate"
	EffectMediaStop      EffectKind = "media_stop"
)

// Notice and dialog codes.
const (
	CodeTabFirstWarning    = "tab_first_warning"
	CodeTabWarning         = "tab_warning"
	CodeTabFinalWarning    = "tab_final_warning"
	CodeTabTerminated      = "tab_terminated"
	CodeFullscreenExited   = "fullscreen_exited"
	CodeFullscreenRequired = "fullscreen_required"
	CodeEscapeKey          = "escape_key"
	CodeTypingSpeed        = "typing_speed"
	CodeMouseBoundary      = "mouse_boundary"
	CodeMediaConnected     = "media_connected"
	CodeMediaError         = "media_error"
	CodeTimeWarning        = "time_warning"
	CodeRiskTerminated     = "risk_terminated"
	CodeClipboardBlocked   = "clipboard_blocked"
	CodeSubmissionError    = "submission_error"
)

// Termination and completion reasons.
const (
	ReasonTabSwitches = "tab_switch_limit"
	ReasonRisk        = "risk_threshold"
	ReasonTimeUp      = "time_up"
	ReasonManual      = "manual"
)

// Effect is an instruction for the client or the session runtime.
type Effect struct {
	Kind    EffectKind `json:"kind"`
	Code    string     `json:"code,omitempty"`
	Title   string     `json:"title,omitempty"`
	Message string     `json:"message,omitempty"`
	// Soft dialogs may be dismissed by retrying.
	Soft bool      `json:"soft,omitempty"`
	Risk int       `json:"risk,omitempty"`
	At   time.Time `json:"at"`

	// submit
	Forced     bool   `json:"forced,omitempty"`
	Terminated bool   `json:"terminated,omitempty"`
	Reason     string `json:"reason,omitempty"`

	// navigate
	To string `json:"to,omitempty"`
}
