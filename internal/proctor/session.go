package proctor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
)

const (
	queueSize     = 64
	outboxSize    = 256
	subBufferSize = 32
)

// QuestionRef is the part of a question the session needs.
type QuestionRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type Answer struct {
	QuestionID string    `json:"questionId"`
	Value      string    `json:"value"`
	FileKey    string    `json:"fileKey,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Submission is the final snapshot handed to the ResultWriter.
type Submission struct {
	SessionID    string            `json:"sessionId"`
	ExamID       string            `json:"examId"`
	StudentID    string            `json:"studentId"`
	StudentName  string            `json:"studentName"`
	StudentEmail string            `json:"studentEmail"`
	StartedAt    time.Time         `json:"startedAt"`
	SubmittedAt  time.Time         `json:"submittedAt"`
	Answers      map[string]Answer `json:"answers"`
	Counters     Counters          `json:"counters"`
	Outcome      Outcome           `json:"outcome"`
	Behavior     BehaviorData      `json:"behavior"`
}

// TimeSpent is rounded down to whole minutes.
func (s Submission) TimeSpent() int {
	return int(s.SubmittedAt.Sub(s.StartedAt) / time.Minute)
}

// ResultWriter persists a finished session. Writing the same exam and
// student twice must not create a second record.
type ResultWriter interface {
	WriteResult(ctx context.Context, sub Submission) error
}

// Locker guards finalisation across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Observer receives session lifecycle callbacks on the session goroutine.
// Implementations must not block for long.
type Observer interface {
	Started(st State)
	Signal(st State, sig Signal)
	Effect(st State, e Effect)
	Submitted(sub Submission, err error)
	Ended(st State)
}

// NopObserver can be embedded to implement only part of Observer.
type NopObserver struct{}

func (NopObserver) Started(State)               {}
func (NopObserver) Signal(State, Signal)        {}
func (NopObserver) Effect(State, Effect)        {}
func (NopObserver) Submitted(Submission, error) {}
func (NopObserver) Ended(State)                 {}

// State is a point-in-time view of a session.
type State struct {
	ID            string    `json:"id"`
	ExamID        string    `json:"examId"`
	StudentID     string    `json:"studentId"`
	Phase         Phase     `json:"phase"`
	Counters      Counters  `json:"counters"`
	Risk          int       `json:"riskScore"`
	RiskLevel     string    `json:"riskLevel"`
	Fullscreen    bool      `json:"fullscreen"`
	QuestionIndex int       `json:"currentQuestionIndex"`
	Answered      int       `json:"answered"`
	StartedAt     time.Time `json:"startedAt"`
	Deadline      time.Time `json:"deadline,omitempty"`
	TimeLeftSec   int       `json:"timeLeftSec"`
	Outcome       *Outcome  `json:"outcome,omitempty"`
}

// Notice is an effect with its position in the session outbox.
type Notice struct {
	Seq int64 `json:"seq"`
	Effect
}

type SessionConfig struct {
	ID           string
	ExamID       string
	StudentID    string
	StudentName  string
	StudentEmail string
	Duration     time.Duration
	Questions    []QuestionRef
	Policy       Policy

	// TickEvery drives countdown and risk ticks. Zero disables the ticker;
	// ticks can then be sent as signals.
	TickEvery    time.Duration
	Now          func() time.Time
	Writer       ResultWriter
	Locker       Locker
	LockTTL      time.Duration
	WriteTimeout time.Duration
	Observers    []Observer
}

type command struct {
	sig    *Signal
	answer *Answer
	submit bool
}

// Session owns one Tracker on one goroutine. Every signal, answer and
// submit request goes through its queue.
type Session struct {
	cfg       SessionConfig
	tracker   *Tracker
	questions map[string]QuestionRef

	// loop-only
	answers       map[string]Answer
	questionIndex int

	queue  chan command
	done   chan struct{}
	cancel context.CancelFunc

	submitted atomic.Bool

	mu        sync.RWMutex
	state     State
	result    *Submission
	submitErr error
	outbox    []Notice
	seq       int64
	subs      map[int]chan Notice
	nextSub   int
}

// StartSession creates a session and starts its goroutine.
func StartSession(cfg SessionConfig) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	qs := make(map[string]QuestionRef, len(cfg.Questions))
	for _, q := range cfg.Questions {
		qs[q.ID] = q
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:       cfg,
		tracker:   NewTracker(cfg.Policy, cfg.Duration),
		questions: qs,
		answers:   map[string]Answer{},
		queue:     make(chan command, queueSize),
		done:      make(chan struct{}),
		cancel:    cancel,
		subs:      map[int]chan Notice{},
	}
	s.state = State{ID: cfg.ID, ExamID: cfg.ExamID, StudentID: cfg.StudentID, Phase: PhaseInitializing}
	go s.run(ctx)
	return s
}

func (s *Session) ID() string { return s.cfg.ID }

// QuestionCount is the number of questions the session was started with.
func (s *Session) QuestionCount() int { return len(s.cfg.Questions) }

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Send queues a signal. Signals without a timestamp are stamped now.
func (s *Session) Send(ctx context.Context, sig Signal) error {
	if s.submitted.Load() {
		return common.ErrSessionClosed
	}
	if sig.Kind == SignalQuestionChange && (sig.QuestionIndex < 0 || sig.QuestionIndex >= len(s.cfg.Questions)) {
		return &common.ValidationError{Fields: []common.FieldError{{
			Field: "questionIndex",
			Error: fmt.Sprintf("question index %d out of range [0,%d)", sig.QuestionIndex, len(s.cfg.Questions)),
		}}}
	}
	if sig.At.IsZero() {
		sig.At = s.cfg.Now()
	}
	return s.enqueue(ctx, command{sig: &sig})
}

// Acknowledge dismisses the final-warning dialog.
func (s *Session) Acknowledge(ctx context.Context) error {
	return s.Send(ctx, Signal{Kind: SignalAckWarning})
}

// SaveAnswer records the latest answer for a question.
func (s *Session) SaveAnswer(ctx context.Context, a Answer) error {
	if s.submitted.Load() {
		return common.ErrSessionClosed
	}
	if _, ok := s.questions[a.QuestionID]; !ok {
		return common.ErrNotFound
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = s.cfg.Now()
	}
	return s.enqueue(ctx, command{answer: &a})
}

// Submit finalises the session once. Later callers get ErrSessionClosed
// without waiting.
func (s *Session) Submit(ctx context.Context) (Submission, error) {
	if !s.submitted.CompareAndSwap(false, true) {
		return Submission{}, common.ErrSessionClosed
	}
	select {
	case s.queue <- command{submit: true}:
	case <-s.done:
	}
	select {
	case <-s.done:
	case <-ctx.Done():
		return Submission{}, ctx.Err()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return Submission{}, common.ErrSessionClosed
	}
	return *s.result, s.submitErr
}

// Result returns the submission once the session has been finalised.
func (s *Session) Result() (Submission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return Submission{}, false
	}
	return *s.result, true
}

// Close stops the session without submitting and waits for teardown.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

func (s *Session) Snapshot() State {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()
	if !st.Deadline.IsZero() && st.Outcome == nil {
		if left := st.Deadline.Sub(s.cfg.Now()); left > 0 {
			st.TimeLeftSec = int(left / time.Second)
		}
	}
	return st
}

// Notices returns outbox entries with Seq greater than after.
func (s *Session) Notices(after int64) []Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notice, 0, len(s.outbox))
	for _, n := range s.outbox {
		if n.Seq > after {
			out = append(out, n)
		}
	}
	return out
}

// Subscribe streams new notices until cancel is called or the session ends.
func (s *Session) Subscribe() (<-chan Notice, func()) {
	ch := make(chan Notice, subBufferSize)
	s.mu.Lock()
	if s.subs == nil {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
			s.mu.Unlock()
		})
	}
}

func (s *Session) enqueue(ctx context.Context, cmd command) error {
	select {
	case <-s.done:
		return common.ErrSessionClosed
	default:
	}
	select {
	case s.queue <- cmd:
		return nil
	case <-s.done:
		return common.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) run(ctx context.Context) {
	defer s.teardown()

	now := s.cfg.Now()
	s.tracker.Apply(Signal{Kind: SignalStart, At: now})
	if len(s.cfg.Questions) > 0 {
		// the first question is on screen before any question_change
		s.tracker.Apply(Signal{Kind: SignalQuestionChange, QuestionType: s.cfg.Questions[0].Type, At: now})
	}
	st := s.refresh()
	for _, o := range s.cfg.Observers {
		o.Started(st)
	}

	var tick <-chan time.Time
	if s.cfg.TickEvery > 0 {
		t := time.NewTicker(s.cfg.TickEvery)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			if s.apply(Signal{Kind: SignalTick, At: s.cfg.Now()}) {
				return
			}
		case cmd := <-s.queue:
			if s.handle(cmd) {
				return
			}
		}
	}
}

// handle reports whether the session finished.
func (s *Session) handle(cmd command) bool {
	switch {
	case cmd.submit:
		return s.dispatch(s.tracker.RequestSubmit(s.cfg.Now(), ReasonManual))
	case cmd.answer != nil:
		s.answers[cmd.answer.QuestionID] = *cmd.answer
		s.refresh()
		return false
	case cmd.sig != nil:
		sig := *cmd.sig
		sig.QuestionType = ""
		if sig.Kind == SignalQuestionChange {
			s.questionIndex = sig.QuestionIndex
			sig.QuestionType = s.cfg.Questions[sig.QuestionIndex].Type
		}
		return s.apply(sig)
	}
	return false
}

func (s *Session) apply(sig Signal) bool {
	effs := s.tracker.Apply(sig)
	st := s.refresh()
	if sig.Kind != SignalTick {
		for _, o := range s.cfg.Observers {
			o.Signal(st, sig)
		}
	}
	return s.dispatch(effs)
}

func (s *Session) dispatch(effs []Effect) bool {
	for _, e := range effs {
		if e.Kind == EffectSubmit {
			s.submitted.Store(true)
			s.finalize(e)
			return true
		}
		s.publish(e)
	}
	return false
}

func (s *Session) finalize(e Effect) {
	s.publish(Effect{Kind: EffectExitFullscreen, At: e.At})

	outcome, _ := s.tracker.Outcome()
	answers := make(map[string]Answer, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	sub := Submission{
		SessionID:    s.cfg.ID,
		ExamID:       s.cfg.ExamID,
		StudentID:    s.cfg.StudentID,
		StudentName:  s.cfg.StudentName,
		StudentEmail: s.cfg.StudentEmail,
		StartedAt:    s.tracker.StartedAt(),
		SubmittedAt:  e.At,
		Answers:      answers,
		Counters:     s.tracker.Counters(),
		Outcome:      outcome,
		Behavior:     s.tracker.Behavior(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	err := s.write(ctx, sub)
	cancel()
	if err != nil {
		log.Printf("proctor: session %s: write result: %v", s.cfg.ID, err)
		s.publish(notice(e.At, CodeSubmissionError, "Submission Error",
			"There was a problem saving your exam. Your answers were recorded locally."))
	}

	s.tracker.MarkSubmitted()
	s.mu.Lock()
	s.result = &sub
	s.submitErr = err
	s.mu.Unlock()
	s.refresh()

	for _, o := range s.cfg.Observers {
		o.Submitted(sub, err)
	}
	s.publish(Effect{Kind: EffectNavigate, To: "/dashboard", At: e.At})
}

func (s *Session) write(ctx context.Context, sub Submission) error {
	if s.cfg.Writer == nil {
		return nil
	}
	if s.cfg.Locker != nil {
		key := "proctor:submit:" + sub.ExamID + ":" + sub.StudentID
		release, ok, err := s.cfg.Locker.Acquire(ctx, key, s.cfg.LockTTL)
		switch {
		case err != nil:
			log.Printf("proctor: session %s: submit lock unavailable: %v", s.cfg.ID, err)
		case !ok:
			log.Printf("proctor: session %s: result already being written elsewhere", s.cfg.ID)
			return nil
		default:
			defer release()
		}
	}
	return s.cfg.Writer.WriteResult(ctx, sub)
}

func (s *Session) publish(e Effect) {
	st := s.Snapshot()
	s.mu.Lock()
	s.seq++
	n := Notice{Seq: s.seq, Effect: e}
	s.outbox = append(s.outbox, n)
	if len(s.outbox) > outboxSize {
		s.outbox = s.outbox[len(s.outbox)-outboxSize:]
	}
	for _, ch := range s.subs {
		select {
		case ch <- n:
		default:
		}
	}
	s.mu.Unlock()

	for _, o := range s.cfg.Observers {
		o.Effect(st, e)
	}
}

func (s *Session) refresh() State {
	t := s.tracker
	st := State{
		ID:            s.cfg.ID,
		ExamID:        s.cfg.ExamID,
		StudentID:     s.cfg.StudentID,
		Phase:         t.Phase(),
		Counters:      t.Counters(),
		Risk:          t.Risk(),
		RiskLevel:     RiskLevel(t.Risk(), s.cfg.Policy),
		Fullscreen:    t.Fullscreen(),
		QuestionIndex: s.questionIndex,
		Answered:      len(s.answers),
		StartedAt:     t.StartedAt(),
		Deadline:      t.Deadline(),
	}
	if o, ok := t.Outcome(); ok {
		st.Outcome = &o
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return st
}

func (s *Session) teardown() {
	s.cancel()
	s.publish(Effect{Kind: EffectMediaStop, At: s.cfg.Now()})
	st := s.Snapshot()

	s.mu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subs = nil
	s.mu.Unlock()

	for _, o := range s.cfg.Observers {
		o.Ended(st)
	}
	close(s.done)
}
