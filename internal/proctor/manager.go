package proctor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
)

type StartRequest struct {
	ExamID       string
	StudentID    string
	StudentName  string
	StudentEmail string
	Duration     time.Duration
	Questions    []QuestionRef
}

// Manager keeps the live sessions of this process.
type Manager struct {
	policy    Policy
	writer    ResultWriter
	locker    Locker
	observers []Observer
	tickEvery time.Duration
	now       func() time.Time

	// finished sessions stay readable for retain after they end
	retain time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
	live     map[string]string // exam/student -> session id
	ended    map[string]time.Time
}

type Option func(*Manager)

func WithLocker(l Locker) Option { return func(m *Manager) { m.locker = l } }

func WithObservers(o ...Observer) Option {
	return func(m *Manager) { m.observers = append(m.observers, o...) }
}

// WithTickEvery overrides the 1s session tick; zero disables ticking.
func WithTickEvery(d time.Duration) Option { return func(m *Manager) { m.tickEvery = d } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithRetention(d time.Duration) Option { return func(m *Manager) { m.retain = d } }

func NewManager(policy Policy, writer ResultWriter, opts ...Option) *Manager {
	m := &Manager{
		policy:    policy,
		writer:    writer,
		tickEvery: time.Second,
		now:       time.Now,
		retain:    10 * time.Minute,
		sessions:  map[string]*Session{},
		live:      map[string]string{},
		ended:     map[string]time.Time{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) Policy() Policy { return m.policy }

// Start returns the live session for the exam and student, creating one
// if none is running.
func (m *Manager) Start(_ context.Context, req StartRequest) (*Session, error) {
	if req.ExamID == "" || req.StudentID == "" {
		return nil, fmt.Errorf("%w: exam and student are required", common.ErrValidation)
	}
	key := req.ExamID + "/" + req.StudentID

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	if id, ok := m.live[key]; ok {
		if s, ok := m.sessions[id]; ok {
			return s, nil
		}
	}

	id := uuid.NewString()
	observers := append([]Observer{}, m.observers...)
	observers = append(observers, &reaper{m: m, key: key})
	s := StartSession(SessionConfig{
		ID:           id,
		ExamID:       req.ExamID,
		StudentID:    req.StudentID,
		StudentName:  req.StudentName,
		StudentEmail: req.StudentEmail,
		Duration:     req.Duration,
		Questions:    req.Questions,
		Policy:       m.policy,
		TickEvery:    m.tickEvery,
		Now:          m.now,
		Writer:       m.writer,
		Locker:       m.locker,
		Observers:    observers,
	})
	m.sessions[id] = s
	m.live[key] = id
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return s, nil
}

// Active counts sessions that have not ended.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

func (m *Manager) sweepLocked() {
	cutoff := m.now().Add(-m.retain)
	for id, at := range m.ended {
		if at.Before(cutoff) {
			delete(m.ended, id)
			delete(m.sessions, id)
		}
	}
}

// Shutdown closes every live session without submitting.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.live))
	for _, id := range m.live {
		all = append(all, m.sessions[id])
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(s)
	}
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reaper marks a session as ended when its goroutine exits.
type reaper struct {
	NopObserver
	m   *Manager
	key string
}

func (r *reaper) Ended(st State) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.ended[st.ID] = r.m.now()
	if r.m.live[r.key] == st.ID {
		delete(r.m.live, r.key)
	}
}
