package submission

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Vaibhav2824/IntegriGuard/internal/kv"
	"github.com/Vaibhav2824/IntegriGuard/internal/proctor"
	"github.com/Vaibhav2824/IntegriGuard/internal/result"
)

const observerTimeout = 3 * time.Second

// AttemptTracker marks an attempt in progress when its session starts.
type AttemptTracker struct {
	proctor.NopObserver
	attempts result.StudentExamStore
}

func NewAttemptTracker(s result.StudentExamStore) *AttemptTracker {
	return &AttemptTracker{attempts: s}
}

func (a *AttemptTracker) Started(st proctor.State) {
	ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
	defer cancel()
	started := st.StartedAt.Unix()
	err := a.attempts.Upsert(ctx, result.StudentExam{
		ID: uuid.NewString(), StudentID: st.StudentID, ExamID: st.ExamID,
		Status: result.AttemptInProgress, StartedAt: &started,
	})
	if err != nil {
		log.Printf("submission: session %s: mark attempt started: %v", st.ID, err)
	}
}

// Session-scoped key names, stored under "session:{id}:".
const (
	KeyExamStartTime        = "examStartTime"
	KeyCurrentQuestionIndex = "currentQuestionIndex"
	KeyCurrentExamID        = "currentExamId"
	KeyExamSubmitted        = "examSubmitted"
)

// SessionKey builds the full key for a session-scoped value.
func SessionKey(sessionID, name string) string {
	return "session:" + sessionID + ":" + name
}

// SessionKeys mirrors live session progress into the key-value store and
// clears it once the result has been written.
type SessionKeys struct {
	proctor.NopObserver
	kv  kv.Store
	ttl time.Duration
}

func NewSessionKeys(s kv.Store, ttl time.Duration) *SessionKeys {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionKeys{kv: s, ttl: ttl}
}

func (k *SessionKeys) set(ctx context.Context, id, name, val string) {
	if err := k.kv.Set(ctx, SessionKey(id, name), []byte(val), k.ttl); err != nil {
		log.Printf("submission: session %s: set %s: %v", id, name, err)
	}
}

func (k *SessionKeys) Started(st proctor.State) {
	ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
	defer cancel()
	k.set(ctx, st.ID, KeyExamStartTime, st.StartedAt.UTC().Format(time.RFC3339))
	k.set(ctx, st.ID, KeyCurrentExamID, st.ExamID)
	k.set(ctx, st.ID, KeyCurrentQuestionIndex, "0")
	k.set(ctx, st.ID, KeyExamSubmitted, "false")
}

func (k *SessionKeys) Signal(st proctor.State, sig proctor.Signal) {
	if sig.Kind != proctor.SignalQuestionChange {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
	defer cancel()
	k.set(ctx, st.ID, KeyCurrentQuestionIndex, strconv.Itoa(st.QuestionIndex))
}

func (k *SessionKeys) Submitted(sub proctor.Submission, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
	defer cancel()
	if err != nil {
		// keep progress around so the attempt can be inspected
		k.set(ctx, sub.SessionID, KeyExamSubmitted, "error")
		return
	}
	id := sub.SessionID
	if derr := k.kv.Delete(ctx,
		SessionKey(id, KeyExamStartTime), SessionKey(id, KeyCurrentExamID),
		SessionKey(id, KeyCurrentQuestionIndex), SessionKey(id, KeyExamSubmitted)); derr != nil {
		log.Printf("submission: session %s: clear keys: %v", id, derr)
	}
}
