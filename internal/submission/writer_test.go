package submission

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
	"github.com/Vaibhav2824/IntegriGuard/internal/db/dbtest"
	"github.com/Vaibhav2824/IntegriGuard/internal/exam"
	"github.com/Vaibhav2824/IntegriGuard/internal/kv"
	"github.com/Vaibhav2824/IntegriGuard/internal/proctor"
	"github.com/Vaibhav2824/IntegriGuard/internal/result"
	"github.com/Vaibhav2824/IntegriGuard/internal/storage"
	syncx "github.com/Vaibhav2824/IntegriGuard/internal/sync"
)

type fixture struct {
	writer   *Writer
	exams    *exam.Service
	results  *result.SQLStore
	attempts *result.SQLStudentExamStore
	blobs    *storage.FSStore
	events   *syncx.EventRepo
	kv       *kv.MemoryStore
}

func newFixture(t *testing.T) fixture {
	conn := dbtest.Open(t)
	blobs, err := storage.NewFSStore(t.TempDir(), "")
	require.NoError(t, err)
	mem := kv.NewMemoryStore()
	f := fixture{
		exams:    exam.NewService(exam.NewKVStore(mem)),
		results:  result.NewSQLStore(conn),
		attempts: result.NewSQLStudentExamStore(conn),
		blobs:    blobs,
		events:   syncx.NewEventRepo(conn, ""),
		kv:       mem,
	}
	f.writer = NewWriter(Deps{
		Exams: f.exams, Blobs: f.blobs, Results: f.results, Attempts: f.attempts, Events: f.events,
	})
	return f
}

func sampleSubmission(at time.Time) proctor.Submission {
	return proctor.Submission{
		SessionID:    "sess-1",
		ExamID:       "1",
		StudentID:    "stu-1",
		StudentName:  "Ada",
		StudentEmail: "ada@example.com",
		StartedAt:    at,
		SubmittedAt:  at.Add(42*time.Minute + 30*time.Second),
		Answers: map[string]proctor.Answer{
			"q1": {QuestionID: "q1", Value: "3.14"},
			"q2": {QuestionID: "q2", Value: "11"},
			"q3": {QuestionID: "q3", Value: "a² + b² = c²"},
			"q4": {QuestionID: "q4", Value: "3x²"},
		},
		Counters: proctor.Counters{TabSwitches: 1},
		Outcome:  proctor.Outcome{Risk: 15, At: at},
		Behavior: proctor.BehaviorData{TabSwitches: 1},
	}
}

func TestWriteResultGradesAndStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Unix(1_700_000_000, 0)

	require.NoError(t, f.writer.WriteResult(ctx, sampleSubmission(at)))

	rs, err := f.results.ByExam(ctx, "1")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	r := rs[0]
	// q1 and q4 right, q2 wrong; q3 and q5 await review
	assert.Equal(t, 66.7, r.Score)
	assert.Equal(t, 42, r.TimeSpent)
	assert.Equal(t, result.StatusCompleted, r.Status)
	assert.False(t, r.WasTerminated)
	assert.Equal(t, 15, r.RiskScore)
	assert.Equal(t, "snapshots/1/stu-1.json", r.SnapshotKey)

	rc, err := f.blobs.Get(ctx, r.SnapshotKey)
	require.NoError(t, err)
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, "sess-1", snap.SessionID)
	assert.Len(t, snap.Marks, 5)

	att, err := f.attempts.Get(ctx, "stu-1", "1")
	require.NoError(t, err)
	assert.Equal(t, result.AttemptCompleted, att.Status)

	e, err := f.exams.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 1, e.Participants)

	evs, err := f.events.Since(ctx, "exam:1", 0, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, EventSubmitted, evs[0].Type)
}

func TestWriteResultIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Unix(1_700_000_000, 0)

	require.NoError(t, f.writer.WriteResult(ctx, sampleSubmission(at)))
	again := sampleSubmission(at)
	again.Answers = nil
	require.NoError(t, f.writer.WriteResult(ctx, again))

	rs, err := f.results.ByExam(ctx, "1")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, 66.7, rs[0].Score)

	e, err := f.exams.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 1, e.Participants, "duplicate write does not count twice")
}

func TestTerminatedSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := sampleSubmission(time.Unix(1_700_000_000, 0))
	sub.Outcome = proctor.Outcome{Forced: true, Terminated: true, Reason: proctor.ReasonTabSwitches, Risk: 45}
	sub.Counters.TabSwitches = 3

	require.NoError(t, f.writer.WriteResult(ctx, sub))
	rs, err := f.results.ByStudent(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, result.StatusTerminated, rs[0].Status)
	assert.True(t, rs[0].WasTerminated)
	assert.Equal(t, 3, rs[0].TabSwitches)
	assert.Equal(t, "Exceeded maximum tab switches", rs[0].TerminationReason)

	evs, err := f.events.Since(ctx, "", 0, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, EventTerminated, evs[0].Type)
}

func TestWriteResultUnknownExam(t *testing.T) {
	f := newFixture(t)
	sub := sampleSubmission(time.Unix(1_700_000_000, 0))
	sub.ExamID = "nope"
	err := f.writer.WriteResult(context.Background(), sub)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSessionEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clock := time.Unix(1_700_000_000, 0)
	now := func() time.Time { return clock }

	keys := NewSessionKeys(f.kv, time.Hour)
	mgr := proctor.NewManager(proctor.DefaultPolicy(), f.writer,
		proctor.WithTickEvery(0),
		proctor.WithClock(now),
		proctor.WithObservers(NewAttemptTracker(f.attempts), keys),
	)
	defer mgr.Shutdown(ctx)

	sess, err := mgr.Start(ctx, proctor.StartRequest{
		ExamID: "1", StudentID: "stu-9", StudentName: "Grace", Duration: 90 * time.Minute,
		Questions: []proctor.QuestionRef{{ID: "q1", Type: "multiple-choice"}, {ID: "q2", Type: "multiple-choice"}},
	})
	require.NoError(t, err)

	require.NoError(t, sess.SaveAnswer(ctx, proctor.Answer{QuestionID: "q1", Value: "3.14"}))
	require.NoError(t, sess.Send(ctx, proctor.Signal{Kind: proctor.SignalQuestionChange, QuestionIndex: 1}))

	require.Eventually(t, func() bool {
		b, err := f.kv.Get(ctx, SessionKey(sess.ID(), KeyCurrentQuestionIndex))
		return err == nil && string(b) == "1"
	}, time.Second, 5*time.Millisecond)

	att, err := f.attempts.Get(ctx, "stu-9", "1")
	require.NoError(t, err)
	assert.Equal(t, result.AttemptInProgress, att.Status)

	_, err = sess.Submit(ctx)
	require.NoError(t, err)

	rs, err := f.results.ByStudent(ctx, "stu-9")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, 33.3, rs[0].Score)

	_, err = f.kv.Get(ctx, SessionKey(sess.ID(), KeyExamStartTime))
	assert.ErrorIs(t, err, common.ErrNotFound)
}
