// Package submission persists finished proctoring sessions: it grades the
// answers, stores the behaviour snapshot and records the exam result.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Vaibhav2824/IntegriGuard/internal/analysis"
	"github.com/Vaibhav2824/IntegriGuard/internal/exam"
	"github.com/Vaibhav2824/IntegriGuard/internal/grading"
	"github.com/Vaibhav2824/IntegriGuard/internal/proctor"
	"github.com/Vaibhav2824/IntegriGuard/internal/result"
	"github.com/Vaibhav2824/IntegriGuard/internal/storage"
)

// Exams is the part of exam.Service the writer needs.
type Exams interface {
	Questions(ctx context.Context, examID string, withAnswers bool) ([]exam.Question, error)
	RecordResult(ctx context.Context, examID string, score float64) error
}

// EventLog is satisfied by syncx.EventRepo.
type EventLog interface {
	Append(ctx context.Context, typ, key string, data any) error
}

const (
	EventSubmitted  = "exam.submitted"
	EventTerminated = "exam.terminated"
)

type Writer struct {
	exams    Exams
	grader   grading.Grader
	blobs    storage.BlobStore
	results  result.Store
	attempts result.StudentExamStore
	events   EventLog
	idle     time.Duration
}

type Deps struct {
	Exams    Exams
	Grader   grading.Grader
	Blobs    storage.BlobStore
	Results  result.Store
	Attempts result.StudentExamStore
	Events   EventLog // optional
	// IdleWindow converts idle-window counts into seconds for analysis.
	IdleWindow time.Duration
}

func NewWriter(d Deps) *Writer {
	if d.Grader == nil {
		d.Grader = grading.NewDefaultGrader()
	}
	if d.IdleWindow <= 0 {
		d.IdleWindow = proctor.DefaultPolicy().IdleWindow
	}
	return &Writer{
		exams: d.Exams, grader: d.Grader, blobs: d.Blobs, results: d.Results,
		attempts: d.Attempts, events: d.Events, idle: d.IdleWindow,
	}
}

// Snapshot is the JSON document stored next to every result.
type Snapshot struct {
	SessionID string               `json:"sessionId"`
	Counters  proctor.Counters     `json:"counters"`
	Outcome   proctor.Outcome      `json:"outcome"`
	Behavior  proctor.BehaviorData `json:"behavior"`
	Features  analysis.Features    `json:"features"`
	Marks     []grading.Mark       `json:"marks"`
}

// WriteResult implements proctor.ResultWriter. A second write for the same
// exam and student keeps the first result.
func (w *Writer) WriteResult(ctx context.Context, sub proctor.Submission) error {
	qs, err := w.exams.Questions(ctx, sub.ExamID, true)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	report := grading.Score(ctx, w.grader, gradingQuestions(qs), responses(sub.Answers))
	features := analysis.FromBehavior(sub.Behavior, w.idle)

	snapKey := storage.SnapshotKey(sub.ExamID, sub.StudentID)
	if w.blobs != nil {
		body, err := json.Marshal(Snapshot{
			SessionID: sub.SessionID, Counters: sub.Counters, Outcome: sub.Outcome,
			Behavior: sub.Behavior, Features: features, Marks: report.Marks,
		})
		if err != nil {
			return err
		}
		if snapKey, err = w.blobs.Put(ctx, snapKey, bytes.NewReader(body)); err != nil {
			return fmt.Errorf("store snapshot: %w", err)
		}
	} else {
		snapKey = ""
	}

	r := result.ExamResult{
		ID:                uuid.NewString(),
		ExamID:            sub.ExamID,
		StudentID:         sub.StudentID,
		Name:              sub.StudentName,
		Email:             sub.StudentEmail,
		Score:             report.Percent(),
		TimeSpent:         sub.TimeSpent(),
		SubmittedAt:       sub.SubmittedAt.Unix(),
		RiskScore:         sub.Outcome.Risk,
		Status:            result.StatusCompleted,
		WasTerminated:     sub.Outcome.Terminated,
		TabSwitches:       sub.Counters.TabSwitches,
		BehaviorFlags:     analysis.Flags(features),
		TerminationReason: terminationText(sub.Outcome),
		SnapshotKey:       snapKey,
	}
	if r.WasTerminated {
		r.Status = result.StatusTerminated
	}

	stored, created, err := w.results.Put(ctx, r)
	if err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	if !created {
		log.Printf("submission: result for exam %s student %s already stored as %s", sub.ExamID, sub.StudentID, stored.ID)
		return nil
	}

	done := sub.SubmittedAt.Unix()
	started := sub.StartedAt.Unix()
	if err := w.attempts.Upsert(ctx, result.StudentExam{
		ID: uuid.NewString(), StudentID: sub.StudentID, ExamID: sub.ExamID,
		Score: r.Score, Status: result.AttemptCompleted, StartedAt: &started, CompletedAt: &done,
	}); err != nil {
		return fmt.Errorf("store attempt: %w", err)
	}
	if err := w.exams.RecordResult(ctx, sub.ExamID, r.Score); err != nil {
		// the result itself is stored; the running average can lag
		log.Printf("submission: exam %s: update average: %v", sub.ExamID, err)
	}
	if w.events != nil {
		typ := EventSubmitted
		if r.WasTerminated {
			typ = EventTerminated
		}
		if err := w.events.Append(ctx, typ, "exam:"+sub.ExamID, r); err != nil {
			log.Printf("submission: exam %s: append event: %v", sub.ExamID, err)
		}
	}
	return nil
}

func gradingQuestions(qs []exam.Question) []grading.Q {
	out := make([]grading.Q, 0, len(qs))
	for _, q := range qs {
		gq := grading.Q{ID: q.ID, Type: string(q.Type), Points: q.Points}
		if q.Answer != "" {
			gq.AnswerKey = []string{q.Answer}
		}
		out = append(out, gq)
	}
	return out
}

func responses(answers map[string]proctor.Answer) map[string]string {
	out := make(map[string]string, len(answers))
	for id, a := range answers {
		if a.FileKey != "" {
			out[id] = a.FileKey
			continue
		}
		out[id] = a.Value
	}
	return out
}

func terminationText(o proctor.Outcome) string {
	if !o.Terminated {
		return ""
	}
	switch o.Reason {
	case proctor.ReasonTabSwitches:
		return "Exceeded maximum tab switches"
	case proctor.ReasonRisk:
		return fmt.Sprintf("Risk score %d reached the termination threshold", o.Risk)
	default:
		return "Terminated: " + o.Reason
	}
}
