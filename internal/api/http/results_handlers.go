package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Vaibhav2824/IntegriGuard/internal/analysis"
	"github.com/Vaibhav2824/IntegriGuard/internal/common"
	"github.com/Vaibhav2824/IntegriGuard/internal/exam"
	"github.com/Vaibhav2824/IntegriGuard/internal/proctor"
	"github.com/Vaibhav2824/IntegriGuard/internal/rbac"
	"github.com/Vaibhav2824/IntegriGuard/internal/result"
)

// StudentResultsHandler lists a student's results, newest first. ?limit=N
// returns only the most recent N.
func StudentResultsHandler(results result.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := chi.URLParam(r, "studentID")
		var (
			rs  []result.ExamResult
			err error
		)
		if limit := parseIntDefault(r.URL.Query().Get("limit"), 0); limit > 0 {
			rs, err = results.Recent(r.Context(), studentID, limit)
		} else {
			rs, err = results.ByStudent(r.Context(), studentID)
		}
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusOK, rs)
	}
}

func StudentStatsHandler(results result.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := results.Stats(r.Context(), chi.URLParam(r, "studentID"))
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusOK, st)
	}
}

// AvailableExamsHandler lists exams the student can still sit: not
// completed, and no finished attempt on record. Newest first.
func AvailableExamsHandler(exams *exam.Service, attempts result.StudentExamStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		studentID := chi.URLParam(r, "studentID")
		all, err := exams.List(ctx, exam.ListOpts{Order: exam.OrderCreatedDesc})
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		out := make([]any, 0, len(all))
		for _, e := range all {
			if e.Status == exam.StatusCompleted {
				continue
			}
			att, err := attempts.Get(ctx, studentID, e.ID)
			switch {
			case err == nil && att.Status == result.AttemptCompleted:
				continue
			case err != nil && !errors.Is(err, common.ErrNotFound):
				common.RespondWithErr(w, err)
				return
			}
			out = append(out, examView(r, e))
		}
		common.RespondWithJSON(w, http.StatusOK, out)
	}
}

type performanceResponse struct {
	Result    result.ExamResult `json:"result"`
	Exam      any               `json:"exam"`
	Questions []exam.Question   `json:"questions"`
}

// ExamPerformanceHandler returns one result with its exam and questions.
// Answer keys are included once the exam is over or for reviewers.
func ExamPerformanceHandler(exams *exam.Service, results result.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		studentID, examID := chi.URLParam(r, "studentID"), chi.URLParam(r, "examID")

		e, err := exams.Get(ctx, examID)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		rs, err := results.ByStudent(ctx, studentID)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		var (
			res   result.ExamResult
			found bool
		)
		for _, x := range rs {
			if x.ExamID == e.ID {
				res, found = x, true
				break
			}
		}
		if !found {
			common.RespondWithErr(w, fmt.Errorf("no result for exam %s: %w", e.ID, common.ErrNotFound))
			return
		}

		withAnswers := e.Status == exam.StatusCompleted || rbac.Can(ctx, rbac.PermResultAny)
		qs, err := exams.Questions(ctx, e.ID, withAnswers)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusOK, performanceResponse{Result: res, Exam: examView(r, e), Questions: qs})
	}
}

// AnalyzeBehaviorHandler scores a feature vector posted by a reviewer.
func AnalyzeBehaviorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f analysis.Features
		if err := decodeJSON(w, r, &f); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusOK, analysis.Assess(f))
	}
}

// SessionAnalysisHandler scores the behaviour recorded by a finished
// session.
func SessionAnalysisHandler(mgr *proctor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := mgr.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		sub, ok := sess.Result()
		if !ok {
			common.RespondWithError(w, http.StatusConflict, "session is still running")
			return
		}
		f := analysis.FromBehavior(sub.Behavior, mgr.Policy().IdleWindow)
		common.RespondWithJSON(w, http.StatusOK, struct {
			Features analysis.Features `json:"features"`
			analysis.Assessment
		}{f, analysis.Assess(f)})
	}
}
