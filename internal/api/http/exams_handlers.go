package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
	"github.com/Vaibhav2824/IntegriGuard/internal/exam"
	"github.com/Vaibhav2824/IntegriGuard/internal/rbac"
	"github.com/Vaibhav2824/IntegriGuard/internal/result"
	"github.com/Vaibhav2824/IntegriGuard/internal/user"
)

func actor(r *http.Request) exam.Actor {
	id := identity(r)
	return exam.Actor{ID: id.ID, Admin: id.Role == string(user.RoleAdmin)}
}

// canManage reports whether the caller may see answer keys and results
// for e.
func canManage(r *http.Request, e exam.Exam) bool {
	if !rbac.Can(r.Context(), rbac.PermExamUpdate) {
		return false
	}
	a := actor(r)
	return a.Admin || e.CreatedBy == a.ID
}

// examView hides bookkeeping fields from callers who cannot edit exams.
func examView(r *http.Request, e exam.Exam) any {
	if rbac.Can(r.Context(), rbac.PermExamUpdate) {
		return e
	}
	return e.Variant()
}

func ListExamsHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := exam.ListOpts{
			Q:      strings.TrimSpace(q.Get("q")),
			Status: exam.Status(q.Get("status")),
			From:   q.Get("from"),
			To:     q.Get("to"),
			Order:  exam.Order(q.Get("order")),
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		}
		if opts.Status != "" && !opts.Status.Valid() {
			common.RespondWithError(w, http.StatusBadRequest, "unknown status")
			return
		}
		if q.Get("mine") == "true" {
			opts.CreatedBy = identity(r).ID
		}
		list, err := exams.List(r.Context(), opts)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		out := make([]any, 0, len(list))
		for _, e := range list {
			out = append(out, examView(r, e))
		}
		common.RespondWithJSON(w, http.StatusOK, out)
	}
}

func CreateExamHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.CreateInput
		if err := decodeJSON(w, r, &in); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		e, err := exams.Create(r.Context(), actor(r), in)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusCreated, e)
	}
}

// GetExamHandler accepts an id or a slug.
func GetExamHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := exams.Get(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusOK, examView(r, e))
	}
}

func UpdateExamHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.UpdateInput
		if err := decodeJSON(w, r, &in); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		e, err := exams.Update(r.Context(), actor(r), chi.URLParam(r, "examID"), in)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusOK, e)
	}
}

func DeleteExamHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := exams.Delete(r.Context(), actor(r), chi.URLParam(r, "examID")); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListQuestionsHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := exams.Get(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		qs, err := exams.Questions(r.Context(), e.ID, canManage(r, e))
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusOK, qs)
	}
}

func AddQuestionHandler(exams *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.QuestionInput
		if err := decodeJSON(w, r, &in); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		q, err := exams.AddQuestion(r.Context(), actor(r), chi.URLParam(r, "examID"), in)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusCreated, q)
	}
}

func ExamResultsHandler(exams *exam.Service, results result.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := exams.Get(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		if !canManage(r, e) {
			common.RespondWithErr(w, common.ErrForbidden)
			return
		}
		rs, err := results.ByExam(r.Context(), e.ID)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusOK, rs)
	}
}
