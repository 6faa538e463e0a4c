package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
	"github.com/Vaibhav2824/IntegriGuard/internal/exam"
	"github.com/Vaibhav2824/IntegriGuard/internal/proctor"
	"github.com/Vaibhav2824/IntegriGuard/internal/rbac"
	"github.com/Vaibhav2824/IntegriGuard/internal/result"
	"github.com/Vaibhav2824/IntegriGuard/internal/storage"
)

const (
	maxUploadBytes  = 10 << 20
	streamKeepAlive = 15 * time.Second
)

type startResponse struct {
	Session   proctor.State   `json:"session"`
	Exam      exam.View       `json:"exam"`
	Questions []exam.Question `json:"questions"`
}

func StartSessionHandler(exams *exam.Service, attempts result.StudentExamStore, mgr *proctor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := identity(r)

		e, err := exams.Get(ctx, chi.URLParam(r, "examID"))
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		if e.Status == exam.StatusCompleted {
			common.RespondWithErr(w, fmt.Errorf("exam %s has ended: %w", e.ID, common.ErrConflict))
			return
		}
		att, err := attempts.Get(ctx, id.ID, e.ID)
		switch {
		case err == nil && att.Status == result.AttemptCompleted:
			common.RespondWithErr(w, fmt.Errorf("exam %s already taken: %w", e.ID, common.ErrConflict))
			return
		case err != nil && !errors.Is(err, common.ErrNotFound):
			common.RespondWithErr(w, err)
			return
		}

		qs, err := exams.Questions(ctx, e.ID, false)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		refs := make([]proctor.QuestionRef, 0, len(qs))
		for _, q := range qs {
			refs = append(refs, proctor.QuestionRef{ID: q.ID, Type: string(q.Type)})
		}

		sess, err := mgr.Start(ctx, proctor.StartRequest{
			ExamID:       e.ID,
			StudentID:    id.ID,
			StudentName:  id.Name,
			StudentEmail: id.Email,
			Duration:     e.Duration(),
			Questions:    refs,
		})
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusCreated, startResponse{Session: sess.Snapshot(), Exam: e.Variant(), Questions: qs})
	}
}

// loadSession finds the session in the URL. Only the student who owns it
// may write; monitors may also read.
func loadSession(w http.ResponseWriter, r *http.Request, mgr *proctor.Manager, write bool) (*proctor.Session, bool) {
	sess, err := mgr.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		common.RespondWithErr(w, err)
		return nil, false
	}
	owner := sess.Snapshot().StudentID == identity(r).ID
	if owner || (!write && rbac.Can(r.Context(), rbac.PermSessionMonitor)) {
		return sess, true
	}
	common.RespondWithErr(w, common.ErrForbidden)
	return nil, false
}

func GetSessionHandler(mgr *proctor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := loadSession(w, r, mgr, false)
		if !ok {
			return
		}
		common.RespondWithJSON(w, http.StatusOK, sess.Snapshot())
	}
}

type signalsRequest struct {
	Signals []proctor.Signal `json:"signals" validate:"required,min=1,max=500"`
}

// SignalsHandler queues browser events. Times are stamped by the server;
// start and tick are internal and rejected.
func SignalsHandler(mgr *proctor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := loadSession(w, r, mgr, true)
		if !ok {
			return
		}
		var in signalsRequest
		if err := decodeJSON(w, r, &in); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		for i, sig := range in.Signals {
			var fe *common.FieldError
			switch {
			case !proctor.ClientKinds[sig.Kind]:
				fe = &common.FieldError{Field: "signals[" + strconv.Itoa(i) + "].kind", Error: fmt.Sprintf("unknown signal kind %q", sig.Kind)}
			case sig.Kind == proctor.SignalQuestionChange && (sig.QuestionIndex < 0 || sig.QuestionIndex >= sess.QuestionCount()):
				fe = &common.FieldError{Field: "signals[" + strconv.Itoa(i) + "].questionIndex", Error: fmt.Sprintf("no question at index %d", sig.QuestionIndex)}
			}
			if fe != nil {
				common.RespondWithErr(w, &common.ValidationError{Fields: []common.FieldError{*fe}})
				return
			}
		}
		for _, sig := range in.Signals {
			sig.At = time.Time{}
			if err := sess.Send(r.Context(), sig); err != nil {
				common.RespondWithErr(w, err)
				return
			}
		}
		common.RespondWithJSON(w, http.StatusAccepted, sess.Snapshot())
	}
}

type answerRequest struct {
	QuestionID string `json:"questionId" validate:"required"`
	Value      string `json:"value" validate:"max=20000"`
}

func SaveAnswerHandler(mgr *proctor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := loadSession(w, r, mgr, true)
		if !ok {
			return
		}
		var in answerRequest
		if err := decodeJSON(w, r, &in); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		if err := sess.SaveAnswer(r.Context(), proctor.Answer{QuestionID: in.QuestionID, Value: in.Value}); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type uploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// UploadAnswerHandler stores a file-upload answer as a blob and records its
// key as the answer.
func UploadAnswerHandler(mgr *proctor.Manager, blobs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := loadSession(w, r, mgr, true)
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		f, hdr, err := r.FormFile("file")
		if err != nil {
			common.RespondWithError(w, http.StatusBadRequest, "file required")
			return
		}
		defer f.Close()

		st := sess.Snapshot()
		qid := chi.URLParam(r, "questionID")
		key, err := blobs.Put(r.Context(), storage.UploadKey(st.ExamID, st.StudentID, qid, hdr.Filename), f)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		if err := sess.SaveAnswer(r.Context(), proctor.Answer{QuestionID: qid, Value: hdr.Filename, FileKey: key}); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusCreated, uploadResponse{Key: key, URL: blobs.URL(key)})
	}
}

func AckHandler(mgr *proctor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := loadSession(w, r, mgr, true)
		if !ok {
			return
		}
		if err := sess.Acknowledge(r.Context()); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusAccepted, sess.Snapshot())
	}
}

type submitResponse struct {
	Submission proctor.Submission `json:"submission"`
	Saved      bool               `json:"saved"`
	Error      string             `json:"error,omitempty"`
}

// SubmitHandler finalises the session. A failed result write still ends the
// session; the client is told the result was not saved.
func SubmitHandler(mgr *proctor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := loadSession(w, r, mgr, true)
		if !ok {
			return
		}
		sub, err := sess.Submit(r.Context())
		switch {
		case errors.Is(err, common.ErrSessionClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			common.RespondWithErr(w, err)
		case err != nil:
			log.Printf("api: submit %s: %v", sess.ID(), err)
			common.RespondWithJSON(w, http.StatusOK, submitResponse{Submission: sub, Error: "your answers could not be saved"})
		default:
			common.RespondWithJSON(w, http.StatusOK, submitResponse{Submission: sub, Saved: true})
		}
	}
}

func NoticesHandler(mgr *proctor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := loadSession(w, r, mgr, false)
		if !ok {
			return
		}
		after, err := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		if err != nil {
			after = 0
		}
		common.RespondWithJSON(w, http.StatusOK, sess.Notices(after))
	}
}

// StreamNoticesHandler pushes notices as server-sent events until the
// session ends or the client goes away.
func StreamNoticesHandler(mgr *proctor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := loadSession(w, r, mgr, false)
		if !ok {
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			common.RespondWithError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		ch, cancel := sess.Subscribe()
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ping := time.NewTicker(streamKeepAlive)
		defer ping.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ping.C:
				_, _ = fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case n, open := <-ch:
				if !open {
					return
				}
				body, err := json.Marshal(n)
				if err != nil {
					log.Printf("api: stream %s: %v", sess.ID(), err)
					continue
				}
				_, _ = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", n.Seq, n.Kind, body)
				flusher.Flush()
			}
		}
	}
}
